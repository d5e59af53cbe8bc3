package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/inkwell/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostServiceConcurrentCreatesYieldDistinctSlugs(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	const writers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		slugs []string
		errs  []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			post, err := posts.Create(context.Background(), author, PostInput{Title: "Hello World", Content: "body"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			slugs = append(slugs, post.Slug)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	want := []string{"hello-world"}
	for i := 1; i < writers; i++ {
		want = append(want, fmt.Sprintf("hello-world-%d", i))
	}
	sort.Strings(want)
	sort.Strings(slugs)
	assert.Equal(t, want, slugs)
}

func TestPostServiceCreateNextFreeSuffix(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	seedPost(t, gdb, author, "My Post", "my-post", db.PostDraft)
	seedPost(t, gdb, author, "My Post 1", "my-post-1", db.PostDraft)
	posts, _, _ := newTestServices(gdb)

	post, err := posts.Create(context.Background(), author, PostInput{Title: "My Post"})
	require.NoError(t, err)
	assert.Equal(t, "my-post-2", post.Slug)
	assert.Equal(t, db.PostDraft, post.Status)
	assert.Equal(t, author.ID, post.AuthorID)
	assert.Nil(t, post.PublishedAt)
}

func TestPostServiceCreateRequiresAuthorRole(t *testing.T) {
	gdb := setupServiceTestDB(t)
	reader := seedUser(t, gdb, "reader", db.RoleReader)
	posts, _, _ := newTestServices(gdb)

	_, err := posts.Create(context.Background(), reader, PostInput{Title: "Nope"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = posts.Create(context.Background(), Actor{}, PostInput{Title: "Nope"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPostServiceCreateOnlyAdminCanFeature(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	admin := seedUser(t, gdb, "admin", db.RoleAdmin)
	posts, _, _ := newTestServices(gdb)

	_, err := posts.Create(context.Background(), author, PostInput{Title: "Feature me", IsFeatured: true})
	require.ErrorIs(t, err, ErrForbidden)

	post, err := posts.Create(context.Background(), admin, PostInput{Title: "Feature me", IsFeatured: true})
	require.NoError(t, err)
	assert.True(t, post.IsFeatured)
}

func TestPostServiceCreateSanitizesAndDerivesExcerpt(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	post, err := posts.Create(context.Background(), author, PostInput{
		Title:   "<b>Safe</b> title<script>alert(1)</script>",
		Content: "# Heading\n\nSome **bold** text <script>alert(1)</script>\n\n> quoted",
	})
	require.NoError(t, err)

	assert.Equal(t, "Safe title", post.Title)
	assert.Equal(t, "safe-title", post.Slug)
	assert.NotContains(t, post.Content, "<script")
	assert.Contains(t, post.Content, "> quoted")
	assert.True(t, strings.HasPrefix(post.Excerpt, "Heading Some bold text"), post.Excerpt)
}

func TestPostServiceCreateRejectsEmptyTitle(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	_, err := posts.Create(context.Background(), author, PostInput{Title: "   "})
	require.ErrorIs(t, err, ErrTitleRequired)

	_, err = posts.Create(context.Background(), author, PostInput{Title: "###"})
	require.ErrorIs(t, err, ErrEmptySlug)
}

func TestPostServiceCreateResolvesTags(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	post, err := posts.Create(context.Background(), author, PostInput{
		Title:    "Tagged",
		TagNames: []string{"Go", "go", " Databases ", ""},
	})
	require.NoError(t, err)
	require.Len(t, post.Tags, 2)

	var count int64
	require.NoError(t, gdb.Model(&db.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestPostServiceTagNamesDifferingInSpacingShareOneTag(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	post, err := posts.Create(context.Background(), author, PostInput{
		Title:    "Hello",
		TagNames: []string{"Go Lang", "Go  Lang", " go\tlang "},
	})
	require.NoError(t, err)
	require.Len(t, post.Tags, 1)
	assert.Equal(t, "Go Lang", post.Tags[0].Name)

	names := []string{"Web  Dev", "web dev", "Go   Lang"}
	updated, err := posts.Update(context.Background(), author, post.ID, PostPatch{TagNames: &names})
	require.NoError(t, err)
	assert.Len(t, updated.Tags, 2)

	var links int64
	require.NoError(t, gdb.Table("post_tags").Where("post_id = ?", post.ID).Count(&links).Error)
	assert.Equal(t, int64(2), links)
}

func TestPostServiceRejectsOverlongTagName(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	_, err := posts.Create(context.Background(), author, PostInput{
		Title:    "Long tags",
		TagNames: []string{strings.Repeat("x", maxTagNameLength+1)},
	})
	require.ErrorIs(t, err, ErrTagNameTooLong)
	assert.True(t, IsExpected(err))

	var count int64
	require.NoError(t, gdb.Model(&db.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostServiceUpdateSameTitleKeepsSlug(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	created, err := posts.Create(context.Background(), author, PostInput{Title: "Stable Title"})
	require.NoError(t, err)

	title := "Stable Title"
	updated, err := posts.Update(context.Background(), author, created.ID, PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, created.Slug, updated.Slug)

	// 标题变化但 slug 基底相同，自身占用的 slug 仍然可用。
	title = "stable   title!"
	updated, err = posts.Update(context.Background(), author, created.ID, PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "stable-title", updated.Slug)
	assert.Equal(t, "stable   title!", updated.Title)
}

func TestPostServiceUpdateTitleRegeneratesSlug(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	seedPost(t, gdb, author, "Taken", "new-name", db.PostDraft)
	posts, _, _ := newTestServices(gdb)

	created, err := posts.Create(context.Background(), author, PostInput{Title: "Old Name"})
	require.NoError(t, err)

	title := "New Name"
	updated, err := posts.Update(context.Background(), author, created.ID, PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new-name-1", updated.Slug)
}

func TestPostServiceUpdateAuthorization(t *testing.T) {
	gdb := setupServiceTestDB(t)
	owner := seedUser(t, gdb, "owner", db.RoleAuthor)
	other := seedUser(t, gdb, "other", db.RoleAuthor)
	admin := seedUser(t, gdb, "admin", db.RoleAdmin)
	posts, _, _ := newTestServices(gdb)

	created, err := posts.Create(context.Background(), owner, PostInput{Title: "Owned"})
	require.NoError(t, err)

	content := "edited"
	_, err = posts.Update(context.Background(), other, created.ID, PostPatch{Content: &content})
	require.ErrorIs(t, err, ErrForbidden)

	featured := true
	_, err = posts.Update(context.Background(), owner, created.ID, PostPatch{IsFeatured: &featured})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := posts.Update(context.Background(), admin, created.ID, PostPatch{Content: &content, IsFeatured: &featured})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.True(t, updated.IsFeatured)

	_, err = posts.Update(context.Background(), admin, "missing", PostPatch{Content: &content})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostServiceUpdateReplacesTagSet(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	created, err := posts.Create(context.Background(), author, PostInput{Title: "Tags", TagNames: []string{"Go", "SQL"}})
	require.NoError(t, err)

	names := []string{"sql", "Rust"}
	updated, err := posts.Update(context.Background(), author, created.ID, PostPatch{TagNames: &names})
	require.NoError(t, err)

	got := make([]string, 0, len(updated.Tags))
	for _, tag := range updated.Tags {
		got = append(got, tag.Name)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"Rust", "SQL"}, got)

	// 未提供标签时保持原样。
	content := "only content"
	updated, err = posts.Update(context.Background(), author, created.ID, PostPatch{Content: &content})
	require.NoError(t, err)
	assert.Len(t, updated.Tags, 2)

	empty := []string{}
	updated, err = posts.Update(context.Background(), author, created.ID, PostPatch{TagNames: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)
}

func TestPostServiceUpdateFailureLeavesTagsUntouched(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	created, err := posts.Create(context.Background(), author, PostInput{Title: "Atomic", TagNames: []string{"Go"}})
	require.NoError(t, err)

	title := "%%%"
	names := []string{"Rust"}
	_, err = posts.Update(context.Background(), author, created.ID, PostPatch{Title: &title, TagNames: &names})
	require.ErrorIs(t, err, ErrEmptySlug)

	post, err := posts.Get(context.Background(), author, created.ID)
	require.NoError(t, err)
	require.Len(t, post.Tags, 1)
	assert.Equal(t, "Go", post.Tags[0].Name)
	assert.Equal(t, "Atomic", post.Title)
}

func TestPostServiceDeleteRemovesDependents(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	other := seedUser(t, gdb, "other", db.RoleAuthor)
	posts, _, publish := newTestServices(gdb)

	created, err := posts.Create(context.Background(), author, PostInput{Title: "Doomed", TagNames: []string{"Go"}})
	require.NoError(t, err)
	_, err = publish.Request(context.Background(), author, created.ID, "")
	require.NoError(t, err)

	require.ErrorIs(t, posts.Delete(context.Background(), other, created.ID), ErrForbidden)
	require.NoError(t, posts.Delete(context.Background(), author, created.ID))

	var postCount, requestCount, joinCount, tagCount int64
	require.NoError(t, gdb.Model(&db.Post{}).Count(&postCount).Error)
	require.NoError(t, gdb.Model(&db.PublishRequest{}).Count(&requestCount).Error)
	require.NoError(t, gdb.Table("post_tags").Count(&joinCount).Error)
	require.NoError(t, gdb.Model(&db.Tag{}).Count(&tagCount).Error)
	assert.Zero(t, postCount)
	assert.Zero(t, requestCount)
	assert.Zero(t, joinCount)
	assert.Equal(t, int64(1), tagCount)

	require.ErrorIs(t, posts.Delete(context.Background(), author, created.ID), ErrPostNotFound)
}

func TestPostServiceGetHidesUnpublishedPosts(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	reader := seedUser(t, gdb, "reader", db.RoleReader)
	draft := seedPost(t, gdb, author, "Draft", "draft", db.PostDraft)
	published := seedPost(t, gdb, author, "Live", "live", db.PostPublished)
	posts, _, _ := newTestServices(gdb)

	_, err := posts.Get(context.Background(), reader, draft.ID)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := posts.Get(context.Background(), reader, published.ID)
	require.NoError(t, err)
	assert.Equal(t, "live", got.Slug)
}

func TestPostServiceReadPublishedCountsViews(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	seedPost(t, gdb, author, "Draft", "draft", db.PostDraft)
	seedPost(t, gdb, author, "Live", "live", db.PostPublished)
	posts, _, _ := newTestServices(gdb)

	_, err := posts.ReadPublished(context.Background(), "draft")
	require.ErrorIs(t, err, ErrPostNotFound)

	_, err = posts.ReadPublished(context.Background(), "live")
	require.NoError(t, err)
	post, err := posts.ReadPublished(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), post.ViewCount)
}

func TestPostServiceListFilters(t *testing.T) {
	gdb := setupServiceTestDB(t)
	author := seedUser(t, gdb, "author", db.RoleAuthor)
	other := seedUser(t, gdb, "other", db.RoleAuthor)
	posts, _, _ := newTestServices(gdb)

	for i := 0; i < 3; i++ {
		_, err := posts.Create(context.Background(), author, PostInput{Title: fmt.Sprintf("Go post %d", i), TagNames: []string{"Go"}})
		require.NoError(t, err)
	}
	_, err := posts.Create(context.Background(), other, PostInput{Title: "Rust post", TagNames: []string{"Rust"}})
	require.NoError(t, err)
	seedPost(t, gdb, other, "Published", "published", db.PostPublished)

	result, err := posts.List(context.Background(), PostFilter{TagSlug: "go", PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, 2, result.TotalPages)
	assert.Len(t, result.Posts, 2)

	result, err = posts.List(context.Background(), PostFilter{AuthorID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)

	result, err = posts.List(context.Background(), PostFilter{Status: db.PostPublished})
	require.NoError(t, err)
	require.Len(t, result.Posts, 1)
	assert.Equal(t, "published", result.Posts[0].Slug)

	result, err = posts.List(context.Background(), PostFilter{Search: "RUST"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
}
