package service

import (
	"context"
	"errors"
	"strings"

	"github.com/inkwell/internal/db"
	"gorm.io/gorm"
)

// PostService owns the post lifecycle: drafting, editing, tag replacement and deletion.
type PostService struct {
	db        *gorm.DB
	slugs     *SlugGenerator
	tags      *TagService
	sanitizer Sanitizer
	renderer  *Renderer
}

// PostInput represents fields accepted when creating a post.
type PostInput struct {
	Title      string
	Content    string
	Excerpt    string
	CoverImage string
	IsFeatured bool
	TagNames   []string
}

// PostPatch 描述部分更新，nil 字段保持不变；TagNames 非 nil 时整体替换标签集合。
type PostPatch struct {
	Title      *string
	Content    *string
	Excerpt    *string
	CoverImage *string
	IsFeatured *bool
	TagNames   *[]string
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Search   string
	Status   db.PostStatus
	AuthorID string
	TagSlug  string
	Featured *bool
	Page     int
	PerPage  int
}

// PostListResult aggregates paginated list data.
type PostListResult struct {
	Posts      []db.Post `json:"posts"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"totalPages"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
}

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, tags *TagService, sanitizer Sanitizer, renderer *Renderer) *PostService {
	if sanitizer == nil {
		sanitizer = NewPolicySanitizer()
	}
	if tags == nil {
		tags = NewTagService(gdb, sanitizer)
	}
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &PostService{
		db:        gdb,
		slugs:     NewSlugGenerator(&db.Post{}),
		tags:      tags,
		sanitizer: sanitizer,
		renderer:  renderer,
	}
}

// Create persists a draft post with its tags in one transaction.
func (s *PostService) Create(ctx context.Context, actor Actor, input PostInput) (*db.Post, error) {
	if err := authorize(actor, "", db.RoleAuthor, db.RoleAdmin); err != nil {
		return nil, err
	}
	if input.IsFeatured && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	title := s.sanitizer.Text(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	content := s.sanitizer.Markdown(input.Content)
	excerpt, err := s.excerptFor(input.Excerpt, content)
	if err != nil {
		return nil, err
	}

	var post db.Post
	err = withSlugRetry(ctx, []string{db.ConstraintPostSlug}, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			tags, err := s.tags.resolveTags(ctx, tx, input.TagNames)
			if err != nil {
				return err
			}

			slug, err := s.slugs.Generate(ctx, tx, title, "")
			if err != nil {
				return err
			}

			post = db.Post{
				Title:      title,
				Slug:       slug,
				Content:    content,
				Excerpt:    excerpt,
				CoverImage: strings.TrimSpace(input.CoverImage),
				Status:     db.PostDraft,
				IsFeatured: input.IsFeatured,
				AuthorID:   actor.ID,
			}
			if err := tx.Omit("Tags", "Author").Create(&post).Error; err != nil {
				return err
			}

			if err := replacePostTags(tx, post.ID, tags); err != nil {
				return err
			}
			return loadPost(tx, &post, post.ID)
		})
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Update applies a partial update. A changed title regenerates the slug;
// a supplied tag list replaces the whole association set.
func (s *PostService) Update(ctx context.Context, actor Actor, id string, patch PostPatch) (*db.Post, error) {
	var post db.Post
	err := withSlugRetry(ctx, []string{db.ConstraintPostSlug}, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := findPost(tx, &post, id); err != nil {
				return err
			}
			if err := authorize(actor, post.AuthorID, db.RoleAdmin); err != nil {
				return err
			}
			if patch.IsFeatured != nil && !actor.IsAdmin() {
				return ErrNotAuthorized
			}

			updates, err := s.patchUpdates(ctx, tx, &post, patch)
			if err != nil {
				return err
			}
			if len(updates) > 0 {
				if err := tx.Model(&post).Updates(updates).Error; err != nil {
					return err
				}
			}

			if patch.TagNames != nil {
				tags, err := s.tags.resolveTags(ctx, tx, *patch.TagNames)
				if err != nil {
					return err
				}
				if err := replacePostTags(tx, post.ID, tags); err != nil {
					return err
				}
			}
			return loadPost(tx, &post, post.ID)
		})
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostService) patchUpdates(ctx context.Context, tx *gorm.DB, post *db.Post, patch PostPatch) (map[string]interface{}, error) {
	updates := make(map[string]interface{})

	if patch.Title != nil {
		title := s.sanitizer.Text(*patch.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		if title != post.Title {
			slug, err := s.slugs.Generate(ctx, tx, title, post.ID)
			if err != nil {
				return nil, err
			}
			updates["title"] = title
			updates["slug"] = slug
		}
	}

	content := post.Content
	if patch.Content != nil {
		content = s.sanitizer.Markdown(*patch.Content)
		updates["content"] = content
	}

	if patch.Excerpt != nil {
		excerpt, err := s.excerptFor(*patch.Excerpt, content)
		if err != nil {
			return nil, err
		}
		updates["excerpt"] = excerpt
	}

	if patch.CoverImage != nil {
		updates["cover_image"] = strings.TrimSpace(*patch.CoverImage)
	}

	if patch.IsFeatured != nil {
		updates["is_featured"] = *patch.IsFeatured
	}

	return updates, nil
}

// Delete removes a post together with its tag rows, publish requests and comments.
func (s *PostService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post db.Post
		if err := findPost(tx, &post, id); err != nil {
			return err
		}
		if err := authorize(actor, post.AuthorID, db.RoleAdmin); err != nil {
			return err
		}

		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", post.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.PublishRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
}

// Get fetches a post by id. Unpublished posts are visible to their author and admins only.
func (s *PostService) Get(ctx context.Context, actor Actor, id string) (*db.Post, error) {
	var post db.Post
	if err := loadPost(s.db.WithContext(ctx), &post, id); err != nil {
		return nil, err
	}
	if post.Status != db.PostPublished {
		if err := authorize(actor, post.AuthorID, db.RoleAdmin); err != nil {
			return nil, err
		}
	}
	return &post, nil
}

// ReadPublished returns a published post by slug and counts the view.
func (s *PostService) ReadPublished(ctx context.Context, slug string) (*db.Post, error) {
	var post db.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&db.Post{}).
			Where("slug = ? AND status = ?", slug, db.PostPublished).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPostNotFound
		}

		return tx.Preload("Tags").Preload("Author").Where("slug = ?", slug).First(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// RenderedContent returns the sanitized HTML of a post's markdown.
func (s *PostService) RenderedContent(ctx context.Context, post *db.Post) (string, error) {
	return s.renderer.RenderPost(ctx, post)
}

// List provides paginated posts based on filters.
func (s *PostService) List(ctx context.Context, filter PostFilter) (*PostListResult, error) {
	result := &PostListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = defaultPerPage
	}
	if result.PerPage > maxPerPage {
		result.PerPage = maxPerPage
	}

	gdb := s.db.WithContext(ctx)
	countQuery := s.applyFilters(gdb.Model(&db.Post{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	orderBy := "posts.created_at desc, posts.id desc"
	if filter.Status == db.PostPublished {
		orderBy = "posts.published_at desc, posts.id desc"
	}

	var posts []db.Post
	dataQuery := s.applyFilters(gdb.Model(&db.Post{}).Preload("Tags").Preload("Author"), filter)
	if err := dataQuery.
		Order(orderBy).
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}

	result.Posts = posts
	return result, nil
}

func (s *PostService) applyFilters(query *gorm.DB, filter PostFilter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ? OR LOWER(posts.excerpt) LIKE ?)", like, like, like)
	}

	if filter.Status != "" {
		query = query.Where("posts.status = ?", filter.Status)
	}

	if filter.AuthorID != "" {
		query = query.Where("posts.author_id = ?", filter.AuthorID)
	}

	if filter.Featured != nil {
		query = query.Where("posts.is_featured = ?", *filter.Featured)
	}

	if filter.TagSlug != "" {
		subQuery := s.db.Table("post_tags").
			Select("post_tags.post_id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.slug = ?", filter.TagSlug)
		query = query.Where("posts.id IN (?)", subQuery)
	}

	return query
}

func (s *PostService) excerptFor(excerpt, content string) (string, error) {
	if trimmed := s.sanitizer.Text(excerpt); trimmed != "" {
		return trimmed, nil
	}
	return s.renderer.Excerpt(content, defaultExcerptRunes)
}

// replacePostTags 先清空再重建文章的标签关联。
func replacePostTags(tx *gorm.DB, postID string, tags []db.Tag) error {
	if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", postID).Error; err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, map[string]interface{}{"post_id": postID, "tag_id": tag.ID})
	}
	return tx.Table("post_tags").Create(&rows).Error
}

func findPost(tx *gorm.DB, post *db.Post, id string) error {
	if err := tx.First(post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

func loadPost(tx *gorm.DB, post *db.Post, id string) error {
	if err := tx.Preload("Tags").Preload("Author").First(post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}
