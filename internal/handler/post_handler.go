package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
)

type postRequest struct {
	Title      string   `json:"title" binding:"required,max=255"`
	Content    string   `json:"content"`
	Excerpt    string   `json:"excerpt"`
	CoverImage string   `json:"coverImage"`
	IsFeatured bool     `json:"isFeatured"`
	Tags       []string `json:"tags"`
}

type postPatchRequest struct {
	Title      *string   `json:"title" binding:"omitempty,max=255"`
	Content    *string   `json:"content"`
	Excerpt    *string   `json:"excerpt"`
	CoverImage *string   `json:"coverImage"`
	IsFeatured *bool     `json:"isFeatured"`
	Tags       *[]string `json:"tags"`
}

// ListPublishedPosts 公开文章列表，支持 search/tag/featured 过滤与分页
func (a *API) ListPublishedPosts(c *gin.Context) {
	page, perPage := pagination(c)
	result, err := a.posts.List(c.Request.Context(), service.PostFilter{
		Search:   c.Query("search"),
		Status:   db.PostPublished,
		TagSlug:  strings.TrimSpace(c.Query("tag")),
		Featured: parseBoolQuery(c, "featured"),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ShowPublishedPost 读取已发布文章并累计浏览量，附带渲染后的 HTML
func (a *API) ShowPublishedPost(c *gin.Context) {
	post, err := a.posts.ReadPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	html, err := a.posts.RenderedContent(c.Request.Context(), post)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post, "html": html})
}

// ListManagedPosts 后台文章列表；非管理员只能看到自己的文章
func (a *API) ListManagedPosts(c *gin.Context) {
	actor := currentActor(c)
	page, perPage := pagination(c)

	filter := service.PostFilter{
		Search:   c.Query("search"),
		Status:   db.PostStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		AuthorID: strings.TrimSpace(c.Query("authorId")),
		TagSlug:  strings.TrimSpace(c.Query("tag")),
		Featured: parseBoolQuery(c, "featured"),
		Page:     page,
		PerPage:  perPage,
	}
	if !actor.IsAdmin() {
		filter.AuthorID = actor.ID
	}

	result, err := a.posts.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetManagedPost 获取单篇文章（包含未发布）
func (a *API) GetManagedPost(c *gin.Context) {
	post, err := a.posts.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// CreatePost 创建草稿
func (a *API) CreatePost(c *gin.Context) {
	var req postRequest
	if !bindJSON(c, &req, "文章数据无效") {
		return
	}

	post, err := a.posts.Create(c.Request.Context(), currentActor(c), service.PostInput{
		Title:      req.Title,
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		CoverImage: req.CoverImage,
		IsFeatured: req.IsFeatured,
		TagNames:   req.Tags,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// UpdatePost 部分更新文章，tags 字段存在时整体替换
func (a *API) UpdatePost(c *gin.Context) {
	var req postPatchRequest
	if !bindJSON(c, &req, "文章数据无效") {
		return
	}

	post, err := a.posts.Update(c.Request.Context(), currentActor(c), c.Param("id"), service.PostPatch{
		Title:      req.Title,
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		CoverImage: req.CoverImage,
		IsFeatured: req.IsFeatured,
		TagNames:   req.Tags,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost 删除文章及其关联数据
func (a *API) DeletePost(c *gin.Context) {
	if err := a.posts.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ArchivePost 下线已发布文章
func (a *API) ArchivePost(c *gin.Context) {
	post, err := a.publish.Archive(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// RestorePost 恢复归档文章
func (a *API) RestorePost(c *gin.Context) {
	post, err := a.publish.Restore(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}
