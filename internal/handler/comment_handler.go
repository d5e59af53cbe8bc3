package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// ListComments 已发布文章的评论列表
func (a *API) ListComments(c *gin.Context) {
	comments, err := a.comments.ListForPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// CreateComment 登录用户发表评论
func (a *API) CreateComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req, "评论内容不能为空") {
		return
	}

	comment, err := a.comments.Create(c.Request.Context(), currentActor(c), c.Param("slug"), req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// DeleteComment 评论作者或管理员删除评论
func (a *API) DeleteComment(c *gin.Context) {
	if err := a.comments.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
