package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
)

type reviewRequest struct {
	Message string `json:"message" binding:"max=2000"`
}

// bindOptionalJSON 允许空请求体，只有格式错误时才返回 400
func bindOptionalJSON(c *gin.Context, dst interface{}, message string) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst, message)
}

// RequestPublish 作者为草稿提交发布申请
func (a *API) RequestPublish(c *gin.Context) {
	var req reviewRequest
	if !bindOptionalJSON(c, &req, "申请数据无效") {
		return
	}

	request, err := a.publish.Request(c.Request.Context(), currentActor(c), c.Param("id"), req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// ListPublishRequests 管理员查看全部申请，作者只看到自己的
func (a *API) ListPublishRequests(c *gin.Context) {
	page, perPage := pagination(c)
	result, err := a.publish.List(c.Request.Context(), currentActor(c), service.RequestFilter{
		Status:   db.RequestStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		PostID:   strings.TrimSpace(c.Query("postId")),
		AuthorID: strings.TrimSpace(c.Query("authorId")),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPublishRequest 获取单个申请
func (a *API) GetPublishRequest(c *gin.Context) {
	request, err := a.publish.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": request})
}

// ApprovePublishRequest 审核通过并发布文章
func (a *API) ApprovePublishRequest(c *gin.Context) {
	var req reviewRequest
	if !bindOptionalJSON(c, &req, "审核数据无效") {
		return
	}

	request, err := a.publish.Approve(c.Request.Context(), currentActor(c), c.Param("id"), req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": request})
}

// RejectPublishRequest 驳回申请，必须附带原因
func (a *API) RejectPublishRequest(c *gin.Context) {
	var req reviewRequest
	if !bindOptionalJSON(c, &req, "审核数据无效") {
		return
	}

	request, err := a.publish.Reject(c.Request.Context(), currentActor(c), c.Param("id"), req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": request})
}

// CancelPublishRequest 撤回待审核的申请
func (a *API) CancelPublishRequest(c *gin.Context) {
	if err := a.publish.Cancel(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
