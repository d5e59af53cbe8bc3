package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/logger"
	"github.com/inkwell/internal/service"
	"github.com/inkwell/internal/telemetry"
	"go.uber.org/zap"
)

const maxPageSize = 100

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// statusForError 将服务层错误类别映射为 HTTP 状态码，0 表示非预期错误。
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	default:
		return 0
	}
}

// respondServiceError 预期错误直接返回给调用方；其余错误记录日志并上报。
func respondServiceError(c *gin.Context, err error) {
	if status := statusForError(err); status != 0 {
		respondError(c, status, err.Error())
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		respondError(c, http.StatusServiceUnavailable, "请求已取消")
		return
	}

	_ = c.Error(err)
	logger.Error("unexpected service error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	telemetry.CaptureError(c, err)
	respondError(c, http.StatusInternalServerError, "服务器内部错误")
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func pagination(c *gin.Context) (int, int) {
	page := parsePositiveInt(c.Query("page"), 1)
	perPage := parsePositiveInt(c.Query("perPage"), 10)
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return page, perPage
}

func parseBoolQuery(c *gin.Context, key string) *bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &parsed
}
