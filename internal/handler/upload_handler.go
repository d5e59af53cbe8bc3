package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/storage"
)

// UploadImage 处理图片上传请求，表单字段为 image
func (a *API) UploadImage(c *gin.Context) {
	if a.store == nil {
		respondError(c, http.StatusServiceUnavailable, "未配置上传存储")
		return
	}

	if a.maxUploadBytes > 0 {
		// multipart 头部留出余量，真正的大小检查在 SaveImage 中
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadBytes+1<<20)
	}

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "图片超过大小限制")
			return
		}
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	defer src.Close()

	object, err := storage.SaveImage(c.Request.Context(), a.store, src, file.Size, a.maxUploadBytes)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "图片超过大小限制")
		return
	case errors.Is(err, storage.ErrUnsupportedImage):
		respondError(c, http.StatusBadRequest, "只允许上传 JPEG、PNG、GIF 或 WebP 图片")
		return
	case err != nil:
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": 1,
		"message": "上传成功",
		"data":    object,
	})
}
