package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrTooLarge         = errors.New("file exceeds upload limit")
)

// Object 描述一次写入后的结果。
type Object struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// Store persists uploaded files and returns their public URL.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

var allowedFormats = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// ProbeImage reads only the image header and reports its format and dimensions.
func ProbeImage(r io.Reader) (format string, width, height int, err error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if _, ok := allowedFormats[format]; !ok {
		return "", 0, 0, ErrUnsupportedImage
	}
	return format, cfg.Width, cfg.Height, nil
}

// ObjectKey 生成按月份分目录的唯一对象名，扩展名取自探测到的格式。
func ObjectKey(format string, now time.Time) string {
	ext, ok := allowedFormats[format]
	if !ok {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s%s", now.Format("2006/01"), uuid.NewString(), ext)
}

// ContentType maps a probed format to its MIME type.
func ContentType(format string) string {
	return "image/" + format
}

// SaveImage probes the image in src, then writes it to store under a fresh key.
// src must be seekable so the header can be read twice.
func SaveImage(ctx context.Context, store Store, src io.ReadSeeker, size, maxBytes int64) (*Object, error) {
	if maxBytes > 0 && size > maxBytes {
		return nil, ErrTooLarge
	}

	format, width, height, err := ProbeImage(src)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	key := ObjectKey(format, time.Now())
	url, err := store.Put(ctx, key, src, size, ContentType(format))
	if err != nil {
		return nil, err
	}

	return &Object{
		Key:    key,
		URL:    url,
		Width:  width,
		Height: height,
		Format: format,
		Size:   size,
	}, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(filepath.ToSlash(key), "/")
}
