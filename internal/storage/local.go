package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 将文件写入本地目录，并通过静态路由对外提供访问。
type LocalStore struct {
	dir     string
	urlPath string
}

// NewLocalStore creates the upload directory when missing.
func NewLocalStore(dir, urlPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir, urlPath: "/" + strings.Trim(urlPath, "/")}, nil
}

// Dir returns the directory served under URLPath.
func (s *LocalStore) Dir() string { return s.dir }

// URLPath returns the public route prefix.
func (s *LocalStore) URLPath() string { return s.urlPath }

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return "", err
	}

	return joinURL(s.urlPath, key), nil
}
