package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

const defaultExcerptRunes = 200

// RenderCache 缓存渲染后的 HTML。键中包含文章更新时间，内容变化后旧键自然失效。
type RenderCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Renderer converts post markdown into sanitized HTML and plain-text excerpts.
type Renderer struct {
	engine goldmark.Markdown
	policy *bluemonday.Policy
	cache  RenderCache
}

// NewRenderer creates a renderer; cache may be nil.
func NewRenderer(cache RenderCache) *Renderer {
	return &Renderer{
		engine: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		policy: bluemonday.UGCPolicy(),
		cache:  cache,
	}
}

// Render converts markdown to sanitized HTML.
func (r *Renderer) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return r.policy.Sanitize(buf.String()), nil
}

// RenderPost 渲染文章正文，命中缓存时直接返回。缓存故障只记录日志，不影响读取。
func (r *Renderer) RenderPost(ctx context.Context, post *db.Post) (string, error) {
	if post == nil {
		return "", nil
	}

	key := renderCacheKey(post)
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("render cache get failed", zap.String("post", post.ID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	rendered, err := r.Render(post.Content)
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, rendered); err != nil {
			logger.Warn("render cache set failed", zap.String("post", post.ID), zap.Error(err))
		}
	}
	return rendered, nil
}

// Excerpt renders content and returns at most maxRunes of its visible text.
func (r *Renderer) Excerpt(content string, maxRunes int) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	if maxRunes <= 0 {
		maxRunes = defaultExcerptRunes
	}

	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return "", err
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text, nil
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…", nil
}

func renderCacheKey(post *db.Post) string {
	return fmt.Sprintf("post:%s:%d", post.ID, post.UpdatedAt.UnixNano())
}
