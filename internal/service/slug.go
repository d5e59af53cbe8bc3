package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxSlugAttempts = 3
	maxSlugLength   = 200
)

var (
	slugWhitespacePattern = regexp.MustCompile(`\s+`)
	slugInvalidPattern    = regexp.MustCompile(`[^a-z0-9_-]`)
	slugDashPattern       = regexp.MustCompile(`-{2,}`)
)

// Slugify turns free text into a lowercase, hyphen-delimited token.
// Text made only of symbols yields "".
func Slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = slugWhitespacePattern.ReplaceAllString(slug, "-")
	slug = slugInvalidPattern.ReplaceAllString(slug, "")
	slug = slugDashPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return truncateSlug(slug, maxSlugLength)
}

func truncateSlug(slug string, maxLength int) string {
	if maxLength > 0 && len(slug) > maxLength {
		slug = strings.TrimRight(slug[:maxLength], "-")
	}
	return slug
}

// SlugLookup 在 tx 中按 slug 查找记录，返回占用者 id。
type SlugLookup func(ctx context.Context, tx *gorm.DB, slug string) (ownerID string, found bool, err error)

// SlugGenerator allocates slugs within one namespace (posts or tags).
type SlugGenerator struct {
	lookup    SlugLookup
	maxLength int
}

// NewSlugGenerator creates a generator whose namespace is the table behind model.
func NewSlugGenerator(model any) *SlugGenerator {
	return &SlugGenerator{lookup: tableSlugLookup(model), maxLength: maxSlugLength}
}

// WithMaxLength caps the base slug, leaving room for a "-N" suffix in narrower columns.
func (g *SlugGenerator) WithMaxLength(n int) *SlugGenerator {
	g.maxLength = n
	return g
}

func tableSlugLookup(model any) SlugLookup {
	return func(ctx context.Context, tx *gorm.DB, slug string) (string, bool, error) {
		var ids []string
		if err := tx.WithContext(ctx).Model(model).Where("slug = ?", slug).Limit(1).Pluck("id", &ids).Error; err != nil {
			return "", false, err
		}
		if len(ids) == 0 {
			return "", false, nil
		}
		return ids[0], true, nil
	}
}

// Generate returns the first free candidate among base, base-1, base-2, ...
// A candidate held by excludeID counts as free so that updates keep their own slug.
// The result is only optimistic: the insert that consumes it can still lose a race
// and must run under withSlugRetry.
func (g *SlugGenerator) Generate(ctx context.Context, tx *gorm.DB, text, excludeID string) (string, error) {
	base := truncateSlug(Slugify(text), g.maxLength)
	if base == "" {
		return "", ErrEmptySlug
	}

	candidate := base
	for counter := 1; ; counter++ {
		ownerID, found, err := g.lookup(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !found || (excludeID != "" && ownerID == excludeID) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

type attemptOutcome int

const (
	attemptDone attemptOutcome = iota
	attemptRetry
	attemptFatal
)

// classifyAttempt 判断一次尝试的结果：成功、因 slug 竞争需要重试、或不可重试的失败。
func classifyAttempt(err error, constraints ...string) attemptOutcome {
	switch {
	case err == nil:
		return attemptDone
	case len(constraints) > 0 && db.IsUniqueViolation(err, constraints...):
		return attemptRetry
	default:
		return attemptFatal
	}
}

// withSlugRetry runs fn, a whole unit of work, at most maxSlugAttempts times.
// Only unique violations on constraints trigger another attempt.
func withSlugRetry(ctx context.Context, constraints []string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		err := fn()
		switch classifyAttempt(err, constraints...) {
		case attemptDone:
			return nil
		case attemptFatal:
			return err
		}

		lastErr = err
		logger.Warn("slug allocation lost a race",
			zap.Int("attempt", attempt),
			zap.Strings("constraints", constraints),
			zap.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%w (after %d attempts): %v", ErrSlugConflict, maxSlugAttempts, lastErr)
}
