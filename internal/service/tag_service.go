package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/inkwell/internal/db"
	"gorm.io/gorm"
)

// 与 tags 表列宽一致：name varchar(100)，slug varchar(120) 需为 "-N" 后缀留出空间。
const (
	maxTagNameLength = 100
	maxTagSlugLength = 100
)

// TagService wraps tag related operations and resolves free-text tag names for posts.
type TagService struct {
	db        *gorm.DB
	slugs     *SlugGenerator
	sanitizer Sanitizer
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB, sanitizer Sanitizer) *TagService {
	if sanitizer == nil {
		sanitizer = NewPolicySanitizer()
	}
	return &TagService{
		db:        gdb,
		slugs:     NewSlugGenerator(&db.Tag{}).WithMaxLength(maxTagSlugLength),
		sanitizer: sanitizer,
	}
}

// List returns every tag with the number of posts referencing it.
func (s *TagService) List(ctx context.Context) ([]db.Tag, error) {
	var tags []db.Tag
	if err := s.db.WithContext(ctx).
		Model(&db.Tag{}).
		Select("tags.*, COUNT(post_tags.post_id) AS post_count").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Group("tags.id").
		Order("tags.name asc").
		Order("tags.id asc").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Get fetches a tag by id.
func (s *TagService) Get(ctx context.Context, id string) (*db.Tag, error) {
	var tag db.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// Create inserts a new tag; names are unique regardless of case.
func (s *TagService) Create(ctx context.Context, actor Actor, name string) (*db.Tag, error) {
	if err := authorize(actor, "", db.RoleAdmin); err != nil {
		return nil, err
	}

	name, key, err := s.normalizeName(name)
	if err != nil {
		return nil, err
	}

	var tag db.Tag
	err = withSlugRetry(ctx, []string{db.ConstraintTagSlug}, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			exists, err := s.keyTaken(tx, key, "")
			if err != nil {
				return err
			}
			if exists {
				return ErrTagExists
			}

			slug, err := s.slugs.Generate(ctx, tx, name, "")
			if err != nil {
				return err
			}

			tag = db.Tag{Name: name, NameKey: key, Slug: slug}
			return tx.Create(&tag).Error
		})
	})
	if db.IsUniqueViolation(err, db.ConstraintTagName) {
		return nil, ErrTagExists
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Update renames a tag and regenerates its slug.
func (s *TagService) Update(ctx context.Context, actor Actor, id, name string) (*db.Tag, error) {
	if err := authorize(actor, "", db.RoleAdmin); err != nil {
		return nil, err
	}

	name, key, err := s.normalizeName(name)
	if err != nil {
		return nil, err
	}

	var tag db.Tag
	err = withSlugRetry(ctx, []string{db.ConstraintTagSlug}, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&tag, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTagNotFound
				}
				return err
			}

			exists, err := s.keyTaken(tx, key, id)
			if err != nil {
				return err
			}
			if exists {
				return ErrTagExists
			}

			slug, err := s.slugs.Generate(ctx, tx, name, id)
			if err != nil {
				return err
			}

			tag.Name = name
			tag.NameKey = key
			tag.Slug = slug
			return tx.Model(&tag).Select("name", "name_key", "slug", "updated_at").Updates(&tag).Error
		})
	})
	if db.IsUniqueViolation(err, db.ConstraintTagName) {
		return nil, ErrTagExists
	}
	if err != nil {
		return nil, err
	}

	count, err := s.postUsageCount(s.db.WithContext(ctx), tag.ID)
	if err != nil {
		return nil, err
	}
	tag.PostCount = count
	return &tag, nil
}

// Delete removes a tag if it is not associated with posts.
func (s *TagService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := authorize(actor, "", db.RoleAdmin); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag db.Tag
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}

		count, err := s.postUsageCount(tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrTagInUse
		}

		return tx.Delete(&tag).Error
	})
}

// GetOrCreate resolves a free-text tag name inside the caller's transaction.
// A concurrent insert of the same name is not an error: the winner's row is returned.
func (s *TagService) GetOrCreate(ctx context.Context, tx *gorm.DB, name string) (*db.Tag, error) {
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	name, key, err := s.normalizeName(name)
	if err != nil {
		return nil, err
	}

	tag, err := s.findByKey(tx, key)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrTagNotFound) {
		return nil, err
	}

	return s.createOrLoad(ctx, tx, name, key)
}

// createOrLoad 在保存点内插入标签，避免唯一约束冲突使整个外层事务失效（PostgreSQL）。
func (s *TagService) createOrLoad(ctx context.Context, tx *gorm.DB, name, key string) (*db.Tag, error) {
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		slug, err := s.slugs.Generate(ctx, tx, name, "")
		if err != nil {
			return nil, err
		}

		tag := db.Tag{Name: name, NameKey: key, Slug: slug}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&tag).Error
		})

		switch {
		case err == nil:
			return &tag, nil
		case db.IsUniqueViolation(err, db.ConstraintTagName):
			return s.findByKey(tx, key)
		case db.IsUniqueViolation(err, db.ConstraintTagSlug):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrSlugConflict
}

// resolveTags turns tag names into rows, dropping names that normalize to the same tag.
// Blank names are skipped.
func (s *TagService) resolveTags(ctx context.Context, tx *gorm.DB, names []string) ([]db.Tag, error) {
	tags := make([]db.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		_, key, err := s.normalizeName(raw)
		if errors.Is(err, ErrTagNameRequired) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		tag, err := s.GetOrCreate(ctx, tx, raw)
		if err != nil {
			return nil, err
		}
		// post_tags 以 (post_id, tag_id) 为主键，同一行不能出现两次。
		if _, ok := seen[tag.ID]; ok {
			continue
		}
		seen[tag.ID] = struct{}{}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func (s *TagService) normalizeName(name string) (string, string, error) {
	name = strings.Join(strings.Fields(s.sanitizer.Text(name)), " ")
	if name == "" {
		return "", "", ErrTagNameRequired
	}
	if utf8.RuneCountInString(name) > maxTagNameLength {
		return "", "", ErrTagNameTooLong
	}
	return name, db.TagNameKey(name), nil
}

func (s *TagService) findByKey(tx *gorm.DB, key string) (*db.Tag, error) {
	var tag db.Tag
	if err := tx.Where("name_key = ?", key).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

func (s *TagService) keyTaken(tx *gorm.DB, key, excludeID string) (bool, error) {
	query := tx.Model(&db.Tag{}).Where("name_key = ?", key)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *TagService) postUsageCount(tx *gorm.DB, id string) (int64, error) {
	var count int64
	if err := tx.Table("post_tags").Where("tag_id = ?", id).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
