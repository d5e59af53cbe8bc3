package service

import (
	"context"
	"errors"

	"github.com/inkwell/internal/db"
	"gorm.io/gorm"
)

// CommentService handles reader comments on published posts.
type CommentService struct {
	db        *gorm.DB
	sanitizer Sanitizer
}

// NewCommentService creates a CommentService instance.
func NewCommentService(gdb *gorm.DB, sanitizer Sanitizer) *CommentService {
	if sanitizer == nil {
		sanitizer = NewPolicySanitizer()
	}
	return &CommentService{db: gdb, sanitizer: sanitizer}
}

// Create adds a comment to the published post identified by slug.
func (s *CommentService) Create(ctx context.Context, actor Actor, postSlug, content string) (*db.Comment, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthorized
	}
	content = s.sanitizer.Text(content)
	if content == "" {
		return nil, ErrCommentContentRequired
	}

	var comment db.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := publishedPost(tx, postSlug)
		if err != nil {
			return err
		}

		comment = db.Comment{PostID: post.ID, AuthorID: actor.ID, Content: content}
		if err := tx.Omit("Author").Create(&comment).Error; err != nil {
			return err
		}
		return tx.Preload("Author").First(&comment, "id = ?", comment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListForPost 返回已发布文章下的评论，按时间正序。
func (s *CommentService) ListForPost(ctx context.Context, postSlug string) ([]db.Comment, error) {
	gdb := s.db.WithContext(ctx)
	post, err := publishedPost(gdb, postSlug)
	if err != nil {
		return nil, err
	}

	var comments []db.Comment
	if err := gdb.Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at asc, id asc").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// Delete removes a comment; allowed for its author and admins.
func (s *CommentService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment db.Comment
		if err := tx.First(&comment, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		if err := authorize(actor, comment.AuthorID, db.RoleAdmin); err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
}

func publishedPost(tx *gorm.DB, slug string) (*db.Post, error) {
	var post db.Post
	if err := tx.Select("id", "status").Where("slug = ?", slug).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.Status != db.PostPublished {
		return nil, ErrPostNotPublic
	}
	return &post, nil
}
