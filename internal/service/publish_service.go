package service

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishService 管理发布申请的状态机，以及与之成对变化的文章状态。
// 每个转换在单个事务内完成：读取、校验、条件更新。
type PublishService struct {
	db        *gorm.DB
	sanitizer Sanitizer
	now       func() time.Time
}

// RequestFilter describes filters for listing publish requests.
type RequestFilter struct {
	Status   db.RequestStatus
	PostID   string
	AuthorID string
	Page     int
	PerPage  int
}

// RequestListResult aggregates paginated publish requests.
type RequestListResult struct {
	Requests   []db.PublishRequest `json:"requests"`
	Total      int64               `json:"total"`
	TotalPages int                 `json:"totalPages"`
	Page       int                 `json:"page"`
	PerPage    int                 `json:"perPage"`
}

// NewPublishService creates a PublishService instance.
func NewPublishService(gdb *gorm.DB, sanitizer Sanitizer) *PublishService {
	if sanitizer == nil {
		sanitizer = NewPolicySanitizer()
	}
	return &PublishService{db: gdb, sanitizer: sanitizer, now: time.Now}
}

// forUpdate 在支持的方言上对读取的行加锁；sqlite 会忽略该子句，依赖 IMMEDIATE 事务串行化写入。
var forUpdate = clause.Locking{Strength: "UPDATE"}

// Request submits a draft post for review and moves it to PENDING_APPROVAL.
func (s *PublishService) Request(ctx context.Context, actor Actor, postID, message string) (*db.PublishRequest, error) {
	message = s.sanitizer.Text(message)

	var request db.PublishRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post db.Post
		if err := tx.Clauses(forUpdate).First(&post, "id = ?", postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		if err := authorize(actor, post.AuthorID, db.RoleAdmin); err != nil {
			return err
		}

		var pending int64
		if err := tx.Model(&db.PublishRequest{}).
			Where("post_id = ? AND status = ?", post.ID, db.RequestPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrRequestPending
		}
		if post.Status != db.PostDraft {
			return ErrPostNotDraft
		}

		request = db.PublishRequest{
			PostID:   post.ID,
			AuthorID: actor.ID,
			Status:   db.RequestPending,
			Message:  message,
		}
		if err := tx.Omit("Post").Create(&request).Error; err != nil {
			return err
		}

		if err := transitionPost(tx, post.ID, db.PostDraft, map[string]interface{}{
			"status": db.PostPendingApproval,
		}, ErrPostNotDraft); err != nil {
			return err
		}

		return loadRequest(tx, &request, request.ID)
	})
	if db.IsUniqueViolation(err, db.ConstraintPendingRequest) {
		return nil, ErrRequestPending
	}
	if err != nil {
		return nil, err
	}

	logger.Info("publish requested", zap.String("post", postID), zap.String("request", request.ID), zap.String("actor", actor.ID))
	return &request, nil
}

// Approve publishes the post behind a pending request.
func (s *PublishService) Approve(ctx context.Context, actor Actor, requestID, message string) (*db.PublishRequest, error) {
	if err := authorize(actor, "", db.RoleAdmin); err != nil {
		return nil, err
	}
	message = s.sanitizer.Text(message)

	request, err := s.resolve(ctx, actor, requestID, db.RequestApproved, message, func(tx *gorm.DB, postID string, now time.Time) error {
		return transitionPost(tx, postID, db.PostPendingApproval, map[string]interface{}{
			"status":       db.PostPublished,
			"published_at": now,
		}, ErrPostNotPending)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("publish request approved", zap.String("request", requestID), zap.String("reviewer", actor.ID))
	return request, nil
}

// Reject returns the post to DRAFT. A non-empty message is required and kept on the request.
func (s *PublishService) Reject(ctx context.Context, actor Actor, requestID, message string) (*db.PublishRequest, error) {
	if err := authorize(actor, "", db.RoleAdmin); err != nil {
		return nil, err
	}
	message = s.sanitizer.Text(message)
	if message == "" {
		return nil, ErrRejectMessageRequired
	}

	request, err := s.resolve(ctx, actor, requestID, db.RequestRejected, message, func(tx *gorm.DB, postID string, _ time.Time) error {
		return transitionPost(tx, postID, db.PostPendingApproval, map[string]interface{}{
			"status": db.PostDraft,
		}, ErrPostNotPending)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("publish request rejected", zap.String("request", requestID), zap.String("reviewer", actor.ID))
	return request, nil
}

// resolve 完成 PENDING 申请的审核，postEffect 在同一事务中修改文章状态。
func (s *PublishService) resolve(
	ctx context.Context,
	actor Actor,
	requestID string,
	status db.RequestStatus,
	message string,
	postEffect func(tx *gorm.DB, postID string, now time.Time) error,
) (*db.PublishRequest, error) {
	var request db.PublishRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRequest(tx, &request, requestID); err != nil {
			return err
		}
		if request.Status != db.RequestPending {
			return ErrRequestProcessed
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":      status,
			"reviewer_id": actor.ID,
			"reviewed_at": now,
		}
		if message != "" {
			updates["message"] = message
		}

		result := tx.Model(&db.PublishRequest{}).
			Where("id = ? AND status = ?", request.ID, db.RequestPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRequestProcessed
		}

		if err := postEffect(tx, request.PostID, now); err != nil {
			return err
		}
		return loadRequest(tx, &request, request.ID)
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// Cancel withdraws a pending request and returns the post to DRAFT.
func (s *PublishService) Cancel(ctx context.Context, actor Actor, requestID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request db.PublishRequest
		if err := lockRequest(tx, &request, requestID); err != nil {
			return err
		}
		if err := authorize(actor, request.AuthorID, db.RoleAdmin); err != nil {
			return err
		}
		if request.Status != db.RequestPending {
			return ErrRequestProcessed
		}

		result := tx.Where("id = ? AND status = ?", request.ID, db.RequestPending).Delete(&db.PublishRequest{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRequestProcessed
		}

		return transitionPost(tx, request.PostID, db.PostPendingApproval, map[string]interface{}{
			"status": db.PostDraft,
		}, ErrPostNotPending)
	})
	if err != nil {
		return err
	}

	logger.Info("publish request cancelled", zap.String("request", requestID), zap.String("actor", actor.ID))
	return nil
}

// Archive takes a published post offline.
func (s *PublishService) Archive(ctx context.Context, actor Actor, postID string) (*db.Post, error) {
	return s.movePost(ctx, actor, postID, db.PostPublished, db.PostArchived, ErrPostNotPublished)
}

// Restore moves an archived post back to DRAFT; publishedAt is kept.
func (s *PublishService) Restore(ctx context.Context, actor Actor, postID string) (*db.Post, error) {
	return s.movePost(ctx, actor, postID, db.PostArchived, db.PostDraft, ErrPostNotArchived)
}

func (s *PublishService) movePost(ctx context.Context, actor Actor, postID string, from, to db.PostStatus, stateErr error) (*db.Post, error) {
	var post db.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&post, "id = ?", postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		if err := authorize(actor, post.AuthorID, db.RoleAdmin); err != nil {
			return err
		}
		if post.Status != from {
			return stateErr
		}

		if err := transitionPost(tx, post.ID, from, map[string]interface{}{"status": to}, stateErr); err != nil {
			return err
		}
		return loadPost(tx, &post, post.ID)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Get fetches a publish request visible to its requester or an admin.
func (s *PublishService) Get(ctx context.Context, actor Actor, id string) (*db.PublishRequest, error) {
	var request db.PublishRequest
	if err := loadRequest(s.db.WithContext(ctx), &request, id); err != nil {
		return nil, err
	}
	if err := authorize(actor, request.AuthorID, db.RoleAdmin); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns publish requests; non-admin actors only see their own.
func (s *PublishService) List(ctx context.Context, actor Actor, filter RequestFilter) (*RequestListResult, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthorized
	}
	if !actor.IsAdmin() {
		filter.AuthorID = actor.ID
	}

	result := &RequestListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = defaultPerPage
	}
	if result.PerPage > maxPerPage {
		result.PerPage = maxPerPage
	}

	query := s.db.WithContext(ctx).Model(&db.PublishRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PostID != "" {
		query = query.Where("post_id = ?", filter.PostID)
	}
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}

	if err := query.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		return nil, err
	}

	var requests []db.PublishRequest
	if err := query.Preload("Post").
		Order("created_at desc, id desc").
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&requests).Error; err != nil {
		return nil, err
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}
	result.Requests = requests
	return result, nil
}

// transitionPost 仅当文章仍处于 from 状态时才写入，否则返回 stateErr。
func transitionPost(tx *gorm.DB, postID string, from db.PostStatus, updates map[string]interface{}, stateErr error) error {
	result := tx.Model(&db.Post{}).
		Where("id = ? AND status = ?", postID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stateErr
	}
	return nil
}

func lockRequest(tx *gorm.DB, request *db.PublishRequest, id string) error {
	if err := tx.Clauses(forUpdate).First(request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	return nil
}

func loadRequest(tx *gorm.DB, request *db.PublishRequest, id string) error {
	if err := tx.Preload("Post").First(request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	return nil
}
