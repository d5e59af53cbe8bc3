package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus 描述发布申请的审核状态。
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// PublishRequest 记录作者提交的发布申请以及管理员的审核结果。
type PublishRequest struct {
	ID         string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID     string        `gorm:"type:varchar(36);index;not null" json:"postId"`
	Post       *Post         `gorm:"foreignKey:PostID" json:"post,omitempty"`
	AuthorID   string        `gorm:"type:varchar(36);index;not null" json:"authorId"`
	Status     RequestStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Message    string        `gorm:"type:text" json:"message"`
	ReviewerID *string       `gorm:"type:varchar(36)" json:"reviewerId"`
	ReviewedAt *time.Time    `json:"reviewedAt"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// TableName 指定自定义表名。
func (PublishRequest) TableName() string {
	return "publish_requests"
}

func (r *PublishRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
