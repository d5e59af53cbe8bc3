package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus 描述文章所处的发布阶段。
type PostStatus string

const (
	PostDraft           PostStatus = "DRAFT"
	PostPendingApproval PostStatus = "PENDING_APPROVAL"
	PostPublished       PostStatus = "PUBLISHED"
	PostArchived        PostStatus = "ARCHIVED"
)

// Post 定义了文章模型
type Post struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug        string     `gorm:"type:varchar(255);uniqueIndex:idx_posts_slug;not null" json:"slug"`
	Content     string     `gorm:"type:text" json:"content"`
	Excerpt     string     `gorm:"type:text" json:"excerpt"`
	CoverImage  string     `gorm:"type:varchar(512)" json:"coverImage"`
	Status      PostStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	ViewCount   uint64     `gorm:"not null;default:0" json:"viewCount"`
	IsFeatured  bool       `gorm:"not null;default:false" json:"isFeatured"`
	PublishedAt *time.Time `json:"publishedAt"`
	AuthorID    string     `gorm:"type:varchar(36);index;not null" json:"authorId"`
	Author      *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags        []Tag      `gorm:"many2many:post_tags;" json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns an opaque id when the caller left it empty.
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsOwnedBy reports whether userID authored the post.
func (p *Post) IsOwnedBy(userID string) bool {
	return p != nil && userID != "" && p.AuthorID == userID
}
