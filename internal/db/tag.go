package db

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag 定义了标签模型，名称大小写不敏感地唯一
type Tag struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	NameKey   string    `gorm:"type:varchar(100);uniqueIndex:idx_tags_name_key;not null" json:"-"`
	Slug      string    `gorm:"type:varchar(120);uniqueIndex:idx_tags_slug;not null" json:"slug"`
	PostCount int64     `gorm:"->;-:migration" json:"postCount"`
	Posts     []Post    `gorm:"many2many:post_tags;" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns the id and keeps NameKey in sync with Name.
func (t *Tag) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.NameKey == "" {
		t.NameKey = TagNameKey(t.Name)
	}
	return nil
}

// TagNameKey 返回用于唯一性比较的标签名。
func TagNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
