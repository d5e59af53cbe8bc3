package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/inkwell/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupServiceTestDB 使用临时文件数据库：IMMEDIATE 事务让并发写入排队而不是直接失败。
func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=1",
		filepath.Join(t.TempDir(), "service.db"))
	gdb, err := db.Open(db.DriverSQLite, dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username string, role db.Role) Actor {
	t.Helper()

	user := db.User{Username: username, Password: "not-a-hash", Role: role}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return Actor{ID: user.ID, Role: user.Role}
}

func seedPost(t *testing.T, gdb *gorm.DB, author Actor, title, slug string, status db.PostStatus) db.Post {
	t.Helper()

	post := db.Post{Title: title, Slug: slug, Content: "content", Status: status, AuthorID: author.ID}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post %s: %v", slug, err)
	}
	return post
}

func newTestServices(gdb *gorm.DB) (*PostService, *TagService, *PublishService) {
	sanitizer := NewPolicySanitizer()
	tags := NewTagService(gdb, sanitizer)
	posts := NewPostService(gdb, tags, sanitizer, NewRenderer(nil))
	return posts, tags, NewPublishService(gdb, sanitizer)
}

func reloadPost(t *testing.T, gdb *gorm.DB, id string) db.Post {
	t.Helper()

	var post db.Post
	if err := gdb.WithContext(context.Background()).First(&post, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload post %s: %v", id, err)
	}
	return post
}
