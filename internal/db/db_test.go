package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", filepath.Join(t.TempDir(), "nested", "db.sqlite"))
	gdb, err := Open(DriverSQLite, dsn, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", logger.Discard)
	assert.Error(t, err)

	_, err = Open(DriverPostgres, "", logger.Discard)
	assert.Error(t, err)
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "data/app.db", sqlitePath("file:data/app.db?_foreign_keys=1"))
	assert.Equal(t, "inkwell.db", sqlitePath(defaultSQLiteDSN))
	assert.Equal(t, "", sqlitePath("file::memory:?cache=shared"))
}

func TestMigrateEnforcesSinglePendingRequest(t *testing.T) {
	gdb := openTestDB(t)

	author := User{Username: "author", Password: "x", Role: RoleAuthor}
	require.NoError(t, gdb.Create(&author).Error)
	post := Post{Title: "Draft", Slug: "draft", Status: PostPendingApproval, AuthorID: author.ID}
	require.NoError(t, gdb.Create(&post).Error)

	require.NoError(t, gdb.Create(&PublishRequest{PostID: post.ID, AuthorID: author.ID, Status: RequestRejected}).Error)
	require.NoError(t, gdb.Create(&PublishRequest{PostID: post.ID, AuthorID: author.ID, Status: RequestPending}).Error)

	err := gdb.Create(&PublishRequest{PostID: post.ID, AuthorID: author.ID, Status: RequestPending}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ConstraintPendingRequest), "err: %v", err)

	// 迁移可重复执行
	assert.NoError(t, Migrate(gdb))
}

func TestEnsureUser(t *testing.T) {
	gdb := openTestDB(t)

	require.NoError(t, EnsureUser(gdb, "", "secret", RoleAdmin))
	require.NoError(t, EnsureUser(gdb, " root ", "secret-pass", RoleAdmin))
	require.NoError(t, EnsureUser(gdb, "root", "other-pass", RoleReader))

	var users []User
	require.NoError(t, gdb.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].Username)
	assert.Equal(t, RoleAdmin, users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("secret-pass")))
}

func TestTagNameKey(t *testing.T) {
	assert.Equal(t, "go", TagNameKey("  Go "))
	assert.Equal(t, "c++", TagNameKey("C++"))
}
