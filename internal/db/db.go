package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "inkwell.db?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=1"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Init 初始化数据库连接并执行自动迁移。
// driver 为空时使用 sqlite，dsn 为空时回退到本地 inkwell.db。
func Init(driver, dsn string) error {
	gdb, err := Open(driver, dsn, logger.Default.LogMode(logger.Warn))
	if err != nil {
		return err
	}

	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

// Open builds a gorm handle for the configured driver without migrating.
func Open(driver, dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)

	var dialector gorm.Dialector
	switch driver {
	case "", DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		if err := ensureParentDir(sqlitePath(dsn)); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
}

// Migrate 创建核心表，并补充 gorm 标签无法表达的部分唯一索引。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&User{},
		&Tag{},
		&Post{},
		&PublishRequest{},
		&Comment{},
	); err != nil {
		return err
	}

	// 每篇文章至多一条 PENDING 申请，由存储层兜底。
	return gdb.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON publish_requests (post_id) WHERE status = '%s'",
		ConstraintPendingRequest, RequestPending,
	)).Error
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == ":memory:" || path == "" {
		return ""
	}
	return path
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
