package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Unique constraint names. They double as index names so both dialects report the same value.
const (
	ConstraintPostSlug       = "idx_posts_slug"
	ConstraintTagSlug        = "idx_tags_slug"
	ConstraintTagName        = "idx_tags_name_key"
	ConstraintPendingRequest = "idx_publish_requests_pending"
	ConstraintUsername       = "idx_users_username"
)

const pgUniqueViolation = "23505"

// sqlite reports column lists instead of index names for plain and partial indexes.
var sqliteColumnConstraints = map[string]string{
	"posts.slug":               ConstraintPostSlug,
	"tags.slug":                ConstraintTagSlug,
	"tags.name_key":            ConstraintTagName,
	"publish_requests.post_id": ConstraintPendingRequest,
	"users.username":           ConstraintUsername,
}

// UniqueViolation 表示写入命中了唯一约束，Constraint 为约束（索引）名。
type UniqueViolation struct {
	Constraint string
	Err        error
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *UniqueViolation) Unwrap() error {
	return e.Err
}

// AsUniqueViolation extracts a unique constraint violation from a driver error.
func AsUniqueViolation(err error) (*UniqueViolation, bool) {
	if err == nil {
		return nil, false
	}

	var violation *UniqueViolation
	if errors.As(err, &violation) {
		return violation, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return nil, false
		}
		return &UniqueViolation{Constraint: pgErr.ConstraintName, Err: err}, true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return nil, false
		}
		return &UniqueViolation{Constraint: sqliteConstraintName(sqliteErr.Error()), Err: err}, true
	}

	return nil, false
}

// IsUniqueViolation reports whether err violates one of the named constraints.
func IsUniqueViolation(err error, constraints ...string) bool {
	violation, ok := AsUniqueViolation(err)
	if !ok {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, name := range constraints {
		if violation.Constraint == name {
			return true
		}
	}
	return false
}

func sqliteConstraintName(message string) string {
	const marker = "constraint failed: "
	idx := strings.Index(message, marker)
	if idx < 0 {
		return ""
	}

	rest := strings.TrimSpace(message[idx+len(marker):])
	if strings.HasPrefix(rest, "index '") {
		return strings.TrimSuffix(strings.TrimPrefix(rest, "index '"), "'")
	}

	column := strings.TrimSpace(strings.Split(rest, ",")[0])
	if name, ok := sqliteColumnConstraints[column]; ok {
		return name
	}
	return column
}
