package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services that is an expected,
// user-facing outcome wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

var (
	ErrPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	ErrTagNotFound     = fmt.Errorf("tag %w", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("publish request %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)

	ErrNotAuthorized = fmt.Errorf("actor is not allowed to perform this action: %w", ErrForbidden)

	ErrPostNotDraft     = fmt.Errorf("post is not a draft: %w", ErrInvalidState)
	ErrPostNotPublished = fmt.Errorf("post is not published: %w", ErrInvalidState)
	ErrPostNotArchived  = fmt.Errorf("post is not archived: %w", ErrInvalidState)
	ErrPostNotPending   = fmt.Errorf("post is not awaiting approval: %w", ErrInvalidState)
	ErrPostNotPublic    = fmt.Errorf("post is not open for comments: %w", ErrInvalidState)
	ErrRequestProcessed = fmt.Errorf("publish request already processed: %w", ErrInvalidState)

	ErrRequestPending = fmt.Errorf("a request is already pending: %w", ErrConflict)
	ErrSlugConflict   = fmt.Errorf("could not allocate a unique slug: %w", ErrConflict)
	ErrTagExists      = fmt.Errorf("tag already exists: %w", ErrConflict)
	ErrTagInUse       = fmt.Errorf("tag is associated with posts: %w", ErrConflict)
	ErrUsernameTaken  = fmt.Errorf("username already exists: %w", ErrConflict)

	ErrEmptySlug              = fmt.Errorf("text does not produce a usable slug: %w", ErrValidation)
	ErrTitleRequired          = fmt.Errorf("title is required: %w", ErrValidation)
	ErrTagNameRequired        = fmt.Errorf("tag name is required: %w", ErrValidation)
	ErrTagNameTooLong         = fmt.Errorf("tag name is too long: %w", ErrValidation)
	ErrRejectMessageRequired  = fmt.Errorf("rejection message is required: %w", ErrValidation)
	ErrCommentContentRequired = fmt.Errorf("comment content is required: %w", ErrValidation)
	ErrInvalidRole            = fmt.Errorf("invalid role: %w", ErrValidation)
	ErrUsernameRequired       = fmt.Errorf("username is required: %w", ErrValidation)
	ErrPasswordTooShort       = fmt.Errorf("password must be at least 8 characters: %w", ErrValidation)
	ErrInvalidCredentials     = fmt.Errorf("invalid username or password: %w", ErrValidation)
)

// IsExpected reports whether err is a user-facing outcome rather than an
// unexpected failure of the store.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation)
}
