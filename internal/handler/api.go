package handler

import (
	"time"

	"github.com/inkwell/internal/service"
	"github.com/inkwell/internal/storage"
	"gorm.io/gorm"
)

// Options carries the collaborators that are configured outside the handler package.
type Options struct {
	RenderCache    service.RenderCache
	Store          storage.Store
	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db             *gorm.DB
	posts          *service.PostService
	tags           *service.TagService
	publish        *service.PublishService
	comments       *service.CommentService
	users          *service.UserService
	tokens         *TokenIssuer
	store          storage.Store
	maxUploadBytes int64
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	sanitizer := service.NewPolicySanitizer()
	tags := service.NewTagService(gdb, sanitizer)

	return &API{
		db:             gdb,
		posts:          service.NewPostService(gdb, tags, sanitizer, service.NewRenderer(opts.RenderCache)),
		tags:           tags,
		publish:        service.NewPublishService(gdb, sanitizer),
		comments:       service.NewCommentService(gdb, sanitizer),
		users:          service.NewUserService(gdb),
		tokens:         NewTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		store:          opts.Store,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// DB exposes the underlying gorm instance for health checks.
func (a *API) DB() *gorm.DB {
	return a.db
}
