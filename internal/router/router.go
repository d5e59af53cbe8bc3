package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/config"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/handler"
	"github.com/inkwell/internal/logger"
	"github.com/inkwell/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const sessionName = "inkwell_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(cfg config.AppConfig, api *handler.API, sentryEnabled bool) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger(), logger.GinRecovery())
	if sentryEnabled {
		r.Use(telemetry.SentryMiddleware())
	}
	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	if err := handler.RegisterValidators(); err != nil {
		logger.Error("failed to register validators", zap.Error(err))
	}

	// 本地存储时直接提供上传文件
	if cfg.UploadBackend == config.UploadBackendLocal && cfg.UploadURLPath != "" {
		r.Static(cfg.UploadURLPath, cfg.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		if sqlDB, err := api.DB().DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	limiter := handler.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	throttle := limiter.Middleware()

	apiGroup := r.Group("/api", api.ResolveActor())
	{
		apiGroup.POST("/auth/login", throttle, api.Login)
		apiGroup.POST("/auth/logout", api.Logout)

		apiGroup.GET("/posts", api.ListPublishedPosts)
		apiGroup.GET("/posts/:slug", api.ShowPublishedPost)
		apiGroup.GET("/posts/:slug/comments", api.ListComments)
		apiGroup.GET("/tags", api.ListTags)

		// 需要登录的路由
		authed := apiGroup.Group("", handler.RequireActor())
		{
			authed.GET("/me", api.Me)
			authed.POST("/posts/:slug/comments", throttle, api.CreateComment)
			authed.DELETE("/comments/:id", api.DeleteComment)
		}

		manage := apiGroup.Group("/manage", handler.RequireActor(), throttle)
		{
			writers := manage.Group("", handler.RequireRole(db.RoleAuthor, db.RoleAdmin))
			writers.GET("/posts", api.ListManagedPosts)
			writers.POST("/posts", api.CreatePost)
			writers.GET("/posts/:id", api.GetManagedPost)
			writers.PUT("/posts/:id", api.UpdatePost)
			writers.DELETE("/posts/:id", api.DeletePost)
			writers.POST("/posts/:id/publish-requests", api.RequestPublish)
			writers.POST("/posts/:id/archive", api.ArchivePost)
			writers.POST("/posts/:id/restore", api.RestorePost)
			writers.GET("/publish-requests", api.ListPublishRequests)
			writers.GET("/publish-requests/:id", api.GetPublishRequest)
			writers.DELETE("/publish-requests/:id", api.CancelPublishRequest)
			writers.POST("/uploads", api.UploadImage)

			admins := manage.Group("", handler.RequireRole(db.RoleAdmin))
			admins.POST("/publish-requests/:id/approve", api.ApprovePublishRequest)
			admins.POST("/publish-requests/:id/reject", api.RejectPublishRequest)
			admins.POST("/tags", api.CreateTag)
			admins.PUT("/tags/:id", api.UpdateTag)
			admins.DELETE("/tags/:id", api.DeleteTag)
			admins.POST("/users", api.CreateUser)
		}
	}

	return r
}
