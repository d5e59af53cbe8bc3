package telemetry

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// InitSentry enables error reporting when dsn is set. It reports whether Sentry is active.
func InitSentry(dsn, environment string) (bool, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return false, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// FlushSentry waits for buffered events before exit.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// SentryMiddleware attaches a per-request hub and re-panics after reporting so the recovery middleware still answers.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// CaptureError 上报非预期错误；未初始化 Sentry 时为空操作。
func CaptureError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if c != nil {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
			return
		}
	}
	sentry.CaptureException(err)
}
