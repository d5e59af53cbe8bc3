package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "handler-test-secret"

func setupTestAPI(t *testing.T, opts Options) (*API, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1",
		filepath.Join(t.TempDir(), "handler.db"))
	gdb, err := db.Open(db.DriverSQLite, dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := RegisterValidators(); err != nil {
		t.Fatalf("failed to register validators: %v", err)
	}

	if opts.JWTSecret == "" {
		opts.JWTSecret = testJWTSecret
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	return NewAPI(gdb, opts), gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username, password string, role db.Role) service.Actor {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := db.User{Username: username, Password: string(hashed), Role: role}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return service.Actor{ID: user.ID, Role: user.Role}
}

// newTestContext 构造直接调用 handler 的上下文，actor 为空值时表示匿名请求。
func newTestContext(method, target string, body interface{}, actor service.Actor, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	if actor.ID != "" {
		c.Set(actorContextKey, actor)
	}
	return c, w
}

// newAuthEngine mounts the session and actor middleware the way the router does.
func newAuthEngine(api *API) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("inkwell_session", cookie.NewStore([]byte("session-secret"))))
	r.Use(api.ResolveActor())

	r.POST("/api/auth/login", api.Login)
	r.POST("/api/auth/logout", api.Logout)

	authed := r.Group("/api", RequireActor())
	authed.GET("/me", api.Me)

	admin := r.Group("/api/manage", RequireRole(db.RoleAdmin))
	admin.POST("/users", api.CreateUser)
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}
