package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
)

const (
	actorContextKey   = "inkwell.actor"
	sessionUserKey    = "user_id"
	defaultTokenTTL   = 24 * time.Hour
	bearerTokenPrefix = "Bearer "
)

var errInvalidToken = errors.New("invalid token")

// Claims 是签发给客户端的 JWT 载荷，Subject 为用户 ID。
type Claims struct {
	Role db.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HMAC bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. A non-positive ttl falls back to 24h.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for user.
func (t *TokenIssuer) Issue(user *db.User) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	issuedAt := t.now()
	expiresAt := issuedAt.Add(t.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns its claims.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, errInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// ResolveActor 从 Bearer token 或会话中解析当前用户；匿名请求直接放行。
// 角色以数据库中的当前值为准，不信任 token 中的角色。
func (a *API) ResolveActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""

		if header := c.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, bearerTokenPrefix) {
				respondError(c, http.StatusUnauthorized, "无效的认证信息")
				c.Abort()
				return
			}
			claims, err := a.tokens.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerTokenPrefix)))
			if err != nil {
				respondError(c, http.StatusUnauthorized, "登录已失效，请重新登录")
				c.Abort()
				return
			}
			userID = claims.Subject
		} else if id, ok := sessions.Default(c).Get(sessionUserKey).(string); ok {
			userID = id
		}

		if userID == "" {
			c.Next()
			return
		}

		user, err := a.users.Get(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				respondError(c, http.StatusUnauthorized, "登录已失效，请重新登录")
				c.Abort()
				return
			}
			respondServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(actorContextKey, service.Actor{ID: user.ID, Role: user.Role})
		c.Next()
	}
}

// RequireActor 拒绝匿名请求。
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := actorFrom(c); !ok {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole only lets actors holding one of roles through.
func RequireRole(roles ...db.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		if !actor.HasRole(roles...) {
			respondError(c, http.StatusForbidden, "没有权限执行此操作")
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (service.Actor, bool) {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	return actor, ok
}

// currentActor returns the resolved actor or the anonymous zero value.
func currentActor(c *gin.Context) service.Actor {
	actor, _ := actorFrom(c)
	return actor
}
