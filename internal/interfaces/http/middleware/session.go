package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/session"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Session context keys
const (
	SessionKey         = "session"
	SessionUsernameKey = "session_username"
)

// LoginPath is where browser navigations without a session are sent.
const LoginPath = "/login"

// SessionResolver looks a session cookie up.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// SessionConfig holds configuration for the session gate
type SessionConfig struct {
	Sessions   SessionResolver
	CookieName string
	// SkipPaths are paths that don't require a session
	SkipPaths []string
	// APIPrefixes always get a JSON 401 instead of a redirect
	APIPrefixes []string
}

// RequireSession rejects requests without a live session. API and XHR
// callers get a JSON 401, browser navigations a 302 to LoginPath. The
// resolved session is stored under SessionKey.
func RequireSession(cfg SessionConfig) gin.HandlerFunc {
	if len(cfg.APIPrefixes) == 0 {
		cfg.APIPrefixes = []string{"/api/", "/auth/"}
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		ctx := c.Request.Context()
		token, _ := c.Cookie(cfg.CookieName)
		sess, err := cfg.Sessions.Resolve(ctx, token)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				logger.L(ctx).Debug("Request without session", zap.String("path", path))
				rejectUnauthenticated(c, cfg)
				return
			}
			logger.L(ctx).Error("Session store lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeServiceUnavailable,
				"Session service unavailable",
				GetRequestID(c),
			))
			return
		}

		c.Set(SessionKey, sess)
		c.Set(SessionUsernameKey, sess.Username)
		c.Request = c.Request.WithContext(logger.WithUsername(ctx, sess.Username))

		c.Next()
	}
}

func rejectUnauthenticated(c *gin.Context, cfg SessionConfig) {
	if wantsJSON(c, cfg.APIPrefixes) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeUnauthorized,
			"Not authenticated",
			GetRequestID(c),
		))
		return
	}
	c.Redirect(http.StatusFound, LoginPath)
	c.Abort()
}

// wantsJSON reports whether the caller is programmatic rather than a
// browser navigation.
func wantsJSON(c *gin.Context, apiPrefixes []string) bool {
	for _, prefix := range apiPrefixes {
		if strings.HasPrefix(c.Request.URL.Path, prefix) {
			return true
		}
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// GetSession retrieves the session stored by RequireSession
func GetSession(c *gin.Context) *session.Session {
	if v, exists := c.Get(SessionKey); exists {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// GetUsername retrieves the session username from gin.Context
func GetUsername(c *gin.Context) string {
	return c.GetString(SessionUsernameKey)
}

// RequireEdit rejects mutating routes when editing is disabled for the
// deployment.
func RequireEdit(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden,
				"Editing is disabled",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}
