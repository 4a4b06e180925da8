package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// PageHandler serves the browser entry points. With a static directory it
// serves index.html and login.html from it; without one it answers JSON so
// the redirect flow can still be followed by API clients.
type PageHandler struct {
	BaseHandler
	sessions   middleware.SessionResolver
	cookieName string
	staticDir  string
}

// NewPageHandler creates a new page handler
func NewPageHandler(sessions middleware.SessionResolver, cookieName, staticDir string) *PageHandler {
	return &PageHandler{sessions: sessions, cookieName: cookieName, staticDir: staticDir}
}

func (h *PageHandler) page(name string) (string, bool) {
	if h.staticDir == "" {
		return "", false
	}
	path := filepath.Join(h.staticDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Index serves the dashboard to a logged-in browser.
func (h *PageHandler) Index(c *gin.Context) {
	if path, ok := h.page("index.html"); ok {
		c.File(path)
		return
	}
	h.Success(c, UserResponse{Username: middleware.GetUsername(c)})
}

// Login serves the login page, or sends a logged-in browser to the
// dashboard.
func (h *PageHandler) Login(c *gin.Context) {
	if h.loggedIn(c.Request.Context(), c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if path, ok := h.page("login.html"); ok {
		c.File(path)
		return
	}
	h.Success(c, gin.H{"authenticated": false})
}

func (h *PageHandler) loggedIn(ctx context.Context, c *gin.Context) bool {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		return false
	}
	_, err = h.sessions.Resolve(ctx, token)
	return err == nil
}
