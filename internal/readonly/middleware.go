// Package readonly blocks writes to the register, e.g. while stock is
// being taken. Reads and signing in keep working.
package readonly

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextKey = "read_only"
	Message    = "The register is read-only right now"
)

// writablePaths stay open so staff can still sign in and out.
var writablePaths = []string{"/login", "/logout"}

type Middleware struct {
	enabled bool
}

func NewMiddleware(enabled bool) *Middleware {
	return &Middleware{enabled: enabled}
}

func (m *Middleware) IsEnabled() bool {
	return m.enabled
}

// Handler flags the context for templates and refuses unsafe methods.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKey, m.enabled)

		if !m.enabled || isSafeMethod(c.Request.Method) || isWritablePath(c.Request.URL.Path) {
			c.Next()
			return
		}
		respondBlocked(c)
	}
}

// IsEnabled reports whether the request passed through an enabled middleware.
func IsEnabled(c *gin.Context) bool {
	return c.GetBool(ContextKey)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isWritablePath(path string) bool {
	for _, p := range writablePaths {
		if path == p {
			return true
		}
	}
	return false
}

func respondBlocked(c *gin.Context) {
	path := c.Request.URL.Path
	if strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/admin/api/") {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":     Message,
			"read_only": true,
		})
		return
	}

	c.String(http.StatusServiceUnavailable, Message)
	c.Abort()
}
