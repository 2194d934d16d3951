package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFFieldName is the form field gorilla/csrf reads the token from.
const CSRFFieldName = "gorilla.csrf.Token"

const csrfContextKey = "csrf_token"

// CSRFMiddleware creates a Gin middleware for CSRF protection of form posts.
// Requests carrying a bearer token the auth service accepts skip the check,
// as do safe methods. A nil authService skips on any bearer header.
func CSRFMiddleware(secret []byte, secure bool, authService *Service) gin.HandlerFunc {
	csrfProtect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if isAPIWithValidBearer(c, authService) {
			c.Next()
			return
		}

		handler := csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Set(csrfContextKey, csrf.Token(r))
			c.Request = r
			c.Next()
		}))
		if !secure {
			// gorilla/csrf assumes TLS and enforces a same-origin Referer otherwise
			c.Request = csrf.PlaintextHTTPRequest(c.Request)
		}

		handler.ServeHTTP(c.Writer, c.Request)
	}
}

const csrfFailureMessage = "Your session expired. Please try again."

// csrfErrorHandler answers JSON clients with 403 and sends form posts back
// to the page they came from, with the failure in the error parameter.
func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing","code":"csrf_failed"}`))
		return
	}

	if back := refererWithError(r.Referer()); back != "" {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Session expired</title></head>
<body>
<h1>Session expired</h1>
<p>The form could not be checked. <a href="/shelf">Back to your shelf</a></p>
</body>
</html>`))
}

// refererWithError keeps only the local path and query of referer so the
// redirect never leaves the site.
func refererWithError(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" {
		return ""
	}
	q := u.Query()
	q.Set("error", csrfFailureMessage)
	return sanitizeRedirectPath(u.Path) + "?" + q.Encode()
}

// isAPIWithValidBearer reports whether the request carries a bearer token
// the service accepts. With no service any bearer token counts.
func isAPIWithValidBearer(c *gin.Context, authService *Service) bool {
	token := bearerToken(c)
	if token == "" {
		return false
	}
	if authService == nil {
		return true
	}
	_, err := authService.ValidateToken(token)
	return err == nil
}

// GetCSRFToken retrieves the CSRF token from the Gin context.
func GetCSRFToken(c *gin.Context) string {
	if token, exists := c.Get(csrfContextKey); exists {
		if t, ok := token.(string); ok {
			return t
		}
	}
	return ""
}
