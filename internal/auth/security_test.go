package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSanitizeRedirectPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty path", "", "/"},
		{"root path", "/", "/"},
		{"shelf", "/shelf", "/shelf"},
		{"borrow with query", "/shelf/borrow?accession=B-1", "/shelf/borrow?accession=B-1"},
		{"protocol-relative URL", "//evil.com", "/"},
		{"full URL with scheme", "https://evil.com", "/"},
		{"URL with scheme in path", "/https://evil.com", "/"},
		{"backslash escape attempt", "/foo\\bar", "/"},
		{"backslash at start", "\\evil.com", "/"},
		{"javascript URL", "javascript:alert(1)", "/"},
		{"no leading slash", "evil.com", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeRedirectPath(tt.input); got != tt.expected {
				t.Errorf("sanitizeRedirectPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/shelf", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/shelf", nil))

	headers := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, expected := range headers {
		if got := rr.Header().Get(header); got != expected {
			t.Errorf("Header %s = %q, want %q", header, got, expected)
		}
	}

	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("unexpected CSP: %s", csp)
	}
	if strings.Contains(csp, "https:") {
		t.Errorf("CSP should not allow remote origins: %s", csp)
	}
}

func TestHSTSHeader(t *testing.T) {
	router := gin.New()
	router.Use(StrictTransportSecurityMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if hsts := rr.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Error("HSTS should not be set for HTTP requests")
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if hsts := rr.Header().Get("Strict-Transport-Security"); hsts == "" {
		t.Error("HSTS should be set for HTTPS requests")
	}
}

func TestUsernamePattern(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"a", false},
		{"io", true},
		{"europa", true},
		{"j.smith", true},
		{"user_name", true},
		{"user-name", true},
		{"user@name", false},
		{"user name", false},
		{strings.Repeat("x", 32), true},
		{strings.Repeat("x", 33), false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			if got := usernamePattern.MatchString(tt.username); got != tt.valid {
				t.Errorf("username %q validation = %v, want %v", tt.username, got, tt.valid)
			}
		})
	}
}
