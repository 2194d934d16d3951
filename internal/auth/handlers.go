package auth

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/config"
)

// setupMutex serializes setup requests so only one first administrator is created.
var setupMutex sync.Mutex

// LoginAuditor records authentication outcomes.
type LoginAuditor interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	// Protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "://") || strings.Contains(path, "\\") {
		return false
	}
	return true
}

// sanitizeRedirectPath returns a safe redirect path, defaulting to "/" if invalid.
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/"
}

// AuthController serves the login, logout and first-run setup pages.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
	throttle       *LoginThrottle
	auditor        LoginAuditor
}

// NewAuthController creates a new authentication controller. With nil
// templates the pages answer with their data as JSON.
func NewAuthController(service *Service, sessionManager *SessionManager, templates *template.Template, auditor LoginAuditor, cfg config.Auth) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		templates:      templates,
		throttle:       NewLoginThrottle(cfg),
		auditor:        auditor,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.GET("/login", ac.LoginPage)
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/setup", ac.SetupPage)
	router.POST("/setup", ac.Setup)
}

// LoginPage renders the login form with the borrower directory.
func (ac *AuthController) LoginPage(c *gin.Context) {
	if ac.sessionManager != nil && ac.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	hasUsers, _ := ac.service.HasUsers()
	if !hasUsers {
		c.Redirect(http.StatusFound, "/setup")
		return
	}

	ac.renderLogin(c, http.StatusOK, c.Query("username"), c.Query("error"))
}

func (ac *AuthController) renderLogin(c *gin.Context, status int, username, errorMsg string) {
	directory, err := ac.service.LoginDirectory()
	if err != nil {
		log.Printf("Failed to load login directory: %v", err)
	}

	ac.renderTemplate(c, status, "login.html", gin.H{
		"Title":     "Log in",
		"Next":      sanitizeRedirectPath(c.DefaultPostForm("next", c.Query("next"))),
		"Username":  username,
		"Groups":    directory,
		"CSRFToken": GetCSRFToken(c),
		"Error":     errorMsg,
	})
}

// Login handles the login form submission.
func (ac *AuthController) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))
	clientIP := c.ClientIP()

	if wait := ac.throttle.Wait(clientIP, username); wait > 0 {
		c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
		ac.renderLogin(c, http.StatusTooManyRequests, username, "Too many login attempts. Please try again later.")
		return
	}

	user, err := ac.service.Authenticate(username, password)
	if err != nil {
		ac.throttle.Fail(clientIP, username)
		ac.logAuth(c, 0, "login_failed", false)

		errorMsg := "Invalid username or password."
		switch {
		case errors.Is(err, ErrAccountLocked):
			errorMsg = "Account is locked. Please try again later."
		case errors.Is(err, ErrNoPassword):
			errorMsg = "This account cannot log in. Please ask a librarian."
		}
		ac.renderLogin(c, http.StatusUnauthorized, username, errorMsg)
		return
	}

	ac.throttle.Forget(clientIP, username)

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			log.Printf("Failed to create session for %s: %v", user.Username, err)
			ac.renderLogin(c, http.StatusInternalServerError, username, "Failed to create session.")
			return
		}
	}
	ac.logAuth(c, user.ID, "login", true)

	c.Redirect(http.StatusFound, next)
}

// Logout destroys the session and redirects to login.
func (ac *AuthController) Logout(c *gin.Context) {
	if ac.sessionManager != nil {
		if userID := ac.sessionManager.GetUserID(c.Request); userID != 0 {
			ac.logAuth(c, userID, "logout", true)
		}
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	c.Redirect(http.StatusFound, "/login")
}

// SetupPage renders the initial admin setup form.
func (ac *AuthController) SetupPage(c *gin.Context) {
	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		ac.renderSetup(c, http.StatusInternalServerError, "", "", "Database error. Please try again.")
		return
	}
	if hasUsers {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	ac.renderSetup(c, http.StatusOK, "", "", c.Query("error"))
}

func (ac *AuthController) renderSetup(c *gin.Context, status int, username, name, errorMsg string) {
	ac.renderTemplate(c, status, "setup.html", gin.H{
		"Title":     "Initial setup",
		"Username":  username,
		"Name":      name,
		"CSRFToken": GetCSRFToken(c),
		"Error":     errorMsg,
	})
}

// Setup creates the first administrator while the user table is empty.
func (ac *AuthController) Setup(c *gin.Context) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	username := strings.TrimSpace(c.PostForm("username"))
	name := strings.TrimSpace(c.PostForm("name"))
	password := c.PostForm("password")

	if password != c.PostForm("confirm_password") {
		ac.renderSetup(c, http.StatusBadRequest, username, name, "Passwords do not match")
		return
	}

	user, err := ac.service.CreateFirstAdmin(username, name, c.PostForm("email"), password)
	if err != nil {
		if errors.Is(err, ErrSetupComplete) || errors.Is(err, ErrUserExists) {
			c.Redirect(http.StatusFound, "/login")
			return
		}

		errorMsg := "Failed to create user"
		switch {
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong),
			errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrUsernameInvalid),
			errors.Is(err, ErrNameTooLong):
			errorMsg = err.Error()
		default:
			log.Printf("Setup failed: %v", err)
		}
		ac.renderSetup(c, http.StatusBadRequest, username, name, errorMsg)
		return
	}

	log.Printf("Created first administrator %q", user.Username)
	if ac.sessionManager != nil {
		_ = ac.sessionManager.CreateSession(c.Request, user)
	}

	c.Redirect(http.StatusFound, "/")
}

func (ac *AuthController) logAuth(c *gin.Context, userID uint, action string, success bool) {
	if ac.auditor == nil {
		return
	}
	ac.auditor.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}

// renderTemplate renders an auth template or falls back to JSON.
func (ac *AuthController) renderTemplate(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil {
		c.JSON(status, data)
		return
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Printf("Template %s failed: %v", name, err)
	}
}
