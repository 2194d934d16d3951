package http

import (
	"html/template"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/readonly"
)

// AuthTemplateData holds the signed-in user's details for the page header.
type AuthTemplateData struct {
	LoggedIn  bool
	Username  string
	Name      string
	IsAdmin   bool
	CSRFToken string
	ReadOnly  bool
}

const authTemplateDataKey = "auth_template_data"

// AuthContextMiddleware injects authentication data into the Gin context for templates.
// It runs after the auth middleware.
func AuthContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		data := AuthTemplateData{
			CSRFToken: auth.GetCSRFToken(c),
			ReadOnly:  readonly.IsEnabled(c),
		}
		if user := auth.GetUser(c); user != nil {
			data.LoggedIn = auth.IsAuthenticated(c)
			data.Username = auth.GetUsername(c)
			data.Name = user.Name
			data.IsAdmin = auth.IsAdmin(c)
		}
		c.Set(authTemplateDataKey, data)
		c.Next()
	}
}

// GetAuthTemplateData retrieves auth data from context for use in templates.
func GetAuthTemplateData(c *gin.Context) AuthTemplateData {
	if data, exists := c.Get(authTemplateDataKey); exists {
		if authData, ok := data.(AuthTemplateData); ok {
			return authData
		}
	}
	return AuthTemplateData{}
}

// pages renders HTML templates with the header data and pending flash
// messages filled in.
type pages struct {
	templates *template.Template
	sessions  *auth.SessionManager
}

func (p pages) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Auth"] = GetAuthTemplateData(c)
	if p.sessions != nil {
		data["Flash"], data["FlashError"] = p.sessions.PopFlash(c.Request)
	}

	if p.templates == nil {
		c.JSON(status, data)
		return
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := p.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Printf("Template %s failed: %v", name, err)
	}
}

// flash stores a message for the next page and redirects there.
func (p pages) flash(c *gin.Context, location, message string) {
	if p.sessions != nil && message != "" {
		p.sessions.Flash(c.Request, message)
	}
	c.Redirect(http.StatusSeeOther, location)
}

func (p pages) flashError(c *gin.Context, location, message string) {
	if p.sessions != nil && message != "" {
		p.sessions.FlashError(c.Request, message)
	}
	c.Redirect(http.StatusSeeOther, location)
}
