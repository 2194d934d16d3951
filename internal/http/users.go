package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/auth"
)

// ProfileController handles user profile operations.
type ProfileController struct {
	pages
	authService *auth.Service
}

func NewProfileController(authService *auth.Service, p pages) *ProfileController {
	return &ProfileController{pages: p, authService: authService}
}

// ProfilePage renders the user profile page.
func (pc *ProfileController) ProfilePage(c *gin.Context) {
	pc.renderProfile(c, http.StatusOK, "")
}

func (pc *ProfileController) renderProfile(c *gin.Context, status int, token string) {
	user, err := pc.authService.GetUserByID(auth.GetUserID(c))
	if err != nil {
		log.Printf("Profile: failed to load user: %v", err)
		pc.render(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Failed to load your profile"})
		return
	}

	pc.render(c, status, "profile.html", gin.H{
		"Title":    "Profile",
		"User":     user,
		"HasToken": user.TokenHash != "",
		"Token":    token,
	})
}

// ChangePassword handles POST /profile/password
func (pc *ProfileController) ChangePassword(c *gin.Context) {
	newPassword := c.PostForm("new_password")
	if newPassword != c.PostForm("confirm_password") {
		pc.flashError(c, "/profile", "New passwords do not match.")
		return
	}

	err := pc.authService.ChangePassword(auth.GetUserID(c), c.PostForm("current_password"), newPassword)
	switch {
	case err == nil:
		pc.flash(c, "/profile", "Your password was changed.")
	case errors.Is(err, auth.ErrInvalidPassword):
		pc.flashError(c, "/profile", "Current password is incorrect.")
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
		pc.flashError(c, "/profile", err.Error())
	default:
		log.Printf("Profile: password change failed: %v", err)
		pc.flashError(c, "/profile", "Failed to change password.")
	}
}

// GenerateToken creates or replaces the API token. The token is shown once.
// POST /profile/token
func (pc *ProfileController) GenerateToken(c *gin.Context) {
	token, err := pc.authService.GenerateToken(auth.GetUserID(c))
	if err != nil {
		log.Printf("Profile: token generation failed: %v", err)
		pc.flashError(c, "/profile", "Failed to generate token.")
		return
	}
	pc.renderProfile(c, http.StatusOK, token)
}

// RevokeToken handles POST /profile/token/revoke
func (pc *ProfileController) RevokeToken(c *gin.Context) {
	if err := pc.authService.RevokeToken(auth.GetUserID(c)); err != nil {
		log.Printf("Profile: token revocation failed: %v", err)
		pc.flashError(c, "/profile", "Failed to revoke token.")
		return
	}
	pc.flash(c, "/profile", "Your API token was revoked.")
}
