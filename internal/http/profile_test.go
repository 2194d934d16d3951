package http

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`<pre class="token">([^<]+)</pre>`)

func TestProfile_Page(t *testing.T) {
	env := setupTestEnv(t)

	w := env.login(env.borrower).get("/profile")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Phobos")
	assert.Contains(t, w.Body.String(), "Generate token")
}

func TestProfile_ChangePassword(t *testing.T) {
	env := setupTestEnv(t)
	c := env.login(env.borrower)

	w := c.postForm("/profile/password", url.Values{
		"current_password": {testPassword},
		"new_password":     {"battery-staple"},
		"confirm_password": {"battery-stapler"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, c.get("/profile").Body.String(), "New passwords do not match.")

	w = c.postForm("/profile/password", url.Values{
		"current_password": {"wrong-password"},
		"new_password":     {"battery-staple"},
		"confirm_password": {"battery-staple"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, c.get("/profile").Body.String(), "Current password is incorrect.")

	w = c.postForm("/profile/password", url.Values{
		"current_password": {testPassword},
		"new_password":     {"battery-staple"},
		"confirm_password": {"battery-staple"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, c.get("/profile").Body.String(), "Your password was changed.")

	w = env.anonymous().postForm("/login", url.Values{"username": {"phobos"}, "password": {"battery-staple"}})
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestProfile_Token(t *testing.T) {
	env := setupTestEnv(t)
	c := env.login(env.borrower)

	w := c.postForm("/profile/token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	match := tokenPattern.FindStringSubmatch(w.Body.String())
	require.Len(t, match, 2, "token is shown once")

	api := env.anonymous()
	api.bearer = match[1]
	w = api.sendJSON(http.MethodGet, "/api/shelf", "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, c.get("/profile").Body.String(), "Regenerate token")
	assert.NotRegexp(t, tokenPattern, c.get("/profile").Body.String())

	w = c.postForm("/profile/token/revoke", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, c.get("/profile").Body.String(), "Your API token was revoked.")

	w = api.sendJSON(http.MethodGet, "/api/shelf", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
