package web

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{
		"login.html", "setup.html", "shelf.html", "history.html", "borrow.html",
		"return.html", "profile.html", "admin.html", "audit.html", "error.html",
	} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestTemplates_RenderWithoutSession(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "login.html", map[string]any{
		"Title": "Log in",
		"Error": "Invalid username or password.",
	}))
	assert.Contains(t, buf.String(), "Invalid username or password.")
}

func TestStatic(t *testing.T) {
	f, err := Static().Open("style.css")
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, time.March, 5, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "5 Mar 2026", formatDate(d))
	assert.Equal(t, "5 Mar 2026", formatDate(&d))
	assert.Equal(t, "5 Mar 2026 14:30", formatDateTime(d))
	assert.Equal(t, "", formatDate((*time.Time)(nil)))
	assert.Equal(t, "", formatDate(time.Time{}))
	assert.Equal(t, "", formatDate("yesterday"))
}
