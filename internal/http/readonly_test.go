package http

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/growlin/internal/entities"
)

func TestRouter_ReadOnly(t *testing.T) {
	env := setupTestEnv(t, func(cfg *RouterConfig) {
		cfg.ReadOnly = true
	})

	c := env.login(env.borrower)
	w := c.get("/shelf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "read-only")

	w = c.postForm("/shelf/borrow", url.Values{
		"item_id":   {strconv.Itoa(int(env.seals.ID))},
		"accession": {"B-001"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.api(env.borrower).sendJSON(http.MethodPost, "/api/loans", `{"accession":"B-001"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"The register is read-only right now","read_only":true}`, w.Body.String())

	w = env.api(env.staff).sendJSON(http.MethodDelete, "/admin/api/items/"+strconv.Itoa(int(env.felids.ID)), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var seals, felids entities.Item
	require.NoError(t, env.db.DB.First(&seals, env.seals.ID).Error)
	assert.Equal(t, entities.ItemStatusAvailable, seals.Status)
	require.NoError(t, env.db.DB.First(&felids, env.felids.ID).Error, "delete was refused")
}
