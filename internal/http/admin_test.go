package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/entities"
)

func TestAdmin_RequiresAdminRole(t *testing.T) {
	env := setupTestEnv(t)

	w := env.api(env.borrower).sendJSON(http.MethodGet, "/admin/api/items", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.login(env.borrower).get("/admin")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.anonymous().sendJSON(http.MethodGet, "/admin/api/items", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_IndexPage(t *testing.T) {
	env := setupTestEnv(t)

	w := env.login(env.staff).get("/admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Items")
	assert.Contains(t, w.Body.String(), "Campus locations")
}

func TestAdmin_ListResources(t *testing.T) {
	env := setupTestEnv(t)

	w := env.api(env.staff).sendJSON(http.MethodGet, "/admin/api", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"loan-records"`)

	w = env.api(env.staff).sendJSON(http.MethodGet, "/admin/api/fines", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_resource", decode[ErrorResponse](t, w).Code)
}

func TestAdmin_CRUD(t *testing.T) {
	env := setupTestEnv(t)
	c := env.api(env.staff)

	body := fmt.Sprintf(`{"accession":" B-003 ","title":"The Marvellous Moons","campus_location_id":%d}`, env.seals.CampusLocationID)
	w := c.sendJSON(http.MethodPost, "/admin/api/items", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[entities.Item](t, w)
	assert.Equal(t, "B-003", created.Accession)
	assert.Equal(t, entities.ItemStatusAvailable, created.Status)

	path := fmt.Sprintf("/admin/api/items/%d", created.ID)
	w = c.sendJSON(http.MethodPatch, path, `{"subtitle":"A field guide"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "A field guide", decode[entities.Item](t, w).Subtitle)

	w = c.sendJSON(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "The Marvellous Moons", decode[entities.Item](t, w).Title)

	w = c.sendJSON(http.MethodGet, "/admin/api/items?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[PaginatedResponse](t, w)
	assert.Equal(t, int64(3), page.Total)
	assert.True(t, page.HasMore)

	w = c.sendJSON(http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = c.sendJSON(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.audit.Flush()
	events, _, err := env.audit.List(audit.Filter{EventType: entities.AuditEventAdmin}, 10, 0)
	require.NoError(t, err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
		assert.Equal(t, env.staff.ID, e.UserID)
		assert.Contains(t, e.Description, "via API token")
	}
	assert.ElementsMatch(t, []string{"items_create", "items_update", "items_delete"}, actions)
}

func TestAdmin_Errors(t *testing.T) {
	env := setupTestEnv(t)
	c := env.api(env.staff)

	w := c.sendJSON(http.MethodPost, "/admin/api/publishers", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Equal(t, map[string]any{"name": "required"}, resp.Details)

	w = c.sendJSON(http.MethodPost, "/admin/api/publishers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.sendJSON(http.MethodPost, "/admin/api/loan-records", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = c.sendJSON(http.MethodPost, "/admin/api/items",
		fmt.Sprintf(`{"accession":"B-001","title":"Copy","campus_location_id":%d}`, env.seals.CampusLocationID))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", decode[ErrorResponse](t, w).Code)

	w = c.sendJSON(http.MethodGet, "/admin/api/items/0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_BorrowedItemRules(t *testing.T) {
	env := setupTestEnv(t)

	w := env.api(env.borrower).sendJSON(http.MethodPost, "/api/loans", `{"accession":"B-001"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	c := env.api(env.staff)
	path := fmt.Sprintf("/admin/api/items/%d", env.seals.ID)

	w = c.sendJSON(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_allowed", decode[ErrorResponse](t, w).Code)

	w = c.sendJSON(http.MethodPatch, path, `{"status":"available"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.sendJSON(http.MethodDelete, fmt.Sprintf("/admin/api/users/%d", env.borrower.ID), "")
	assert.Equal(t, http.StatusConflict, w.Code)

	env.audit.Flush()
	events, _, err := env.audit.List(audit.Filter{
		EventType: entities.AuditEventAdmin,
		Status:    entities.AuditStatusFailed,
	}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3, "rejected changes are audited too")
}
