package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func healthRouter(controller *HealthController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", controller.Status)
	router.GET("/ping", controller.Ping)
	return router
}

func serveHealth(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w, decode[HealthResponse](t, w)
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when database is connected", func(t *testing.T) {
		db, err := database.OpenSilent(config.Database{
			Driver: config.DatabaseDriverSQLite,
			Path:   filepath.Join(t.TempDir(), "growlin.db"),
		})
		require.NoError(t, err)
		defer db.Close()

		w, response := serveHealth(t, healthRouter(NewHealthController(db, nil, "1.0.0", false)), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "disabled", response.Checks["scheduler"])
		assert.False(t, response.ReadOnly)
		assert.NotEmpty(t, response.Time)
	})

	t.Run("returns unhealthy when the database does not answer", func(t *testing.T) {
		w, response := serveHealth(t, healthRouter(NewHealthController(failingPinger{}, fakeSchedule{}, "1.0.0", false)), "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "connection refused")
		assert.Equal(t, "running", response.Checks["scheduler"])
	})

	t.Run("reports a missing database", func(t *testing.T) {
		w, response := serveHealth(t, healthRouter(NewHealthController(nil, nil, "", true)), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "not configured", response.Checks["database"])
		assert.Empty(t, response.Version)
		assert.True(t, response.ReadOnly)
	})
}

func TestHealthController_Ping(t *testing.T) {
	router := healthRouter(NewHealthController(nil, nil, "1.0.0", false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}
