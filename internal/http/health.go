package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// HealthResponse is the body of GET /health. Only the database check
// decides the status; the others are informational.
type HealthResponse struct {
	Status   string            `json:"status"`
	Time     string            `json:"time"`
	Version  string            `json:"version,omitempty"`
	ReadOnly bool              `json:"read_only"`
	Checks   map[string]string `json:"checks"`
}

type HealthController struct {
	db       Pinger
	schedule Schedule
	version  string
	readOnly bool
}

func NewHealthController(db Pinger, schedule Schedule, version string, readOnly bool) *HealthController {
	return &HealthController{db: db, schedule: schedule, version: version, readOnly: readOnly}
}

func (h *HealthController) databaseCheck(ctx context.Context) (string, bool) {
	if h.db == nil {
		return "not configured", true
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return "error: " + err.Error(), false
	}
	return "ok", true
}

func (h *HealthController) schedulerCheck() string {
	switch {
	case h.schedule == nil:
		return "disabled"
	case h.schedule.IsRunning():
		return "running"
	default:
		return "stopped"
	}
}

// Status handles GET /health
func (h *HealthController) Status(c *gin.Context) {
	dbCheck, healthy := h.databaseCheck(c.Request.Context())

	resp := HealthResponse{
		Status:   "healthy",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Version:  h.version,
		ReadOnly: h.readOnly,
		Checks: map[string]string{
			"database":  dbCheck,
			"scheduler": h.schedulerCheck(),
		},
	}

	code := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.IndentedJSON(code, resp)
}

// Ping handles GET /ping
func (h *HealthController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
