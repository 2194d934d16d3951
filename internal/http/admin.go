package http

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/admin"
	"github.com/mrlokans/growlin/internal/auth"
)

const maxAdminBody = 1 << 20

// AdminController serves the back office index and the JSON CRUD API over
// every registered resource. Every write is audited.
type AdminController struct {
	pages
	registry *admin.Registry
	reports  Reports
	auditor  AdminAuditor
	now      func() time.Time
}

func NewAdminController(registry *admin.Registry, reports Reports, auditor AdminAuditor, p pages) *AdminController {
	return &AdminController{pages: p, registry: registry, reports: reports, auditor: auditor, now: time.Now}
}

// IndexPage lists the resources with row counts, catalogue status and overdue loans.
// GET /admin
func (ac *AdminController) IndexPage(c *gin.Context) {
	ctx := c.Request.Context()
	sections, err := ac.registry.Overview(ctx)
	if err != nil {
		log.Printf("Admin: overview failed: %v", err)
		ac.render(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Failed to load the back office"})
		return
	}

	data := gin.H{"Title": "Administration", "Sections": sections}
	if ac.reports != nil {
		if data["Statuses"], err = ac.reports.StatusCounts(ctx); err != nil {
			log.Printf("Admin: status counts failed: %v", err)
		}
		if data["Overdue"], err = ac.reports.OverdueLoans(ctx, ac.now()); err != nil {
			log.Printf("Admin: overdue report failed: %v", err)
		}
	}
	ac.render(c, http.StatusOK, "admin.html", data)
}

// ListResources handles GET /admin/api
func (ac *AdminController) ListResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": ac.registry.Resources()})
}

// List handles GET /admin/api/:resource?limit=&offset=
func (ac *AdminController) List(c *gin.Context) {
	res, ok := ac.resource(c)
	if !ok {
		return
	}

	limit, offset := parsePage(c, 50, 200)
	rows, total, err := res.List(c.Request.Context(), limit, offset)
	if err != nil {
		ac.respondAdminError(c, err, "list "+res.Info().Name)
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(rows, total, limit, offset))
}

// Get handles GET /admin/api/:resource/:id
func (ac *AdminController) Get(c *gin.Context) {
	res, ok := ac.resource(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, err := res.Get(c.Request.Context(), id)
	if err != nil {
		ac.respondAdminError(c, err, "get "+res.Info().Name)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Create handles POST /admin/api/:resource
func (ac *AdminController) Create(c *gin.Context) {
	res, ok := ac.resource(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	record, err := res.Create(c.Request.Context(), body)
	ac.audit(c, "create", res.Info(), admin.RecordID(record), err)
	if err != nil {
		ac.respondAdminError(c, err, "create "+res.Info().Name)
		return
	}
	respondCreated(c, record)
}

// Update handles PUT and PATCH /admin/api/:resource/:id. Fields missing
// from the payload keep their stored values.
func (ac *AdminController) Update(c *gin.Context) {
	res, ok := ac.resource(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	record, err := res.Update(c.Request.Context(), id, body)
	ac.audit(c, "update", res.Info(), id, err)
	if err != nil {
		ac.respondAdminError(c, err, "update "+res.Info().Name)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delete handles DELETE /admin/api/:resource/:id
func (ac *AdminController) Delete(c *gin.Context) {
	res, ok := ac.resource(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	err := res.Delete(c.Request.Context(), id)
	ac.audit(c, "delete", res.Info(), id, err)
	if err != nil {
		ac.respondAdminError(c, err, "delete "+res.Info().Name)
		return
	}
	respondSuccess(c, res.Info().Label+" record deleted")
}

func (ac *AdminController) resource(c *gin.Context) (admin.Resource, bool) {
	res, err := ac.registry.Get(c.Param("resource"))
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error(), "unknown_resource")
		return nil, false
	}
	return res, true
}

func (ac *AdminController) audit(c *gin.Context, action string, info admin.Info, id uint, err error) {
	if ac.auditor == nil {
		return
	}
	desc := fmt.Sprintf("%s %s", action, info.Label)
	if id != 0 {
		desc = fmt.Sprintf("%s %s #%d", action, info.Label, id)
	}
	if auth.GetAuthType(c) == auth.AuthTypeBearer {
		desc += " via API token"
	}
	ac.auditor.LogAdmin(auth.GetUserID(c), info.Name+"_"+action, info.Name, id, desc, err)
}

func (ac *AdminController) respondAdminError(c *gin.Context, err error, context string) {
	var validation *admin.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Code:    "validation_failed",
			Details: validation.Fields,
		})
	case errors.Is(err, admin.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, admin.ErrInvalidPayload):
		respondError(c, http.StatusBadRequest, err.Error(), "invalid_payload")
	case errors.Is(err, admin.ErrReadOnly):
		respondError(c, http.StatusMethodNotAllowed, err.Error(), "read_only")
	case errors.Is(err, admin.ErrDuplicate):
		respondError(c, http.StatusConflict, err.Error(), "duplicate")
	case errors.Is(err, admin.ErrNotAllowed):
		respondError(c, http.StatusConflict, err.Error(), "not_allowed")
	default:
		respondInternalError(c, err, context)
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAdminBody))
	if err != nil {
		respondBadRequest(c, "failed to read request body")
		return nil, false
	}
	return body, true
}
