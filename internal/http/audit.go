package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/entities"
)

const auditPageSize = 25

type AuditController struct {
	pages
	log AuditLog
}

func NewAuditController(auditLog AuditLog, p pages) *AuditController {
	return &AuditController{pages: p, log: auditLog}
}

// AuditLogPage renders the audit log UI
// GET /admin/audit
func (ac *AuditController) AuditLogPage(c *gin.Context) {
	page := pageNumber(c)
	eventType := c.Query("type")

	events, total, err := ac.log.List(audit.Filter{EventType: entities.AuditEventType(eventType)}, auditPageSize, (page-1)*auditPageSize)
	if err != nil {
		log.Printf("Audit: failed to list events: %v", err)
		ac.render(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Failed to load audit events"})
		return
	}

	ac.render(c, http.StatusOK, "audit.html", gin.H{
		"Title":       "Audit log",
		"Events":      events,
		"Page":        page,
		"TotalPages":  totalPages(total, auditPageSize),
		"TotalEvents": total,
		"EventType":   eventType,
		"EventTypes":  eventTypeOptions(),
	})
}

// GetAuditEvents returns audit events as JSON
// GET /admin/api/audit?type=&user_id=&entity_type=&entity_id=&status=&limit=&offset=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	filter := audit.Filter{
		EventType:  entities.AuditEventType(c.Query("type")),
		EntityType: c.Query("entity_type"),
		Status:     entities.AuditStatus(c.Query("status")),
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid user_id")
			return
		}
		filter.UserID = uint(id)
	}
	if v := c.Query("entity_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid entity_id")
			return
		}
		filter.EntityID = uint(id)
	}

	limit, offset := parsePage(c, auditPageSize, 100)
	events, total, err := ac.log.List(filter, limit, offset)
	if err != nil {
		respondInternalError(c, err, "audit events")
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}

// GetAuditEvent handles GET /admin/api/audit/:id
func (ac *AuditController) GetAuditEvent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	event, err := ac.log.Get(id)
	if errors.Is(err, audit.ErrEventNotFound) {
		respondNotFound(c, "audit event")
		return
	}
	if err != nil {
		respondInternalError(c, err, "audit event")
		return
	}
	c.JSON(http.StatusOK, event)
}

type EventTypeOption struct {
	Value string
	Label string
}

func eventTypeOptions() []EventTypeOption {
	return []EventTypeOption{
		{Value: "", Label: "All events"},
		{Value: string(entities.AuditEventBorrow), Label: "Borrow"},
		{Value: string(entities.AuditEventReturn), Label: "Return"},
		{Value: string(entities.AuditEventOverdue), Label: "Overdue"},
		{Value: string(entities.AuditEventAuth), Label: "Authentication"},
		{Value: string(entities.AuditEventAdmin), Label: "Back office"},
		{Value: string(entities.AuditEventMaintenance), Label: "Maintenance"},
	}
}
