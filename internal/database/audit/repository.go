// Package audit persists audit events: circulation, logins, back office edits
// and scheduled maintenance.
package audit

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/growlin/internal/entities"
)

const defaultPageSize = 50

var ErrEventNotFound = errors.New("audit event not found")

// Filter narrows an event listing. Zero fields are ignored.
type Filter struct {
	UserID     uint
	EventType  entities.AuditEventType
	EntityType string
	EntityID   uint
	Status     entities.AuditStatus
	Since      time.Time
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// ListEvents retrieves a page of matching events, most recent first, with the total match count.
func (r *Repository) ListEvents(filter Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.apply(r.db.Model(&entities.AuditEvent{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// HasEvent reports whether any event matches the filter.
func (r *Repository) HasEvent(filter Filter) (bool, error) {
	var count int64
	err := r.apply(r.db.Model(&entities.AuditEvent{}), filter).Limit(1).Count(&count).Error
	return count > 0, err
}

// DeleteOldEvents removes audit events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}

func (r *Repository) GetEventByID(id uint) (*entities.AuditEvent, error) {
	var event entities.AuditEvent
	err := r.db.First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *Repository) apply(query *gorm.DB, f Filter) *gorm.DB {
	if f.UserID > 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		query = query.Where("entity_id = ?", f.EntityID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at >= ?", f.Since)
	}
	return query
}
