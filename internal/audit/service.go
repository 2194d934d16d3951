package audit

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/entities"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxFieldLength = 500

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Flush blocks until every LogAsync write has finished.
func (s *Service) Flush() {
	s.pending.Wait()
}

// LogBorrow records a borrow attempt.
func (s *Service) LogBorrow(userID, itemID uint, accession string, err error) {
	s.logCirculation(entities.AuditEventBorrow, "borrow", userID, itemID, accession, err)
}

// LogReturn records a return attempt.
func (s *Service) LogReturn(userID, itemID uint, accession string, err error) {
	s.logCirculation(entities.AuditEventReturn, "return", userID, itemID, accession, err)
}

func (s *Service) logCirculation(eventType entities.AuditEventType, action string, userID, itemID uint, accession string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   eventType,
		Action:      action,
		Description: fmt.Sprintf("%s accession %q", action, accession),
		EntityType:  "item",
		Status:      entities.AuditStatusSuccess,
		Metadata:    marshal(map[string]any{"accession": accession}),
	}
	if itemID > 0 {
		event.EntityID = &itemID
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxFieldLength)
		if errors.Is(err, circulation.ErrBorrow) {
			event.Action = action + "_refused"
		}
	}

	s.LogAsync(event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, maxFieldLength),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogAdmin records a back office change, e.g. action "item_update".
func (s *Service) LogAdmin(userID uint, action, entityType string, entityID uint, description string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventAdmin,
		Action:      action,
		Description: truncate(description, maxFieldLength),
		EntityType:  entityType,
		Status:      entities.AuditStatusSuccess,
	}
	if entityID > 0 {
		event.EntityID = &entityID
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxFieldLength)
	}

	s.LogAsync(event)
}

// LogOverdue records an overdue loan once per loan. It reports whether a new
// event was written.
func (s *Service) LogOverdue(loan entities.Loan, now time.Time) (bool, error) {
	seen, err := s.repo.HasEvent(audit.Filter{
		EventType:  entities.AuditEventOverdue,
		EntityType: "loan",
		EntityID:   loan.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check overdue history: %w", err)
	}
	if seen {
		return false, nil
	}

	metadata := map[string]any{"item_id": loan.ItemID}
	description := fmt.Sprintf("Loan %d is overdue", loan.ID)
	if loan.DueDate != nil {
		metadata["due_date"] = loan.DueDate.Format(time.RFC3339)
		metadata["days_overdue"] = int(now.Sub(*loan.DueDate).Hours() / 24)
	}
	if loan.Item != nil {
		metadata["accession"] = loan.Item.Accession
		description = fmt.Sprintf("%q is overdue", loan.Item.DisplayTitle())
	}
	if loan.User != nil {
		metadata["borrower"] = loan.User.String()
		description += " (" + loan.User.String() + ")"
	}

	loanID := loan.ID
	event := &entities.AuditEvent{
		UserID:      loan.UserID,
		EventType:   entities.AuditEventOverdue,
		Action:      "overdue",
		Description: truncate(description, maxFieldLength),
		EntityType:  "loan",
		EntityID:    &loanID,
		Metadata:    marshal(metadata),
		Status:      entities.AuditStatusSuccess,
		CreatedAt:   now,
	}
	if err := s.repo.LogEvent(event); err != nil {
		return false, err
	}
	return true, nil
}

// LogMaintenance records the outcome of a scheduled job.
func (s *Service) LogMaintenance(action, description string, details map[string]any, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventMaintenance,
		Action:      action,
		Description: truncate(description, maxFieldLength),
		Metadata:    marshal(details),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxFieldLength)
	}

	s.LogAsync(event)
}

// List returns a page of events matching the filter.
func (s *Service) List(filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.ListEvents(filter, limit, offset)
}

// Get returns one event, or audit.ErrEventNotFound.
func (s *Service) Get(id uint) (*entities.AuditEvent, error) {
	return s.repo.GetEventByID(id)
}

// Cleanup removes events older than retentionDays.
func (s *Service) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	return s.repo.DeleteOldEvents(time.Now().AddDate(0, 0, -retentionDays))
}

func marshal(data map[string]any) []byte {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to encode audit metadata: %v", err)
		return nil
	}
	return b
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
