package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

const QueueCleanupAuditEvents = "cleanup_audit_events"

// AuditCleaner deletes audit events older than a number of days.
type AuditCleaner interface {
	Cleanup(retentionDays int) (int64, error)
}

type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueCleanupAuditEvents,
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func CleanupAuditEventsProcessor(cleaner AuditCleaner, recorder MaintenanceRecorder) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = DefaultConfig().AuditRetentionDays
		}

		deleted, err := cleaner.Cleanup(retentionDays)
		record(recorder, QueueCleanupAuditEvents,
			fmt.Sprintf("Deleted %d audit events older than %d days", deleted, retentionDays),
			map[string]any{"deleted": deleted, "retention_days": retentionDays}, err)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d audit events older than %d days", deleted, retentionDays)
		return nil
	}
}

func NewCleanupAuditEventsQueue(cleaner AuditCleaner, recorder MaintenanceRecorder) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner, recorder))
}
