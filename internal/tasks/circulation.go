package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/growlin/internal/entities"
)

const (
	QueueScanOverdueLoans    = "scan_overdue_loans"
	QueueExpireSubscriptions = "expire_subscriptions"
)

// OverdueSource lists loans past their due date.
type OverdueSource interface {
	Overdue(ctx context.Context, now time.Time) ([]entities.Loan, error)
}

// OverdueRecorder writes one audit event per overdue loan and reports
// whether the event was new.
type OverdueRecorder interface {
	LogOverdue(loan entities.Loan, now time.Time) (bool, error)
}

type SubscriptionExpirer interface {
	ExpireSubscriptions(now time.Time) (int64, error)
}

// MaintenanceRecorder receives a summary of each background run.
type MaintenanceRecorder interface {
	LogMaintenance(action, description string, details map[string]any, err error)
}

type ScanOverdueLoansTask struct{}

func (t ScanOverdueLoansTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueScanOverdueLoans,
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ScanOverdueLoansProcessor records every overdue loan once. Re-running the
// scan the same day adds nothing.
func ScanOverdueLoansProcessor(source OverdueSource, recorder OverdueRecorder, maintenance MaintenanceRecorder, now func() time.Time) backlite.QueueProcessor[ScanOverdueLoansTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, _ ScanOverdueLoansTask) error {
		if source == nil || recorder == nil {
			return fmt.Errorf("overdue scan not configured")
		}

		at := now()
		loans, err := source.Overdue(ctx, at)
		if err != nil {
			record(maintenance, QueueScanOverdueLoans, "Overdue scan failed", nil, err)
			return fmt.Errorf("list overdue loans: %w", err)
		}

		var recorded int
		for _, loan := range loans {
			if err := ctx.Err(); err != nil {
				return err
			}
			isNew, err := recorder.LogOverdue(loan, at)
			if err != nil {
				record(maintenance, QueueScanOverdueLoans, "Overdue scan failed", nil, err)
				return fmt.Errorf("record overdue loan %d: %w", loan.ID, err)
			}
			if isNew {
				recorded++
			}
		}

		record(maintenance, QueueScanOverdueLoans,
			fmt.Sprintf("%d overdue loans, %d newly recorded", len(loans), recorded),
			map[string]any{"overdue": len(loans), "recorded": recorded}, nil)
		log.Printf("[TASK] Overdue scan: %d overdue loans, %d newly recorded", len(loans), recorded)
		return nil
	}
}

func NewScanOverdueLoansQueue(source OverdueSource, recorder OverdueRecorder, maintenance MaintenanceRecorder) backlite.Queue {
	return backlite.NewQueue(ScanOverdueLoansProcessor(source, recorder, maintenance, nil))
}

type ExpireSubscriptionsTask struct{}

func (t ExpireSubscriptionsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueExpireSubscriptions,
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func ExpireSubscriptionsProcessor(expirer SubscriptionExpirer, maintenance MaintenanceRecorder, now func() time.Time) backlite.QueueProcessor[ExpireSubscriptionsTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, _ ExpireSubscriptionsTask) error {
		if expirer == nil {
			return fmt.Errorf("subscription expiry not configured")
		}

		changed, err := expirer.ExpireSubscriptions(now())
		record(maintenance, QueueExpireSubscriptions,
			fmt.Sprintf("Marked %d subscriptions as expired", changed),
			map[string]any{"expired": changed}, err)
		if err != nil {
			return fmt.Errorf("expire subscriptions: %w", err)
		}

		log.Printf("[TASK] Marked %d subscriptions as expired", changed)
		return nil
	}
}

func NewExpireSubscriptionsQueue(expirer SubscriptionExpirer, maintenance MaintenanceRecorder) backlite.Queue {
	return backlite.NewQueue(ExpireSubscriptionsProcessor(expirer, maintenance, nil))
}

func record(recorder MaintenanceRecorder, action, description string, details map[string]any, err error) {
	if recorder != nil {
		recorder.LogMaintenance(action, description, details, err)
	}
}
