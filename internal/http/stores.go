package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/database/audit"
	"github.com/mrlokans/growlin/internal/database/reports"
	"github.com/mrlokans/growlin/internal/entities"
)

// Circulation is the loan desk the patron pages and the loans API drive.
type Circulation interface {
	Borrow(ctx context.Context, req circulation.BorrowRequest) (*entities.Item, error)
	Unborrow(ctx context.Context, req circulation.ReturnRequest) (*entities.LoanRecord, error)
	GetItem(ctx context.Context, id uint) (*entities.Item, error)
	FindByAccession(ctx context.Context, accession string) (*entities.Item, error)
	CurrentLoans(ctx context.Context, userID uint) ([]entities.Loan, error)
	PastLoans(ctx context.Context, userID uint, limit, offset int) ([]entities.LoanRecord, int64, error)
}

// Reports provides the back office SQL reports.
type Reports interface {
	LoansPerGroup(ctx context.Context, period reports.Period) ([]reports.GroupLoans, error)
	MostBorrowed(ctx context.Context, period reports.Period, limit int) ([]reports.ItemLoans, error)
	OverdueLoans(ctx context.Context, now time.Time) ([]reports.OverdueLoan, error)
	StatusCounts(ctx context.Context) ([]reports.StatusCount, error)
}

// AdminAuditor records back office changes.
type AdminAuditor interface {
	LogAdmin(userID uint, action, entityType string, entityID uint, description string, err error)
}

// Catalog finds items by title or accession.
type Catalog interface {
	SearchItems(query string, limit int) ([]entities.Item, error)
}

// AuditLog lists recorded audit events.
type AuditLog interface {
	List(filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error)
	Get(id uint) (*entities.AuditEvent, error)
}

// TaskQueue enqueues background tasks by name and reports their status.
type TaskQueue interface {
	EnqueueType(ctx context.Context, name string) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// Schedule reports when a scheduled task runs next.
type Schedule interface {
	IsRunning() bool
	NextRunTime(task string) *time.Time
}
