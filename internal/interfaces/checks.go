package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/growlin/internal/audit"
	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/circulation"
	"github.com/mrlokans/growlin/internal/database"
	"github.com/mrlokans/growlin/internal/database/catalog"
	"github.com/mrlokans/growlin/internal/database/loans"
	"github.com/mrlokans/growlin/internal/database/reports"
	"github.com/mrlokans/growlin/internal/database/users"
	"github.com/mrlokans/growlin/internal/http"
	"github.com/mrlokans/growlin/internal/scheduler"
	"github.com/mrlokans/growlin/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ circulation.Store = (*loans.Repository)(nil)
var _ auth.UserStore = (*users.Repository)(nil)
var _ http.Reports = (*reports.Repository)(nil)
var _ http.Catalog = (*catalog.Repository)(nil)
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Services
// =============================================================================

var _ http.Circulation = (*circulation.Service)(nil)
var _ tasks.OverdueSource = (*circulation.Service)(nil)

// =============================================================================
// Audit Trail
// =============================================================================

var _ circulation.Auditor = (*audit.Service)(nil)
var _ auth.LoginAuditor = (*audit.Service)(nil)
var _ http.AdminAuditor = (*audit.Service)(nil)
var _ http.AuditLog = (*audit.Service)(nil)
var _ tasks.OverdueRecorder = (*audit.Service)(nil)
var _ tasks.MaintenanceRecorder = (*audit.Service)(nil)
var _ tasks.AuditCleaner = (*audit.Service)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ tasks.SubscriptionExpirer = (*catalog.Repository)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.Schedule = (*scheduler.Scheduler)(nil)
