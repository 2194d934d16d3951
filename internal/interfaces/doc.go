// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - circulation.Store: Transactional borrow and return (internal/circulation/service.go)
//   - auth.UserStore: Accounts, groups and roles (internal/auth/service.go)
//   - http.Reports: Read-only circulation reports (internal/http/stores.go)
//
// ## Service Interfaces
//
//   - http.Circulation: What the shelf pages and loans API need (internal/http/stores.go)
//   - circulation.Auditor, auth.LoginAuditor, http.AdminAuditor: Audit trail sinks
//
// ## Background Work Interfaces
//
//   - tasks.OverdueSource, tasks.OverdueRecorder, tasks.SubscriptionExpirer,
//     tasks.AuditCleaner, tasks.MaintenanceRecorder: Task processor inputs
//     (internal/tasks/)
//   - scheduler.Enqueuer: Puts scheduled tasks on the queue (internal/scheduler/)
//   - http.TaskQueue, http.Schedule: Task management endpoints
//
// # Adding a New Scheduled Task
//
//  1. Define the task and its processor in internal/tasks/
//
//     type ReminderTask struct{}
//
//     func (t ReminderTask) Config() backlite.QueueConfig {
//         return backlite.QueueConfig{Name: QueueSendReminders, MaxAttempts: 3}
//     }
//
//  2. Add it to taskTypes and NewTask in internal/tasks/types.go
//
//  3. Register the queue in entrypoint.go and give it a schedule in
//     scheduler.Jobs
//
// # Adding a New Back Office Resource
//
//  1. Add the entity to internal/entities/ and to the migration list
//
//  2. Register it in admin.NewRegistry with its hooks:
//
//     r.add(NewModel(db, Info{Name: "suppliers", Label: "Suppliers", Section: SectionMetadata}, Hooks[entities.Supplier]{}))
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
