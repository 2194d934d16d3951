// Package database provides the data access layer for the register.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, driver selection, migrations, seeding
//	├── errors.go        # Driver-independent constraint violation checks
//	├── loans/           # Borrow / return transactions, loan history
//	├── catalog/         # Items, metadata lookups, subscriptions
//	├── users/           # Borrowers, groups, roles, API tokens
//	├── audit/           # Audit event persistence
//	└── reports/         # goqu-built SQL reports executed through sqlx
//
// # Drivers
//
// SQLite is the default. Connections are opened with _txlock=immediate and a
// busy timeout so that loan transactions serialise on the write lock.
// PostgreSQL is selected with DATABASE_DRIVER=postgres and DATABASE_DSN.
//
// # Using Sub-packages
//
//	db, err := database.Open(config.Database{Driver: config.DatabaseDriverSQLite, Path: "./growlin.db"})
//
//	loansRepo := loans.NewRepository(db.DB)
//	service := circulation.NewService(loansRepo, auditor, circulation.Policy{Period: 14 * 24 * time.Hour})
//	item, err := service.Borrow(ctx, circulation.BorrowRequest{...})
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add a compile-time interface check to internal/interfaces/checks.go
package database
