package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/entities"
)

var defaultItemTypes = []entities.ItemType{
	{Name: "Book", Prefix: "B", IconName: "book", IconColor: "#2b6cb0"},
	{Name: "Periodical", Prefix: "P", IconName: "newspaper", IconColor: "#c05621"},
}

var defaultRoles = []entities.UserRole{
	{Name: entities.RoleAdmin, Permissions: []string{"admin", "borrow"}},
}

var defaultLocations = []entities.CampusLocation{
	{Name: "Main"},
}

// sqliteParams make every transaction take the write lock up front, so
// concurrent borrowers queue on busy_timeout instead of failing mid-transaction.
// Foreign keys are off in SQLite unless each connection asks for them.
const sqliteParams = "_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"

type Database struct {
	DB     *gorm.DB
	Driver config.DatabaseDriver
}

func Open(cfg config.Database) (*Database, error) {
	return open(cfg, logger.Warn)
}

// OpenSilent is Open without SQL logging, for tests and CLI tools.
func OpenSilent(cfg config.Database) (*Database, error) {
	return open(cfg, logger.Silent)
}

func open(cfg config.Database, level logger.LogLevel) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverSQLite, "":
		dialector = sqlite.Open(SQLiteDSN(cfg.Path))
		cfg.Driver = config.DatabaseDriverSQLite
	case config.DatabaseDriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.CampusLocation{},
		&entities.UserGroup{},
		&entities.UserRole{},
		&entities.Currency{},
		&entities.User{},
		&entities.Publisher{},
		&entities.PublishPlace{},
		&entities.Creator{},
		&entities.Genre{},
		&entities.ItemType{},
		&entities.PeriodicalSubscription{},
		&entities.Item{},
		&entities.Loan{},
		&entities.LoanRecord{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db, Driver: cfg.Driver}

	if err := database.seed(); err != nil {
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}

	log.Printf("Database initialized successfully (%s)", cfg.Driver)

	return database, nil
}

// SQLiteDSN appends the connection parameters the loan transactions rely on.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqliteParams
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Dialect is the goqu dialect name for the connected driver.
func (d *Database) Dialect() string {
	if d.Driver == config.DatabaseDriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// SQLX shares gorm's connection pool with sqlx for hand-built report queries.
func (d *Database) SQLX() (*sqlx.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, err
	}
	driverName := "sqlite3"
	if d.Driver == config.DatabaseDriverPostgres {
		driverName = "pgx"
	}
	return sqlx.NewDb(sqlDB, driverName), nil
}

func (d *Database) seed() error {
	for _, role := range defaultRoles {
		if err := d.DB.Where(entities.UserRole{Name: role.Name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to create role %s: %w", role.Name, err)
		}
	}
	for _, itemType := range defaultItemTypes {
		if err := d.DB.Where(entities.ItemType{Name: itemType.Name}).FirstOrCreate(&itemType).Error; err != nil {
			return fmt.Errorf("failed to create item type %s: %w", itemType.Name, err)
		}
	}
	for _, location := range defaultLocations {
		if err := d.DB.Where(entities.CampusLocation{Name: location.Name}).FirstOrCreate(&location).Error; err != nil {
			return fmt.Errorf("failed to create location %s: %w", location.Name, err)
		}
	}
	return nil
}
