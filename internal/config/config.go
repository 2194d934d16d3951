package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"   // Single file database (default)
	DatabaseDriverPostgres DatabaseDriver = "postgres" // PostgreSQL via DATABASE_DSN
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Loans
		Tasks
		Scheduler
		Audit
		ReadOnly
	}

	HTTP struct {
		Port int32 `validate:"min=1,max=65535"`
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int `validate:"min=0"`
	}
	Database struct {
		Driver DatabaseDriver `validate:"oneof=sqlite postgres"`
		Path   string         `validate:"required_if=Driver sqlite"`   // SQLite file path
		DSN    string         `validate:"required_if=Driver postgres"` // PostgreSQL connection string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		SecureCookies   bool // Set to false for local dev without HTTPS
		BcryptCost      int  `validate:"min=4,max=31"`

		MaxLoginAttempts int           `validate:"min=1"` // Failed attempts before lockout
		RateLimitWindow  time.Duration // Window for counting attempts
		LockoutDuration  time.Duration
	}
	Loans struct {
		Period         time.Duration `validate:"gt=0"`  // Due date offset for regular loans
		LongTermPeriod time.Duration `validate:"min=0"` // Due date offset for long-term loans, 0 = no due date
		MaxPerBorrower int           `validate:"min=0"` // 0 = unlimited
	}
	Tasks struct {
		Enabled           bool
		Workers           int `validate:"min=0"`
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Scheduler struct {
		Enabled              bool
		CirculationSchedule  string `validate:"omitempty,cron"` // Cron format: "0 6 * * *" = daily at 06:00
		AuditCleanupSchedule string `validate:"omitempty,cron"`
	}
	Audit struct {
		RetentionDays int `validate:"min=0"` // 0 falls back to 365
	}
	ReadOnly struct {
		Enabled bool // Blocks every write request, e.g. during stock-taking
	}
)

// loadDotEnv reads an optional .env file into the process environment.
// Variables that are already set win over the file.
func loadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("No .env file loaded, using process environment")
		return
	}
	log.Printf(".env file loaded")
}

func NewConfig() *Config {
	loadDotEnv()
	return newConfig(viper.New())
}

func newConfig(v *viper.Viper) *Config {
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "12h")  // One school day and then some
	v.SetDefault("auth_token_expiry", "2160h")    // 90 days
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration

	// Loan defaults
	v.SetDefault("loan_period", "336h")          // 14 days
	v.SetDefault("loan_longterm_period", "2160h") // 90 days
	v.SetDefault("loan_max_per_borrower", 10)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Scheduler defaults
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("circulation_schedule", "0 6 * * *")
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	v.SetDefault("audit_retention_days", 365)
	v.SetDefault("read_only", false)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Loans: Loans{
			Period:         v.GetDuration("LOAN_PERIOD"),
			LongTermPeriod: v.GetDuration("LOAN_LONGTERM_PERIOD"),
			MaxPerBorrower: v.GetInt("LOAN_MAX_PER_BORROWER"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Scheduler: Scheduler{
			Enabled:              v.GetBool("SCHEDULER_ENABLED"),
			CirculationSchedule:  v.GetString("CIRCULATION_SCHEDULE"),
			AuditCleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		ReadOnly: ReadOnly{
			Enabled: v.GetBool("READ_ONLY"),
		},
	}
}

// Validate reports every setting that is out of range, one per line.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	problems := make([]string, 0, len(ve))
	for _, fe := range ve {
		problems = append(problems, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
}
