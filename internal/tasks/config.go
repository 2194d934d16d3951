package tasks

import (
	"time"

	"github.com/mrlokans/growlin/internal/config"
)

type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks are purged. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long finished tasks are kept. Default: 24h
	RetentionDuration time.Duration

	// AuditRetentionDays is passed to audit cleanup tasks. Default: 365
	AuditRetentionDays int
}

func DefaultConfig() Config {
	return Config{
		Workers:            2,
		ReleaseAfter:       15 * time.Minute,
		CleanupInterval:    1 * time.Hour,
		RetentionDuration:  24 * time.Hour,
		AuditRetentionDays: 365,
	}
}

// FromSettings fills a Config from the application settings, keeping
// defaults for anything left at zero.
func FromSettings(cfg config.Tasks, audit config.Audit) Config {
	out := DefaultConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.ReleaseAfter > 0 {
		out.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	if cfg.RetentionDuration > 0 {
		out.RetentionDuration = cfg.RetentionDuration
	}
	if audit.RetentionDays > 0 {
		out.AuditRetentionDays = audit.RetentionDays
	}
	return out
}
