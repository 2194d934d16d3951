// Package cli implements the maintenance subcommands run next to the server.
package cli

import (
	"fmt"

	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database"
)

// openDatabase opens the configured database, with path overriding the
// SQLite file when set.
func openDatabase(cfg *config.Config, path string) (*database.Database, error) {
	dbCfg := cfg.Database
	if path != "" {
		dbCfg.Path = path
	}
	db, err := database.OpenSilent(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
