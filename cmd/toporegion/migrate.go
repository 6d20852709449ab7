package main

import (
	"errors"
	"fmt"

	"github.com/banshee-data/toporegion/internal/storage/sqlite"
)

const migrateUsage = "usage: toporegion -db <path> migrate up|down|status"

// runMigrate applies one migration action to the ledger at dbPath and
// returns the resulting schema state.
func runMigrate(dbPath string, args []string) (string, error) {
	if dbPath == "" {
		return "", errors.New("migrate needs -db")
	}
	if len(args) != 1 {
		return "", errors.New(migrateUsage)
	}

	store, err := sqlite.OpenUnmigrated(dbPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	switch args[0] {
	case "up":
		err = store.MigrateUp()
	case "down":
		err = store.MigrateDown()
	case "status":
	default:
		return "", fmt.Errorf("unknown migrate action %q; %s", args[0], migrateUsage)
	}
	if err != nil {
		return "", err
	}

	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return "", err
	}
	if dirty {
		return fmt.Sprintf("schema version %d (dirty)", v), nil
	}
	return fmt.Sprintf("schema version %d", v), nil
}
