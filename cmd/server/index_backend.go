package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"overgrowth.dev/internal/persistence/indexdb"
	"overgrowth.dev/internal/sim/tuning"
	"overgrowth.dev/internal/sim/world"
)

type runtimeIndex interface {
	world.EventSink
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("OG_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "overgrowth.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported OG_INDEX_BACKEND: %s", backend)
	}
}
