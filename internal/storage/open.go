package storage

import (
	"fmt"
	"strings"

	logx "stalwartbot/pkg/logx"
)

// Open initializes the configured store. An empty driver means "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file", "memory":
		path := cfg.Path
		if driver == "memory" {
			path = ""
		}
		st, err := openFile(path, log)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return st, nil
	case "sqlite", "sqlite3":
		st, err := openSQLite(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func normalize(s string) string { return strings.TrimSpace(s) }
