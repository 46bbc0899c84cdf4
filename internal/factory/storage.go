package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/playerwatch/internal/storage"
	"github.com/mcoot/playerwatch/internal/storage/memory"
	redisstorage "github.com/mcoot/playerwatch/internal/storage/redis"
	"github.com/mcoot/playerwatch/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// StorageType reports which backend a storage URL selects
func StorageType(url string) string {
	switch {
	case url == "", url == "memory", strings.HasPrefix(url, "memory://"):
		return StorageTypeMemory
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		return StorageTypeRedis
	default:
		return StorageTypeSQLite
	}
}

// OpenStorage opens the backend selected by url.
//
// Accepted forms are "memory", "redis://..." or "rediss://...", and for
// SQLite "sqlite://path", "file:path" or a bare path. The parent directory of
// a SQLite database is created if missing.
func OpenStorage(url string, redisCfg *redisstorage.Config) (storage.Storage, error) {
	switch StorageType(url) {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		cfg := redisstorage.DefaultConfig()
		if redisCfg != nil {
			cfg = *redisCfg
		}
		cfg.URL = url
		store, err := redisstorage.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, nil
	default:
		dsn, path := sqliteDSN(url)
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		return sqlite.New(dsn)
	}
}

// sqliteDSN returns the driver DSN and filesystem path for a SQLite URL
func sqliteDSN(url string) (dsn, path string) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path = strings.TrimPrefix(url, "sqlite://")
		return path, path
	case strings.HasPrefix(url, "file:"):
		path = strings.TrimPrefix(url, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		return url, path
	default:
		return url, url
	}
}
