package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"admin-console/config"
	"admin-console/core/utils"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect resolves the configured driver name. An empty driver picks postgres
// when a URL is configured and sqlite otherwise.
func Dialect(cfg *config.AppConfig) string {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "postgres", "pg":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "":
		if strings.TrimSpace(cfg.DBURL) != "" {
			return DialectPostgres
		}
		return DialectSQLite
	default:
		return driver
	}
}

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	switch dialect := Dialect(cfg); dialect {
	case DialectPostgres:
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, errors.New("CONSOLE_DB_URL is required for postgres")
		}
		db, err := sql.Open(postgresDriverName, cfg.DBURL)
		if err != nil {
			logger.Errorf("db open failed: %v", err)
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		logger.Printf("db open postgres")
		return db, nil
	case DialectSQLite:
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			return nil, errors.New("CONSOLE_DB_PATH is required for sqlite")
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
		db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			logger.Errorf("db open failed: %v", err)
			return nil, err
		}
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
		logger.Printf("db open sqlite path=%s", path)
		return db, nil
	default:
		return nil, errors.New("unsupported db driver: " + dialect)
	}
}

// Ping is used by the readiness check.
func Ping(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
