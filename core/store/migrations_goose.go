package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"admin-console/core/utils"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var gooseMigrationsFS embed.FS

const gooseTable = "goose_db_version"

// goose keeps dialect and base FS in package state.
var gooseMu sync.Mutex

func gooseTarget(dialect string) (string, string, error) {
	switch dialect {
	case DialectPostgres:
		return "postgres", "migrations/postgres", nil
	case DialectSQLite:
		return "sqlite3", "migrations/sqlite", nil
	default:
		return "", "", fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

func useGoose(dialect string) (string, error) {
	gooseDialect, dir, err := gooseTarget(dialect)
	if err != nil {
		return "", err
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return "", err
	}
	goose.SetBaseFS(gooseMigrationsFS)
	return dir, nil
}

func ApplyMigrations(ctx context.Context, db *sql.DB, dialect string, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	dir, err := useGoose(dialect)
	if err != nil {
		return err
	}
	logger.Printf("applying goose migrations dialect=%s", dialect)
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return err
	}
	logger.Printf("goose migrations applied")
	return nil
}
