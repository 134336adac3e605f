package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

type MigrationStatus struct {
	NowUTC         time.Time `json:"now_utc"`
	Dialect        string    `json:"dialect"`
	HasGooseTable  bool      `json:"has_goose_table"`
	CurrentVersion int64     `json:"current_version"`
	LatestVersion  int64     `json:"latest_version"`
	HasPending     bool      `json:"has_pending"`
}

// GetMigrationStatus reads the applied version without creating the goose table.
func GetMigrationStatus(ctx context.Context, db *sql.DB, dialect string) (MigrationStatus, error) {
	st := MigrationStatus{NowUTC: time.Now().UTC(), Dialect: dialect}
	latest, err := latestGooseMigrationVersion(dialect)
	if err != nil {
		return st, err
	}
	st.LatestVersion = latest
	if db == nil {
		return st, fmt.Errorf("nil db")
	}
	hasGoose, err := tableExists(ctx, db, dialect, gooseTable)
	if err != nil {
		return st, err
	}
	st.HasGooseTable = hasGoose
	if hasGoose {
		if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version_id), 0) FROM `+gooseTable+` WHERE is_applied = ?`, true).Scan(&st.CurrentVersion); err != nil {
			return st, err
		}
	}
	st.HasPending = st.LatestVersion > st.CurrentVersion
	return st, nil
}

func latestGooseMigrationVersion(dialect string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	dir, err := useGoose(dialect)
	if err != nil {
		return 0, err
	}
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		if errors.Is(err, goose.ErrNoMigrationFiles) {
			return 0, nil
		}
		return 0, err
	}
	last, err := migrations.Last()
	if err != nil {
		return 0, nil
	}
	return last.Version, nil
}

func tableExists(ctx context.Context, db *sql.DB, dialect, name string) (bool, error) {
	var n int
	var err error
	switch dialect {
	case DialectPostgres:
		err = db.QueryRowContext(ctx, `
			SELECT COUNT(1)
			FROM information_schema.tables
			WHERE table_schema='public' AND table_name=?
		`, name).Scan(&n)
	case DialectSQLite:
		err = db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	default:
		return false, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
