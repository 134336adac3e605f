package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"admin-console/config"
	"admin-console/core/store"
	"admin-console/core/utils"
)

// Run dispatches the storage maintenance commands: up, status and purge.
func Run() {
	purgeCmd := flag.NewFlagSet("purge", flag.ExitOnError)
	timeout := purgeCmd.Duration("timeout", 30*time.Second, "purge timeout")

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up", "status", "purge":
	default:
		fmt.Println("commands: up, status, purge")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLoggerWith(utils.LoggerOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if cfg.Session.Backend != "sql" {
		logger.Fatalf("session backend %q has no SQL schema", cfg.Session.Backend)
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()
	dialect := store.Dialect(cfg)
	ctx := context.Background()

	switch cmd {
	case "up":
		if err := store.ApplyMigrations(ctx, db, dialect, logger); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
		logger.Printf("migrations applied")
	case "status":
		printStatus(ctx, db, dialect, logger)
	case "purge":
		_ = purgeCmd.Parse(os.Args[2:])
		pctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		n, err := store.NewSessionRecordStore(db).PurgeExpired(pctx, time.Now().UTC())
		if err != nil {
			logger.Fatalf("purge: %v", err)
		}
		logger.Printf("purged %d expired session records", n)
	}
}

func printStatus(ctx context.Context, db *sql.DB, dialect string, logger *utils.Logger) {
	status, err := store.GetMigrationStatus(ctx, db, dialect)
	if err != nil {
		logger.Fatalf("status: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}
