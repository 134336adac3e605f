package appbootstrap

import (
	"context"
	"fmt"
	"strings"

	"admin-console/api"
	"admin-console/config"
	"admin-console/core/session"
	"admin-console/core/store"
	"admin-console/core/utils"
)

type storage struct {
	persister session.Persister
	pinger    api.Pinger
	closers   []func() error
}

// openStorage builds the session persister named by session.backend.
func openStorage(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Session.Backend)) {
	case "memory":
		logger.Printf("session backend: memory (sessions are lost on restart)")
		return storage{persister: session.NewMemoryPersister()}, nil
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return storage{}, fmt.Errorf("redis init: %w", err)
		}
		rs := store.NewRedisSessionStore(client)
		return storage{persister: rs, pinger: rs, closers: []func() error{client.Close}}, nil
	default:
		db, err := store.NewDB(cfg, logger)
		if err != nil {
			return storage{}, fmt.Errorf("db init: %w", err)
		}
		if err := store.ApplyMigrations(ctx, db, store.Dialect(cfg), logger); err != nil {
			_ = db.Close()
			return storage{}, fmt.Errorf("migrations: %w", err)
		}
		rs := store.NewSessionRecordStore(db)
		return storage{persister: rs, pinger: rs, closers: []func() error{db.Close}}, nil
	}
}
