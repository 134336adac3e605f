package appbootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"admin-console/api"
	"admin-console/config"
	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/jobs"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
	"admin-console/core/session"
	"admin-console/core/utils"
)

// Runtime is the composed console: HTTP server, session manager and the
// housekeeping janitor, plus whatever storage they hold open.
type Runtime struct {
	Server   *api.Server
	Sessions *session.Manager
	Janitor  *jobs.Janitor

	closers []func() error

	mu       sync.Mutex
	bgCancel context.CancelFunc
}

func InitRuntime(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*Runtime, error) {
	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{closers: storage.closers}
	sealer, err := session.NewSealer(cfg.Session.SealKey, cfg.Session.Namespace)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("session sealer: %w", err)
	}
	rt.Sessions = session.NewManager(session.ManagerOptions{
		Namespace: cfg.Session.Namespace,
		TTL:       cfg.Session.TTL,
		Persister: storage.persister,
		Sealer:    sealer,
	})

	metrics := api.NewMetrics()
	client := gql.NewClient(gql.Options{
		Endpoint:        cfg.GraphQL.Endpoint(),
		Timeout:         cfg.GraphQL.Timeout,
		BreakerFailures: cfg.GraphQL.BreakerFailures,
		BreakerCooldown: cfg.GraphQL.BreakerCooldown,
		Observer:        metrics.ObserveGraphQL,
	})
	policy, err := rbac.NewPolicy(nil)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("rbac policy: %w", err)
	}
	authSvc := authflow.NewService(client, policy, logger, authflow.Options{
		RoleSource:     cfg.Auth.RoleSource,
		RememberMaxAge: cfg.Session.RememberMaxAge,
	})
	editors := reconcile.NewRegistry()
	rt.Janitor, err = jobs.NewJanitor(jobs.JanitorOptions{
		Schedule:  cfg.Session.PurgeSchedule,
		IdleAfter: cfg.Session.TTL,
	}, rt.Sessions, editors, logger)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("janitor: %w", err)
	}

	rt.Server = api.NewServer(cfg, logger, api.ServerDeps{
		Sessions: rt.Sessions,
		Client:   client,
		Auth:     authSvc,
		Policy:   policy,
		Editors:  editors,
		Janitor:  rt.Janitor,
		Storage:  storage.pinger,
		Metrics:  metrics,
	})
	logger.Printf("runtime ready: graphql=%s session_backend=%s role_source=%s", client.Endpoint(), cfg.Session.Backend, cfg.Auth.RoleSource)
	return rt, nil
}

func (r *Runtime) StartBackground(ctx context.Context) error {
	if r == nil || r.Janitor == nil {
		return nil
	}
	r.mu.Lock()
	if r.bgCancel != nil {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.bgCancel = cancel
	r.mu.Unlock()
	return r.Janitor.StartWithContext(runCtx)
}

func (r *Runtime) StopBackground(ctx context.Context) error {
	if r == nil || r.Janitor == nil {
		return nil
	}
	r.mu.Lock()
	cancel := r.bgCancel
	r.bgCancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.Janitor.StopWithContext(ctx)
}

// Close releases storage in reverse order of opening.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
