package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"admin-console/api/handlers"
	"admin-console/config"
	"admin-console/core/authflow"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
	"admin-console/core/utils"
)

type Server struct {
	cfg        *config.AppConfig
	router     chi.Router
	httpServer *http.Server
	logger     *utils.Logger
	deps       ServerDeps
	metrics    *Metrics
	limiter    *loginLimiter
	pages      *pageRenderer
}

func NewServer(cfg *config.AppConfig, logger *utils.Logger, deps ServerDeps) *Server {
	if deps.Editors == nil {
		deps.Editors = reconcile.NewRegistry()
	}
	if deps.Policy == nil {
		deps.Policy, _ = rbac.NewPolicy(nil)
	}
	if deps.Auth == nil {
		deps.Auth = authflow.NewService(deps.Client, deps.Policy, logger, authflow.Options{
			RoleSource:     cfg.Auth.RoleSource,
			RememberMaxAge: cfg.Session.RememberMaxAge,
		})
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		deps:    deps,
		metrics: metrics,
		limiter: newLoginLimiter(rate.Limit(cfg.Auth.LoginRatePerSec), cfg.Auth.LoginBurst),
		pages:   newPageRenderer(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) handlerDeps() handlers.Deps {
	return handlers.Deps{
		Cfg:      s.cfg,
		Client:   s.deps.Client,
		Auth:     s.deps.Auth,
		Sessions: s.deps.Sessions,
		Policy:   s.deps.Policy,
		Editors:  s.deps.Editors,
		Metrics:  s.metrics,
		Logger:   s.logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.logger.Printf("listening on %s (tls=%v)", s.cfg.ListenAddr, s.cfg.TLSEnabled)
	if s.cfg.TLSEnabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
