package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admin-console/core/utils"
)

var processStartedAt = time.Now().UTC()

func (s *Server) registerObservabilityRoutes() {
	s.router.MethodFunc("GET", "/healthz", s.healthz)
	s.router.MethodFunc("GET", "/readyz", s.readyz)

	if s.cfg.Observability.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "console_uptime_seconds",
			Help: "Process uptime in seconds.",
		}, func() float64 {
			return time.Since(processStartedAt).Seconds()
		}))
		reg.MustRegister(s.metrics.collectors()...)
		var cached func() int
		if s.deps.Sessions != nil {
			cached = s.deps.Sessions.Cached
		}
		reg.MustRegister(newJanitorMetricsCollector(s.deps.Janitor, cached, s.deps.Editors.Len))

		handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		s.router.Method("GET", "/metrics", s.requireMetricsAuth(handler))
	}
}

func (s *Server) requireMetricsAuth(next http.Handler) http.Handler {
	token := strings.TrimSpace(s.cfg.Observability.MetricsToken)
	if token == "" {
		if s.cfg.IsDev() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
	expected := "Bearer " + token
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.ConstantTimeEquals([]byte(r.Header.Get("Authorization")), []byte(expected)) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONPlain(w, http.StatusOK, map[string]any{
		"ok":         true,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
		"uptime_sec": int64(time.Since(processStartedAt).Seconds()),
		"app_env":    s.cfg.AppEnv,
	})
}

// readyz reports whether session storage answers. The GraphQL upstream is
// not checked here; its breaker state shows up in the call metrics instead.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()
	if s.deps.Storage != nil {
		if err := s.deps.Storage.Ping(ctx); err != nil {
			s.logger.Printf("READY storage ping failed: %v", err)
			writeJSONPlain(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSONPlain(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSONPlain(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
