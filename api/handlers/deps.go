package handlers

import (
	"net/http"

	"admin-console/config"
	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
	"admin-console/core/session"
	"admin-console/core/utils"
)

// Metrics receives handler-level outcomes; the api package backs it with
// prometheus counters.
type Metrics interface {
	LoginOutcome(outcome string)
	LinkMutation(kind reconcile.Kind, op, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) LoginOutcome(string)                         {}
func (nopMetrics) LinkMutation(reconcile.Kind, string, string) {}

type Deps struct {
	Cfg      *config.AppConfig
	Client   *gql.Client
	Auth     *authflow.Service
	Sessions *session.Manager
	Policy   *rbac.Policy
	Editors  *reconcile.Registry
	Metrics  Metrics
	Logger   *utils.Logger
}

type base struct {
	Deps
}

func newBase(d Deps) base {
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Editors == nil {
		d.Editors = reconcile.NewRegistry()
	}
	if d.Cfg == nil {
		d.Cfg = &config.AppConfig{}
	}
	return base{Deps: d}
}

func (b base) store(r *http.Request) *session.Store {
	return session.FromContext(r.Context())
}

// api binds the GraphQL client to the request's session. An UNAUTHENTICATED
// answer clears the store and drops the session's open editors.
func (b base) api(r *http.Request) *gql.API {
	st := b.store(r)
	if st == nil {
		return b.Client.For(nil)
	}
	return b.Client.For(st).OnUnauthenticated(func() {
		b.Editors.DropSession(st.ID())
		b.Logger.Printf("AUTH session %s cleared after UNAUTHENTICATED", st.ID())
	})
}

func (b base) secure(r *http.Request) bool {
	return IsSecureRequest(r, b.Cfg)
}

func (b base) maxParallel() int {
	if b.Cfg.Editors.MaxParallel > 0 {
		return b.Cfg.Editors.MaxParallel
	}
	return 4
}
