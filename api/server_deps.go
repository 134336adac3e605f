package api

import (
	"context"

	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/jobs"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
	"admin-console/core/session"
)

// Pinger reports whether the session persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ServerDeps struct {
	Sessions *session.Manager
	Client   *gql.Client
	Auth     *authflow.Service
	Policy   *rbac.Policy
	Editors  *reconcile.Registry
	Janitor  *jobs.Janitor
	Storage  Pinger
	Metrics  *Metrics
}
