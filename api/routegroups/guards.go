package routegroups

import (
	"net/http"

	"admin-console/core/rbac"
)

type Guards struct {
	SignedIn func(http.HandlerFunc) http.HandlerFunc
	Require  func(*rbac.Requirement) func(http.HandlerFunc) http.HandlerFunc
}

func (g Guards) Session(handler http.HandlerFunc) http.HandlerFunc {
	return g.SignedIn(handler)
}

func (g Guards) SessionCan(req *rbac.Requirement, handler http.HandlerFunc) http.HandlerFunc {
	return g.SignedIn(g.Require(req)(handler))
}
