package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"admin-console/api/handlers"
	"admin-console/api/routegroups"
	"admin-console/core/guard"
	"admin-console/core/rbac"
)

type routeHandlers struct {
	auth        *handlers.AuthHandler
	users       *handlers.UsersHandler
	roles       *handlers.RolesHandler
	permissions *handlers.PermissionsHandler
	editors     *handlers.EditorsHandler
	dashboard   *handlers.DashboardHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	d := s.handlerDeps()
	return routeHandlers{
		auth:        handlers.NewAuthHandler(d),
		users:       handlers.NewUsersHandler(d),
		roles:       handlers.NewRolesHandler(d),
		permissions: handlers.NewPermissionsHandler(d),
		editors:     handlers.NewEditorsHandler(d),
		dashboard:   handlers.NewDashboardHandler(d),
	}
}

func (s *Server) registerRoutes() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.guardMiddleware)

	s.router.Handle("/static/*", http.StripPrefix("/static/", s.staticHandler()))
	s.registerObservabilityRoutes()
	s.registerPageRoutes()

	h := s.newRouteHandlers()
	g := routegroups.Guards{SignedIn: s.requireSignedIn, Require: s.requireCan}

	apiRouter := chi.NewRouter()
	apiRouter.Use(s.jsonMiddleware)
	apiRouter.Use(s.withSession)

	apiRouter.MethodFunc("POST", "/auth/login", s.rateLimitMiddleware(h.auth.Login))
	apiRouter.MethodFunc("POST", "/auth/logout", h.auth.Logout)
	apiRouter.MethodFunc("GET", "/auth/me", h.auth.Me)
	apiRouter.MethodFunc("POST", "/auth/register", s.rateLimitMiddleware(h.auth.Register))
	apiRouter.MethodFunc("POST", "/auth/forgot-password", s.rateLimitMiddleware(h.auth.ForgotPassword))
	apiRouter.MethodFunc("GET", "/app/menu", g.Session(h.auth.Menu))
	apiRouter.MethodFunc("GET", "/dashboard", g.Session(h.dashboard.Summary))

	routegroups.RegisterUsers(apiRouter, g, h.users, h.editors)
	routegroups.RegisterRoles(apiRouter, g, h.roles, h.editors)
	routegroups.RegisterPermissions(apiRouter, g, h.permissions)

	s.router.Mount("/api", apiRouter)
}

func (s *Server) registerPageRoutes() {
	s.router.Group(func(pages chi.Router) {
		pages.Use(s.withSession)
		pages.MethodFunc("GET", "/", redirectTo(guard.DashboardPath))
		pages.MethodFunc("GET", "/sign-in", s.authPage("sign-in", "Sign in"))
		pages.MethodFunc("GET", "/login", s.authPage("sign-in", "Sign in"))
		pages.MethodFunc("GET", "/register", s.authPage("register", "Register"))
		pages.MethodFunc("GET", "/forgot-password", s.authPage("forgot-password", "Forgot password"))
		pages.MethodFunc("GET", "/dashboard", s.signedInPage("dashboard", "dashboard", "Overview", "/api/dashboard"))
		pages.MethodFunc("GET", "/admin/users", s.signedInPage("admin", "users", "Users", "/api/users", rbac.AdminArea, handlers.UsersArea))
		pages.MethodFunc("GET", "/admin/roles", s.signedInPage("admin", "roles", "Roles", "/api/roles", rbac.AdminArea, handlers.RolesArea))
		pages.MethodFunc("GET", "/admin/permissions", s.signedInPage("admin", "permissions", "Permissions", "/api/permissions?grouped=1", rbac.AdminArea, handlers.PermissionsArea))
		pages.MethodFunc("GET", "/admin", redirectTo("/admin/users"))
		pages.MethodFunc("GET", "/users", redirectTo("/admin/users"))
		pages.MethodFunc("GET", "/roles", redirectTo("/admin/roles"))
		pages.MethodFunc("GET", "/permissions", redirectTo("/admin/permissions"))
	})
}
