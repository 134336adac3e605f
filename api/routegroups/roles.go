package routegroups

import (
	"admin-console/api/handlers"
	"github.com/go-chi/chi/v5"
)

func RegisterRoles(apiRouter chi.Router, g Guards, roles *handlers.RolesHandler, editors *handlers.EditorsHandler) {
	apiRouter.Route("/roles", func(r chi.Router) {
		r.MethodFunc("GET", "/", g.SessionCan(handlers.RolesArea, roles.List))
		r.MethodFunc("POST", "/", g.SessionCan(handlers.RolesArea, roles.Create))
		r.MethodFunc("PUT", "/{id}", g.SessionCan(handlers.RolesArea, roles.Update))
		r.MethodFunc("DELETE", "/{id}", g.SessionCan(handlers.RolesArea, roles.Delete))
		r.MethodFunc("PUT", "/{id}/permissions", g.SessionCan(handlers.RolesArea, roles.SetPermissions))
		r.MethodFunc("POST", "/{id}/permissions/editor", g.SessionCan(handlers.RolesArea, editors.OpenRolePermissions))
		r.MethodFunc("POST", "/{id}/permissions/editor/toggle", g.SessionCan(handlers.RolesArea, editors.ToggleRolePermission))
		r.MethodFunc("DELETE", "/{id}/permissions/editor", g.SessionCan(handlers.RolesArea, editors.CloseRolePermissions))
	})
}

func RegisterPermissions(apiRouter chi.Router, g Guards, perms *handlers.PermissionsHandler) {
	apiRouter.MethodFunc("GET", "/permissions", g.SessionCan(handlers.PermissionsArea, perms.List))
}
