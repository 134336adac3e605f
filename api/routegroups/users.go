package routegroups

import (
	"admin-console/api/handlers"
	"github.com/go-chi/chi/v5"
)

func RegisterUsers(apiRouter chi.Router, g Guards, users *handlers.UsersHandler, editors *handlers.EditorsHandler) {
	apiRouter.Route("/users", func(r chi.Router) {
		r.MethodFunc("GET", "/", g.SessionCan(handlers.UsersArea, users.List))
		r.MethodFunc("POST", "/", g.SessionCan(handlers.UsersArea, users.Create))
		r.MethodFunc("PUT", "/{id}", g.SessionCan(handlers.UsersArea, users.Update))
		r.MethodFunc("POST", "/{id}/password", g.SessionCan(handlers.UsersArea, users.SetPassword))
		r.MethodFunc("PUT", "/{id}/roles", g.SessionCan(handlers.UsersArea, users.SetRoles))
		r.MethodFunc("POST", "/{id}/roles/editor", g.SessionCan(handlers.UsersArea, editors.OpenUserRoles))
		r.MethodFunc("POST", "/{id}/roles/editor/toggle", g.SessionCan(handlers.UsersArea, editors.ToggleUserRole))
		r.MethodFunc("DELETE", "/{id}/roles/editor", g.SessionCan(handlers.UsersArea, editors.CloseUserRoles))
	})
}
