package handlers

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"admin-console/core/gql"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
)

var errNoEditor = errors.New("no open editor")

// EditorsHandler drives the per-link assignment dialogs. Editors live in the
// registry keyed by console session, kind and owner.
type EditorsHandler struct {
	base
}

func NewEditorsHandler(d Deps) *EditorsHandler {
	return &EditorsHandler{base: newBase(d)}
}

type toggleRequest struct {
	LinkID string `json:"link_id"`
}

func (h *EditorsHandler) OpenRolePermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	api := h.api(r)
	var (
		role  gql.Role
		perms gql.PermissionPage
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		role, err = findRole(ctx, api, id)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = api.GetPermissions(ctx, gql.ListOptions{Limit: roleCatalogPageSize})
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}
	ed := reconcile.NewEditor(reconcile.RolePermissions, role.ID, role.Name, reconcile.RolePermissionSeeds(role, perms.Data))
	ed = h.Editors.Open(h.store(r).ID(), ed)
	writeJSON(w, http.StatusOK, ed.View())
}

func (h *EditorsHandler) OpenUserRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	api := h.api(r)
	var (
		user  gql.User
		roles gql.RolePage
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		user, err = findUser(ctx, api, id)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = api.GetRoles(ctx, gql.ListOptions{Limit: roleCatalogPageSize})
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}
	label := user.Email
	ed := reconcile.NewEditor(reconcile.UserRoles, user.ID, label, reconcile.UserRoleSeeds(user, roles.Data))
	ed = h.Editors.Open(h.store(r).ID(), ed)
	writeJSON(w, http.StatusOK, ed.View())
}

func (h *EditorsHandler) ToggleRolePermission(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, reconcile.RolePermissions, func(api *gql.API) reconcile.Mutator {
		return reconcile.RolePermissionMutator{API: api}
	})
}

func (h *EditorsHandler) ToggleUserRole(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, reconcile.UserRoles, func(api *gql.API) reconcile.Mutator {
		return reconcile.UserRoleMutator{API: api}
	})
}

func (h *EditorsHandler) toggle(w http.ResponseWriter, r *http.Request, kind reconcile.Kind, mutator func(*gql.API) reconcile.Mutator) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ed := h.Editors.Get(h.store(r).ID(), kind, urlParam(r, "id"))
	if ed == nil {
		writeError(w, http.StatusNotFound, errNoEditor.Error())
		return
	}
	out, err := ed.Toggle(r.Context(), mutator(h.api(r)), req.LinkID)
	op := "revoke"
	if out.Assigned != (out.State == reconcile.Reverted) {
		op = "assign"
	}
	switch {
	case err == nil:
		h.Metrics.LinkMutation(kind, op, "ok")
	case errors.Is(err, reconcile.ErrLinkPending), errors.Is(err, reconcile.ErrUnknownLink), gql.IsUnauthenticated(err):
		h.fail(w, r, err)
		return
	default:
		h.Metrics.LinkMutation(kind, op, "reverted")
		h.Logger.Printf("EDITOR %s %s on %s reverted: %v", kind, op, ed.OwnerID(), err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": out, "editor": ed.View()})
}

func (h *EditorsHandler) CloseRolePermissions(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, reconcile.RolePermissions, func(ctx context.Context, api *gql.API, _ string) (any, error) {
		var (
			roles gql.RolePage
			perms gql.PermissionPage
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			roles, err = api.GetRoles(gctx, gql.ListOptions{Limit: roleCatalogPageSize})
			return err
		})
		g.Go(func() error {
			var err error
			perms, err = api.GetPermissions(gctx, gql.ListOptions{Limit: roleCatalogPageSize})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if len(roles.Data) >= roles.MetaData.TotalRows {
			if err := rbac.SyncRoles(h.Policy, roles.Data); err != nil {
				h.Logger.Errorf("ROLES policy sync: %v", err)
			}
		}
		return map[string]any{"roles": roles, "permissions": perms}, nil
	})
}

func (h *EditorsHandler) CloseUserRoles(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, reconcile.UserRoles, func(ctx context.Context, api *gql.API, id string) (any, error) {
		var (
			user  gql.User
			roles gql.RolePage
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			user, err = findUser(gctx, api, id)
			return err
		})
		g.Go(func() error {
			var err error
			roles, err = api.GetRoles(gctx, gql.ListOptions{Limit: roleCatalogPageSize})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return map[string]any{"user": user, "roles": roles}, nil
	})
}

// close reconciles once: the authoritative data is reloaded only when the
// editor applied something.
func (h *EditorsHandler) close(w http.ResponseWriter, r *http.Request, kind reconcile.Kind, reload func(context.Context, *gql.API, string) (any, error)) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	sid := h.store(r).ID()
	id := urlParam(r, "id")
	ed := h.Editors.Get(sid, kind, id)
	if ed == nil {
		writeJSON(w, http.StatusOK, map[string]any{"changed": false})
		return
	}
	api := h.api(r)
	var fresh any
	changed, err := ed.Close(r.Context(), func(ctx context.Context) error {
		var err error
		fresh, err = reload(ctx, api, id)
		return err
	})
	if errors.Is(err, reconcile.ErrPending) || gql.IsUnauthenticated(err) {
		h.fail(w, r, err)
		return
	}
	h.Editors.Remove(sid, kind, id)
	body := map[string]any{"changed": changed}
	if fresh != nil {
		body["data"] = fresh
	}
	if err != nil {
		body["error"] = gql.Message(err)
	}
	writeJSON(w, http.StatusOK, body)
}
