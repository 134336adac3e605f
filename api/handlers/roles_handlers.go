package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
	"admin-console/core/utils"
)

const roleCatalogPageSize = 500

var errRoleNotFound = errors.New("role not found")

// fallbackRoles is shown when the role list cannot be loaded.
var fallbackRoles = []rbac.RoleName{rbac.RoleAdmin, rbac.RoleDeveloper, rbac.RoleUser}

type RolesHandler struct {
	base
}

func NewRolesHandler(d Deps) *RolesHandler {
	return &RolesHandler{base: newBase(d)}
}

type roleRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	opts := listOptions(r)
	page, err := h.api(r).GetRoles(r.Context(), opts)
	if err != nil {
		if gql.IsUnauthenticated(err) {
			h.fail(w, r, err)
			return
		}
		h.Logger.Printf("ROLES list failed, serving built-in names: %v", err)
		data := make([]gql.Role, 0, len(fallbackRoles))
		for _, name := range fallbackRoles {
			data = append(data, gql.Role{ID: string(name), Name: string(name), Permissions: []gql.Permission{}})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":      data,
			"meta_data": gql.MetaData{TotalRows: len(data), FilteredRows: len(data)},
			"fallback":  true,
			"error":     gql.Message(err),
		})
		return
	}
	h.syncCatalog(opts, page)
	if page.Data == nil {
		page.Data = []gql.Role{}
	}
	writeJSON(w, http.StatusOK, page)
}

// syncCatalog refreshes the policy only from a page that holds every role.
func (h *RolesHandler) syncCatalog(opts gql.ListOptions, page gql.RolePage) {
	if opts.Offset != 0 || len(page.Data) < page.MetaData.TotalRows {
		return
	}
	if err := rbac.SyncRoles(h.Policy, page.Data); err != nil {
		h.Logger.Errorf("ROLES policy sync: %v", err)
	}
}

func (h *RolesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	name, ok := h.roleName(w, r)
	if !ok {
		return
	}
	role, err := h.api(r).CreateRole(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Printf("ROLES created %s", role.Name)
	writeJSON(w, http.StatusCreated, role)
}

func (h *RolesHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	name, ok := h.roleName(w, r)
	if !ok {
		return
	}
	role, err := h.api(r).UpdateRole(r.Context(), urlParam(r, "id"), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RolesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	res, err := h.api(r).DeleteRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Editors.Remove(h.store(r).ID(), reconcile.RolePermissions, id)
	h.Logger.Printf("ROLES deleted %s", id)
	writeJSON(w, http.StatusOK, res)
}

func (h *RolesHandler) roleName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return "", false
	}
	req.Name = strings.TrimSpace(req.Name)
	if errs := utils.ValidateStruct(&req); len(errs) > 0 {
		h.fail(w, r, &authflow.ValidationError{Fields: errs})
		return "", false
	}
	return req.Name, true
}

// SetPermissions replaces a role's permissions with the posted selection.
func (h *RolesHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	id := urlParam(r, "id")
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	api := h.api(r)
	m := reconcile.RolePermissionMutator{API: api}
	if ed := h.Editors.Get(h.store(r).ID(), reconcile.RolePermissions, id); ed != nil {
		res, err := ed.ApplySelection(r.Context(), m, req.Selected, h.maxParallel())
		h.writeBatch(w, r, reconcile.RolePermissions, res, err)
		return
	}
	role, err := findRole(r.Context(), api, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d := reconcile.ComputeDiff(reconcile.PermissionIDs(role), req.Selected)
	res := reconcile.ApplyDiff(r.Context(), m, id, d, h.maxParallel())
	h.writeBatch(w, r, reconcile.RolePermissions, res, res.Err())
}

func findRole(ctx context.Context, api rbac.RoleCatalog, id string) (gql.Role, error) {
	page, err := api.GetRoles(ctx, gql.ListOptions{Limit: roleCatalogPageSize})
	if err != nil {
		return gql.Role{}, err
	}
	for _, role := range page.Data {
		if role.ID == id {
			return role, nil
		}
	}
	return gql.Role{}, fmt.Errorf("%w: %s", errRoleNotFound, id)
}
