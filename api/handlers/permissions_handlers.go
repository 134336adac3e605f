package handlers

import (
	"net/http"
	"sort"

	"admin-console/core/gql"
)

type PermissionsHandler struct {
	base
}

func NewPermissionsHandler(d Deps) *PermissionsHandler {
	return &PermissionsHandler{base: newBase(d)}
}

type permissionGroup struct {
	Module      string           `json:"module"`
	Permissions []gql.Permission `json:"permissions"`
}

// List returns one page of permissions. With ?grouped=1 the page is also
// returned grouped by module, modules and actions sorted.
func (h *PermissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	page, err := h.api(r).GetPermissions(r.Context(), listOptions(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if page.Data == nil {
		page.Data = []gql.Permission{}
	}
	if r.URL.Query().Get("grouped") == "" {
		writeJSON(w, http.StatusOK, page)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":      page.Data,
		"meta_data": page.MetaData,
		"groups":    groupPermissions(page.Data),
	})
}

func groupPermissions(perms []gql.Permission) []permissionGroup {
	byModule := map[string][]gql.Permission{}
	for _, p := range perms {
		module := p.Module
		if module == "" {
			module = "global"
		}
		byModule[module] = append(byModule[module], p)
	}
	out := make([]permissionGroup, 0, len(byModule))
	for module, items := range byModule {
		sort.Slice(items, func(i, j int) bool { return items[i].Action < items[j].Action })
		out = append(out, permissionGroup{Module: module, Permissions: items})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}
