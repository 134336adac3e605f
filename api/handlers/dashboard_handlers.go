package handlers

import (
	"net/http"
	"sort"

	"golang.org/x/sync/errgroup"

	"admin-console/core/gql"
)

type DashboardHandler struct {
	base
}

func NewDashboardHandler(d Deps) *DashboardHandler {
	return &DashboardHandler{base: newBase(d)}
}

type roleCount struct {
	Role  string `json:"role"`
	Users int    `json:"users"`
}

type dashboardSummary struct {
	UsersTotal       int            `json:"users_total"`
	UsersByStatus    map[string]int `json:"users_by_status"`
	UsersByRole      []roleCount    `json:"users_by_role"`
	RolesTotal       int            `json:"roles_total"`
	PermissionsTotal int            `json:"permissions_total"`
	Partial          bool           `json:"partial"`
}

// Summary gathers the overview counters in parallel. Users beyond the scan
// window are counted in the total but not in the breakdowns.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		return
	}
	api := h.api(r)
	var (
		users []gql.User
		total int
		roles gql.RolePage
		perms gql.PermissionPage
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		for page := 0; page < userScanMaxPages; page++ {
			res, err := api.GetUsers(ctx, gql.ListOptions{Limit: userScanPageSize, Offset: page * userScanPageSize})
			if err != nil {
				return err
			}
			total = res.MetaData.TotalRows
			users = append(users, res.Data...)
			if len(res.Data) < userScanPageSize || len(users) >= total {
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		roles, err = api.GetRoles(ctx, gql.ListOptions{Limit: 1})
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = api.GetPermissions(ctx, gql.ListOptions{Limit: 1})
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(users, total, roles.MetaData.TotalRows, perms.MetaData.TotalRows))
}

func summarize(users []gql.User, total, roles, perms int) dashboardSummary {
	out := dashboardSummary{
		UsersTotal:       total,
		UsersByStatus:    map[string]int{"active": 0, "invited": 0, "unverified": 0},
		UsersByRole:      []roleCount{},
		RolesTotal:       roles,
		PermissionsTotal: perms,
		Partial:          len(users) < total,
	}
	byRole := map[string]int{}
	for _, u := range users {
		status := u.Status
		if status == "" {
			status = "unverified"
		}
		out.UsersByStatus[status]++
		for _, role := range u.Roles {
			byRole[role.Name]++
		}
	}
	for name, n := range byRole {
		out.UsersByRole = append(out.UsersByRole, roleCount{Role: name, Users: n})
	}
	sort.Slice(out.UsersByRole, func(i, j int) bool {
		if out.UsersByRole[i].Users != out.UsersByRole[j].Users {
			return out.UsersByRole[i].Users > out.UsersByRole[j].Users
		}
		return out.UsersByRole[i].Role < out.UsersByRole[j].Role
	})
	return out
}
