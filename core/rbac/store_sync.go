package rbac

import (
	"context"

	"admin-console/core/gql"
)

type RoleCatalog interface {
	GetRoles(ctx context.Context, opts gql.ListOptions) (gql.RolePage, error)
}

// catalogPageSize is large enough to pull the whole catalog in one page.
const catalogPageSize = 500

// RefreshFromCatalog reloads the policy from the remote role list using the
// caller's credentials. A page that does not cover the whole catalog leaves
// the policy untouched.
func RefreshFromCatalog(ctx context.Context, roles RoleCatalog, policy *Policy) error {
	if roles == nil || policy == nil {
		return nil
	}
	page, err := roles.GetRoles(ctx, gql.ListOptions{Limit: catalogPageSize})
	if err != nil {
		return err
	}
	if len(page.Data) < page.MetaData.TotalRows {
		return nil
	}
	return SyncRoles(policy, page.Data)
}

// SyncRoles replaces the policy with an already-fetched role list.
func SyncRoles(policy *Policy, items []gql.Role) error {
	if policy == nil {
		return nil
	}
	out := make([]CatalogRole, 0, len(items))
	for _, item := range items {
		perms := make([]Permission, 0, len(item.Permissions))
		for p := range Normalize(item.Permissions) {
			perms = append(perms, p)
		}
		out = append(out, CatalogRole{Name: item.Name, Permissions: perms})
	}
	return policy.Replace(out)
}
