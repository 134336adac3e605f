package reconcile

import (
	"context"
	"sort"

	"admin-console/core/gql"
)

type PermissionLinker interface {
	AssignPermission(ctx context.Context, roleID, permissionID string) (gql.RolePermissionLink, error)
	RevokePermission(ctx context.Context, roleID, permissionID string) error
}

type RoleLinker interface {
	AssignRole(ctx context.Context, roleID, userID string) (gql.RoleUserLink, error)
	RevokeRole(ctx context.Context, roleID, userID string) error
}

// RolePermissionMutator links permissions (targets) to a role (owner).
type RolePermissionMutator struct {
	API PermissionLinker
}

func (m RolePermissionMutator) Assign(ctx context.Context, roleID, permissionID string) error {
	_, err := m.API.AssignPermission(ctx, roleID, permissionID)
	return err
}

func (m RolePermissionMutator) Revoke(ctx context.Context, roleID, permissionID string) error {
	return m.API.RevokePermission(ctx, roleID, permissionID)
}

// UserRoleMutator links roles (targets) to a user (owner).
type UserRoleMutator struct {
	API RoleLinker
}

func (m UserRoleMutator) Assign(ctx context.Context, userID, roleID string) error {
	_, err := m.API.AssignRole(ctx, roleID, userID)
	return err
}

func (m UserRoleMutator) Revoke(ctx context.Context, userID, roleID string) error {
	return m.API.RevokeRole(ctx, roleID, userID)
}

// RolePermissionSeeds lists every permission, grouped by module, with the
// role's current grants selected.
func RolePermissionSeeds(role gql.Role, all []gql.Permission) []LinkSeed {
	granted := map[string]struct{}{}
	for _, p := range role.Permissions {
		granted[p.ID] = struct{}{}
	}
	seeds := make([]LinkSeed, 0, len(all))
	for _, p := range all {
		_, ok := granted[p.ID]
		seeds = append(seeds, LinkSeed{ID: p.ID, Label: p.Action, Group: p.Module, Selected: ok})
	}
	return seeds
}

// UserRoleSeeds lists every role with the user's current roles selected.
func UserRoleSeeds(user gql.User, roles []gql.Role) []LinkSeed {
	held := map[string]struct{}{}
	for _, r := range user.Roles {
		held[r.ID] = struct{}{}
	}
	seeds := make([]LinkSeed, 0, len(roles))
	for _, r := range roles {
		_, ok := held[r.ID]
		seeds = append(seeds, LinkSeed{ID: r.ID, Label: r.Name, Group: "roles", Selected: ok})
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Label < seeds[j].Label })
	return seeds
}

// PermissionIDs returns the ids granted to a role.
func PermissionIDs(role gql.Role) []string {
	out := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		out = append(out, p.ID)
	}
	return out
}

func RoleIDs(user gql.User) []string {
	out := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		out = append(out, r.ID)
	}
	return out
}
