package rbac

import (
	"sort"
	"strings"
)

type RoleName string

const (
	RoleAdmin     RoleName = "admin"
	RoleDeveloper RoleName = "developer"
	RoleModerator RoleName = "moderator"
	RoleUser      RoleName = "user"
)

// rolePriority is the order used when a token carries several roles.
var rolePriority = []RoleName{RoleAdmin, RoleDeveloper, RoleModerator, RoleUser}

// PickRole chooses the single effective role from a claim list: the highest
// known role by priority, else the first listed value, else "user".
func PickRole(claimed []string) RoleName {
	for _, r := range rolePriority {
		for _, c := range claimed {
			if c == string(r) {
				return r
			}
		}
	}
	if len(claimed) > 0 && claimed[0] != "" {
		return RoleName(claimed[0])
	}
	return RoleUser
}

// Permission is the canonical "module:action" form.
type Permission string

func NewPermission(module, action string) Permission {
	return Permission(module + ":" + action)
}

func (p Permission) Split() (module, action string) {
	module, action, _ = strings.Cut(string(p), ":")
	return module, action
}

type PermissionSet map[Permission]struct{}

func (s PermissionSet) Has(module, action string) bool {
	_, ok := s[NewPermission(module, action)]
	return ok
}

func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}
