package rbac

import (
	"fmt"
	"sort"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// catalogMember groups every role of the last catalog snapshot, so roles
// without grants are still known.
const catalogMember = "catalog"

// CatalogRole is one role of the remote catalog with its granted permissions.
type CatalogRole struct {
	Name        string
	Permissions []Permission
}

// Policy caches the remote role catalog in a casbin enforcer so claim-derived
// sessions can be given permissions without a profile query.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func NewPolicy(roles []CatalogRole) (*Policy, error) {
	p := &Policy{}
	if err := p.Replace(roles); err != nil {
		return nil, err
	}
	return p, nil
}

// Known reports whether the catalog holds the role at all.
func (p *Policy) Known(role string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.enforcer == nil || role == "" {
		return false
	}
	ok, err := p.enforcer.HasGroupingPolicy(role, catalogMember)
	return err == nil && ok
}

// PermissionsForRole returns the role's grants as sorted "module:action" strings.
func (p *Policy) PermissionsForRole(role string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := []string{}
	if p.enforcer == nil || role == "" {
		return out
	}
	rules, err := p.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return out
	}
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		out = append(out, string(NewPermission(rule[1], rule[2])))
	}
	sort.Strings(out)
	return out
}

// Replace rebuilds the enforcer from a fresh catalog snapshot.
func (p *Policy) Replace(roles []CatalogRole) error {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return fmt.Errorf("rbac enforcer: %w", err)
	}
	rules := make([][]string, 0)
	members := make([][]string, 0, len(roles))
	seenRole := map[string]struct{}{}
	seen := map[[2]string]struct{}{}
	for _, r := range roles {
		if r.Name == "" {
			continue
		}
		if _, dup := seenRole[r.Name]; !dup {
			seenRole[r.Name] = struct{}{}
			members = append(members, []string{r.Name, catalogMember})
		}
		for _, perm := range r.Permissions {
			key := [2]string{r.Name, string(perm)}
			if _, dup := seen[key]; dup {
				continue
			}
			mod, act := perm.Split()
			if mod == "" || act == "" {
				continue
			}
			seen[key] = struct{}{}
			rules = append(rules, []string{r.Name, mod, act})
		}
	}
	if len(members) > 0 {
		if _, err := e.AddGroupingPolicies(members); err != nil {
			return fmt.Errorf("rbac roles: %w", err)
		}
	}
	if len(rules) > 0 {
		if _, err := e.AddPolicies(rules); err != nil {
			return fmt.Errorf("rbac policies: %w", err)
		}
	}
	p.mu.Lock()
	p.enforcer = e
	p.mu.Unlock()
	return nil
}
