package rbac

import (
	"context"
	"reflect"
	"testing"

	"admin-console/core/gql"
)

func TestPolicyServesGrantsFromEnforcer(t *testing.T) {
	p, err := NewPolicy([]CatalogRole{
		{Name: "admin", Permissions: []Permission{"user:update", "user:read", "role:read"}},
		{Name: "user", Permissions: []Permission{"user:read"}},
		{Name: "guest"},
	})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if got := p.PermissionsForRole("admin"); !reflect.DeepEqual(got, []string{"role:read", "user:read", "user:update"}) {
		t.Fatalf("unexpected admin permissions: %v", got)
	}
	if ok, _ := p.enforcer.Enforce("user", "user", "update"); ok {
		t.Fatal("user must not have user:update")
	}
	if !p.Known("guest") || len(p.PermissionsForRole("guest")) != 0 {
		t.Fatal("a role without grants is still part of the catalog")
	}
	if p.Known("ghost") || len(p.PermissionsForRole("ghost")) != 0 {
		t.Fatal("unknown role must have nothing")
	}
}

func TestPolicyWithoutEnforcerKnowsNothing(t *testing.T) {
	p, _ := NewPolicy([]CatalogRole{{Name: "user", Permissions: []Permission{"user:read"}}})
	p.enforcer = nil
	if p.Known("user") || len(p.PermissionsForRole("user")) != 0 {
		t.Fatal("grants must be read from the enforcer")
	}
}

func TestPolicyReplace_RebuildsEnforcer(t *testing.T) {
	p, _ := NewPolicy([]CatalogRole{{Name: "admin", Permissions: []Permission{"user:read"}}})
	if err := p.Replace([]CatalogRole{
		{Name: "custom", Permissions: []Permission{"permission:read", "permission:read", "broken"}},
		{Name: "custom", Permissions: []Permission{"permission:read"}},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := p.PermissionsForRole("custom"); !reflect.DeepEqual(got, []string{"permission:read"}) {
		t.Fatalf("unexpected permissions: %v", got)
	}
	if !p.Known("custom") || p.Known("admin") {
		t.Fatal("replace must drop the previous snapshot")
	}
}

type fakeCatalog struct {
	page gql.RolePage
	opts gql.ListOptions
}

func (f *fakeCatalog) GetRoles(ctx context.Context, opts gql.ListOptions) (gql.RolePage, error) {
	f.opts = opts
	return f.page, nil
}

func TestRefreshFromCatalog(t *testing.T) {
	catalog := &fakeCatalog{page: gql.RolePage{Data: []gql.Role{
		{ID: "1", Name: "developer", Permissions: []gql.Permission{{ID: "p1", Module: "role", Action: "read"}, {ID: "p2", Module: "user", Action: "read"}}},
		{ID: "2", Name: "user"},
	}}}
	p, _ := NewPolicy(nil)
	if err := RefreshFromCatalog(context.Background(), catalog, p); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if catalog.opts.Limit != catalogPageSize {
		t.Fatalf("expected full catalog page, got %+v", catalog.opts)
	}
	if got := p.PermissionsForRole("developer"); !reflect.DeepEqual(got, []string{"role:read", "user:read"}) {
		t.Fatalf("unexpected developer permissions: %v", got)
	}
	if !p.Known("user") || p.Known("admin") {
		t.Fatal("unexpected role set after refresh")
	}
}

func TestRefreshFromCatalogSkipsPartialPage(t *testing.T) {
	catalog := &fakeCatalog{page: gql.RolePage{
		Data:     []gql.Role{{ID: "1", Name: "developer"}},
		MetaData: gql.MetaData{TotalRows: 900},
	}}
	p, _ := NewPolicy([]CatalogRole{{Name: "admin"}})
	if err := RefreshFromCatalog(context.Background(), catalog, p); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !p.Known("admin") || p.Known("developer") {
		t.Fatal("a partial catalog page must not replace the policy")
	}
}
