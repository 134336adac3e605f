package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"admin-console/config"
	"admin-console/core/authflow"
	"admin-console/core/gql"
	"admin-console/core/rbac"
	"admin-console/core/reconcile"
	"admin-console/core/session"
	"admin-console/core/utils"
)

// backend is an in-memory GraphQL admin API.
type backend struct {
	mu          sync.Mutex
	token       string
	me          map[string]any
	perms       []gql.Permission
	roles       map[string]map[string]bool
	roleNames   map[string]string
	users       []gql.User
	failLink    map[string]string
	failRoles   bool
	unauth      bool
	ops         []string
	calls       atomic.Int32
	logoutCalls atomic.Int32
}

func newBackend() *backend {
	return &backend{
		token: "tok-1",
		me: map[string]any{
			"id": "u1", "email": "admin@example.com", "first_name": "Ada",
			"role": "admin", "permissions": []string{"user:read", "role:read"}, "status": "active",
		},
		perms: []gql.Permission{
			{ID: "p1", Module: "user", Action: "read"},
			{ID: "p2", Module: "user", Action: "update"},
			{ID: "p3", Module: "role", Action: "read"},
		},
		roles:     map[string]map[string]bool{"r1": {"p1": true}, "r2": {}},
		roleNames: map[string]string{"r1": "admin", "r2": "user"},
		users: []gql.User{
			{ID: "u1", Email: "admin@example.com", Status: "active", Roles: []gql.RoleRef{{ID: "r1", Name: "admin"}}},
			{ID: "u2", Email: "bob@example.com", Status: "invited"},
		},
		failLink: map[string]string{},
	}
}

func (b *backend) rolePermissions(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []string{}
	for p := range b.roles[id] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (b *backend) userRoles(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.ID == id {
			return reconcile.RoleIDs(u)
		}
	}
	return nil
}

// takeOps returns the operation names seen since the last call, sorted.
func (b *backend) takeOps() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.ops
	b.ops = nil
	sort.Strings(out)
	return out
}

func gqlErr(msg, code string) map[string]any {
	item := map[string]any{"message": msg}
	if code != "" {
		item["extensions"] = map[string]any{"code": code}
	}
	return map[string]any{"errors": []map[string]any{item}}
}

func (b *backend) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		var op gql.Operation
		_ = json.NewDecoder(r.Body).Decode(&op)
		w.Header().Set("Content-Type", "application/json")
		write := func(v any) { _ = json.NewEncoder(w).Encode(v) }
		if b.unauth && r.Header.Get("Authorization") != "" {
			write(gqlErr("Unauthorized", gql.CodeUnauthenticated))
			return
		}
		input, _ := op.Variables["input"].(map[string]any)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.ops = append(b.ops, op.Name)
		switch op.Name {
		case "Login":
			if input["password"] != "secret" {
				write(gqlErr("GraphQL error: Invalid credentials", ""))
				return
			}
			write(map[string]any{"data": map[string]any{"login": map[string]any{"access_token": b.token, "refresh_token": "r"}}})
		case "CurrentUser":
			write(map[string]any{"data": map[string]any{"user": b.me}})
		case "Logout":
			b.logoutCalls.Add(1)
			write(map[string]any{"data": map[string]any{"logout": map[string]any{"success": true}}})
		case "GetRoles":
			if b.failRoles {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			write(map[string]any{"data": map[string]any{"getRoles": b.rolePage()}})
		case "DeleteRole":
			id, _ := op.Variables["entity_id"].(string)
			delete(b.roles, id)
			write(map[string]any{"data": map[string]any{"deleteRole": map[string]any{"success": true}}})
		case "GetPermissions":
			write(map[string]any{"data": map[string]any{"getPermissions": gql.PermissionPage{
				Data: b.perms, MetaData: gql.MetaData{TotalRows: len(b.perms), FilteredRows: len(b.perms)},
			}}})
		case "GetUsers":
			write(map[string]any{"data": map[string]any{"getUsers": b.userPage(op.Variables)}})
		case "AssignPermission", "RevokePermission":
			role, perm := input["role_id"].(string), input["permission_id"].(string)
			if msg := b.failLink[perm]; msg != "" {
				write(gqlErr(msg, ""))
				return
			}
			if op.Name == "AssignPermission" {
				b.roles[role][perm] = true
				write(map[string]any{"data": map[string]any{"assignPermission": map[string]any{"id": role + perm, "role_id": role, "permission_id": perm}}})
				return
			}
			delete(b.roles[role], perm)
			write(map[string]any{"data": map[string]any{"revokePermission": map[string]any{"success": true}}})
		case "AssignRole", "RevokeRole":
			role, user := input["role_id"].(string), input["user_id"].(string)
			if msg := b.failLink[role]; msg != "" {
				write(gqlErr(msg, ""))
				return
			}
			for i := range b.users {
				if b.users[i].ID != user {
					continue
				}
				kept := []gql.RoleRef{}
				for _, ref := range b.users[i].Roles {
					if ref.ID != role {
						kept = append(kept, ref)
					}
				}
				if op.Name == "AssignRole" {
					kept = append(kept, gql.RoleRef{ID: role, Name: b.roleNames[role]})
				}
				b.users[i].Roles = kept
			}
			write(map[string]any{"data": map[string]any{"assignRole": map[string]any{"id": role + user, "role_id": role, "user_id": user}, "revokeRole": map[string]any{"success": true}}})
		default:
			write(map[string]any{"data": map[string]any{}})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (b *backend) rolePage() gql.RolePage {
	ids := make([]string, 0, len(b.roles))
	for id := range b.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	page := gql.RolePage{MetaData: gql.MetaData{TotalRows: len(ids), FilteredRows: len(ids)}}
	for _, id := range ids {
		role := gql.Role{ID: id, Name: b.roleNames[id], Permissions: []gql.Permission{}}
		for _, p := range b.perms {
			if b.roles[id][p.ID] {
				role.Permissions = append(role.Permissions, p)
			}
		}
		page.Data = append(page.Data, role)
	}
	return page
}

func (b *backend) userPage(vars map[string]any) gql.UserPage {
	opts, _ := vars["options"].(map[string]any)
	limit, offset := 10, 0
	if v, ok := opts["limit"].(float64); ok {
		limit = int(v)
	}
	if v, ok := opts["offset"].(float64); ok {
		offset = int(v)
	}
	page := gql.UserPage{MetaData: gql.MetaData{TotalRows: len(b.users), FilteredRows: len(b.users)}, Data: []gql.User{}}
	for i := offset; i < len(b.users) && i < offset+limit; i++ {
		page.Data = append(page.Data, b.users[i])
	}
	return page
}

type fixture struct {
	backend *backend
	deps    Deps
	manager *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newBackend()
	srv := b.server(t)
	client := gql.NewClient(gql.Options{Endpoint: srv.URL})
	policy, err := rbac.NewPolicy(nil)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	logger := utils.NewLogger()
	cfg := &config.AppConfig{CSRFKey: "csrf-test-key", Editors: config.EditorsConfig{MaxParallel: 2}}
	manager := session.NewManager(session.ManagerOptions{Persister: session.NewMemoryPersister()})
	return &fixture{
		backend: b,
		manager: manager,
		deps: Deps{
			Cfg:      cfg,
			Client:   client,
			Auth:     authflow.NewService(client, policy, logger, authflow.Options{}),
			Sessions: manager,
			Policy:   policy,
			Editors:  reconcile.NewRegistry(),
			Logger:   logger,
		},
	}
}

func (f *fixture) store(t *testing.T) *session.Store {
	t.Helper()
	st, err := f.manager.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return st
}

func (f *fixture) signedIn(t *testing.T) *session.Store {
	t.Helper()
	st := f.store(t)
	st.SetTokens(session.Tokens{AccessToken: f.backend.token})
	st.SetSession(session.Session{User: &session.User{
		ID: "u1", Email: "admin@example.com", Role: "admin", Permissions: []string{"user:read", "role:read"},
	}})
	return st
}

func newRequest(method, path string, body any, st *session.Store, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := req.Context()
	if st != nil {
		ctx = session.WithStore(ctx, st)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
