package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"admin-console/core/gql"
	"admin-console/core/reconcile"
)

type batchResponse struct {
	Applied []reconcile.Outcome `json:"applied"`
	Failed  []reconcile.Outcome `json:"failed"`
	Error   string              `json:"error"`
}

func TestSetPermissionsAppliesDiff(t *testing.T) {
	f := newFixture(t)
	h := NewRolesHandler(f.deps)
	rr := httptest.NewRecorder()
	h.SetPermissions(rr, newRequest(http.MethodPut, "/api/roles/r1/permissions", map[string]any{"selected": []string{"p2", "p3"}}, f.signedIn(t), map[string]string{"id": "r1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res batchResponse
	decodeBody(t, rr, &res)
	if len(res.Applied) != 3 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.backend.rolePermissions("r1"); !reflect.DeepEqual(got, []string{"p2", "p3"}) {
		t.Fatalf("unexpected remote set %v", got)
	}
}

func TestSetPermissionsPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.failLink["p3"] = "denied"
	h := NewRolesHandler(f.deps)
	rr := httptest.NewRecorder()
	h.SetPermissions(rr, newRequest(http.MethodPut, "/", map[string]any{"selected": []string{"p1", "p2", "p3"}}, f.signedIn(t), map[string]string{"id": "r1"}))
	var res batchResponse
	decodeBody(t, rr, &res)
	if len(res.Applied) != 1 || len(res.Failed) != 1 || res.Failed[0].LinkID != "p3" || res.Error == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.backend.rolePermissions("r1"); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Fatalf("applied siblings must stay: %v", got)
	}
}

func TestSetRolesThroughOpenEditor(t *testing.T) {
	f := newFixture(t)
	st := f.signedIn(t)
	params := map[string]string{"id": "u2"}
	rr := httptest.NewRecorder()
	NewEditorsHandler(f.deps).OpenUserRoles(rr, newRequest(http.MethodPost, "/", nil, st, params))

	rr = httptest.NewRecorder()
	NewUsersHandler(f.deps).SetRoles(rr, newRequest(http.MethodPut, "/", map[string]any{"selected": []string{"r1", "r2"}}, st, params))
	var res batchResponse
	decodeBody(t, rr, &res)
	if len(res.Applied) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	ed := f.deps.Editors.Get(st.ID(), reconcile.UserRoles, "u2")
	if !reflect.DeepEqual(ed.Selected(), []string{"r1", "r2"}) || !ed.HasChanges() {
		t.Fatalf("editor must track the bulk change: %v", ed.Selected())
	}
}

func TestSetRolesUnknownUser(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	NewUsersHandler(f.deps).SetRoles(rr, newRequest(http.MethodPut, "/", map[string]any{"selected": []string{}}, f.signedIn(t), map[string]string{"id": "ghost"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateUserValidatesStatus(t *testing.T) {
	f := newFixture(t)
	h := NewUsersHandler(f.deps)
	rr := httptest.NewRecorder()
	h.Update(rr, newRequest(http.MethodPut, "/", map[string]any{"status": "banned"}, f.signedIn(t), map[string]string{"id": "u2"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.Update(rr, newRequest(http.MethodPut, "/", map[string]any{}, f.signedIn(t), map[string]string{"id": "u2"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty update must be rejected, got %d", rr.Code)
	}
	if f.backend.calls.Load() != 0 {
		t.Fatalf("validation failures must not reach the API")
	}
}

func TestSetPasswordNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	NewUsersHandler(f.deps).SetPassword(rr, newRequest(http.MethodPost, "/", map[string]any{"password": "longenough", "confirm_password": "other"}, f.signedIn(t), map[string]string{"id": "u2"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	NewRolesHandler(f.deps).Create(rr, newRequest(http.MethodPost, "/", map[string]any{"name": "ops", "admin": true}, f.signedIn(t), nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

type pagedUsers struct {
	total int
	calls int
}

func (p *pagedUsers) GetUsers(ctx context.Context, opts gql.ListOptions) (gql.UserPage, error) {
	p.calls++
	page := gql.UserPage{MetaData: gql.MetaData{TotalRows: p.total}}
	for i := opts.Offset; i < p.total && i < opts.Offset+opts.Limit; i++ {
		page.Data = append(page.Data, gql.User{ID: fmt.Sprintf("u%03d", i)})
	}
	return page, nil
}

func TestFindUserScansPages(t *testing.T) {
	src := &pagedUsers{total: 250}
	u, err := findUser(context.Background(), src, "u210")
	if err != nil || u.ID != "u210" {
		t.Fatalf("expected u210, got %+v %v", u, err)
	}
	if src.calls != 3 {
		t.Fatalf("expected 3 page loads, got %d", src.calls)
	}
	src = &pagedUsers{total: 5}
	if _, err := findUser(context.Background(), src, "missing"); !errors.Is(err, errUserNotFound) {
		t.Fatalf("expected errUserNotFound, got %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("short page must stop the scan, got %d calls", src.calls)
	}
}
