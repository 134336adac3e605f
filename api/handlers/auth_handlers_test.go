package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"admin-console/core/authflow"
	"admin-console/core/reconcile"
	"admin-console/core/session"
)

func TestLoginSetsMarkerAndCSRFCookies(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	st := f.store(t)

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/auth/login", map[string]any{
		"email": "admin@example.com", "password": "secret", "callbackUrl": "/admin/users",
	}, st, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Redirect  string        `json:"redirect"`
		User      *session.User `json:"user"`
		CSRFToken string        `json:"csrf_token"`
	}
	decodeBody(t, rr, &body)
	if body.Redirect != "/admin/users" || body.User == nil || body.User.Role != "admin" {
		t.Fatalf("unexpected body %+v", body)
	}
	marker := findCookie(rr, authflow.MarkerCookieName)
	if marker == nil || marker.Value != "1" || marker.MaxAge != 0 || marker.HttpOnly {
		t.Fatalf("unexpected marker cookie %+v", marker)
	}
	csrf := findCookie(rr, authflow.CSRFCookieName)
	if csrf == nil || csrf.Value != body.CSRFToken {
		t.Fatalf("csrf cookie must match body token: %+v", csrf)
	}
	sid := findCookie(rr, SessionCookieName)
	if sid == nil || sid.Value == st.ID() || !sid.HttpOnly {
		t.Fatalf("login must issue a new session cookie, got %+v", sid)
	}
	fresh, err := f.manager.Open(context.Background(), sid.Value)
	if err != nil || fresh.ID() != sid.Value || !fresh.Authenticated() {
		t.Fatalf("rotated store must hold the session: %v", err)
	}
	if err := authflow.VerifyCSRF(f.deps.Cfg.CSRFKey, sid.Value, body.CSRFToken, CSRFMaxAge(), time.Now().UTC()); err != nil {
		t.Fatalf("csrf token must be bound to the new id: %v", err)
	}
}

func TestLoginRetiresPreviousSessionID(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	st := f.store(t)
	old := st.ID()
	f.deps.Editors.Open(old, reconcile.NewEditor(reconcile.UserRoles, "u2", "bob", nil))

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/auth/login", map[string]any{
		"email": "admin@example.com", "password": "secret",
	}, st, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if st.Authenticated() || f.manager.IsCached(old) {
		t.Fatalf("the pre-login store must be emptied and evicted")
	}
	again, err := f.manager.Open(context.Background(), old)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if again.ID() == old || again.Authenticated() {
		t.Fatalf("the pre-login id must not name a signed-in session")
	}
	if f.deps.Editors.Len() != 0 {
		t.Fatalf("editors of the old id must be dropped")
	}
}

func TestLoginRememberMeSetsMaxAge(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/auth/login", map[string]any{
		"email": "admin@example.com", "password": "secret", "remember": true,
	}, f.store(t), nil))
	marker := findCookie(rr, authflow.MarkerCookieName)
	if marker == nil || marker.MaxAge != 7*24*3600 {
		t.Fatalf("expected 7 day marker, got %+v", marker)
	}
}

func TestLoginValidationMakesNoCall(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/auth/login", map[string]any{"email": "nope"}, f.store(t), nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rr, &body)
	if body.Fields["email"] == "" || body.Fields["password"] == "" {
		t.Fatalf("expected field errors, got %+v", body.Fields)
	}
	if f.backend.calls.Load() != 0 {
		t.Fatalf("validation failure must not reach the API")
	}
}

func TestLoginRejectedShowsServerMessage(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	st := f.store(t)
	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/auth/login", map[string]any{
		"email": "admin@example.com", "password": "wrong",
	}, st, nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["error"] != "Invalid credentials" {
		t.Fatalf("unexpected error %v", body["error"])
	}
	if st.Authenticated() || findCookie(rr, SessionCookieName) != nil {
		t.Fatalf("failed login must not sign in")
	}
	if marker := findCookie(rr, authflow.MarkerCookieName); marker == nil || marker.MaxAge >= 0 {
		t.Fatalf("failed login must expire the marker, got %+v", marker)
	}
}

func TestLogoutClearsStateAndExpiresMarker(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	st := f.signedIn(t)
	f.deps.Editors.Open(st.ID(), reconcile.NewEditor(reconcile.UserRoles, "u2", "bob", nil))

	rr := httptest.NewRecorder()
	h.Logout(rr, newRequest(http.MethodPost, "/api/auth/logout", nil, st, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	decodeBody(t, rr, &body)
	if body["redirect"] != "/sign-in" {
		t.Fatalf("unexpected redirect %q", body["redirect"])
	}
	if st.Session() != nil || st.AccessToken() != "" {
		t.Fatalf("store must be cleared")
	}
	marker := findCookie(rr, authflow.MarkerCookieName)
	if marker == nil || marker.MaxAge >= 0 {
		t.Fatalf("marker must be expired, got %+v", marker)
	}
	if f.backend.logoutCalls.Load() != 1 {
		t.Fatalf("expected one logout mutation")
	}
	if f.deps.Editors.Len() != 0 {
		t.Fatalf("logout must drop open editors")
	}
}

func TestMeRequiresSession(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	rr := httptest.NewRecorder()
	h.Me(rr, newRequest(http.MethodGet, "/api/auth/me", nil, f.store(t), nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.Me(rr, newRequest(http.MethodGet, "/api/auth/me", nil, f.signedIn(t), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRegisterReturnsCreated(t *testing.T) {
	f := newFixture(t)
	h := NewAuthHandler(f.deps)
	rr := httptest.NewRecorder()
	h.Register(rr, newRequest(http.MethodPost, "/api/auth/register", map[string]any{
		"email": "new@example.com", "first_name": "New", "password": "longenough", "confirm_password": "longenough",
	}, nil, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	h.Register(rr, newRequest(http.MethodPost, "/api/auth/register", map[string]any{
		"email": "new@example.com", "first_name": "New", "password": "longenough", "confirm_password": "different",
	}, nil, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("mismatched confirmation must fail validation, got %d", rr.Code)
	}
}

func TestBuildMenuFollowsRequirements(t *testing.T) {
	cases := []struct {
		name string
		user *session.User
		want []string
	}{
		{"admin sees everything", &session.User{Role: "admin"}, []string{"overview", "users", "roles", "permissions"}},
		{"user with user:read", &session.User{Role: "user", Permissions: []string{"user:read"}}, []string{"overview", "users"}},
		{"user with role:read", &session.User{Role: "user", Permissions: []string{"role:read"}}, []string{"overview", "roles", "permissions"}},
		{"plain user", &session.User{Role: "user"}, []string{"overview"}},
	}
	for _, tc := range cases {
		var got []string
		for _, item := range BuildMenu(&session.Session{User: tc.user}) {
			got = append(got, item.Name)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHandlersWithoutStoreAnswerNotReady(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthHandler(f.deps)
	users := NewUsersHandler(f.deps)
	editors := NewEditorsHandler(f.deps)
	calls := []struct {
		name string
		run  func(w http.ResponseWriter)
	}{
		{"me", func(w http.ResponseWriter) { auth.Me(w, newRequest(http.MethodGet, "/api/auth/me", nil, nil, nil)) }},
		{"login", func(w http.ResponseWriter) {
			auth.Login(w, newRequest(http.MethodPost, "/api/auth/login", map[string]any{"email": "admin@example.com", "password": "secret"}, nil, nil))
		}},
		{"users", func(w http.ResponseWriter) { users.List(w, newRequest(http.MethodGet, "/api/users", nil, nil, nil)) }},
		{"editor", func(w http.ResponseWriter) {
			editors.OpenUserRoles(w, newRequest(http.MethodPost, "/", nil, nil, map[string]string{"id": "u2"}))
		}},
	}
	for _, c := range calls {
		rr := httptest.NewRecorder()
		c.run(rr)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", c.name, rr.Code)
		}
		var body map[string]any
		decodeBody(t, rr, &body)
		if body["error"] != "session not ready" {
			t.Fatalf("%s: unexpected body %v", c.name, body)
		}
	}
	if f.backend.calls.Load() != 0 {
		t.Fatalf("an unready session must not reach the API")
	}
}
