package gql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capturedRequest struct {
	Auth string
	Body Operation
}

func newGraphQLServer(t *testing.T, handler func(op Operation) (int, any)) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	seen := []capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var op Operation
		_ = json.NewDecoder(r.Body).Decode(&op)
		mu.Lock()
		seen = append(seen, capturedRequest{Auth: r.Header.Get("Authorization"), Body: op})
		mu.Unlock()
		status, payload := handler(op)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

type fakeTokens struct {
	token   string
	cleared int
}

func (f *fakeTokens) AccessToken() string { return f.token }
func (f *fakeTokens) Clear() {
	f.token = ""
	f.cleared++
}

func TestLoginSendsInputAndDecodesTokens(t *testing.T) {
	srv, seen := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{"login": map[string]any{"access_token": "a.b.c", "refresh_token": "r"}}}
	})
	c := NewClient(Options{Endpoint: srv.URL})
	tokens, err := c.For(nil).Login(context.Background(), LoginInput{Email: "admin@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.AccessToken != "a.b.c" || tokens.RefreshToken != "r" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	req := (*seen)[0]
	if req.Auth != "" {
		t.Fatalf("login must not send authorization, got %q", req.Auth)
	}
	input, _ := req.Body.Variables["input"].(map[string]any)
	if input["email"] != "admin@example.com" || input["password"] != "secret" {
		t.Fatalf("unexpected variables: %v", req.Body.Variables)
	}
}

func TestLoginMissingToken(t *testing.T) {
	srv, _ := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{"login": map[string]any{"access_token": ""}}}
	})
	c := NewClient(Options{Endpoint: srv.URL})
	if _, err := c.For(nil).Login(context.Background(), LoginInput{}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestRawTokenInAuthorizationHeader(t *testing.T) {
	srv, seen := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{"user": map[string]any{"id": "1", "email": "a@example.com", "role": "admin"}}}
	})
	c := NewClient(Options{Endpoint: srv.URL})
	user, err := c.For(&fakeTokens{token: "raw-token"}).CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user == nil || user.Role != "admin" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if got := (*seen)[0].Auth; got != "raw-token" {
		t.Fatalf("expected raw token header, got %q", got)
	}
}

func TestUnauthenticatedClearsSession(t *testing.T) {
	srv, _ := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusOK, map[string]any{
			"data":   nil,
			"errors": []map[string]any{{"message": "not signed in", "extensions": map[string]any{"code": "UNAUTHENTICATED"}}},
		}
	})
	c := NewClient(Options{Endpoint: srv.URL})
	tokens := &fakeTokens{token: "expired"}
	hooked := false
	_, err := c.For(tokens).OnUnauthenticated(func() { hooked = true }).GetRoles(context.Background(), DefaultListOptions)
	if !IsUnauthenticated(err) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
	if tokens.cleared != 1 || !hooked {
		t.Fatalf("expected session cleared and hook called, cleared=%d hooked=%v", tokens.cleared, hooked)
	}

	anonymous := &fakeTokens{}
	_, _ = c.For(anonymous).GetRoles(context.Background(), DefaultListOptions)
	if anonymous.cleared != 0 {
		t.Fatalf("session without a token must not be cleared")
	}
}

func TestServerErrorsKeepMessage(t *testing.T) {
	srv, _ := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusBadRequest, map[string]any{"errors": []map[string]any{{"message": "GraphQL error: Role already exists"}}}
	})
	c := NewClient(Options{Endpoint: srv.URL})
	_, err := c.For(&fakeTokens{token: "t"}).CreateRole(context.Background(), "admin")
	if !IsServerError(err) {
		t.Fatalf("expected server error, got %v", err)
	}
	if Message(err) != "Role already exists" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestTransportFailureAndBreaker(t *testing.T) {
	srv, seen := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusBadGateway, map[string]any{"message": "upstream down"}
	})
	var outcomes []string
	c := NewClient(Options{
		Endpoint:        srv.URL,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
		Observer: func(op string, took time.Duration, outcome string) {
			outcomes = append(outcomes, op+":"+outcome)
		},
	})
	api := c.For(&fakeTokens{token: "t"})
	for i := 0; i < 2; i++ {
		if _, err := api.GetPermissions(context.Background(), DefaultListOptions); !errors.Is(err, ErrTransport) {
			t.Fatalf("attempt %d: expected transport error, got %v", i, err)
		}
	}
	if _, err := api.GetPermissions(context.Background(), DefaultListOptions); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if len(*seen) != 2 {
		t.Fatalf("open breaker must not reach the server, saw %d calls", len(*seen))
	}
	if len(outcomes) != 3 || outcomes[0] != "GetPermissions:transport_error" {
		t.Fatalf("unexpected observed outcomes: %v", outcomes)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	c := NewClient(Options{Endpoint: srv.URL})
	if _, err := c.For(&fakeTokens{token: "t"}).CurrentUser(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeUsesRoleAndPermissionIDs(t *testing.T) {
	srv, seen := newGraphQLServer(t, func(op Operation) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{"revokePermission": map[string]any{"success": true}}}
	})
	c := NewClient(Options{Endpoint: srv.URL})
	if err := c.For(&fakeTokens{token: "t"}).RevokePermission(context.Background(), "r1", "p1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	body := (*seen)[0].Body
	if body.Name != "RevokePermission" {
		t.Fatalf("unexpected operation %q", body.Name)
	}
	input, _ := body.Variables["input"].(map[string]any)
	if input["role_id"] != "r1" || input["permission_id"] != "p1" {
		t.Fatalf("unexpected input: %v", input)
	}
}
