package session

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func newTestManager(t *testing.T, p Persister) *Manager {
	t.Helper()
	sealer, err := NewSealer("test-seal-secret-0123456789abcdefgh", "next-admin-auth")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	return NewManager(ManagerOptions{Persister: p, Sealer: sealer, TTL: time.Hour})
}

func adminSession() Session {
	return Session{User: &User{ID: "1", Email: "admin@example.com", Role: "admin", Permissions: []string{"user:read"}}}
}

func TestStoreClearResetsState(t *testing.T) {
	m := newTestManager(t, NewMemoryPersister())
	s, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SetTokens(Tokens{AccessToken: "tok", RefreshToken: "ref"})
	s.SetSession(adminSession())
	if !s.Authenticated() {
		t.Fatalf("expected authenticated store")
	}
	s.Clear()
	st := s.State()
	if st.Tokens != nil || st.Session != nil {
		t.Fatalf("expected cleared state, got %+v", st)
	}
	if s.AccessToken() != "" || s.Authenticated() {
		t.Fatalf("expected no token after clear")
	}
}

func TestStoreFlushAndHydrateRoundTrip(t *testing.T) {
	p := NewMemoryPersister()
	m := newTestManager(t, p)
	ctx := context.Background()
	s, err := m.Open(ctx, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SetTokens(Tokens{AccessToken: "tok"})
	s.SetSession(adminSession())
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	raw, _ := p.Load(ctx, m.Namespace()+":"+s.ID())
	if len(raw) == 0 {
		t.Fatalf("expected persisted record")
	}
	if bytes.Contains(raw, []byte("tok")) {
		t.Fatalf("persisted record must be sealed")
	}

	m.Forget(s.ID())
	again, err := m.Open(ctx, s.ID())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !again.Hydrated() {
		t.Fatalf("expected hydrated store")
	}
	sess := again.Session()
	if again.AccessToken() != "tok" || sess == nil || sess.User.Role != "admin" {
		t.Fatalf("unexpected hydrated state: %+v", again.State())
	}
}

func TestStoreFlushAfterClearDeletesRecord(t *testing.T) {
	p := NewMemoryPersister()
	m := newTestManager(t, p)
	ctx := context.Background()
	s, _ := m.Open(ctx, "")
	s.SetTokens(Tokens{AccessToken: "tok"})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected one record, got %d", p.Len())
	}
	s.Clear()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if p.Len() != 0 {
		t.Fatalf("expected record deleted, got %d", p.Len())
	}
}

func TestHydrateDropsExpiredSession(t *testing.T) {
	p := NewMemoryPersister()
	m := newTestManager(t, p)
	ctx := context.Background()
	s, _ := m.Open(ctx, "")
	past := time.Now().Add(-time.Minute)
	sess := adminSession()
	sess.ExpiresAt = &past
	s.SetTokens(Tokens{AccessToken: "tok"})
	s.SetSession(sess)
	// write directly so the persister's own expiry does not hide the record
	blob, err := m.sealer.Seal(s.State())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	_ = p.Save(ctx, m.Namespace()+":"+s.ID(), blob, time.Time{})
	m.Forget(s.ID())
	again, _ := m.Open(ctx, s.ID())
	if again.Session() != nil || again.AccessToken() != "" {
		t.Fatalf("expected expired session to hydrate empty")
	}
}

func TestOpenIssuesFreshIDForGarbage(t *testing.T) {
	m := newTestManager(t, nil)
	s, err := m.Open(context.Background(), "not-a-uuid")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.ID() == "not-a-uuid" || !ValidID(s.ID()) {
		t.Fatalf("expected fresh id, got %q", s.ID())
	}
}

func TestOpenRefusesUnknownID(t *testing.T) {
	m := newTestManager(t, NewMemoryPersister())
	planted := "6f1c8a2e-3b4d-4c5e-9f60-7a8b9c0d1e2f"
	s, err := m.Open(context.Background(), planted)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.ID() == planted || m.IsCached(planted) {
		t.Fatalf("an id never issued must not be adopted, got %q", s.ID())
	}
	again, _ := m.Open(context.Background(), s.ID())
	if again != s {
		t.Fatalf("an issued id must map to its cached store")
	}
}

func TestRotateMovesStateToFreshID(t *testing.T) {
	p := NewMemoryPersister()
	m := newTestManager(t, p)
	ctx := context.Background()
	s, _ := m.Open(ctx, "")
	s.SetTokens(Tokens{AccessToken: "tok"})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	s.SetSession(adminSession())

	fresh, err := m.Rotate(ctx, s)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if fresh.ID() == s.ID() || !fresh.Authenticated() || fresh.AccessToken() != "tok" {
		t.Fatalf("unexpected rotated store %q %+v", fresh.ID(), fresh.State())
	}
	if s.Authenticated() || m.IsCached(s.ID()) || !m.IsCached(fresh.ID()) {
		t.Fatalf("old store must be emptied and evicted")
	}
	if old, _ := p.Load(ctx, m.Namespace()+":"+s.ID()); len(old) != 0 {
		t.Fatalf("old record must be deleted")
	}
	if p.Len() != 1 {
		t.Fatalf("expected only the rotated record, got %d", p.Len())
	}

	m.Forget(fresh.ID())
	back, _ := m.Open(ctx, fresh.ID())
	if back.ID() != fresh.ID() || back.Session() == nil {
		t.Fatalf("rotated record must hydrate after eviction")
	}
}

func TestSealerRejectsTamperedRecord(t *testing.T) {
	sealer, _ := NewSealer("test-seal-secret-0123456789abcdefgh", "ns")
	blob, err := sealer.Seal(State{Tokens: &Tokens{AccessToken: "tok"}})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	blob[len(blob)-1] ^= 0xff
	if _, err := sealer.Open(blob); err == nil {
		t.Fatalf("expected tamper detection")
	}
	other, _ := NewSealer("test-seal-secret-0123456789abcdefgh", "other-ns")
	blob, _ = sealer.Seal(State{Tokens: &Tokens{AccessToken: "tok"}})
	if _, err := other.Open(blob); err == nil {
		t.Fatalf("expected namespace-bound key")
	}
}

func TestManagerSweepAndPurge(t *testing.T) {
	p := NewMemoryPersister()
	now := time.Now()
	m := NewManager(ManagerOptions{Persister: p, TTL: time.Minute, Now: func() time.Time { return now }})
	ctx := context.Background()
	s, _ := m.Open(ctx, "")
	s.SetTokens(Tokens{AccessToken: "tok"})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if n := m.SweepIdle(time.Minute); n != 1 {
		t.Fatalf("expected 1 idle store evicted, got %d", n)
	}
	n, err := m.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged record, got %d (%v)", n, err)
	}
}
