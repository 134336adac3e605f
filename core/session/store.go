package session

import (
	"context"
	"sync"
	"time"
)

// Store holds one console session's auth state. Mutations are pure and
// in-memory; Hydrate and Flush move the state through a Persister.
type Store struct {
	mu        sync.RWMutex
	id        string
	key       string
	state     State
	hydrated  bool
	restored  bool
	dirty     bool
	ttl       time.Duration
	persister Persister
	sealer    *Sealer
	now       func() time.Time
}

func (s *Store) ID() string {
	return s.id
}

func (s *Store) SetTokens(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tokens = &t
	s.dirty = true
}

func (s *Store) SetSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Session = sess.Clone()
	s.dirty = true
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	s.dirty = true
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Session.Clone()
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Tokens == nil {
		return ""
	}
	return s.state.Tokens.AccessToken
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Tokens != nil && s.state.Tokens.AccessToken != "" &&
		s.state.Session != nil && s.state.Session.User != nil
}

func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Hydrate loads the persisted record once. Missing, expired or unreadable
// records hydrate to an empty state.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return nil
	}
	if s.persister == nil {
		s.hydrated = true
		return nil
	}
	blob, err := s.persister.Load(ctx, s.key)
	if err != nil {
		return err
	}
	state := State{}
	if len(blob) > 0 {
		if decoded, derr := s.sealer.Open(blob); derr == nil {
			state = decoded
		}
	}
	if state.Session != nil && state.Session.ExpiresAt != nil && !state.Session.ExpiresAt.After(s.now()) {
		state = State{}
	}
	s.state = state
	s.hydrated = true
	s.restored = state.Tokens != nil || state.Session != nil
	s.dirty = false
	return nil
}

// Flush writes pending changes. A cleared state deletes the record.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hydrated {
		return ErrNotHydrated
	}
	if !s.dirty || s.persister == nil {
		s.dirty = false
		return nil
	}
	if s.state.Tokens == nil && s.state.Session == nil {
		if err := s.persister.Delete(ctx, s.key); err != nil {
			return err
		}
		s.dirty = false
		return nil
	}
	expires := s.now().Add(s.ttl)
	if s.state.Session != nil && s.state.Session.ExpiresAt != nil {
		expires = *s.state.Session.ExpiresAt
	}
	blob, err := s.sealer.Seal(s.state)
	if err != nil {
		return err
	}
	if err := s.persister.Save(ctx, s.key, blob, expires); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
