package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

type ManagerOptions struct {
	Namespace string
	TTL       time.Duration
	Persister Persister
	Sealer    *Sealer
	Now       func() time.Time
}

type cachedStore struct {
	store    *Store
	lastSeen time.Time
}

// Manager owns the per-console-session stores. It is created at bootstrap and
// closed on shutdown; nothing in the process holds a global store.
type Manager struct {
	mu        sync.Mutex
	namespace string
	ttl       time.Duration
	persister Persister
	sealer    *Sealer
	now       func() time.Time
	stores    map[string]*cachedStore
}

func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		namespace: opts.Namespace,
		ttl:       opts.TTL,
		persister: opts.Persister,
		sealer:    opts.Sealer,
		now:       opts.Now,
		stores:    map[string]*cachedStore{},
	}
	if m.namespace == "" {
		m.namespace = "next-admin-auth"
	}
	if m.ttl <= 0 {
		m.ttl = 24 * time.Hour
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Manager) Namespace() string {
	return m.namespace
}

func (m *Manager) key(id string) string {
	return m.namespace + ":" + id
}

// NewID returns a fresh opaque console session id.
func NewID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	_, err := uuid.FromString(id)
	return err == nil
}

// Open returns the hydrated store for id. Only ids this process issued or
// that carry a live persisted record are adopted; anything else gets a new
// store with a fresh id, which the caller must hand back to the browser.
func (m *Manager) Open(ctx context.Context, id string) (*Store, error) {
	if ValidID(id) {
		m.mu.Lock()
		cs, ok := m.stores[id]
		if ok {
			cs.lastSeen = m.now()
		}
		m.mu.Unlock()
		if ok {
			if err := cs.store.Hydrate(ctx); err != nil {
				return nil, err
			}
			return cs.store, nil
		}
		st := m.newStore(id)
		if err := st.Hydrate(ctx); err != nil {
			return nil, err
		}
		if st.restored {
			return m.adopt(st), nil
		}
	}
	return m.issue()
}

func (m *Manager) issue() (*Store, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	st := m.newStore(id)
	st.hydrated = true
	return m.adopt(st), nil
}

// adopt caches st unless a concurrent Open got there first.
func (m *Manager) adopt(st *Store) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.stores[st.id]
	if !ok {
		cs = &cachedStore{store: st}
		m.stores[st.id] = cs
	}
	cs.lastSeen = m.now()
	return cs.store
}

// Rotate moves st's state under a freshly issued id and writes it out. The
// old store is emptied and its persisted record removed, so the previous id
// no longer names a session.
func (m *Manager) Rotate(ctx context.Context, st *Store) (*Store, error) {
	fresh, err := m.issue()
	if err != nil {
		return nil, err
	}
	state := st.State()
	fresh.mu.Lock()
	fresh.state = state
	fresh.dirty = true
	fresh.mu.Unlock()

	st.Clear()
	m.Forget(st.ID())
	if err := st.Flush(ctx); err != nil {
		m.Forget(fresh.ID())
		return nil, err
	}
	if err := fresh.Flush(ctx); err != nil {
		m.Forget(fresh.ID())
		return nil, err
	}
	return fresh, nil
}

func (m *Manager) newStore(id string) *Store {
	return &Store{
		id:        id,
		key:       m.key(id),
		ttl:       m.ttl,
		persister: m.persister,
		sealer:    m.sealer,
		now:       m.now,
	}
}

// Forget drops the cached store. The persisted record is left to Flush.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	delete(m.stores, id)
	m.mu.Unlock()
}

// SweepIdle evicts cached stores not touched within idle.
func (m *Manager) SweepIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, cs := range m.stores {
		if cs.lastSeen.Before(cutoff) {
			delete(m.stores, id)
			n++
		}
	}
	return n
}

// PurgeExpired sweeps expired records from persisters that need it.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	p, ok := m.persister.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx, m.now())
}

func (m *Manager) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

func (m *Manager) IsCached(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stores[id]
	return ok
}
