package session

import (
	"context"
	"sync"
	"time"
)

// Persister stores sealed session records under a namespaced key.
// Load returns nil, nil when the key is absent or expired.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by persisters that need an explicit sweep of expired records.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryPersister keeps records in process memory. Used by tests and the
// "memory" backend.
type MemoryPersister struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: map[string]memoryRecord{}, now: time.Now}
}

func (m *MemoryPersister) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	if !rec.expiresAt.IsZero() && !rec.expiresAt.After(m.now()) {
		delete(m.records, key)
		return nil, nil
	}
	return append([]byte(nil), rec.data...), nil
}

func (m *MemoryPersister) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = memoryRecord{data: append([]byte(nil), data...), expiresAt: expiresAt}
	return nil
}

func (m *MemoryPersister) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryPersister) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rec := range m.records {
		if !rec.expiresAt.IsZero() && !rec.expiresAt.After(now) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryPersister) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
