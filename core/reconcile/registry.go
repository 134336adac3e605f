package reconcile

import (
	"strings"
	"sync"
)

// Registry keeps the editors a console session has open.
type Registry struct {
	mu      sync.Mutex
	editors map[string]*Editor
}

func NewRegistry() *Registry {
	return &Registry{editors: map[string]*Editor{}}
}

func registryKey(sessionID string, kind Kind, ownerID string) string {
	return sessionID + "|" + string(kind) + "|" + ownerID
}

func (r *Registry) Get(sessionID string, kind Kind, ownerID string) *Editor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.editors[registryKey(sessionID, kind, ownerID)]
}

// Open installs e unless an editor with pending links is already open for the
// same owner, in which case that one is returned.
func (r *Registry) Open(sessionID string, e *Editor) *Editor {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(sessionID, e.Kind(), e.OwnerID())
	if cur, ok := r.editors[key]; ok && cur.Pending() {
		return cur
	}
	r.editors[key] = e
	return e
}

func (r *Registry) Remove(sessionID string, kind Kind, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.editors, registryKey(sessionID, kind, ownerID))
}

// DropSession removes every editor of a signed-out session.
func (r *Registry) DropSession(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sessionID + "|"
	n := 0
	for k := range r.editors {
		if strings.HasPrefix(k, prefix) {
			delete(r.editors, k)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}

// Retain drops idle editors whose session keep rejects. Editors with links in
// flight stay until they settle.
func (r *Registry) Retain(keep func(sessionID string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.editors {
		sessionID, _, _ := strings.Cut(k, "|")
		if keep(sessionID) || e.Pending() {
			continue
		}
		delete(r.editors, k)
		n++
	}
	return n
}
