package socksproxy

import (
	"sync"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/logger"
)

// SessionRecord is a lightweight, observability-only snapshot of a single
// in-flight session, per spec.md §4.6.
type SessionRecord struct {
	ID        uint64
	Peer      string
	Version   Version
	State     string
	StartedAt time.Time
}

// Registry tracks every in-flight session for diagnostics. It holds no
// authority over a session's lifecycle — it exists so /health and a
// future admin surface can report what the accept loop is doing, not so
// the relay engine can be steered from outside.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*SessionRecord
	nextID   uint64
	log      *logger.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Registry{
		sessions: make(map[uint64]*SessionRecord),
		nextID:   1,
		log:      log.Component("registry"),
	}
}

// Register allocates a session ID and records the session as started.
func (r *Registry) Register(peer string, version Version) *SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	rec := &SessionRecord{
		ID:        id,
		Peer:      peer,
		Version:   version,
		State:     "negotiating",
		StartedAt: time.Now(),
	}
	r.sessions[id] = rec
	return rec
}

// SetState updates the recorded state string of a registered session.
func (r *Registry) SetState(id uint64, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[id]; ok {
		rec.State = state
	}
}

// Deregister removes a session from the registry once it terminates.
func (r *Registry) Deregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of every currently registered session record.
func (r *Registry) Snapshot() []SessionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionRecord, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, *rec)
	}
	return out
}
