package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grainco/texture-analyzer/internal/workflow"
	"github.com/rs/zerolog/log"
)

// DefaultMaxSessions limits concurrent sessions to bound preview memory.
const DefaultMaxSessions = 200

// Factory builds the workflow of a new session.
type Factory func(id string) *workflow.Workflow

// BlobReleaser frees the preview blobs of a session.
type BlobReleaser interface {
	DeleteOwner(owner string) int
}

// Manager maps browser sessions to their workflows.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	factory     Factory
	blobs       BlobReleaser
	maxSessions int
}

// SessionState holds a workflow and its bookkeeping.
type SessionState struct {
	Workflow     *workflow.Workflow
	CreatedAt    time.Time
	LastAccessed time.Time
}

// NewManager creates a session manager. maxSessions <= 0 uses DefaultMaxSessions.
func NewManager(factory Factory, blobs BlobReleaser, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*SessionState),
		factory:     factory,
		blobs:       blobs,
		maxSessions: maxSessions,
	}
}

// GetOrCreate returns the workflow of id, creating a new session when id
// is empty or unknown. The returned id is the one to hand back to the client.
func (m *Manager) GetOrCreate(id string) (string, *workflow.Workflow) {
	if id != "" {
		if wf, ok := m.Get(id); ok {
			return id, wf
		}
	}

	m.evictIfNeeded()

	id = uuid.New().String()
	now := time.Now()
	state := &SessionState{
		Workflow:     m.factory(id),
		CreatedAt:    now,
		LastAccessed: now,
	}

	m.mu.Lock()
	m.sessions[id] = state
	m.mu.Unlock()

	log.Info().Str("session", ShortID(id)).Msg("session created")
	return id, state.Workflow
}

// Get returns the workflow of id and marks the session as used.
func (m *Manager) Get(id string) (*workflow.Workflow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state.Workflow, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions idle for longer than maxAge.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	expired := make(map[string]*SessionState)
	for id, state := range m.sessions {
		if state.LastAccessed.Before(cutoff) {
			expired[id] = state
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, state := range expired {
		m.release(id, state)
		log.Info().
			Str("session", ShortID(id)).
			Dur("idle", time.Since(state.LastAccessed).Round(time.Second)).
			Msg("cleaned up aged session")
	}
	return len(expired)
}

// evictIfNeeded drops the least recently used session when at the limit.
func (m *Manager) evictIfNeeded() {
	m.mu.Lock()
	if len(m.sessions) < m.maxSessions {
		m.mu.Unlock()
		return
	}

	var oldestID string
	var oldest *SessionState
	for id, state := range m.sessions {
		if oldest == nil || state.LastAccessed.Before(oldest.LastAccessed) {
			oldestID, oldest = id, state
		}
	}
	delete(m.sessions, oldestID)
	m.mu.Unlock()

	m.release(oldestID, oldest)
	log.Warn().Str("session", ShortID(oldestID)).Int("limit", m.maxSessions).Msg("session limit reached, evicted least recently used")
}

func (m *Manager) release(id string, state *SessionState) {
	state.Workflow.Close()
	if m.blobs != nil {
		m.blobs.DeleteOwner(id)
	}
}

// shortID safely truncates an ID for logging
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
