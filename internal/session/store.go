package session

import (
	"context"
	"sync"
	"time"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long an idle workspace survives before the
// janitor discards it.
const DefaultSessionTTL = 2 * time.Hour

// Store is the in-memory session registry. Domain state is deliberately not
// persisted; a workspace lives exactly as long as its session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Workspace
	okrs     []models.OKR
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStore creates a session store. New workspaces are seeded with the given
// OKR definitions.
func NewStore(okrs []models.OKR, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Workspace),
		okrs:     okrs,
		ttl:      ttl,
		logger:   logger,
	}
}

// Create registers a new workspace and returns it
func (s *Store) Create() *Workspace {
	ws := NewWorkspace(uuid.NewString(), s.okrs)

	s.mu.Lock()
	s.sessions[ws.ID()] = ws
	s.mu.Unlock()

	s.logger.Info("session_created", zap.String("session_id", ws.ID()))
	return ws
}

// Get returns a workspace by id and marks it recently used
func (s *Store) Get(id string) (*Workspace, bool) {
	s.mu.RLock()
	ws, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		ws.Touch()
	}
	return ws, ok
}

// Delete removes a workspace
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live workspaces
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start runs the idle-session janitor until ctx is cancelled
func (s *Store) Start(ctx context.Context) error {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep discards workspaces idle for longer than the TTL
func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []string
	for id, ws := range s.sessions {
		if ws.IdleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		s.logger.Info("sessions_expired",
			zap.Int("count", len(expired)),
			zap.Duration("ttl", s.ttl),
		)
	}
}
