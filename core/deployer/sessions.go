package deployer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

// ErrSessionNotFound is returned when a deployment id is unknown.
var ErrSessionNotFound = errors.New("deployment session not found")

// SessionStore is the process-wide registry of deployment sessions, owned by
// the process root and shared by the submission handler and the executor.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.DeploymentSession
	ttl      time.Duration
}

// NewSessionStore creates a store. ttl > 0 enables eviction of finished
// sessions older than ttl; zero keeps sessions for the process lifetime.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.DeploymentSession),
		ttl:      ttl,
	}
}

// Create inserts a session. The id must not already exist.
func (s *SessionStore) Create(sess *models.DeploymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("deployment %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess
	return nil
}

// Get returns the session for a deployment id.
func (s *SessionStore) Get(id string) (*models.DeploymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// List returns a summary of every session, newest first. Counts come from
// the live progress records.
func (s *SessionStore) List() []models.DeploymentSummary {
	s.mu.RLock()
	sessions := make([]*models.DeploymentSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	summaries := make([]models.DeploymentSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sess.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].StartedAt.After(summaries[j].StartedAt) })
	return summaries
}

// StartJanitor evicts finished sessions older than the store TTL until ctx
// is done. No-op when the TTL is zero.
func (s *SessionStore) StartJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *SessionStore) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sum := sess.Summary()
		finished := sum.Status == models.DeploymentStatusCompleted ||
			sum.Status == models.DeploymentStatusFailed ||
			sum.Status == models.DeploymentStatusPartial
		if finished && sum.CompletedAt != nil && sum.CompletedAt.Before(cutoff) {
			delete(s.sessions, id)
			log.Debug().Str("deployment_id", id).Msg("evicted expired deployment session")
		}
	}
}
