package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"salesdash/internal/models"
)

// ErrSessionNotFound is returned for an unknown or deleted session ID
var ErrSessionNotFound = errors.New("session not found")

// Session is one viewer's filter state and the snapshot last computed from it.
// Sessions live in memory only.
type Session struct {
	ID        string             `json:"id"`
	Filter    models.FilterState `json:"filter"`
	Snapshot  *models.Snapshot   `json:"snapshot"`
	Revision  int                `json:"revision"` // bumped when the filter selects different rows
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Sessions keeps an independent FilterState per session, all sharing one
// engine and therefore one cached dataset
type Sessions struct {
	engine *Engine

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates an empty session store
func NewSessions(engine *Engine) *Sessions {
	return &Sessions{
		engine:   engine,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session at the default filter and computes its first snapshot
func (s *Sessions) Create(ctx context.Context) (*Session, error) {
	fs, err := s.engine.DefaultFilter(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.engine.Recompute(ctx, fs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Filter:    fs,
		Snapshot:  snap,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	log.Debug().Str("session", sess.ID).Msg("Session created")
	c := *sess
	return &c, nil
}

// Get returns a copy of the session
func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	c := *sess
	return &c, nil
}

// SetFilter replaces the session's filter and recomputes its snapshot.
// On error the session keeps its previous filter and snapshot.
func (s *Sessions) SetFilter(ctx context.Context, id string, fs models.FilterState) (*Session, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	snap, err := s.engine.Recompute(ctx, fs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sess.Filter.Equal(fs) {
		sess.Revision++
	}
	sess.Filter = fs
	sess.Snapshot = snap
	sess.UpdatedAt = time.Now().UTC()

	c := *sess
	return &c, nil
}

// Delete removes the session
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
