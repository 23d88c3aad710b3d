package engine

import (
	"sync"

	"github.com/cdreport/cdreport/internal/indicator"
)

// Session carries the user selections that shape a run.
type Session struct {
	EMR          indicator.EMR `json:"emr"`
	RosteredOnly bool          `json:"rostered_only"`
}

// DefaultSession is PSS with every patient counted.
func DefaultSession() Session {
	return Session{EMR: indicator.DefaultEMR}
}

func (s Session) normalize() Session {
	if s.EMR == "" {
		s.EMR = indicator.DefaultEMR
	}
	return s
}

// SessionStore holds the process-wide session for the HTTP server. Writes
// are last-write-wins.
type SessionStore struct {
	mu      sync.RWMutex
	session Session
}

// NewSessionStore starts from initial.
func NewSessionStore(initial Session) *SessionStore {
	return &SessionStore{session: initial.normalize()}
}

// Get returns the current session.
func (s *SessionStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Set replaces the current session.
func (s *SessionStore) Set(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session.normalize()
}
