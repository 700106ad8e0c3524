// Package conversation holds per-user chat state: the model history of every
// user and the window of recently processed inbound message ids.
package conversation

import (
	"sync"

	"google.golang.org/genai"
)

// Sessions maps users to their chat history. Each user has its own lock so
// that turns of one user run one at a time while different users proceed in parallel.
type Sessions struct {
	mu    sync.Mutex
	users map[string]*Session
}

// Session is one user's history. Callers hold it between Acquire and Release.
type Session struct {
	mu      sync.Mutex
	history []*genai.Content
}

func NewSessions() *Sessions {
	return &Sessions{users: make(map[string]*Session)}
}

// Acquire returns the user's session, locked. The caller must call Release.
func (s *Sessions) Acquire(userID string) *Session {
	s.mu.Lock()
	sess, ok := s.users[userID]
	if !ok {
		sess = &Session{}
		s.users[userID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	return sess
}

// Len returns the number of users with a session.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Session) Release() {
	s.mu.Unlock()
}

// History returns a copy of the accumulated turns.
func (s *Session) History() []*genai.Content {
	return append([]*genai.Content(nil), s.history...)
}

// Commit replaces the history with the outcome of a completed turn.
func (s *Session) Commit(history []*genai.Content) {
	s.history = history
}

// Reset discards the history; the next turn starts a fresh chat.
func (s *Session) Reset() {
	s.history = nil
}
