// Package session keeps per-conversation history in memory.
//
// A Session is an append-only transcript of user questions and
// assistant answers. Sessions are independent: history from one never
// influences another.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role constants define valid turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single transcript entry.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session holds one conversation's transcript.
// Safe for concurrent use; accessors return defensive copies.
type Session struct {
	id        uuid.UUID
	createdAt time.Time

	mu    sync.RWMutex
	turns []Turn
}

func newSession() *Session {
	return &Session{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// AppendUser records a user question.
func (s *Session) AppendUser(text string) {
	s.append(RoleUser, text)
}

// AppendAssistant records an assistant answer.
func (s *Session) AppendAssistant(text string) {
	s.append(RoleAssistant, text)
}

func (s *Session) append(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{
		Role: role,
		Text: text,
		At:   time.Now().UTC(),
	})
}

// History returns a copy of the transcript, oldest first.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
