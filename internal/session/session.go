package session

import (
	"sync"
	"time"

	"SahakariChat/internal/api"
)

// Kind classifies a chat message.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
	KindError     Kind = "error"
)

// Message represents a single chat message. Citations are only present on
// assistant messages.
type Message struct {
	ID        int64          `json:"id"`
	Kind      Kind           `json:"kind"`
	Content   string         `json:"content"`
	Citations []api.Citation `json:"citations,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the single writer of session state: an append-only message
// history with strictly increasing ids and one pending flag shared by
// queries and uploads. Citation visibility lives in a side map keyed by
// message id so messages never change after creation.
type Store struct {
	mu       sync.Mutex
	history  []Message
	pending  bool
	lastID   int64
	expanded map[int64]bool
}

// NewStore creates an empty session.
func NewStore() *Store {
	return &Store{expanded: make(map[int64]bool)}
}

// Append adds msg to the history, assigning the next strictly increasing
// id when the caller left it zero. The stored message is returned.
func (s *Store) Append(msg Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == 0 {
		id := time.Now().UnixMilli()
		if id <= s.lastID {
			id = s.lastID + 1
		}
		msg.ID = id
	}
	if msg.ID > s.lastID {
		s.lastID = msg.ID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.history = append(s.history, msg)
	return msg
}

// BeginPending marks a query or upload in flight. It returns false, with no
// mutation, when one is already outstanding; a second submission is a
// no-op, not an error.
func (s *Store) BeginPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return false
	}
	s.pending = true
	return true
}

// EndPending clears the in-flight flag. Safe to call when already clear.
func (s *Store) EndPending() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

// Pending reports whether a query or upload is in flight.
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// History returns a copy of the message history in append order.
func (s *Store) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of messages in the history.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// ToggleCitations flips citation visibility for a message. Presentation
// state only; the message itself is never touched.
func (s *Store) ToggleCitations(id int64) {
	s.mu.Lock()
	s.expanded[id] = !s.expanded[id]
	s.mu.Unlock()
}

// CitationsShown reports whether a message's citations are expanded.
func (s *Store) CitationsShown(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[id]
}
