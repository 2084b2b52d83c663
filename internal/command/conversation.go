package command

import (
	"sync"
	"time"
)

// AwaitingField names what a sender's next message is expected to contain.
type AwaitingField string

const (
	AwaitSubmissionForm  AwaitingField = "SUBMISSION_FORM"
	AwaitRejectionReason AwaitingField = "REJECTION_REASON"
)

// Conversation is the pending dialogue for one sender.
type Conversation struct {
	AwaitingField       AwaitingField
	PendingTicketNumber string
	ExpiresAt           time.Time
}

// ConversationStore keeps per-sender dialogue state in memory. Entries expire
// after ttl of inactivity and are consumed when the dialogue completes.
type ConversationStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]Conversation
}

// NewConversationStore builds an empty store.
func NewConversationStore(ttl time.Duration, now func() time.Time) *ConversationStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &ConversationStore{ttl: ttl, now: now, states: make(map[string]Conversation)}
}

// Begin opens (or replaces) the dialogue for sender.
func (s *ConversationStore) Begin(senderID string, field AwaitingField, ticketNumber string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Conversation{
		AwaitingField:       field,
		PendingTicketNumber: ticketNumber,
		ExpiresAt:           s.now().Add(s.ttl),
	}
	s.states[senderID] = c
	return c
}

// Peek returns the live dialogue for sender without consuming it.
func (s *ConversationStore) Peek(senderID string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(senderID)
}

// Consume returns and removes the live dialogue for sender.
func (s *ConversationStore) Consume(senderID string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(senderID)
	delete(s.states, senderID)
	return c, ok
}

// Discard drops any dialogue for sender.
func (s *ConversationStore) Discard(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, senderID)
}

// Sweep removes expired dialogues and reports how many were dropped.
func (s *ConversationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, c := range s.states {
		if !now.Before(c.ExpiresAt) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored dialogues, expired ones included.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// live must be called with mu held.
func (s *ConversationStore) live(senderID string) (Conversation, bool) {
	c, ok := s.states[senderID]
	if !ok {
		return Conversation{}, false
	}
	if !s.now().Before(c.ExpiresAt) {
		delete(s.states, senderID)
		return Conversation{}, false
	}
	return c, true
}
