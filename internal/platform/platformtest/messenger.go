// Package platformtest provides a recording chat platform for tests.
package platformtest

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// Sent is one recorded send attempt.
type Sent struct {
	domain.OutboundMessage
	ID  int64
	Err error
}

// Messenger records every send and hands out increasing message ids.
type Messenger struct {
	mu       sync.Mutex
	nextID   int64
	attempts []Sent
	failures map[int64]error
}

// NewMessenger returns a messenger whose first message id is 1000.
func NewMessenger() *Messenger {
	return &Messenger{nextID: 1000, failures: map[int64]error{}}
}

// Send implements the router's messenger contract.
func (m *Messenger) Send(_ context.Context, msg domain.OutboundMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[msg.ConversationID]; ok {
		m.attempts = append(m.attempts, Sent{OutboundMessage: msg, Err: err})
		return 0, err
	}
	id := m.nextID
	m.nextID++
	m.attempts = append(m.attempts, Sent{OutboundMessage: msg, ID: id})
	return id, nil
}

// FailConversation makes every send to conversationID fail with err. A nil err clears it.
func (m *Messenger) FailConversation(conversationID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, conversationID)
		return
	}
	m.failures[conversationID] = err
}

// Attempts returns every send, failed ones included.
func (m *Messenger) Attempts() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.attempts...)
}

// SentTo returns the attempts addressed to conversationID.
func (m *Messenger) SentTo(conversationID int64) []Sent {
	var out []Sent
	for _, s := range m.Attempts() {
		if s.ConversationID == conversationID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent attempt addressed to conversationID.
func (m *Messenger) Last(conversationID int64) (Sent, bool) {
	sent := m.SentTo(conversationID)
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// Reset forgets recorded attempts.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = nil
}
