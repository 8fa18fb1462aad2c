// Package session keeps the per-conversation state of the ticket creation dialogue.
package session

import (
	"context"
	"sync"
	"time"
)

// Step names where a conversation is in the creation dialogue.
type Step string

const (
	StepIdle        Step = ""
	StepTopic       Step = "topic"
	StepTitle       Step = "title"
	StepDescription Step = "description"
	StepConfirm     Step = "confirm"
)

// Draft collects ticket fields while the dialogue runs.
type Draft struct {
	TopicID     int64  `json:"topic_id,omitempty"`
	TopicName   string `json:"topic_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Session is the dialogue context of one private conversation.
type Session struct {
	ConversationID int64     `json:"conversation_id"`
	Step           Step      `json:"step"`
	Draft          Draft     `json:"draft"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Idle reports whether no dialogue is in progress.
func (s *Session) Idle() bool {
	return s.Step == StepIdle
}

// Reset drops any draft and returns to idle.
func (s *Session) Reset() {
	s.Step = StepIdle
	s.Draft = Draft{}
}

// Store loads and saves sessions. Load returns an idle session when none exists.
type Store interface {
	Load(ctx context.Context, conversationID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, conversationID int64) error
}

// MemoryStore is a process-local Store, used in tests and when Redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[int64]Session{}}
}

func (m *MemoryStore) Load(_ context.Context, conversationID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[conversationID]; ok {
		return &s, nil
	}
	return &Session{ConversationID: conversationID}, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Idle() {
		delete(m.sessions, s.ConversationID)
		return nil
	}
	m.sessions[s.ConversationID] = *s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, conversationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
	return nil
}
