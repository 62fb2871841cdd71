package models

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ConversationState is the position of a user inside the search conversation.
type ConversationState int

const (
	StateIdle ConversationState = iota
	StateAwaitingQuery
	StateTerminated
)

func (s ConversationState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingQuery:
		return "AWAITING_QUERY"
	case StateTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Active reports whether the state holds a pending query. IDLE and TERMINATED are interchangeable.
func (s ConversationState) Active() bool {
	return s == StateAwaitingQuery
}

// ConversationKey identifies one conversational session: a user inside a chat.
type ConversationKey struct {
	ChatID int64
	UserID int64
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// ConversationStore keeps the current state per session. Setting a state
// overwrites the previous one; a missing or expired entry reads as StateIdle.
type ConversationStore interface {
	Get(ctx context.Context, key ConversationKey) (ConversationState, error)
	Set(ctx context.Context, key ConversationKey, state ConversationState) error
	Clear(ctx context.Context, key ConversationKey) error
}

type conversationEntry struct {
	state     ConversationState
	expiresAt time.Time
}

// MemoryConversationStore is a process-local ConversationStore with expiring entries.
type MemoryConversationStore struct {
	entries map[ConversationKey]conversationEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryConversationStore creates a store whose entries expire after ttl.
func NewMemoryConversationStore(ttl time.Duration) *MemoryConversationStore {
	return &MemoryConversationStore{
		entries: make(map[ConversationKey]conversationEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryConversationStore) Get(_ context.Context, key ConversationKey) (ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || m.now().After(entry.expiresAt) {
		return StateIdle, nil
	}
	return entry.state, nil
}

func (m *MemoryConversationStore) Set(ctx context.Context, key ConversationKey, state ConversationState) error {
	if !state.Active() {
		return m.Clear(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = conversationEntry{state: state, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryConversationStore) Clear(_ context.Context, key ConversationKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryConversationStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryConversationStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
