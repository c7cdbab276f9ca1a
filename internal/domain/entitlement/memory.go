package entitlement

import (
	"context"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory subscription store. Writes are
// last-writer-wins per user, matching the replacement semantics of Apply.
type MemoryRepository struct {
	mu    sync.Mutex
	subs  map[string]Subscription
	snaps map[string]UnlockSnapshot
}

// NewMemoryRepository creates an empty in-memory subscription store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subs:  make(map[string]Subscription),
		snaps: make(map[string]UnlockSnapshot),
	}
}

func (m *MemoryRepository) GetSubscription(_ context.Context, userID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil, ErrNoSubscription
	}
	return &sub, nil
}

func (m *MemoryRepository) PutSubscription(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.UserID] = *sub
	return nil
}

func (m *MemoryRepository) GetSnapshot(_ context.Context, userID string) (*UnlockSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[userID]
	if !ok {
		return nil, ErrNoSubscription
	}
	return &snap, nil
}

func (m *MemoryRepository) PutSnapshot(_ context.Context, snap *UnlockSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.UserID] = *snap
	return nil
}
