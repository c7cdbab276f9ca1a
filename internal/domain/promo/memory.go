package promo

import (
	"context"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory promo code store. The mutex makes
// IncrementUses an atomic check-and-increment, so usage caps hold under
// concurrent orders.
type MemoryRepository struct {
	mu    sync.Mutex
	rules map[string]*Rule
}

// NewMemoryRepository creates a repository holding the given rules,
// keyed by normalized code.
func NewMemoryRepository(rules ...Rule) *MemoryRepository {
	m := &MemoryRepository{rules: make(map[string]*Rule, len(rules))}
	for i := range rules {
		r := rules[i]
		r.Code = Normalize(r.Code)
		m.rules[r.Code] = &r
	}
	return m
}

// FindByCode returns a copy of the rule for the given normalized code.
func (m *MemoryRepository) FindByCode(_ context.Context, code string) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[Normalize(code)]
	if !ok {
		return nil, ErrUnknownCode
	}
	cp := *r
	return &cp, nil
}

// IncrementUses bumps the usage counter unless the cap is already reached.
func (m *MemoryRepository) IncrementUses(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[Normalize(code)]
	if !ok {
		return ErrUnknownCode
	}
	if r.UsageLimit > 0 && r.UsedCount >= r.UsageLimit {
		return ErrUsageExceeded
	}
	r.UsedCount++
	return nil
}
