package inventory

import (
	"context"
	"sync"
)

var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger is an in-memory Ledger guarded by a single mutex, so a whole
// cart's check-and-decrement runs as one critical section.
type MemoryLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

// NewMemoryLedger creates a ledger seeded with the given stock counts.
func NewMemoryLedger(stock map[string]int) *MemoryLedger {
	s := make(map[string]int, len(stock))
	for id, n := range stock {
		s[id] = n
	}
	return &MemoryLedger{stock: s}
}

// CheckAvailability reports per-line availability without mutating stock.
func (m *MemoryLedger) CheckAvailability(_ context.Context, lines []Line) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.report(lines)
	return &r, nil
}

// Reserve decrements stock for every stocked line, or fails with an
// OutOfStockError leaving the ledger untouched.
func (m *MemoryLedger) Reserve(_ context.Context, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.report(lines)
	if !r.AllAvailable {
		return &OutOfStockError{Report: r}
	}
	for _, l := range lines {
		if l.stocked() {
			m.stock[l.BookID] -= l.Quantity
		}
	}
	return nil
}

// Restock returns previously reserved stock to the ledger.
func (m *MemoryLedger) Restock(_ context.Context, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		if l.stocked() {
			m.stock[l.BookID] += l.Quantity
		}
	}
	return nil
}

// Stock returns the current stock count for a book id. Test helper.
func (m *MemoryLedger) Stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

// report builds an availability report. Caller must hold mu.
func (m *MemoryLedger) report(lines []Line) Report {
	r := Report{
		AllAvailable: true,
		Lines:        make(map[string]LineAvailability, len(lines)),
	}
	for _, l := range lines {
		if !l.stocked() {
			r.Lines[l.BookID] = LineAvailability{
				Available: true,
				Requested: l.Quantity,
				InStock:   unlimitedStock,
				Digital:   true,
			}
			continue
		}
		in := m.stock[l.BookID]
		ok := in >= l.Quantity
		r.Lines[l.BookID] = LineAvailability{
			Available: ok,
			Requested: l.Quantity,
			InStock:   in,
		}
		if !ok {
			r.AllAvailable = false
		}
	}
	return r
}
