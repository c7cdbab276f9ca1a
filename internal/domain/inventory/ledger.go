package inventory

import (
	"context"

	"github.com/bookhaven/storefront/internal/domain/catalog"
)

// unlimitedStock is the stock level reported for digital-only lines.
const unlimitedStock = 999

// Line is one cart line from the ledger's point of view.
type Line struct {
	BookID   string
	Quantity int
	Kind     catalog.Kind
}

// stocked reports whether the line consumes physical stock.
func (l Line) stocked() bool {
	return l.Kind.Physical()
}

// LineAvailability describes the availability of a single requested line.
type LineAvailability struct {
	Available bool
	Requested int
	InStock   int
	Digital   bool
}

// Report aggregates per-line availability for a whole cart.
type Report struct {
	AllAvailable bool
	Lines        map[string]LineAvailability
}

// OutOfStockError indicates one or more lines exceed available stock.
// The report carries the per-line detail for the caller.
type OutOfStockError struct {
	Report Report
}

func (e *OutOfStockError) Error() string {
	return "some items are out of stock"
}

// Ledger tracks remaining stock per physical book. Digital-only books have
// no ledger entry and are always available.
//
// Reserve is all-or-nothing: either every line's stock is decremented, or
// nothing changes and an OutOfStockError is returned. Implementations must
// make the check-and-decrement atomic per item so concurrent reservations
// cannot oversell.
type Ledger interface {
	CheckAvailability(ctx context.Context, lines []Line) (*Report, error)
	Reserve(ctx context.Context, lines []Line) error
	Restock(ctx context.Context, lines []Line) error
}
