package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/storefront/internal/domain/inventory"
)

const (
	getStockSQL = `SELECT book_id, stock FROM inventory WHERE book_id = ANY($1)`

	// The stock >= $2 guard makes check-and-decrement a single atomic
	// statement; concurrent reservations cannot drive stock negative.
	reserveStockSQL = `UPDATE inventory SET stock = stock - $2 WHERE book_id = $1 AND stock >= $2`

	restockSQL = `UPDATE inventory SET stock = stock + $2 WHERE book_id = $1`
)

const unlimitedStock = 999

var _ inventory.Ledger = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Ledger backed by PostgreSQL.
// Reservation runs in a transaction with guarded decrements, so a cart
// either reserves every line or nothing.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository using the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// CheckAvailability reports per-line availability without mutating stock.
func (r *InventoryRepository) CheckAvailability(ctx context.Context, lines []inventory.Line) (*inventory.Report, error) {
	stock, err := r.stockFor(ctx, lines)
	if err != nil {
		return nil, err
	}
	report := buildReport(lines, stock)
	return &report, nil
}

// Reserve decrements stock for every stocked line inside one transaction,
// rolling back on the first line whose stock is insufficient.
func (r *InventoryRepository) Reserve(ctx context.Context, lines []inventory.Line) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, l := range lines {
		if !l.Kind.Physical() {
			continue
		}
		tag, err := tx.Exec(ctx, reserveStockSQL, l.BookID, l.Quantity)
		if err != nil {
			return fmt.Errorf("reserving stock for %q: %w", l.BookID, err)
		}
		if tag.RowsAffected() == 0 {
			// Insufficient stock (or unknown book): surface the full report.
			report, rerr := r.CheckAvailability(ctx, lines)
			if rerr != nil {
				return rerr
			}
			report.AllAvailable = false
			return &inventory.OutOfStockError{Report: *report}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	return nil
}

// Restock returns previously reserved stock to the ledger.
func (r *InventoryRepository) Restock(ctx context.Context, lines []inventory.Line) error {
	for _, l := range lines {
		if !l.Kind.Physical() {
			continue
		}
		if _, err := r.pool.Exec(ctx, restockSQL, l.BookID, l.Quantity); err != nil {
			return fmt.Errorf("restocking %q: %w", l.BookID, err)
		}
	}
	return nil
}

func (r *InventoryRepository) stockFor(ctx context.Context, lines []inventory.Line) (map[string]int, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Kind.Physical() {
			ids = append(ids, l.BookID)
		}
	}
	stock := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return stock, nil
	}

	rows, err := r.pool.Query(ctx, getStockSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting stock: %w", err)
	}
	type entry struct {
		BookID string
		Stock  int
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entry, error) {
		var e entry
		err := row.Scan(&e.BookID, &e.Stock)
		return e, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning stock")
	}
	for _, e := range entries {
		stock[e.BookID] = e.Stock
	}
	return stock, nil
}

func buildReport(lines []inventory.Line, stock map[string]int) inventory.Report {
	report := inventory.Report{
		AllAvailable: true,
		Lines:        make(map[string]inventory.LineAvailability, len(lines)),
	}
	for _, l := range lines {
		if !l.Kind.Physical() {
			report.Lines[l.BookID] = inventory.LineAvailability{
				Available: true,
				Requested: l.Quantity,
				InStock:   unlimitedStock,
				Digital:   true,
			}
			continue
		}
		in := stock[l.BookID]
		ok := in >= l.Quantity
		report.Lines[l.BookID] = inventory.LineAvailability{
			Available: ok,
			Requested: l.Quantity,
			InStock:   in,
		}
		if !ok {
			report.AllAvailable = false
		}
	}
	return report
}
