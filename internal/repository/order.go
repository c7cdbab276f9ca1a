package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
)

const (
	createOrderSQL = `
INSERT INTO orders (
	id, user_id, lines, address, shipping_method,
	subtotal, shipping_cost, tax, discount, total,
	promo_code, status, created_at, tracking_code, grants
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderByIDSQL = `
SELECT id, user_id, lines, address, shipping_method,
       subtotal, shipping_cost, tax, discount, total,
       promo_code, status, created_at, tracking_code, grants
FROM orders
WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// snapshots, addresses and download grants are stored as JSONB since they
// are immutable after placement and always read back whole.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository using the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a freshly placed order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return errors.Wrap(err, "encoding lines")
	}
	grants, err := json.Marshal(o.Grants)
	if err != nil {
		return errors.Wrap(err, "encoding grants")
	}
	var address []byte
	if o.Address != nil {
		if address, err = json.Marshal(o.Address); err != nil {
			return errors.Wrap(err, "encoding address")
		}
	}
	var method *string
	if o.Method != nil {
		m := string(*o.Method)
		method = &m
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, lines, address, method,
		o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.Total,
		o.PromoCode, string(o.Status), o.CreatedAt, o.TrackingCode, grants,
	)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// GetByID loads an order, returning order.ErrNotFound for unknown IDs.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scanning order")
	}
	return &o, nil
}

// UpdateStatus transitions an order's lifecycle state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		lines   []byte
		address []byte
		grants  []byte
		method  *string
		status  string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &lines, &address, &method,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Discount, &o.Total,
		&o.PromoCode, &status, &o.CreatedAt, &o.TrackingCode, &grants,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if method != nil {
		m := pricing.Method(*method)
		o.Method = &m
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return o, errors.Wrap(err, "decoding lines")
	}
	if len(grants) > 0 {
		if err := json.Unmarshal(grants, &o.Grants); err != nil {
			return o, errors.Wrap(err, "decoding grants")
		}
	}
	if len(address) > 0 {
		o.Address = new(order.Address)
		if err := json.Unmarshal(address, o.Address); err != nil {
			return o, errors.Wrap(err, "decoding address")
		}
	}
	return o, nil
}
