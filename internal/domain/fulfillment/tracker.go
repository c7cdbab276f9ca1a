package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/inventory"
	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
)

// processingEstimate is the fixed refund processing window shown to users.
const processingEstimate = "3-5 business days"

// Event is one entry in an order's tracking history.
type Event struct {
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
}

// TrackInfo is the tracking view of a placed order.
type TrackInfo struct {
	OrderID          string
	Status           order.Status
	TrackingCode     string
	DeliveryEstimate string
	Events           []Event
}

// ReturnResult is the outcome of a processed return request.
type ReturnResult struct {
	ReturnID           string
	RefundAmount       decimal.Decimal
	ProcessingEstimate string
}

// Policy holds fulfillment policy decisions.
type Policy struct {
	// RestockOnReturn controls whether returned physical stock goes back
	// into the ledger. Off by default: returned books are inspected before
	// they re-enter inventory.
	RestockOnReturn bool
}

// Tracker derives tracking histories and processes returns over persisted
// orders. Tracking events are synthesized from elapsed time; a production
// deployment would source them from a carrier integration instead.
type Tracker struct {
	orders  order.Repository
	ledger  inventory.Ledger
	pricing *pricing.Engine
	policy  Policy
	now     func() time.Time
}

// NewTracker creates a Tracker with the required dependencies.
func NewTracker(orders order.Repository, ledger inventory.Ledger, engine *pricing.Engine, policy Policy) *Tracker {
	return &Tracker{
		orders:  orders,
		ledger:  ledger,
		pricing: engine,
		policy:  policy,
		now:     time.Now,
	}
}

// TrackOrder returns the synthetic tracking history for an order:
// "Order Confirmed" immediately, "Processing" after one day, and "Shipped"
// after two.
func (t *Tracker) TrackOrder(ctx context.Context, orderID string) (*TrackInfo, error) {
	o, err := t.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	events := []Event{{
		Date:        o.CreatedAt,
		Status:      "Order Confirmed",
		Description: "Your order has been confirmed and is being prepared",
	}}

	age := t.now().Sub(o.CreatedAt)
	if age >= 24*time.Hour {
		events = append(events, Event{
			Date:        o.CreatedAt.Add(24 * time.Hour),
			Status:      "Processing",
			Description: "Your order is being prepared for shipment",
		})
	}
	if age >= 48*time.Hour {
		events = append(events, Event{
			Date:        o.CreatedAt.Add(48 * time.Hour),
			Status:      "Shipped",
			Description: "Your order has been shipped with tracking number " + o.TrackingCode,
		})
	}

	return &TrackInfo{
		OrderID:          o.ID,
		Status:           o.Status,
		TrackingCode:     o.TrackingCode,
		DeliveryEstimate: t.pricing.DeliveryEstimate(o.Method),
		Events:           events,
	}, nil
}

// ProcessReturn computes the refund for the returned lines and marks the
// order returned. Shipping is refunded only when every line comes back.
func (t *Tracker) ProcessReturn(ctx context.Context, orderID string, bookIDs []string, reason string) (*ReturnResult, error) {
	o, err := t.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	returned := make(map[string]bool, len(bookIDs))
	for _, id := range bookIDs {
		returned[id] = true
	}

	refund := decimal.Zero
	matched := 0
	var restock []inventory.Line
	for _, l := range o.Lines {
		if !returned[l.BookID] {
			continue
		}
		matched++
		refund = refund.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		restock = append(restock, inventory.Line{BookID: l.BookID, Quantity: l.Quantity, Kind: l.Kind})
	}

	if matched == len(o.Lines) {
		refund = refund.Add(o.ShippingCost)
	}

	if err := t.orders.UpdateStatus(ctx, o.ID, order.StatusReturned); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}

	if t.policy.RestockOnReturn && len(restock) > 0 {
		if err := t.ledger.Restock(ctx, restock); err != nil {
			return nil, errors.Wrap(err, "restock returned items")
		}
	}

	res := &ReturnResult{
		ReturnID:           "RET-" + idSuffix(8),
		RefundAmount:       refund.Round(2),
		ProcessingEstimate: processingEstimate,
	}

	zctx.From(ctx).Info("return processed",
		zap.String("return_id", res.ReturnID),
		zap.String("order_id", o.ID),
		zap.Int("items", matched),
		zap.String("reason", reason),
		zap.String("refund", res.RefundAmount.StringFixed(2)),
	)

	return res, nil
}

// idSuffix returns n uppercase hex characters from a fresh UUID.
func idSuffix(n int) string {
	h := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(h[:n])
}
