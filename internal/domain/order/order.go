package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/pricing"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

// CartLine is one requested line of a cart. Format is only meaningful for
// digital kinds and must be one the book supports.
type CartLine struct {
	BookID   string
	Quantity int
	Format   catalog.Format
}

// Line is a cart line snapshot frozen onto an order at placement time, so
// later catalog changes never retroactively alter a placed order.
type Line struct {
	BookID    string          `json:"book_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Kind      catalog.Kind    `json:"kind"`
	Format    catalog.Format  `json:"format,omitempty"`
}

// Address is a shipping destination.
type Address struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Street     string `json:"street"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// DownloadGrant is an issued, time-limited right to download one digital
// book in one format for one order.
type DownloadGrant struct {
	BookID      string         `json:"book_id"`
	Title       string         `json:"title"`
	Format      catalog.Format `json:"format"`
	Token       string         `json:"token"`
	DownloadURL string         `json:"download_url"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Order is a placed customer order. Status is the only field mutated after
// creation; orders are never deleted.
type Order struct {
	ID           string
	UserID       string
	Lines        []Line
	Address      *Address
	Method       *pricing.Method
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	PromoCode    string
	Status       Status
	CreatedAt    time.Time
	TrackingCode string
	Grants       []DownloadGrant
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
