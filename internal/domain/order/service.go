package order

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/inventory"
	"github.com/bookhaven/storefront/internal/domain/pricing"
	"github.com/bookhaven/storefront/internal/domain/promo"
)

// Sentinel errors for cart validation.
var ErrEmptyCart = errors.New("cart is empty")

// BookNotFoundError indicates a requested book does not exist in the catalog.
type BookNotFoundError struct {
	BookID string
}

func (e *BookNotFoundError) Error() string {
	return "book " + e.BookID + " not found"
}

// InvalidQuantityError indicates a cart line has a non-positive quantity.
type InvalidQuantityError struct {
	BookID string
}

func (e *InvalidQuantityError) Error() string {
	return "quantity must be greater than 0 for book " + e.BookID
}

// UnsupportedFormatError indicates a chosen digital format the book does
// not offer.
type UnsupportedFormatError struct {
	BookID string
	Format catalog.Format
}

func (e *UnsupportedFormatError) Error() string {
	return "book " + e.BookID + " does not support format " + string(e.Format)
}

// grantTTL is how long an issued download grant stays valid.
const grantTTL = 30 * 24 * time.Hour

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID    string
	Lines     []CartLine
	Address   *Address
	Payment   Payment
	Method    *pricing.Method
	PromoCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	OrderID          string
	TransactionID    string
	Total            decimal.Decimal
	Grants           []DownloadGrant
	TrackingCode     string
	DeliveryEstimate string
}

// Service runs the order placement pipeline over its injected dependencies.
type Service struct {
	books   catalog.Repository
	ledger  inventory.Ledger
	promos  promo.Validator
	pricing *pricing.Engine
	orders  Repository
	now     func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	books catalog.Repository,
	ledger inventory.Ledger,
	promos promo.Validator,
	engine *pricing.Engine,
	orders Repository,
) *Service {
	return &Service{
		books:   books,
		ledger:  ledger,
		promos:  promos,
		pricing: engine,
		orders:  orders,
		now:     time.Now,
	}
}

// PlaceOrder validates the cart, checks inventory, gates payment, prices the
// order, reserves stock, issues download grants, and persists the order.
//
// Inventory reservation is the first mutating step; any failure before it
// leaves no state changed. The discount reduces the taxable base
// (discount-before-tax), and the promo usage counter is bumped only after
// the order has committed.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(req.Lines))
	for i, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, &InvalidQuantityError{BookID: l.BookID}
		}
		ids[i] = l.BookID
	}

	// Batch fetch the catalog records.
	fetched, err := s.books.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get books")
	}
	byID := make(map[string]catalog.Book, len(fetched))
	for _, b := range fetched {
		byID[b.ID] = b
	}

	books := make([]catalog.Book, len(req.Lines))
	invLines := make([]inventory.Line, len(req.Lines))
	for i, l := range req.Lines {
		b, ok := byID[l.BookID]
		if !ok {
			return nil, &BookNotFoundError{BookID: l.BookID}
		}
		if l.Format != "" && !b.SupportsFormat(l.Format) {
			return nil, &UnsupportedFormatError{BookID: l.BookID, Format: l.Format}
		}
		books[i] = b
		invLines[i] = inventory.Line{BookID: b.ID, Quantity: l.Quantity, Kind: b.Kind}
	}

	// Side-effect-free availability check; the atomic decrement happens in
	// Reserve below after all other validation has passed.
	report, err := s.ledger.CheckAvailability(ctx, invLines)
	if err != nil {
		return nil, errors.Wrap(err, "check availability")
	}
	if !report.AllAvailable {
		return nil, &inventory.OutOfStockError{Report: *report}
	}

	if err := validatePayment(req.Payment); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for i, l := range req.Lines {
		subtotal = subtotal.Add(books[i].Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	// A chosen method always gets a tracking code, even for a digital-only
	// cart; the shipping quote itself only matters when physical lines exist.
	shippingCost := decimal.Zero
	trackingCode := ""
	if req.Method != nil {
		trackingCode = "TRK-" + idSuffix(10)
		if anyPhysical(books) {
			quote, err := s.pricing.ShippingQuote(pricingLines(books, req.Lines), *req.Method, s.destination(req.Address))
			if err != nil {
				return nil, err
			}
			shippingCost = quote.Cost
		}
	}

	discount := decimal.Zero
	if req.PromoCode != "" {
		d, err := s.promos.Validate(ctx, req.PromoCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = d.Amount
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := s.pricing.Tax(taxable)

	total := subtotal.Sub(discount).Add(shippingCost).Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	// First mutation: reserve stock atomically across the cart.
	if err := s.ledger.Reserve(ctx, invLines); err != nil {
		return nil, err
	}

	now := s.now()
	orderID := "ORD-" + idSuffix(8)
	grants := issueGrants(orderID, books, now)

	o := &Order{
		ID:           orderID,
		UserID:       req.UserID,
		Lines:        snapshotLines(books, req.Lines),
		Address:      req.Address,
		Method:       req.Method,
		Subtotal:     subtotal.Round(2),
		ShippingCost: shippingCost.Round(2),
		Tax:          tax.Round(2),
		Discount:     discount.Round(2),
		Total:        total.Round(2),
		PromoCode:    promoCodeOrEmpty(req.PromoCode),
		Status:       StatusConfirmed,
		CreatedAt:    now,
		TrackingCode: trackingCode,
		Grants:       grants,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		// Return the reserved stock; the order never existed.
		if rerr := s.ledger.Restock(ctx, invLines); rerr != nil {
			zctx.From(ctx).Error("restock after failed order create",
				zap.String("order_id", orderID), zap.Error(rerr))
		}
		return nil, errors.Wrap(err, "create order")
	}

	if req.PromoCode != "" {
		// The order is committed; a failed counter bump must not undo it.
		if err := s.promos.MarkUsed(ctx, req.PromoCode); err != nil {
			zctx.From(ctx).Warn("mark promo code used",
				zap.String("code", promo.Normalize(req.PromoCode)), zap.Error(err))
		}
	}

	return &PlaceOrderResult{
		OrderID:          o.ID,
		TransactionID:    "TXN-" + idSuffix(12),
		Total:            o.Total,
		Grants:           o.Grants,
		TrackingCode:     o.TrackingCode,
		DeliveryEstimate: s.pricing.DeliveryEstimate(req.Method),
	}, nil
}

// issueGrants creates one download grant per supported format of every
// digital-relevant line.
func issueGrants(orderID string, books []catalog.Book, now time.Time) []DownloadGrant {
	var grants []DownloadGrant
	seen := make(map[string]bool, len(books))
	for _, b := range books {
		if !b.Kind.Digital() || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		for _, f := range b.Formats {
			token := downloadToken(orderID, b.ID, f)
			grants = append(grants, DownloadGrant{
				BookID:      b.ID,
				Title:       b.Title,
				Format:      f,
				Token:       token,
				DownloadURL: "/api/download/" + token,
				ExpiresAt:   now.Add(grantTTL),
			})
		}
	}
	return grants
}

// downloadToken derives an unguessable, collision-free token from the order,
// book, and format. A one-way hash keeps tokens unpredictable.
func downloadToken(orderID, bookID string, f catalog.Format) string {
	sum := sha256.Sum256([]byte(orderID + "-" + bookID + "-" + string(f)))
	return hex.EncodeToString(sum[:])
}

func snapshotLines(books []catalog.Book, lines []CartLine) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{
			BookID:    books[i].ID,
			Title:     books[i].Title,
			UnitPrice: books[i].Price,
			Quantity:  l.Quantity,
			Kind:      books[i].Kind,
			Format:    l.Format,
		}
	}
	return out
}

func pricingLines(books []catalog.Book, lines []CartLine) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{Book: books[i], Quantity: l.Quantity}
	}
	return out
}

func anyPhysical(books []catalog.Book) bool {
	for _, b := range books {
		if b.Kind.Physical() {
			return true
		}
	}
	return false
}

func (s *Service) destination(addr *Address) string {
	if addr == nil || addr.Country == "" {
		return s.pricing.HomeCountry()
	}
	return addr.Country
}

func promoCodeOrEmpty(code string) string {
	if code == "" {
		return ""
	}
	return promo.Normalize(code)
}

// idSuffix returns n uppercase hex characters from a fresh UUID.
func idSuffix(n int) string {
	h := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(h[:n])
}
