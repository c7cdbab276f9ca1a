package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/entitlement"
	"github.com/bookhaven/storefront/internal/domain/fulfillment"
	"github.com/bookhaven/storefront/internal/domain/inventory"
	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
	"github.com/bookhaven/storefront/internal/domain/promo"
)

// --- In-memory fixtures ---

type memBookRepo struct {
	books []catalog.Book
}

func (m *memBookRepo) List(_ context.Context) ([]catalog.Book, error) {
	return m.books, nil
}

func (m *memBookRepo) GetByID(_ context.Context, id string) (*catalog.Book, error) {
	for _, b := range m.books {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memBookRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Book, error) {
	var out []catalog.Book
	for _, id := range ids {
		for _, b := range m.books {
			if b.ID == id {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id string, status order.Status) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func testBooks() []catalog.Book {
	return []catalog.Book{
		{
			ID: "book1", Title: "The Midnight Library", Author: "Matt Haig",
			Price: decimal.RequireFromString("14.99"), Kind: catalog.KindBoth,
			WeightOz: 7.2, Formats: []catalog.Format{catalog.FormatEPUB, catalog.FormatPDF},
		},
		{
			ID: "book3", Title: "Digital Marketing Guide", Author: "Tech Author",
			Price: decimal.RequireFromString("9.99"), Kind: catalog.KindEbook,
			Formats: []catalog.Format{catalog.FormatEPUB, catalog.FormatPDF, catalog.FormatMOBI},
		},
	}
}

func newTestHandler(t *testing.T) (*Handler, *memOrderRepo, *inventory.MemoryLedger) {
	t.Helper()

	books := &memBookRepo{books: testBooks()}
	ledger := inventory.NewMemoryLedger(map[string]int{"book1": 50})
	promos := promo.NewRepoValidator(promo.NewMemoryRepository(promo.Rule{
		Code:         "WELCOME10",
		Percentage:   decimal.NewFromInt(10),
		UsageLimit:   100,
		Active:       true,
		MinimumOrder: decimal.NewFromInt(25),
	}))
	engine := pricing.NewEngine(pricing.Config{})
	orders := &memOrderRepo{orders: make(map[string]*order.Order)}

	orderSvc := order.NewService(books, ledger, promos, engine, orders)
	tracker := fulfillment.NewTracker(orders, ledger, engine, fulfillment.Policy{})
	entitlements := entitlement.NewService(entitlement.DefaultCatalog(), entitlement.NewMemoryRepository())

	return New(books, orderSvc, tracker, promos, engine, entitlements), orders, ledger
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// --- Tests ---

func TestListBooks(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var books []bookResponse
	decodeBody(t, rec, &books)
	require.Len(t, books, 2)
	assert.Equal(t, "book1", books[0].ID)
}

func TestListShippingMethods(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/shipping-methods", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var methods []shippingMethodResponse
	decodeBody(t, rec, &methods)
	require.Len(t, methods, 4)

	rec = doRequest(t, h, http.MethodGet, "/api/shipping-methods?country=Canada", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &methods)
	require.Len(t, methods, 1)
	assert.Equal(t, pricing.MethodInternational, methods[0].Method)
}

func TestPlaceOrder_Digital(t *testing.T) {
	h, orders, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{
		UserID: "user1",
		Items:  []cartLineRequest{{BookID: "book3", Quantity: 1, Format: "epub"}},
		Payment: paymentRequest{
			Method:     "credit_card",
			CardNumber: "4242424242424242",
			CardName:   "John Doe",
			Expiry:     "12/27",
			CVC:        "123",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp placeOrderResponse
	decodeBody(t, rec, &resp)
	assert.Regexp(t, `^ORD-`, resp.OrderID)
	assert.Len(t, resp.Downloads, 3)
	assert.Len(t, orders.orders, 1)
}

func TestPlaceOrder_BadBody(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{UserID: "user1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_OutOfStock(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{
		UserID:         "user1",
		Items:          []cartLineRequest{{BookID: "book1", Quantity: 51}},
		ShippingMethod: "standard",
		Address: &order.Address{
			FirstName: "John", LastName: "Doe", Street: "123 Main Street",
			City: "New York", State: "NY", PostalCode: "10001", Country: "United States",
		},
		Payment: paymentRequest{Method: "paypal"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlaceOrder_UnknownPromo(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{
		UserID:    "user1",
		Items:     []cartLineRequest{{BookID: "book3", Quantity: 1}},
		Payment:   paymentRequest{Method: "paypal"},
		PromoCode: "BOGUS",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaceOrder_UnknownShippingMethod(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{
		UserID:         "user1",
		Items:          []cartLineRequest{{BookID: "book1", Quantity: 1}},
		ShippingMethod: "teleport",
		Payment:        paymentRequest{Method: "paypal"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTrackOrder(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{
		UserID:         "user1",
		Items:          []cartLineRequest{{BookID: "book1", Quantity: 1}},
		ShippingMethod: "standard",
		Address: &order.Address{
			FirstName: "John", LastName: "Doe", Street: "123 Main Street",
			City: "New York", State: "NY", PostalCode: "10001", Country: "United States",
		},
		Payment: paymentRequest{Method: "paypal"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var placed placeOrderResponse
	decodeBody(t, rec, &placed)

	rec = doRequest(t, h, http.MethodGet, "/api/orders/"+placed.OrderID+"/tracking", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info trackOrderResponse
	decodeBody(t, rec, &info)
	assert.Equal(t, placed.OrderID, info.OrderID)
	require.NotEmpty(t, info.Events)
	assert.Equal(t, "Order Confirmed", info.Events[0].Status)
}

func TestTrackOrder_NotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/orders/ORD-DEADBEEF/tracking", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReturnOrder(t *testing.T) {
	h, _, ledger := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", placeOrderRequest{
		UserID:         "user1",
		Items:          []cartLineRequest{{BookID: "book1", Quantity: 2}},
		ShippingMethod: "standard",
		Address: &order.Address{
			FirstName: "John", LastName: "Doe", Street: "123 Main Street",
			City: "New York", State: "NY", PostalCode: "10001", Country: "United States",
		},
		Payment: paymentRequest{Method: "paypal"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 48, ledger.Stock("book1"))

	var placed placeOrderResponse
	decodeBody(t, rec, &placed)

	rec = doRequest(t, h, http.MethodPost, "/api/orders/"+placed.OrderID+"/return", returnOrderRequest{
		BookIDs: []string{"book1"},
		Reason:  "damaged in transit",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var ret returnOrderResponse
	decodeBody(t, rec, &ret)
	assert.Regexp(t, `^RET-`, ret.ReturnID)
	// 2 * 14.99 + 4.99 shipping (all lines returned).
	assert.Equal(t, "34.97", ret.RefundAmount.StringFixed(2))
}

func TestValidatePromo(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/promo/validate", validatePromoRequest{
		Code:       "WELCOME10",
		OrderTotal: decimal.NewFromInt(100),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validatePromoResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, "10.00", resp.Discount.StringFixed(2))
	assert.Equal(t, "90.00", resp.FinalTotal.StringFixed(2))
}

func TestValidatePromo_Rejections(t *testing.T) {
	h, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		req  validatePromoRequest
	}{
		{"unknown code", validatePromoRequest{Code: "BOGUS", OrderTotal: decimal.NewFromInt(100)}},
		{"below minimum", validatePromoRequest{Code: "WELCOME10", OrderTotal: decimal.NewFromInt(20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/promo/validate", tt.req)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestSubscribe(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/subscriptions", subscribeRequest{
		UserID: "user1",
		Tier:   "monthly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp subscribeResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, entitlement.TierMonthly, resp.Tier)
	assert.Len(t, resp.Unlocked, 3)
	require.NotNil(t, resp.AutoApplied)
	assert.Equal(t, "midnight", resp.AutoApplied.ID)
}

func TestSubscribe_InvalidTier(t *testing.T) {
	h, _, _ := newTestHandler(t)

	for _, tier := range []string{"platinum", "free"} {
		rec := doRequest(t, h, http.MethodPost, "/api/subscriptions", subscribeRequest{
			UserID: "user1",
			Tier:   tier,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "tier %q", tier)
	}
}

func TestSubscriptionStatus(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/subscriptions/user1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp subscriptionStatusResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, entitlement.TierFree, resp.Tier)
	assert.False(t, resp.IsPremium)
	assert.Len(t, resp.Themes, 2)
}

func TestThemeAccess(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/themes/user1/dark", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp themeAccessResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Allowed)
	require.NotNil(t, resp.Theme)
	assert.Equal(t, "dark", resp.Theme.ID)

	rec = doRequest(t, h, http.MethodGet, "/api/themes/user1/midnight", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = themeAccessResponse{}
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Allowed)
	assert.Nil(t, resp.Theme)

	rec = doRequest(t, h, http.MethodGet, "/api/themes/user1/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
