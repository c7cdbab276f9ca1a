package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/entitlement"
	"github.com/bookhaven/storefront/internal/domain/inventory"
	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
	"github.com/bookhaven/storefront/internal/domain/promo"
)

// setupTestDB starts a PostgreSQL container, runs migrations, and returns a
// ready pool. Skipped in -short mode.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedBook(t *testing.T, pool *pgxpool.Pool, b catalog.Book, stock int) {
	t.Helper()
	ctx := context.Background()

	formats := make([]string, len(b.Formats))
	for i, f := range b.Formats {
		formats[i] = string(f)
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO books (id, title, author, isbn, price, kind, weight_oz, formats, file_size_mb, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Title, b.Author, b.ISBN, b.Price, string(b.Kind),
		b.WeightOz, formats, b.FileSizeMB, b.Description,
	)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO inventory (book_id, stock) VALUES ($1, $2)`, b.ID, stock)
	require.NoError(t, err)
}

func midnightLibrary() catalog.Book {
	return catalog.Book{
		ID:       "book1",
		Title:    "The Midnight Library",
		Author:   "Matt Haig",
		ISBN:     "978-0525559474",
		Price:    decimal.RequireFromString("14.99"),
		Kind:     catalog.KindBoth,
		WeightOz: 7.2,
		Formats:  []catalog.Format{catalog.FormatEPUB, catalog.FormatPDF},
	}
}

func TestBookRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewBookRepository(pool)

	seedBook(t, pool, midnightLibrary(), 50)
	seedBook(t, pool, catalog.Book{
		ID:    "book3",
		Title: "Digital Marketing Guide",
		Price: decimal.RequireFromString("9.99"),
		Kind:  catalog.KindEbook,
	}, 0)

	books, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 2)

	b, err := repo.GetByID(ctx, "book1")
	require.NoError(t, err)
	assert.Equal(t, "The Midnight Library", b.Title)
	assert.Equal(t, "14.99", b.Price.StringFixed(2))
	assert.Equal(t, catalog.KindBoth, b.Kind)
	assert.Equal(t, []catalog.Format{catalog.FormatEPUB, catalog.FormatPDF}, b.Formats)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	got, err := repo.GetByIDs(ctx, []string{"book1", "book3", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestInventoryRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewInventoryRepository(pool)

	seedBook(t, pool, midnightLibrary(), 3)

	lines := []inventory.Line{
		{BookID: "book1", Quantity: 2, Kind: catalog.KindBoth},
		{BookID: "ebook-x", Quantity: 99, Kind: catalog.KindEbook},
	}

	report, err := repo.CheckAvailability(ctx, lines)
	require.NoError(t, err)
	assert.True(t, report.AllAvailable)
	assert.Equal(t, 3, report.Lines["book1"].InStock)
	assert.True(t, report.Lines["ebook-x"].Digital)

	require.NoError(t, repo.Reserve(ctx, lines))

	report, err = repo.CheckAvailability(ctx, lines)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Lines["book1"].InStock)

	// Remaining stock is insufficient; reservation fails without decrementing.
	err = repo.Reserve(ctx, []inventory.Line{{BookID: "book1", Quantity: 2, Kind: catalog.KindBoth}})
	var oosErr *inventory.OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, 1, oosErr.Report.Lines["book1"].InStock)

	require.NoError(t, repo.Restock(ctx, []inventory.Line{{BookID: "book1", Quantity: 2, Kind: catalog.KindBoth}}))

	report, err = repo.CheckAvailability(ctx, []inventory.Line{{BookID: "book1", Quantity: 1, Kind: catalog.KindBoth}})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Lines["book1"].InStock)
}

func TestInventoryRepository_PartialCartRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewInventoryRepository(pool)

	seedBook(t, pool, midnightLibrary(), 5)
	seedBook(t, pool, catalog.Book{
		ID:    "book2",
		Title: "Atomic Habits",
		Price: decimal.RequireFromString("16.99"),
		Kind:  catalog.KindPhysical,
	}, 1)

	err := repo.Reserve(ctx, []inventory.Line{
		{BookID: "book1", Quantity: 2, Kind: catalog.KindBoth},
		{BookID: "book2", Quantity: 3, Kind: catalog.KindPhysical},
	})
	var oosErr *inventory.OutOfStockError
	require.ErrorAs(t, err, &oosErr)

	// The first line's decrement was rolled back with the transaction.
	report, err := repo.CheckAvailability(ctx, []inventory.Line{
		{BookID: "book1", Quantity: 1, Kind: catalog.KindBoth},
		{BookID: "book2", Quantity: 1, Kind: catalog.KindPhysical},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Lines["book1"].InStock)
	assert.Equal(t, 1, report.Lines["book2"].InStock)
}

func TestPromoRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPromoRepository(pool)

	from := time.Now().Add(-time.Hour).UTC()
	until := time.Now().Add(24 * time.Hour).UTC()
	_, err := pool.Exec(ctx, `
		INSERT INTO promo_codes (code, percentage, amount, valid_from, valid_until, usage_limit, used_count, active, minimum_order, description)
		VALUES ('WELCOME10', 10, 0, $1, $2, 2, 0, TRUE, 25, '10% off')`,
		from, until,
	)
	require.NoError(t, err)

	rule, err := repo.FindByCode(ctx, "welcome10")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", rule.Code)
	assert.Equal(t, "10", rule.Percentage.String())
	assert.Equal(t, 2, rule.UsageLimit)
	require.NotNil(t, rule.ValidUntil)

	_, err = repo.FindByCode(ctx, "BOGUS")
	require.ErrorIs(t, err, promo.ErrUnknownCode)

	require.NoError(t, repo.IncrementUses(ctx, "WELCOME10"))
	require.NoError(t, repo.IncrementUses(ctx, "WELCOME10"))

	err = repo.IncrementUses(ctx, "WELCOME10")
	require.ErrorIs(t, err, promo.ErrUsageExceeded)

	err = repo.IncrementUses(ctx, "BOGUS")
	require.ErrorIs(t, err, promo.ErrUnknownCode)
}

func TestOrderRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	method := pricing.MethodStandard
	placed := &order.Order{
		ID:     "ORD-AB12CD34",
		UserID: "user1",
		Lines: []order.Line{
			{BookID: "book1", Title: "The Midnight Library", UnitPrice: decimal.RequireFromString("14.99"), Quantity: 2, Kind: catalog.KindBoth, Format: catalog.FormatEPUB},
		},
		Address: &order.Address{
			FirstName: "John", LastName: "Doe", Street: "123 Main Street",
			City: "New York", State: "NY", PostalCode: "10001", Country: "United States",
		},
		Method:       &method,
		Subtotal:     decimal.RequireFromString("29.98"),
		ShippingCost: decimal.RequireFromString("4.99"),
		Tax:          decimal.RequireFromString("2.40"),
		Discount:     decimal.Zero,
		Total:        decimal.RequireFromString("37.37"),
		Status:       order.StatusConfirmed,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		TrackingCode: "TRK-1234567890",
		Grants: []order.DownloadGrant{
			{BookID: "book1", Title: "The Midnight Library", Format: catalog.FormatEPUB, Token: "tok", DownloadURL: "/api/download/tok", ExpiresAt: time.Now().UTC().Truncate(time.Microsecond)},
		},
	}
	require.NoError(t, repo.Create(ctx, placed))

	got, err := repo.GetByID(ctx, "ORD-AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, placed.UserID, got.UserID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "14.99", got.Lines[0].UnitPrice.StringFixed(2))
	require.NotNil(t, got.Address)
	assert.Equal(t, "New York", got.Address.City)
	require.NotNil(t, got.Method)
	assert.Equal(t, pricing.MethodStandard, *got.Method)
	assert.Equal(t, "37.37", got.Total.StringFixed(2))
	require.Len(t, got.Grants, 1)
	assert.Equal(t, catalog.FormatEPUB, got.Grants[0].Format)

	_, err = repo.GetByID(ctx, "ORD-MISSING1")
	require.ErrorIs(t, err, order.ErrNotFound)

	require.NoError(t, repo.UpdateStatus(ctx, "ORD-AB12CD34", order.StatusReturned))
	got, err = repo.GetByID(ctx, "ORD-AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, order.StatusReturned, got.Status)

	err = repo.UpdateStatus(ctx, "ORD-MISSING1", order.StatusShipped)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_NilOptionalFields(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	digital := &order.Order{
		ID:     "ORD-DIGITAL1",
		UserID: "user1",
		Lines: []order.Line{
			{BookID: "book3", Title: "Digital Marketing Guide", UnitPrice: decimal.RequireFromString("9.99"), Quantity: 1, Kind: catalog.KindEbook},
		},
		Subtotal:     decimal.RequireFromString("9.99"),
		ShippingCost: decimal.Zero,
		Tax:          decimal.RequireFromString("0.80"),
		Discount:     decimal.Zero,
		Total:        decimal.RequireFromString("10.79"),
		Status:       order.StatusConfirmed,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, digital))

	got, err := repo.GetByID(ctx, "ORD-DIGITAL1")
	require.NoError(t, err)
	assert.Nil(t, got.Address)
	assert.Nil(t, got.Method)
	assert.Empty(t, got.Grants)
}

func TestSubscriptionRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(pool)

	_, err := repo.GetSubscription(ctx, "user1")
	require.ErrorIs(t, err, entitlement.ErrNoSubscription)

	start := time.Now().UTC().Truncate(time.Microsecond)
	sub := &entitlement.Subscription{
		UserID:        "user1",
		Tier:          entitlement.TierMonthly,
		Start:         start,
		End:           start.Add(30 * 24 * time.Hour),
		AutoRenew:     true,
		TransactionID: "TXN-123456789ABC",
	}
	require.NoError(t, repo.PutSubscription(ctx, sub))

	got, err := repo.GetSubscription(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierMonthly, got.Tier)
	assert.True(t, got.AutoRenew)

	// Upsert replaces the prior record.
	sub.Tier = entitlement.TierYearly
	sub.End = start.Add(365 * 24 * time.Hour)
	require.NoError(t, repo.PutSubscription(ctx, sub))

	got, err = repo.GetSubscription(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierYearly, got.Tier)

	_, err = repo.GetSnapshot(ctx, "user1")
	require.ErrorIs(t, err, entitlement.ErrNoSubscription)

	snap := &entitlement.UnlockSnapshot{
		UserID:      "user1",
		Tier:        entitlement.TierYearly,
		Unlocked:    []string{"sunset", "forest"},
		AutoApplied: "sunset",
		At:          start,
	}
	require.NoError(t, repo.PutSnapshot(ctx, snap))

	gotSnap, err := repo.GetSnapshot(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset", "forest"}, gotSnap.Unlocked)
	assert.Equal(t, "sunset", gotSnap.AutoApplied)
}
