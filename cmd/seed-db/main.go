package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/storefront/db"
	"github.com/bookhaven/storefront/internal/repository"
)

type bookJSON struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	ISBN        string          `json:"isbn"`
	Price       decimal.Decimal `json:"price"`
	Kind        string          `json:"kind"`
	WeightOz    float64         `json:"weight_oz"`
	Formats     []string        `json:"formats"`
	FileSizeMB  float64         `json:"file_size_mb"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
}

type promoJSON struct {
	Code         string          `json:"code"`
	Percentage   decimal.Decimal `json:"percentage"`
	ValidDays    int             `json:"valid_days"`
	UsageLimit   int             `json:"usage_limit"`
	Active       bool            `json:"active"`
	MinimumOrder decimal.Decimal `json:"minimum_order"`
	Description  string          `json:"description"`
}

const (
	upsertBookSQL = `
INSERT INTO books (id, title, author, isbn, price, kind, weight_oz, formats, file_size_mb, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	isbn = EXCLUDED.isbn,
	price = EXCLUDED.price,
	kind = EXCLUDED.kind,
	weight_oz = EXCLUDED.weight_oz,
	formats = EXCLUDED.formats,
	file_size_mb = EXCLUDED.file_size_mb,
	description = EXCLUDED.description`

	upsertStockSQL = `
INSERT INTO inventory (book_id, stock)
VALUES ($1, $2)
ON CONFLICT (book_id) DO UPDATE SET stock = EXCLUDED.stock`

	upsertPromoSQL = `
INSERT INTO promo_codes (code, percentage, amount, valid_from, valid_until, usage_limit, used_count, active, minimum_order, description)
VALUES ($1, $2, 0, $3, $4, $5, 0, $6, $7, $8)
ON CONFLICT (code) DO UPDATE SET
	percentage = EXCLUDED.percentage,
	valid_from = EXCLUDED.valid_from,
	valid_until = EXCLUDED.valid_until,
	usage_limit = EXCLUDED.usage_limit,
	active = EXCLUDED.active,
	minimum_order = EXCLUDED.minimum_order,
	description = EXCLUDED.description`
)

func main() {
	var (
		databaseURL string
		booksFile   string
		promosFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&booksFile, "books-file", "", "path to books JSON file (defaults to embedded seed)")
	flag.StringVar(&promosFile, "promos-file", "", "path to promo codes JSON file (defaults to embedded seed)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, booksFile, promosFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, booksFile, promosFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedBooks(ctx, pool, booksFile); err != nil {
		return errors.Wrap(err, "seed books")
	}

	if err := seedPromoCodes(ctx, pool, promosFile); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	return nil
}

func seedBooks(ctx context.Context, pool *pgxpool.Pool, booksFile string) error {
	data, err := seedData(booksFile, db.SeedBooks)
	if err != nil {
		return err
	}

	var books []bookJSON
	if err := json.Unmarshal(data, &books); err != nil {
		return errors.Wrap(err, "parse books JSON")
	}

	slog.Info("upserting books", slog.Int("count", len(books)))

	for _, b := range books {
		formats := b.Formats
		if formats == nil {
			formats = []string{}
		}
		if _, err := pool.Exec(ctx, upsertBookSQL,
			b.ID, b.Title, b.Author, b.ISBN, b.Price, b.Kind,
			b.WeightOz, formats, b.FileSizeMB, b.Description,
		); err != nil {
			return errors.Wrapf(err, "upsert book %s", b.ID)
		}
		if _, err := pool.Exec(ctx, upsertStockSQL, b.ID, b.Stock); err != nil {
			return errors.Wrapf(err, "upsert stock for %s", b.ID)
		}

		slog.Info("upserted book", slog.String("id", b.ID), slog.String("title", b.Title))
	}

	return nil
}

func seedPromoCodes(ctx context.Context, pool *pgxpool.Pool, promosFile string) error {
	data, err := seedData(promosFile, db.SeedPromoCodes)
	if err != nil {
		return err
	}

	var promos []promoJSON
	if err := json.Unmarshal(data, &promos); err != nil {
		return errors.Wrap(err, "parse promo codes JSON")
	}

	slog.Info("upserting promo codes", slog.Int("count", len(promos)))

	now := time.Now()
	for _, p := range promos {
		var validFrom, validUntil *time.Time
		if p.ValidDays > 0 {
			until := now.AddDate(0, 0, p.ValidDays)
			validFrom, validUntil = &now, &until
		}
		if _, err := pool.Exec(ctx, upsertPromoSQL,
			p.Code, p.Percentage, validFrom, validUntil,
			p.UsageLimit, p.Active, p.MinimumOrder, p.Description,
		); err != nil {
			return errors.Wrapf(err, "upsert promo code %s", p.Code)
		}

		slog.Info("upserted promo code", slog.String("code", p.Code), slog.String("description", p.Description))
	}

	return nil
}

// seedData reads path when given, falling back to the embedded seed.
func seedData(path string, embedded []byte) ([]byte, error) {
	if path == "" {
		return embedded, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}
