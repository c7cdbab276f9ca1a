package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/storefront/internal/domain/catalog"
)

const (
	listBooksSQL = `SELECT id, title, author, isbn, price, kind, weight_oz, formats, file_size_mb, description
		FROM books ORDER BY id`

	getBookByIDSQL = `SELECT id, title, author, isbn, price, kind, weight_oz, formats, file_size_mb, description
		FROM books WHERE id = $1`

	getBooksByIDsSQL = `SELECT id, title, author, isbn, price, kind, weight_oz, formats, file_size_mb, description
		FROM books WHERE id = ANY($1)`
)

var _ catalog.Repository = (*BookRepository)(nil)

// BookRepository implements catalog.Repository backed by PostgreSQL.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository returns a BookRepository that uses the given pool.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// List returns every book in the catalog ordered by ID.
func (r *BookRepository) List(ctx context.Context) ([]catalog.Book, error) {
	rows, err := r.pool.Query(ctx, listBooksSQL)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// GetByID returns a single book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*catalog.Book, error) {
	rows, err := r.pool.Query(ctx, getBookByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}
	return &b, nil
}

// GetByIDs returns books matching any of the given IDs.
func (r *BookRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Book, error) {
	rows, err := r.pool.Query(ctx, getBooksByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

func scanBook(row pgx.CollectableRow) (catalog.Book, error) {
	var (
		b       catalog.Book
		kind    string
		formats []string
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Price,
		&kind, &b.WeightOz, &formats, &b.FileSizeMB, &b.Description,
	)
	b.Kind = catalog.Kind(kind)
	b.Formats = make([]catalog.Format, len(formats))
	for i, f := range formats {
		b.Formats[i] = catalog.Format(f)
	}
	return b, err
}
