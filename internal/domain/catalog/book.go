package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Kind classifies how a book can be purchased.
type Kind string

const (
	// KindPhysical is a printed book that ships and consumes stock.
	KindPhysical Kind = "physical"
	// KindEbook is a digital-only book with unlimited availability.
	KindEbook Kind = "ebook"
	// KindBoth is sold as a printed copy bundled with its digital formats.
	KindBoth Kind = "both"
)

// Physical reports whether the kind participates in shipping and inventory.
func (k Kind) Physical() bool {
	return k == KindPhysical || k == KindBoth
}

// Digital reports whether the kind carries downloadable formats.
func (k Kind) Digital() bool {
	return k == KindEbook || k == KindBoth
}

// Format is a supported digital download format.
type Format string

const (
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
	FormatMOBI Format = "mobi"
)

// ParseFormat converts a wire string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatEPUB, FormatPDF, FormatMOBI:
		return Format(s), nil
	}
	return "", errors.Errorf("unsupported format: %q", s)
}

// Book represents a catalog item available for purchase. Books are immutable
// after catalog load; stock lives in the inventory ledger, not here.
type Book struct {
	ID          string
	Title       string
	Author      string
	ISBN        string
	Price       decimal.Decimal
	Kind        Kind
	WeightOz    float64
	Formats     []Format
	FileSizeMB  float64
	Description string
}

// SupportsFormat reports whether the book offers the given digital format.
func (b Book) SupportsFormat(f Format) bool {
	for _, have := range b.Formats {
		if have == f {
			return true
		}
	}
	return false
}

// Repository defines read operations for the book catalog.
type Repository interface {
	List(ctx context.Context) ([]Book, error)
	GetByID(ctx context.Context, id string) (*Book, error)
	GetByIDs(ctx context.Context, ids []string) ([]Book, error)
}
