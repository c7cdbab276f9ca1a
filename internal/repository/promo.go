package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/storefront/internal/domain/promo"
)

const (
	findPromoByCodeSQL = `
SELECT code, percentage, amount, valid_from, valid_until,
       usage_limit, used_count, active, minimum_order, description
FROM promo_codes
WHERE code = $1`

	// The WHERE clause enforces the usage cap at increment time so two
	// concurrent orders cannot both consume the last use of a code.
	incrementPromoUsesSQL = `
UPDATE promo_codes
SET used_count = used_count + 1
WHERE code = $1
  AND active
  AND (usage_limit = 0 OR used_count < usage_limit)`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository using the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo rule by its normalized code.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	rows, err := r.pool.Query(ctx, findPromoByCodeSQL, promo.Normalize(code))
	if err != nil {
		return nil, fmt.Errorf("finding promo code: %w", err)
	}
	rule, err := pgx.CollectExactlyOneRow(rows, scanPromoRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrUnknownCode
		}
		return nil, errors.Wrap(err, "scanning promo code")
	}
	return &rule, nil
}

// IncrementUses bumps the usage counter, respecting the usage cap.
func (r *PromoRepository) IncrementUses(ctx context.Context, code string) error {
	code = promo.Normalize(code)
	tag, err := r.pool.Exec(ctx, incrementPromoUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing promo uses: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// Distinguish a missing code from one that hit its cap.
	if _, err := r.FindByCode(ctx, code); err != nil {
		return err
	}
	return promo.ErrUsageExceeded
}

func scanPromoRule(row pgx.CollectableRow) (promo.Rule, error) {
	var rule promo.Rule
	err := row.Scan(
		&rule.Code,
		&rule.Percentage,
		&rule.Amount,
		&rule.ValidFrom,
		&rule.ValidUntil,
		&rule.UsageLimit,
		&rule.UsedCount,
		&rule.Active,
		&rule.MinimumOrder,
		&rule.Description,
	)
	return rule, err
}
