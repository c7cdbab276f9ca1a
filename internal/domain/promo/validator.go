package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

var _ Validator = (*RepoValidator)(nil)

// RepoValidator implements Validator by looking up rules from a Repository.
//
// Validate is side-effect free; the order pipeline calls MarkUsed once after
// the order that applied the code has committed.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate checks the code against the order total and returns the computed
// discount. The usage counter is not touched.
func (v *RepoValidator) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, Normalize(code))
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return nil, ErrUnknownCode
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	if !rule.Active {
		return nil, ErrInactive
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrNotYetValid
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return nil, ErrUsageExceeded
	}

	if orderTotal.LessThan(rule.MinimumOrder) {
		return nil, &MinimumNotMetError{Minimum: rule.MinimumOrder}
	}

	amount := ruleDiscount(rule, orderTotal)

	return &Discount{
		Code:       rule.Code,
		Amount:     amount.Round(2),
		FinalTotal: orderTotal.Sub(amount).Round(2),
	}, nil
}

// MarkUsed increments the code's usage counter by exactly one. Calling it
// without a preceding successful Validate is a caller error.
func (v *RepoValidator) MarkUsed(ctx context.Context, code string) error {
	if err := v.repo.IncrementUses(ctx, Normalize(code)); err != nil {
		return errors.Wrap(err, "increment promo uses")
	}
	return nil
}

// ruleDiscount resolves the discount amount: a positive fixed amount wins
// over the percentage, and the result never exceeds the order total.
func ruleDiscount(rule *Rule, orderTotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	if rule.Amount.IsPositive() {
		amount = rule.Amount
	} else {
		amount = orderTotal.Mul(rule.Percentage).Div(hundred)
	}
	if amount.GreaterThan(orderTotal) {
		amount = orderTotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount
}
