package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownCode is returned when a code is not in the configured set.
	ErrUnknownCode = errors.New("unknown promo code")
	// ErrInactive is returned when a code has been deactivated.
	ErrInactive = errors.New("promo code is no longer active")
	// ErrNotYetValid is returned before a code's validity window opens.
	ErrNotYetValid = errors.New("promo code is not yet valid")
	// ErrExpired is returned after a code's validity window closes.
	ErrExpired = errors.New("promo code has expired")
	// ErrUsageExceeded is returned when a code has exhausted its usage cap.
	ErrUsageExceeded = errors.New("promo code has reached its usage limit")
)

// MinimumNotMetError indicates the order total is below the code's
// minimum qualifying amount.
type MinimumNotMetError struct {
	Minimum decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return "minimum order amount of $" + e.Minimum.StringFixed(2) + " required for this code"
}

// Rule defines a promotional code's discount and eligibility constraints.
// A positive fixed Amount takes precedence over Percentage.
type Rule struct {
	Code         string
	Percentage   decimal.Decimal
	Amount       decimal.Decimal
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	UsageLimit   int // 0 means unlimited
	UsedCount    int
	Active       bool
	MinimumOrder decimal.Decimal
	Description  string
}

// Discount holds the outcome of a successful validation.
type Discount struct {
	Code       string
	Amount     decimal.Decimal
	FinalTotal decimal.Decimal
}

// Normalize canonicalizes a code for lookup: trimmed, upper-case.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and atomic usage accounting for promo rules.
//
// IncrementUses must be atomic per code: under concurrent use a code with a
// cap must never be incremented past it. Implementations return
// ErrUnknownCode for missing codes and ErrUsageExceeded when the cap would
// be exceeded.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

// Validator validates promo codes against an order total and records usage.
type Validator interface {
	Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*Discount, error)
	MarkUsed(ctx context.Context, code string) error
}
