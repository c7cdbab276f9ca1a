package entitlement

import (
	"github.com/go-faster/errors"
)

// ErrInvalidTier is returned when a tier string is not purchasable.
var ErrInvalidTier = errors.New("invalid subscription tier")

// Tier is an ordered subscription level gating theme access.
type Tier string

const (
	TierFree    Tier = "free"
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
)

// tierOrder is the tier lattice: free < monthly < yearly. Adding a tier is
// a one-place change here.
var tierOrder = []Tier{TierFree, TierMonthly, TierYearly}

func (t Tier) rank() int {
	for i, o := range tierOrder {
		if o == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// Includes reports whether tier t entitles everything required at tier o.
// yearly implies monthly implies free.
func (t Tier) Includes(o Tier) bool {
	return t.rank() >= o.rank() && o.rank() >= 0
}

// Purchasable reports whether the tier can be bought. Free is the absence
// of a subscription, not a product.
func (t Tier) Purchasable() bool {
	return t == TierMonthly || t == TierYearly
}

// ParseTier converts a wire string to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", errors.Wrapf(ErrInvalidTier, "%q", s)
	}
	return t, nil
}
