package entitlement

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNoSubscription is returned by repositories when a user has no
// subscription record.
var ErrNoSubscription = errors.New("no subscription")

// Subscription durations per purchasable tier.
const (
	monthlyTerm = 30 * 24 * time.Hour
	yearlyTerm  = 365 * 24 * time.Hour
)

// Subscription is a user's current subscription. At most one record exists
// per user; a new purchase replaces the prior one.
type Subscription struct {
	UserID        string    `json:"user_id"`
	Tier          Tier      `json:"tier"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	AutoRenew     bool      `json:"auto_renew"`
	TransactionID string    `json:"transaction_id"`
}

// UnlockSnapshot records what a subscription purchase unlocked, for later
// status queries.
type UnlockSnapshot struct {
	UserID      string    `json:"user_id"`
	Tier        Tier      `json:"tier"`
	Unlocked    []string  `json:"unlocked"`
	AutoApplied string    `json:"auto_applied,omitempty"`
	At          time.Time `json:"at"`
}

// Repository persists subscriptions and unlock snapshots per user.
// Get methods return ErrNoSubscription when the user has no record.
type Repository interface {
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	PutSubscription(ctx context.Context, sub *Subscription) error
	GetSnapshot(ctx context.Context, userID string) (*UnlockSnapshot, error)
	PutSnapshot(ctx context.Context, snap *UnlockSnapshot) error
}

// ApplyResult is the outcome of a subscription purchase.
type ApplyResult struct {
	Subscription *Subscription
	Unlocked     []Theme
	AutoApplied  *Theme
}

// Status is a user's current entitlement view.
type Status struct {
	Tier          Tier
	IsPremium     bool
	Themes        []Theme
	Active        bool
	Expired       bool
	End           *time.Time
	NewlyUnlocked []string
	AutoApplied   string
}

// Service maps subscription purchases to theme entitlements.
type Service struct {
	catalog *Catalog
	subs    Repository
	now     func() time.Time
}

// NewService creates an entitlement Service over the given theme catalog
// and subscription store.
func NewService(catalog *Catalog, subs Repository) *Service {
	return &Service{catalog: catalog, subs: subs, now: time.Now}
}

// Catalog exposes the theme catalog for read-only listing.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Apply processes a subscription purchase: replaces any prior record,
// computes the newly unlocked themes relative to the previous tier, and
// auto-applies the first of them in catalog order.
//
// Repurchasing the current tier resets the term and unlocks nothing.
func (s *Service) Apply(ctx context.Context, userID string, tier Tier, transactionID string) (*ApplyResult, error) {
	if !tier.Purchasable() {
		return nil, errors.Wrapf(ErrInvalidTier, "%q", tier)
	}

	oldTier := TierFree
	if prior, err := s.subs.GetSubscription(ctx, userID); err == nil {
		// The stored tier counts even when the term has lapsed; expiry is
		// evaluated lazily by Status, not here. A lapsed yearly subscriber
		// repurchasing yearly unlocks nothing new.
		oldTier = prior.Tier
	} else if !errors.Is(err, ErrNoSubscription) {
		return nil, errors.Wrap(err, "get subscription")
	}

	start := s.now()
	term := monthlyTerm
	if tier == TierYearly {
		term = yearlyTerm
	}

	sub := &Subscription{
		UserID:        userID,
		Tier:          tier,
		Start:         start,
		End:           start.Add(term),
		AutoRenew:     true,
		TransactionID: transactionID,
	}
	if err := s.subs.PutSubscription(ctx, sub); err != nil {
		return nil, errors.Wrap(err, "put subscription")
	}

	unlocked := s.catalog.NewlyUnlocked(oldTier, tier)
	var auto *Theme
	if len(unlocked) > 0 {
		auto = &unlocked[0]
	}

	snap := &UnlockSnapshot{
		UserID:   userID,
		Tier:     tier,
		Unlocked: themeIDs(unlocked),
		At:       start,
	}
	if auto != nil {
		snap.AutoApplied = auto.ID
	}
	if err := s.subs.PutSnapshot(ctx, snap); err != nil {
		return nil, errors.Wrap(err, "put unlock snapshot")
	}

	return &ApplyResult{
		Subscription: sub,
		Unlocked:     unlocked,
		AutoApplied:  auto,
	}, nil
}

// Status reports the user's tier, entitled themes, and the latest unlock
// snapshot. Expiry is evaluated lazily here, not by a background sweep.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return &Status{
				Tier:   TierFree,
				Themes: s.catalog.ThemesForTier(TierFree),
			}, nil
		}
		return nil, errors.Wrap(err, "get subscription")
	}

	if !s.now().Before(sub.End) {
		return &Status{
			Tier:    TierFree,
			Themes:  s.catalog.ThemesForTier(TierFree),
			Expired: true,
		}, nil
	}

	st := &Status{
		Tier:      sub.Tier,
		IsPremium: true,
		Themes:    s.catalog.ThemesForTier(sub.Tier),
		Active:    true,
		End:       &sub.End,
	}
	if snap, err := s.subs.GetSnapshot(ctx, userID); err == nil {
		st.NewlyUnlocked = snap.Unlocked
		st.AutoApplied = snap.AutoApplied
	} else if !errors.Is(err, ErrNoSubscription) {
		return nil, errors.Wrap(err, "get unlock snapshot")
	}
	return st, nil
}

// HasAccess reports whether the user may apply the given theme. Unknown
// themes are never accessible; without an active subscription only
// free-tier themes are.
func (s *Service) HasAccess(ctx context.Context, userID, themeID string) (bool, error) {
	theme, ok := s.catalog.Get(themeID)
	if !ok {
		return false, nil
	}

	tier := TierFree
	sub, err := s.subs.GetSubscription(ctx, userID)
	switch {
	case err == nil:
		if s.now().Before(sub.End) {
			tier = sub.Tier
		}
	case errors.Is(err, ErrNoSubscription):
	default:
		return false, errors.Wrap(err, "get subscription")
	}

	return tier.Includes(theme.Tier), nil
}

func themeIDs(themes []Theme) []string {
	ids := make([]string, len(themes))
	for i, t := range themes {
		ids[i] = t.ID
	}
	return ids
}
