package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhaven/storefront/internal/domain/entitlement"
)

const (
	getSubscriptionSQL = `
SELECT user_id, tier, start_at, end_at, auto_renew, transaction_id
FROM subscriptions
WHERE user_id = $1`

	putSubscriptionSQL = `
INSERT INTO subscriptions (user_id, tier, start_at, end_at, auto_renew, transaction_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
	tier = EXCLUDED.tier,
	start_at = EXCLUDED.start_at,
	end_at = EXCLUDED.end_at,
	auto_renew = EXCLUDED.auto_renew,
	transaction_id = EXCLUDED.transaction_id`

	getSnapshotSQL = `
SELECT user_id, tier, unlocked, auto_applied, created_at
FROM unlock_snapshots
WHERE user_id = $1`

	putSnapshotSQL = `
INSERT INTO unlock_snapshots (user_id, tier, unlocked, auto_applied, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
	tier = EXCLUDED.tier,
	unlocked = EXCLUDED.unlocked,
	auto_applied = EXCLUDED.auto_applied,
	created_at = EXCLUDED.created_at`
)

var _ entitlement.Repository = (*SubscriptionRepository)(nil)

// SubscriptionRepository implements entitlement.Repository backed by
// PostgreSQL. One subscription and one unlock snapshot per user; purchases
// upsert over the prior record.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository returns a SubscriptionRepository using the
// given pool.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// GetSubscription loads a user's subscription record.
func (r *SubscriptionRepository) GetSubscription(ctx context.Context, userID string) (*entitlement.Subscription, error) {
	rows, err := r.pool.Query(ctx, getSubscriptionSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting subscription: %w", err)
	}
	sub, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (entitlement.Subscription, error) {
		var (
			s    entitlement.Subscription
			tier string
		)
		err := row.Scan(&s.UserID, &tier, &s.Start, &s.End, &s.AutoRenew, &s.TransactionID)
		s.Tier = entitlement.Tier(tier)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entitlement.ErrNoSubscription
		}
		return nil, errors.Wrap(err, "scanning subscription")
	}
	return &sub, nil
}

// PutSubscription inserts or replaces a user's subscription.
func (r *SubscriptionRepository) PutSubscription(ctx context.Context, sub *entitlement.Subscription) error {
	_, err := r.pool.Exec(ctx, putSubscriptionSQL,
		sub.UserID, string(sub.Tier), sub.Start, sub.End, sub.AutoRenew, sub.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("storing subscription: %w", err)
	}
	return nil
}

// GetSnapshot loads a user's latest unlock snapshot.
func (r *SubscriptionRepository) GetSnapshot(ctx context.Context, userID string) (*entitlement.UnlockSnapshot, error) {
	rows, err := r.pool.Query(ctx, getSnapshotSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting unlock snapshot: %w", err)
	}
	snap, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (entitlement.UnlockSnapshot, error) {
		var (
			s    entitlement.UnlockSnapshot
			tier string
		)
		err := row.Scan(&s.UserID, &tier, &s.Unlocked, &s.AutoApplied, &s.At)
		s.Tier = entitlement.Tier(tier)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entitlement.ErrNoSubscription
		}
		return nil, errors.Wrap(err, "scanning unlock snapshot")
	}
	return &snap, nil
}

// PutSnapshot inserts or replaces a user's unlock snapshot.
func (r *SubscriptionRepository) PutSnapshot(ctx context.Context, snap *entitlement.UnlockSnapshot) error {
	_, err := r.pool.Exec(ctx, putSnapshotSQL,
		snap.UserID, string(snap.Tier), snap.Unlocked, snap.AutoApplied, snap.At,
	)
	if err != nil {
		return fmt.Errorf("storing unlock snapshot: %w", err)
	}
	return nil
}
