package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/member-cart/internal/domain/membership"
)

const (
	findMembershipSQL = `SELECT customer_id, active, billing_interval, unlocks_at
		FROM memberships WHERE customer_id = $1`

	upsertMembershipSQL = `INSERT INTO memberships (customer_id, active, billing_interval, unlocks_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (customer_id) DO UPDATE SET
			active = EXCLUDED.active,
			billing_interval = EXCLUDED.billing_interval,
			unlocks_at = EXCLUDED.unlocks_at,
			updated_at = now()`
)

var _ membership.Repository = (*MembershipRepository)(nil)

// MembershipRepository implements membership.Repository backed by PostgreSQL.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository returns a MembershipRepository that uses the given pool.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// FindByCustomer returns the customer's subscription, or nil when there is none.
func (r *MembershipRepository) FindByCustomer(ctx context.Context, customerID string) (*membership.Record, error) {
	rows, err := r.pool.Query(ctx, findMembershipSQL, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "find membership %q", customerID)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanMembership)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find membership %q", customerID)
	}
	return &rec, nil
}

// Upsert stores subscription records.
func (r *MembershipRepository) Upsert(ctx context.Context, recs []membership.Record) error {
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(upsertMembershipSQL,
			rec.CustomerID, rec.Active, string(rec.BillingInterval), rec.UnlocksAt,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert memberships")
	}
	return nil
}

func scanMembership(row pgx.CollectableRow) (membership.Record, error) {
	var (
		rec       membership.Record
		interval  string
		unlocksAt *time.Time
	)
	if err := row.Scan(&rec.CustomerID, &rec.Active, &interval, &unlocksAt); err != nil {
		return rec, err
	}
	rec.BillingInterval = membership.Interval(interval)
	rec.UnlocksAt = unlocksAt
	return rec, nil
}
