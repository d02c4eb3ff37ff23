package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/member-cart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO checkout_sessions
		(id, cart_key, customer_id, customer_email, is_member, lines,
		 subtotal, savings, shipping, total, currency_code, checkout_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT id, cart_key, customer_id, customer_email, is_member, lines,
		subtotal, savings, shipping, total, currency_code, checkout_url, created_at
		FROM checkout_sessions WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a checkout session record. Order lines are stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return errors.Wrap(err, "marshal order lines")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CartKey, o.CustomerID, o.CustomerEmail, o.IsMember, linesJSON,
		o.Subtotal, o.Savings, o.Shipping, o.Total, o.CurrencyCode, o.CheckoutURL, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// GetByID returns a checkout session record.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		linesJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.CartKey, &o.CustomerID, &o.CustomerEmail, &o.IsMember, &linesJSON,
		&o.Subtotal, &o.Savings, &o.Shipping, &o.Total, &o.CurrencyCode, &o.CheckoutURL, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return o, errors.Wrap(err, "unmarshal order lines")
	}
	return o, nil
}
