package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/member-cart/internal/domain/product"
)

const (
	productColumns = `id, external_variant_id, title, vendor, tier_hint, unit_price, currency_code`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY position, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			external_variant_id = EXCLUDED.external_variant_id,
			title = EXCLUDED.title,
			vendor = EXCLUDED.vendor,
			tier_hint = EXCLUDED.tier_hint,
			unit_price = EXCLUDED.unit_price,
			currency_code = EXCLUDED.currency_code,
			position = EXCLUDED.position`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the catalog in display order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Item, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single catalog item by variant id.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Item, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &it, nil
}

// Upsert inserts or replaces catalog items in one batch. position follows
// slice order.
func (r *ProductRepository) Upsert(ctx context.Context, items []product.Item) error {
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(upsertProductSQL,
			it.ID, it.ExternalVariantID, it.Title, it.Vendor, it.TierHint,
			it.UnitPrice, it.CurrencyCode, i,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Item, error) {
	var it product.Item
	err := row.Scan(
		&it.ID, &it.ExternalVariantID, &it.Title, &it.Vendor, &it.TierHint,
		&it.UnitPrice, &it.CurrencyCode,
	)
	return it, err
}
