package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog item does not exist.
var ErrNotFound = errors.New("product not found")

// Item is a purchasable catalog entry: a fragrance variant or a membership plan.
// Items are immutable once fetched; the cart keeps its own copy.
type Item struct {
	// ID is the variant identifier, stable per variant.
	ID string
	// ExternalVariantID identifies the variant at the checkout provider.
	// Empty means ID is used as-is.
	ExternalVariantID string
	Title             string
	Vendor            string
	// TierHint carries structured tier metadata from the catalog, when present.
	TierHint     string
	UnitPrice    decimal.Decimal
	CurrencyCode string
}

// CheckoutVariantID returns the identifier to send to the checkout provider.
func (i Item) CheckoutVariantID() string {
	if i.ExternalVariantID != "" {
		return i.ExternalVariantID
	}
	return i.ID
}

// Repository defines read operations for the catalog source.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
}
