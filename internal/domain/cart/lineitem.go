package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/member-cart/internal/domain/product"
)

// MaxLineQuantity bounds the quantity of a single line.
const MaxLineQuantity = 999

var (
	// ErrInvalidQuantity is returned when a quantity is below one or would
	// take a line above MaxLineQuantity.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")
	// ErrMissingVariant is returned when an add carries no variant id.
	ErrMissingVariant = errors.New("variant id required")
	// ErrCurrencyMismatch is returned when an item's currency differs from
	// the currency of items already in the cart.
	ErrCurrencyMismatch = errors.New("currency does not match cart")
)

// LineItem is one variant-and-quantity row of the ledger.
type LineItem struct {
	VariantID string
	// Item is a snapshot taken at add time; later catalog changes do not
	// affect rows already in the cart.
	Item     product.Item
	Quantity int
	// MemberUnitPrice is resolved once at add time. Invalid means no member
	// price applies.
	MemberUnitPrice decimal.NullDecimal
}

// LineItemInput is a candidate row for AddItem.
type LineItemInput struct {
	Item            product.Item
	Quantity        int
	MemberUnitPrice decimal.NullDecimal
}

func (in LineItemInput) validate() error {
	if in.Item.ID == "" {
		return ErrMissingVariant
	}
	if in.Quantity < 1 || in.Quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

// OrderLine is the representation of a line item sent to the checkout
// collaborator.
type OrderLine struct {
	ExternalVariantID string `json:"externalVariantId"`
	Quantity          int    `json:"quantity"`
}

func orderLines(items []LineItem) []OrderLine {
	lines := make([]OrderLine, len(items))
	for i, it := range items {
		lines[i] = OrderLine{
			ExternalVariantID: it.Item.CheckoutVariantID(),
			Quantity:          it.Quantity,
		}
	}
	return lines
}

func indexOf(items []LineItem, variantID string) int {
	for i := range items {
		if items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}
