package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/member-cart/internal/domain/cart"
)

// ErrNotFound is returned when no order exists for the requested id.
var ErrNotFound = errors.New("order not found")

// Order is a checkout session handed to the payment provider, recorded with
// the totals the customer was shown when it was created.
type Order struct {
	// ID is the checkout session id issued by the provider.
	ID            string
	CartKey       string
	CustomerID    string
	CustomerEmail string
	IsMember      bool
	Lines         []cart.OrderLine
	Subtotal      decimal.Decimal
	Savings       decimal.Decimal
	Shipping      decimal.Decimal
	Total         decimal.Decimal
	CurrencyCode  string
	CheckoutURL   string
	CreatedAt     time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}

// FromSession builds the order record of a created checkout session.
func FromSession(req cart.SessionRequest, sess *cart.Session, now time.Time) *Order {
	return &Order{
		ID:            sess.ID,
		CartKey:       req.CartKey,
		CustomerID:    req.Customer.ID,
		CustomerEmail: req.Customer.Email,
		IsMember:      req.IsMember,
		Lines:         append([]cart.OrderLine(nil), req.Lines...),
		Subtotal:      req.Totals.Subtotal,
		Savings:       req.Totals.Savings,
		Shipping:      req.Totals.Shipping,
		Total:         req.Totals.GrandTotal,
		CurrencyCode:  req.Totals.CurrencyCode,
		CheckoutURL:   sess.URL,
		CreatedAt:     now,
	}
}
