// Package cart implements the cart ledger: an ordered set of line items keyed
// by variant, the aggregates derived from it, and the checkout hand-off.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotificationKind classifies a user-visible notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyInfo    NotificationKind = "info"
	NotifyError   NotificationKind = "error"
)

// Notification is a dismissable message for the viewer.
type Notification struct {
	Kind    NotificationKind
	Message string
}

// Notifier receives notifications emitted by ledger operations.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

var nopNotifier = NotifierFunc(func(context.Context, Notification) {})

// Options configures a Store.
type Options struct {
	// Persister defaults to a fresh MemoryPersister.
	Persister Persister
	// Notifier defaults to discarding notifications.
	Notifier Notifier
	Checkout Checkouter
	// Opener is tried after a successful checkout. Nil means the caller
	// always follows the URL manually.
	Opener   Opener
	Shipping ShippingPolicy
}

// Store owns the line items of one shopping session. All methods are safe
// for concurrent use; mutations apply in call order and every read observes
// all mutations that completed before it.
type Store struct {
	key      string
	persist  Persister
	notifier Notifier
	checkout Checkouter
	opener   Opener
	shipping ShippingPolicy

	mu          sync.Mutex
	items       []LineItem
	cartID      string
	checkoutURL string
	state       CheckoutState
}

// Open creates a Store for the session key and hydrates it from the
// persister. A stored ledger that cannot be decoded hydrates as empty.
func Open(ctx context.Context, key string, opts Options) (*Store, error) {
	s := &Store{
		key:      key,
		persist:  opts.Persister,
		notifier: opts.Notifier,
		checkout: opts.Checkout,
		opener:   opts.Opener,
		shipping: opts.Shipping,
	}
	if s.persist == nil {
		s.persist = NewMemoryPersister()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier
	}
	if s.shipping == (ShippingPolicy{}) {
		s.shipping = DefaultShippingPolicy
	}

	data, err := s.persist.Load(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if data == nil {
		return s, nil
	}
	snap, items, err := decodeSnapshot(data)
	if err != nil {
		zctx.From(ctx).Warn("Discarding unreadable cart",
			zap.String("cart_key", key),
			zap.Error(err),
		)
		return s, nil
	}
	s.items = items
	s.cartID = snap.CartID
	s.checkoutURL = snap.CheckoutURL
	return s, nil
}

// Key returns the session key the store persists under.
func (s *Store) Key() string { return s.key }

// AddItem merges the candidate into the ledger. An existing row for the same
// variant only gains quantity; its snapshot and member price stay as first
// added.
func (s *Store) AddItem(ctx context.Context, in LineItemInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if len(s.items) > 0 && s.items[0].Item.CurrencyCode != in.Item.CurrencyCode {
		s.mu.Unlock()
		return errors.Wrapf(ErrCurrencyMismatch, "%s in %s cart", in.Item.CurrencyCode, s.items[0].Item.CurrencyCode)
	}
	title := in.Item.Title
	if i := indexOf(s.items, in.Item.ID); i >= 0 {
		if s.items[i].Quantity > MaxLineQuantity-in.Quantity {
			s.mu.Unlock()
			return ErrInvalidQuantity
		}
		s.items[i].Quantity += in.Quantity
		title = s.items[i].Item.Title
	} else {
		s.items = append(s.items, LineItem{
			VariantID:       in.Item.ID,
			Item:            in.Item,
			Quantity:        in.Quantity,
			MemberUnitPrice: in.MemberUnitPrice,
		})
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notifier.Notify(ctx, Notification{Kind: NotifySuccess, Message: fmt.Sprintf("Added %s to cart", title)})
	return nil
}

// UpdateQuantity replaces the quantity of a row. A quantity of zero or less
// removes the row; one above MaxLineQuantity is rejected with
// ErrInvalidQuantity. Updating an absent variant is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, variantID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(ctx, variantID)
		return nil
	}
	if quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, variantID)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = quantity
	s.persistLocked(ctx)
	return nil
}

// RemoveItem deletes the row for variantID and reports whether one existed.
// Removing an absent variant is a no-op.
func (s *Store) RemoveItem(ctx context.Context, variantID string) bool {
	s.mu.Lock()
	i := indexOf(s.items, variantID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notifier.Notify(ctx, Notification{Kind: NotifyInfo, Message: fmt.Sprintf("Removed %s from cart", removed.Item.Title)})
	return true
}

// Clear empties the ledger and forgets the last checkout session.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.cartID = ""
	s.checkoutURL = ""
	if s.state.Phase != PhaseSubmitting {
		s.state = CheckoutState{}
	}
	s.persistLocked(ctx)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LineItem(nil), s.items...)
}

// ItemCount returns the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ItemCount(s.items)
}

// Subtotal returns the ledger subtotal for the viewer.
func (s *Store) Subtotal(isMember bool) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.items, isMember)
}

// Savings returns the member savings for the viewer.
func (s *Store) Savings(isMember bool) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Savings(s.items, isMember)
}

// ShippingCost returns the shipping charge for the viewer.
func (s *Store) ShippingCost(isMember bool) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping.ShippingCost(s.items, isMember)
}

// GrandTotal returns subtotal plus shipping for the viewer.
func (s *Store) GrandTotal(isMember bool) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping.GrandTotal(s.items, isMember)
}

// Totals returns every aggregate for the viewer computed from one consistent
// view of the ledger.
func (s *Store) Totals(isMember bool) Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping.Summarize(s.items, isMember)
}

// CartID returns the identifier of the last successful checkout session.
func (s *Store) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartID
}

// CheckoutURL returns the redirect URL of the last successful checkout.
func (s *Store) CheckoutURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkoutURL
}

// persistLocked writes the ledger. Failures are logged and never undo the
// mutation. Caller must hold s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := encodeSnapshot(s.items, s.cartID, s.checkoutURL)
	if err == nil {
		err = s.persist.Save(ctx, s.key, data)
	}
	if err != nil {
		zctx.From(ctx).Warn("Persist cart",
			zap.String("cart_key", s.key),
			zap.Error(err),
		)
	}
}
