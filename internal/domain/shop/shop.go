// Package shop is the storefront service: it resolves the viewer's
// membership, quotes catalog items and drives the viewer's cart ledger.
package shop

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/membership"
	"github.com/xenking/member-cart/internal/domain/order"
	"github.com/xenking/member-cart/internal/domain/pricing"
	"github.com/xenking/member-cart/internal/domain/product"
)

// ErrCheckoutNotFound is returned when no checkout record of the viewer's
// cart has the requested id.
var ErrCheckoutNotFound = errors.New("checkout not found")

// ProductNotFoundError indicates a requested variant is not in the catalog.
type ProductNotFoundError struct {
	VariantID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.VariantID)
}

// Viewer identifies who is looking at the storefront.
type Viewer struct {
	// SessionID selects the cart ledger.
	SessionID string
	Customer  cart.Customer
}

// Offer is a catalog item with its member quote.
type Offer struct {
	Item  product.Item
	Quote pricing.Quote
}

// CartView is the viewer's cart with aggregates computed for their
// membership.
type CartView struct {
	Items       []cart.LineItem
	Totals      cart.Totals
	Membership  membership.Context
	Checkout    cart.CheckoutState
	CartID      string
	CheckoutURL string
}

// Service encapsulates storefront business logic.
type Service struct {
	catalog  product.Repository
	members  membership.Source
	sessions *cart.Sessions
	orders   order.Repository

	addedItems metric.Int64Counter
	checkouts  metric.Int64Counter
}

// NewService creates a storefront Service. orders may be nil, in which case
// no checkout records are found.
func NewService(
	catalog product.Repository,
	members membership.Source,
	sessions *cart.Sessions,
	orders order.Repository,
	meter metric.Meter,
) (*Service, error) {
	addedItems, err := meter.Int64Counter("cart.items.added",
		metric.WithDescription("Units added to carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create added items counter")
	}
	checkouts, err := meter.Int64Counter("cart.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkouts counter")
	}
	return &Service{
		catalog:    catalog,
		members:    members,
		sessions:   sessions,
		orders:     orders,
		addedItems: addedItems,
		checkouts:  checkouts,
	}, nil
}

// Membership resolves the viewer's membership context.
func (s *Service) Membership(ctx context.Context, v Viewer) (membership.Context, error) {
	mc, err := s.members.Lookup(ctx, v.Customer.ID)
	if err != nil {
		return membership.Context{}, errors.Wrap(err, "lookup membership")
	}
	return mc, nil
}

// Offers lists the catalog with member quotes.
func (s *Service) Offers(ctx context.Context, v Viewer) ([]Offer, membership.Context, error) {
	mc, err := s.Membership(ctx, v)
	if err != nil {
		return nil, membership.Context{}, err
	}
	items, err := s.catalog.List(ctx)
	if err != nil {
		return nil, membership.Context{}, errors.Wrap(err, "list catalog")
	}
	offers := make([]Offer, len(items))
	for i, it := range items {
		offers[i] = Offer{Item: it, Quote: pricing.Resolve(it)}
	}
	return offers, mc, nil
}

// AddToCart adds quantity units of a catalog variant. The member price is
// resolved here, once, and travels with the line item.
func (s *Service) AddToCart(ctx context.Context, v Viewer, variantID string, quantity int) (*CartView, error) {
	if variantID == "" {
		return nil, cart.ErrMissingVariant
	}
	if quantity < 1 || quantity > cart.MaxLineQuantity {
		return nil, cart.ErrInvalidQuantity
	}
	it, err := s.catalog.GetByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &ProductNotFoundError{VariantID: variantID}
		}
		return nil, errors.Wrap(err, "get product")
	}

	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}
	quote := pricing.Resolve(*it)
	if err := store.AddItem(ctx, cart.LineItemInput{
		Item:            *it,
		Quantity:        quantity,
		MemberUnitPrice: quote.MemberUnitPrice(),
	}); err != nil {
		return nil, err
	}
	s.addedItems.Add(ctx, int64(quantity), metric.WithAttributes(
		attribute.String("tier", quote.Tier.String()),
	))
	return s.view(ctx, v, store)
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, v Viewer, variantID string, quantity int) (*CartView, error) {
	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateQuantity(ctx, variantID, quantity); err != nil {
		return nil, err
	}
	return s.view(ctx, v, store)
}

// RemoveItem removes a line. Removing an absent line is not an error.
func (s *Service) RemoveItem(ctx context.Context, v Viewer, variantID string) (*CartView, error) {
	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}
	store.RemoveItem(ctx, variantID)
	return s.view(ctx, v, store)
}

// Clear empties the viewer's cart.
func (s *Service) Clear(ctx context.Context, v Viewer) (*CartView, error) {
	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}
	store.Clear(ctx)
	return s.view(ctx, v, store)
}

// View returns the viewer's cart.
func (s *Service) View(ctx context.Context, v Viewer) (*CartView, error) {
	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, v, store)
}

// Checkout creates a checkout session for the viewer's cart. Errors from the
// ledger (cart.ErrEmptyCart, cart.ErrCheckoutInProgress, *cart.CheckoutError)
// are returned unwrapped.
func (s *Service) Checkout(ctx context.Context, v Viewer) (*cart.CheckoutResult, error) {
	mc, err := s.Membership(ctx, v)
	if err != nil {
		return nil, err
	}
	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}

	res, err := store.CreateCheckout(ctx, cart.CheckoutRequest{
		Customer: v.Customer,
		IsMember: mc.IsSubscribed,
	})
	s.checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", checkoutOutcome(err)),
		attribute.Bool("member", mc.IsSubscribed),
	))
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Checkout created",
		zap.String("cart_id", res.CartID),
		zap.Bool("member", mc.IsSubscribed),
		zap.Bool("redirected", res.Redirected),
	)
	return res, nil
}

// CheckoutRecord returns the recorded checkout session id. Records of
// other carts are reported as ErrCheckoutNotFound.
func (s *Service) CheckoutRecord(ctx context.Context, v Viewer, id string) (*order.Order, error) {
	if s.orders == nil {
		return nil, ErrCheckoutNotFound
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, errors.Wrap(err, "get checkout record")
	}
	if o.CartKey != s.sessions.Key(v.SessionID) {
		return nil, ErrCheckoutNotFound
	}
	return o, nil
}

// ResetCheckout returns a finished checkout to idle.
func (s *Service) ResetCheckout(ctx context.Context, v Viewer) (*CartView, error) {
	store, err := s.store(ctx, v)
	if err != nil {
		return nil, err
	}
	store.ResetCheckout()
	return s.view(ctx, v, store)
}

func (s *Service) store(ctx context.Context, v Viewer) (*cart.Store, error) {
	store, err := s.sessions.Get(ctx, v.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "open cart")
	}
	return store, nil
}

func (s *Service) view(ctx context.Context, v Viewer, store *cart.Store) (*CartView, error) {
	mc, err := s.Membership(ctx, v)
	if err != nil {
		return nil, err
	}
	return &CartView{
		Items:       store.Items(),
		Totals:      store.Totals(mc.IsSubscribed),
		Membership:  mc,
		Checkout:    store.CheckoutState(),
		CartID:      store.CartID(),
		CheckoutURL: store.CheckoutURL(),
	}, nil
}

func checkoutOutcome(err error) string {
	var cerr *cart.CheckoutError
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, cart.ErrEmptyCart):
		return "empty"
	case errors.Is(err, cart.ErrCheckoutInProgress):
		return "in_progress"
	case errors.As(err, &cerr):
		return "failed"
	default:
		return "error"
	}
}
