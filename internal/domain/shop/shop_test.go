package shop

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/membership"
	"github.com/xenking/member-cart/internal/domain/order"
	"github.com/xenking/member-cart/internal/domain/pricing"
	"github.com/xenking/member-cart/internal/domain/product"
)

// --- Mock implementations ---

type mockCatalog struct {
	items  []product.Item
	getErr error
}

func (m *mockCatalog) List(_ context.Context) ([]product.Item, error) {
	return m.items, nil
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*product.Item, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for i := range m.items {
		if m.items[i].ID == id {
			it := m.items[i]
			return &it, nil
		}
	}
	return nil, product.ErrNotFound
}

type mockMembers map[string]membership.Context

func (m mockMembers) Lookup(_ context.Context, customerID string) (membership.Context, error) {
	if customerID == "broken" {
		return membership.Context{}, errors.New("membership store down")
	}
	return m[customerID], nil
}

type mockOrders struct {
	orders map[string]*order.Order
	err    error
}

func (m *mockOrders) Create(_ context.Context, o *order.Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// --- Helpers ---

func catalog() *mockCatalog {
	return &mockCatalog{items: []product.Item{
		{ID: "v-100", ExternalVariantID: "price_100", Title: "Midnight Oud 100ml", Vendor: "VAPE HEAD", UnitPrice: decimal.NewFromInt(79), CurrencyCode: "AUD"},
		{ID: "v-clips", Title: "Vent Clips", Vendor: "VAPE HEAD", UnitPrice: decimal.NewFromInt(25), CurrencyCode: "AUD"},
		{ID: "v-other", Title: "Rose 100ml", Vendor: "Other House", UnitPrice: decimal.NewFromInt(39), CurrencyCode: "AUD"},
	}}
}

var (
	memberViewer = Viewer{SessionID: "s1", Customer: cart.Customer{ID: "member", Email: "m@example.com"}}
	guestViewer  = Viewer{SessionID: "s1"}
)

func newService(t *testing.T, checkout cart.Checkouter) *Service {
	t.Helper()
	members := mockMembers{"member": {IsSubscribed: true, BillingInterval: membership.IntervalMonth}}
	sessions := cart.NewSessions("cart-storage", time.Minute, cart.Options{Checkout: checkout})
	svc, err := NewService(catalog(), members, sessions, nil, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return svc
}

// --- Tests ---

func TestOffers(t *testing.T) {
	svc := newService(t, nil)

	offers, mc, err := svc.Offers(context.Background(), memberViewer)
	require.NoError(t, err)
	assert.True(t, mc.IsSubscribed)
	require.Len(t, offers, 3)

	assert.Equal(t, pricing.Tier100ml, offers[0].Quote.Tier)
	assert.True(t, offers[0].Quote.HasMember)
	assert.True(t, decimal.NewFromInt(55).Equal(offers[0].Quote.Member))
	assert.Equal(t, pricing.TierClips, offers[1].Quote.Tier)
	assert.False(t, offers[2].Quote.HasMember)
}

func TestAddToCart_ResolvesMemberPriceAtAddTime(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	// A guest adds; the member price is still recorded on the line.
	view, err := svc.AddToCart(ctx, guestViewer, "v-100", 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].MemberUnitPrice.Valid)
	assert.True(t, decimal.NewFromInt(158).Equal(view.Totals.Subtotal))
	assert.True(t, decimal.Zero.Equal(view.Totals.Savings))

	// The same session viewed by a member prices at member rates.
	view, err = svc.View(ctx, memberViewer)
	require.NoError(t, err)
	assert.True(t, view.Membership.IsSubscribed)
	assert.True(t, decimal.NewFromInt(110).Equal(view.Totals.Subtotal))
	assert.True(t, decimal.NewFromInt(48).Equal(view.Totals.Savings))
	assert.True(t, decimal.Zero.Equal(view.Totals.Shipping))
}

func TestAddToCart_IneligibleVendorHasNoMemberPrice(t *testing.T) {
	svc := newService(t, nil)

	view, err := svc.AddToCart(context.Background(), memberViewer, "v-other", 1)
	require.NoError(t, err)
	assert.False(t, view.Items[0].MemberUnitPrice.Valid)
	assert.True(t, decimal.NewFromInt(39).Equal(view.Totals.Subtotal))
}

func TestAddToCart_Errors(t *testing.T) {
	tests := []struct {
		name      string
		variantID string
		quantity  int
		getErr    error
		check     func(t *testing.T, err error)
	}{
		{
			name:      "unknown variant",
			variantID: "missing",
			quantity:  1,
			check: func(t *testing.T, err error) {
				var pnf *ProductNotFoundError
				require.ErrorAs(t, err, &pnf)
				assert.Equal(t, "missing", pnf.VariantID)
			},
		},
		{
			name:      "zero quantity",
			variantID: "v-100",
			quantity:  0,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, cart.ErrInvalidQuantity)
			},
		},
		{
			name:     "missing variant",
			quantity: 1,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, cart.ErrMissingVariant)
			},
		},
		{
			name:      "catalog failure",
			variantID: "v-100",
			quantity:  1,
			getErr:    errors.New("db down"),
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "get product")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, nil)
			svc.catalog.(*mockCatalog).getErr = tt.getErr

			_, err := svc.AddToCart(context.Background(), guestViewer, tt.variantID, tt.quantity)
			tt.check(t, err)
		})
	}
}

func TestUpdateRemoveClear(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.AddToCart(ctx, guestViewer, "v-100", 1)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, guestViewer, "v-clips", 1)
	require.NoError(t, err)

	view, err := svc.UpdateQuantity(ctx, guestViewer, "v-clips", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Totals.ItemCount)

	view, err = svc.RemoveItem(ctx, guestViewer, "v-100")
	require.NoError(t, err)
	assert.Equal(t, 3, view.Totals.ItemCount)

	view, err = svc.RemoveItem(ctx, guestViewer, "v-100")
	require.NoError(t, err)
	assert.Equal(t, 3, view.Totals.ItemCount)

	view, err = svc.Clear(ctx, guestViewer)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.AddToCart(ctx, Viewer{SessionID: "a"}, "v-100", 1)
	require.NoError(t, err)

	view, err := svc.View(ctx, Viewer{SessionID: "b"})
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCheckout_PassesMembership(t *testing.T) {
	ctx := context.Background()
	var got cart.SessionRequest
	svc := newService(t, cart.CheckouterFunc(func(_ context.Context, req cart.SessionRequest) (*cart.Session, error) {
		got = req
		return &cart.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
	}))

	_, err := svc.AddToCart(ctx, memberViewer, "v-100", 2)
	require.NoError(t, err)

	res, err := svc.Checkout(ctx, memberViewer)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.CartID)
	assert.True(t, got.IsMember)
	assert.Equal(t, "m@example.com", got.Customer.Email)
	assert.Equal(t, []cart.OrderLine{{ExternalVariantID: "price_100", Quantity: 2}}, got.Lines)
	assert.True(t, decimal.NewFromInt(110).Equal(got.Totals.Subtotal))

	view, err := svc.View(ctx, memberViewer)
	require.NoError(t, err)
	assert.Equal(t, cart.PhaseSucceeded, view.Checkout.Phase)

	view, err = svc.ResetCheckout(ctx, memberViewer)
	require.NoError(t, err)
	assert.Equal(t, cart.PhaseIdle, view.Checkout.Phase)
	assert.Equal(t, "cs_1", view.CartID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc := newService(t, cart.CheckouterFunc(func(context.Context, cart.SessionRequest) (*cart.Session, error) {
		t.Fatal("collaborator must not be called")
		return nil, nil
	}))

	_, err := svc.Checkout(context.Background(), guestViewer)
	require.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestMembershipFailure(t *testing.T) {
	svc := newService(t, nil)
	broken := Viewer{SessionID: "s1", Customer: cart.Customer{ID: "broken"}}

	_, err := svc.View(context.Background(), broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup membership")
}

func TestCheckoutOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "created"},
		{cart.ErrEmptyCart, "empty"},
		{cart.ErrCheckoutInProgress, "in_progress"},
		{&cart.CheckoutError{Err: errors.New("x")}, "failed"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, checkoutOutcome(tt.err))
	}
}

func TestCheckoutRecord(t *testing.T) {
	ctx := context.Background()
	orders := &mockOrders{orders: map[string]*order.Order{}}
	sessions := cart.NewSessions("cart-storage", time.Minute, cart.Options{
		Checkout: order.NewRecorder(cart.CheckouterFunc(func(context.Context, cart.SessionRequest) (*cart.Session, error) {
			return &cart.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
		}), orders),
	})
	svc, err := NewService(catalog(), mockMembers{}, sessions, orders, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	_, err = svc.AddToCart(ctx, guestViewer, "v-100", 2)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, guestViewer)
	require.NoError(t, err)

	rec, err := svc.CheckoutRecord(ctx, guestViewer, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "cart-storage:s1", rec.CartKey)
	assert.Equal(t, []cart.OrderLine{{ExternalVariantID: "price_100", Quantity: 2}}, rec.Lines)
	assert.True(t, decimal.NewFromInt(158).Equal(rec.Subtotal))

	// Another session cannot read it.
	_, err = svc.CheckoutRecord(ctx, Viewer{SessionID: "s2"}, "cs_1")
	require.ErrorIs(t, err, ErrCheckoutNotFound)

	_, err = svc.CheckoutRecord(ctx, guestViewer, "cs_missing")
	require.ErrorIs(t, err, ErrCheckoutNotFound)

	orders.err = errors.New("connection reset")
	_, err = svc.CheckoutRecord(ctx, guestViewer, "cs_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCheckoutNotFound)
}

func TestCheckoutRecord_NoRepository(t *testing.T) {
	svc := newService(t, nil)
	_, err := svc.CheckoutRecord(context.Background(), guestViewer, "cs_1")
	require.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestUpdateQuantity_AboveBound(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	_, err := svc.AddToCart(ctx, guestViewer, "v-100", 1)
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(ctx, guestViewer, "v-100", cart.MaxLineQuantity+1)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = svc.AddToCart(ctx, guestViewer, "v-100", cart.MaxLineQuantity)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)

	view, err := svc.View(ctx, guestViewer)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Totals.ItemCount)
}
