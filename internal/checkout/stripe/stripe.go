// Package stripe creates hosted Stripe Checkout sessions for cart ledgers.
package stripe

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/member-cart/internal/domain/cart"
)

var errAPIKeyRequired = errors.New("stripe api key is required")

const shippingDisplayName = "Standard shipping"

// Config configures the checkout collaborator.
type Config struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	// MemberCouponID is attached to sessions created for members, when set.
	MemberCouponID string
}

// sessionCreator is the subset of the Stripe API used here.
type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Checkout implements cart.Checkouter on Stripe Checkout. Order line variant
// ids are Stripe price ids.
type Checkout struct {
	cfg      Config
	sessions sessionCreator
	tracer   trace.Tracer
}

var _ cart.Checkouter = (*Checkout)(nil)

// New creates a Checkout. The API key is used only by this client.
func New(cfg Config, tp trace.TracerProvider) (*Checkout, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("stripe success and cancel urls are required")
	}
	return &Checkout{
		cfg:      cfg,
		sessions: &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key},
		tracer:   tp.Tracer("github.com/xenking/member-cart/internal/checkout/stripe"),
	}, nil
}

// CreateSession implements cart.Checkouter.
func (c *Checkout) CreateSession(ctx context.Context, req cart.SessionRequest) (_ *cart.Session, rerr error) {
	ctx, span := c.tracer.Start(ctx, "stripe.CreateCheckoutSession",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("cart.lines", len(req.Lines)),
			attribute.Bool("cart.member", req.IsMember),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	params := c.params(req)
	params.Context = ctx

	s, err := c.sessions.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			return nil, errors.Wrapf(err, "create checkout session (%s)", serr.Code)
		}
		return nil, errors.Wrap(err, "create checkout session")
	}
	span.SetAttributes(attribute.String("stripe.session_id", s.ID))
	return &cart.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Checkout) params(req cart.SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
		LineItems:  make([]*stripe.CheckoutSessionLineItemParams, len(req.Lines)),
	}
	for i, line := range req.Lines {
		params.LineItems[i] = &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(line.ExternalVariantID),
			Quantity: stripe.Int64(int64(line.Quantity)),
		}
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	if req.Customer.ID != "" {
		params.ClientReferenceID = stripe.String(req.Customer.ID)
	}
	if req.IsMember && c.cfg.MemberCouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(c.cfg.MemberCouponID)},
		}
	}
	if req.Totals.Shipping.IsPositive() {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{ShippingRateData: shippingRate(req.Totals)},
		}
	}
	params.AddMetadata("cart_key", req.CartKey)
	return params
}

// shippingRate charges the ledger's flat shipping as a fixed amount in the
// smallest currency unit.
func shippingRate(t cart.Totals) *stripe.CheckoutSessionShippingOptionShippingRateDataParams {
	return &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
		Type:        stripe.String("fixed_amount"),
		DisplayName: stripe.String(shippingDisplayName),
		FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
			Amount:   stripe.Int64(t.Shipping.Shift(2).Round(0).IntPart()),
			Currency: stripe.String(strings.ToLower(t.CurrencyCode)),
		},
	}
}
