package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCart is returned by CreateCheckout on an empty ledger.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutInProgress is returned when a checkout is already submitting.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrMissingRedirectURL is reported when the collaborator answers
	// without a URL to send the customer to.
	ErrMissingRedirectURL = errors.New("checkout response has no redirect url")
	// ErrCheckoutUnavailable is reported when no collaborator is configured.
	ErrCheckoutUnavailable = errors.New("checkout unavailable")
)

// CheckoutError wraps any failure of the checkout collaborator. The ledger
// is unchanged when it is returned and the call may be retried.
type CheckoutError struct {
	Err error
}

func (e *CheckoutError) Error() string {
	return "checkout failed: " + e.Err.Error()
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// Customer identifies the buyer to the checkout collaborator. Both fields
// are optional.
type Customer struct {
	ID    string
	Email string
}

// SessionRequest is what the checkout collaborator receives: the order lines
// captured at call time plus context for the session.
type SessionRequest struct {
	CartKey  string
	Lines    []OrderLine
	Customer Customer
	IsMember bool
	Totals   Totals
}

// Session is the collaborator's answer.
type Session struct {
	ID  string
	URL string
}

// Checkouter creates payable checkout sessions. One call per checkout; no
// retries.
type Checkouter interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// CheckouterFunc adapts a function to Checkouter.
type CheckouterFunc func(ctx context.Context, req SessionRequest) (*Session, error)

// CreateSession implements Checkouter.
func (f CheckouterFunc) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return f(ctx, req)
}

// Opener sends the customer to the checkout URL automatically. An error
// means the redirect was blocked and the URL must be offered manually.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Phase is a checkout state machine state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CheckoutState is the current checkout phase. URL and CartID are set in
// PhaseSucceeded, Err in PhaseFailed.
type CheckoutState struct {
	Phase  Phase
	URL    string
	CartID string
	Err    error
}

// CheckoutRequest carries the viewer-specific input of a checkout.
type CheckoutRequest struct {
	Customer Customer
	IsMember bool
}

// CheckoutResult is a successful checkout. Redirected reports whether the
// Opener took the customer there; when false the caller must offer URL.
type CheckoutResult struct {
	URL        string
	CartID     string
	Redirected bool
}

// CheckoutState returns the current checkout state.
func (s *Store) CheckoutState() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLoading reports whether a checkout is in flight.
func (s *Store) IsLoading() bool {
	return s.CheckoutState().Phase == PhaseSubmitting
}

// ResetCheckout moves a finished checkout back to idle. It has no effect
// while submitting.
func (s *Store) ResetCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseSubmitting {
		s.state = CheckoutState{}
	}
}

// CreateCheckout hands the current line items to the checkout collaborator.
//
// The order lines are captured before the call and the ledger stays mutable
// while it is in flight. A second call while submitting returns
// ErrCheckoutInProgress without contacting the collaborator; so does an empty
// ledger with ErrEmptyCart. Collaborator failures come back as
// *CheckoutError and leave the line items untouched.
func (s *Store) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	s.mu.Lock()
	if s.state.Phase == PhaseSubmitting {
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	if len(s.items) == 0 {
		s.mu.Unlock()
		s.notifier.Notify(ctx, Notification{Kind: NotifyError, Message: "Your cart is empty"})
		return nil, ErrEmptyCart
	}
	sessionReq := SessionRequest{
		CartKey:  s.key,
		Lines:    orderLines(s.items),
		Customer: req.Customer,
		IsMember: req.IsMember,
		Totals:   s.shipping.Summarize(s.items, req.IsMember),
	}
	s.state = CheckoutState{Phase: PhaseSubmitting}
	s.mu.Unlock()

	sess, err := s.createSession(ctx, sessionReq)

	s.mu.Lock()
	if err != nil {
		cerr := &CheckoutError{Err: err}
		s.state = CheckoutState{Phase: PhaseFailed, Err: cerr}
		s.mu.Unlock()

		zctx.From(ctx).Warn("Checkout failed",
			zap.String("cart_key", s.key),
			zap.Error(err),
		)
		s.notifier.Notify(ctx, Notification{Kind: NotifyError, Message: cerr.Error()})
		return nil, cerr
	}
	s.cartID = sess.ID
	s.checkoutURL = sess.URL
	s.state = CheckoutState{Phase: PhaseSucceeded, URL: sess.URL, CartID: sess.ID}
	s.persistLocked(ctx)
	s.mu.Unlock()

	res := &CheckoutResult{URL: sess.URL, CartID: sess.ID}
	if s.opener != nil {
		if err := s.opener.Open(ctx, sess.URL); err != nil {
			zctx.From(ctx).Debug("Redirect blocked, offering checkout link", zap.Error(err))
		} else {
			res.Redirected = true
		}
	}
	return res, nil
}

// createSession calls the collaborator. A panic in the collaborator is
// returned as an error so the store always leaves PhaseSubmitting.
func (s *Store) createSession(ctx context.Context, req SessionRequest) (sess *Session, err error) {
	if s.checkout == nil {
		return nil, ErrCheckoutUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			sess, err = nil, errors.Errorf("checkout collaborator panicked: %v", r)
		}
	}()
	sess, err = s.checkout.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.URL == "" {
		return nil, ErrMissingRedirectURL
	}
	return sess, nil
}
