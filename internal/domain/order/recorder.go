package order

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/member-cart/internal/domain/cart"
)

// Recorder is a cart.Checkouter that stores an Order for every session the
// wrapped collaborator creates. The session already exists at the provider
// when the record is written, so a failed write is logged and the session is
// still returned.
type Recorder struct {
	next   cart.Checkouter
	orders Repository
	now    func() time.Time
}

var _ cart.Checkouter = (*Recorder)(nil)

// NewRecorder wraps next so created sessions are stored in orders.
func NewRecorder(next cart.Checkouter, orders Repository) *Recorder {
	return &Recorder{
		next:   next,
		orders: orders,
		now:    time.Now,
	}
}

// CreateSession implements cart.Checkouter.
func (r *Recorder) CreateSession(ctx context.Context, req cart.SessionRequest) (*cart.Session, error) {
	sess, err := r.next.CreateSession(ctx, req)
	if err != nil || sess == nil || sess.URL == "" {
		return sess, err
	}

	o := FromSession(req, sess, r.now().UTC())
	if err := r.orders.Create(ctx, o); err != nil {
		zctx.From(ctx).Error("Record checkout session",
			zap.String("session_id", sess.ID),
			zap.String("cart_key", req.CartKey),
			zap.Error(err),
		)
	}
	return sess, nil
}
