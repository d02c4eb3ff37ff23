package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/member-cart/internal/domain/cart"
)

type collectorKey struct{}

// collector gathers the notifications raised while serving one request.
type collector struct {
	mu       sync.Mutex
	items    []cart.Notification
	redirect bool
}

func (c *collector) add(n cart.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

func (c *collector) drain() []cart.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	return out
}

func collectorFrom(ctx context.Context) *collector {
	c, _ := ctx.Value(collectorKey{}).(*collector)
	return c
}

func withNotifications(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), collectorKey{}, &collector{})
		next(w, r.WithContext(ctx))
	}
}

// Notifier delivers ledger notifications to the response of the request that
// raised them. Pass it as cart.Options.Notifier.
type Notifier struct{}

var _ cart.Notifier = Notifier{}

// Notify implements cart.Notifier.
func (Notifier) Notify(ctx context.Context, n cart.Notification) {
	if c := collectorFrom(ctx); c != nil {
		c.add(n)
	}
}

var errRedirectNotRequested = errors.New("redirect not requested")

// Opener accepts the checkout redirect when the client asked for one with
// ?redirect=true; the handler then answers 303. Pass it as
// cart.Options.Opener.
type Opener struct{}

var _ cart.Opener = Opener{}

// Open implements cart.Opener.
func (Opener) Open(ctx context.Context, _ string) error {
	c := collectorFrom(ctx)
	if c == nil || !c.redirect {
		return errRedirectNotRequested
	}
	return nil
}
