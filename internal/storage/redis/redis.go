// Package redis stores cart ledgers in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/member-cart/internal/domain/cart"
)

type cmdable interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

// NewClient connects to the Redis server at url and verifies connectivity.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return c, nil
}

// Persister implements cart.Persister. Every save refreshes the key's TTL so
// a ledger expires ttl after its last change.
type Persister struct {
	store cmdable
	ttl   time.Duration
}

var _ cart.Persister = (*Persister)(nil)

// NewPersister creates a Persister on c. A ttl of zero keeps ledgers forever.
func NewPersister(c *redis.Client, ttl time.Duration) *Persister {
	return &Persister{store: c, ttl: ttl}
}

// Load implements cart.Persister.
func (p *Persister) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := p.store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return data, nil
}

// Save implements cart.Persister.
func (p *Persister) Save(ctx context.Context, key string, data []byte) error {
	if err := p.store.Set(ctx, key, data, p.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (p *Persister) Ping(ctx context.Context) error {
	return p.store.Ping(ctx).Err()
}
