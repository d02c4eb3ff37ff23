package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_SharesStorePerID(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions("cart-storage", time.Minute, Options{})

	a1, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	a2, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	b, err := sessions.Get(ctx, "b")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, "cart-storage:a", a1.Key())
	assert.Equal(t, 2, sessions.Len())
}

// blockingPersister parks Load for one key until release is closed.
type blockingPersister struct {
	*MemoryPersister
	key     string
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPersister) Load(ctx context.Context, key string) ([]byte, error) {
	if key == p.key {
		p.entered <- struct{}{}
		<-p.release
	}
	return p.MemoryPersister.Load(ctx, key)
}

func TestSessions_SlowLoadDoesNotBlockOtherIDs(t *testing.T) {
	ctx := context.Background()
	p := &blockingPersister{
		MemoryPersister: NewMemoryPersister(),
		key:             "cart-storage:slow",
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	sessions := NewSessions("cart-storage", time.Minute, Options{Persister: p})

	done := make(chan *Store, 1)
	go func() {
		store, err := sessions.Get(ctx, "slow")
		assert.NoError(t, err)
		done <- store
	}()
	<-p.entered

	// Another id hydrates while the slow load is parked.
	fast, err := sessions.Get(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, "cart-storage:fast", fast.Key())
	assert.Equal(t, 1, sessions.Len())

	close(p.release)
	slow := <-done
	require.NotNil(t, slow)
	again, err := sessions.Get(ctx, "slow")
	require.NoError(t, err)
	assert.Same(t, slow, again)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessions_ConcurrentGetSharesStore(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions("cart-storage", time.Minute, Options{})

	const n = 16
	stores := make([]*Store, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := sessions.Get(ctx, "a")
			assert.NoError(t, err)
			stores[i] = store
		}()
	}
	wg.Wait()

	first, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	for _, store := range stores {
		assert.Same(t, first, store)
	}
	assert.Equal(t, 1, sessions.Len())
}

func TestSessions_SweepRehydrates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewMemoryPersister()
	sessions := NewSessions("cart-storage", time.Minute, Options{Persister: p})
	sessions.now = func() time.Time { return now }

	s, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, LineItemInput{Item: newItem("A", "x", "10"), Quantity: 2}))

	sessions.sweep(now.Add(30 * time.Second))
	assert.Equal(t, 1, sessions.Len())

	sessions.sweep(now.Add(time.Minute))
	assert.Equal(t, 0, sessions.Len())

	again, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, s, again)
	assert.Equal(t, 2, again.ItemCount())
}

func TestSessions_SweepKeepsInFlightCheckout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entered := make(chan struct{})
	release := make(chan struct{})

	sessions := NewSessions("cart-storage", time.Minute, Options{
		Checkout: CheckouterFunc(func(context.Context, SessionRequest) (*Session, error) {
			close(entered)
			<-release
			return &Session{ID: "cs", URL: "https://pay.example"}, nil
		}),
	})
	sessions.now = func() time.Time { return now }

	s, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, LineItemInput{Item: newItem("A", "x", "10"), Quantity: 1}))

	done := make(chan error, 1)
	go func() {
		_, err := s.CreateCheckout(ctx, CheckoutRequest{})
		done <- err
	}()
	<-entered

	sessions.sweep(now.Add(time.Hour))
	assert.Equal(t, 1, sessions.Len())

	close(release)
	require.NoError(t, <-done)
}
