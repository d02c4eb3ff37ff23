package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/product"
)

type mockCmdable struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMock() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestPersister_LoadMissing(t *testing.T) {
	p := &Persister{store: newMock(), ttl: time.Hour}

	data, err := p.Load(context.Background(), "cart-storage:none")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPersister_SaveLoad(t *testing.T) {
	ctx := context.Background()
	m := newMock()
	p := &Persister{store: m, ttl: 30 * 24 * time.Hour}

	require.NoError(t, p.Save(ctx, "cart-storage:a", []byte(`{"items":[]}`)))
	assert.Equal(t, 30*24*time.Hour, m.ttls["cart-storage:a"])

	data, err := p.Load(ctx, "cart-storage:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))
}

func TestPersister_Errors(t *testing.T) {
	ctx := context.Background()
	m := newMock()
	m.getErr = errors.New("connection refused")
	m.setErr = errors.New("READONLY")
	p := &Persister{store: m}

	_, err := p.Load(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, m.getErr)

	err = p.Save(ctx, "k", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, m.setErr)
}

func TestPersister_BacksCartStore(t *testing.T) {
	ctx := context.Background()
	p := &Persister{store: newMock()}

	s, err := cart.Open(ctx, "cart-storage:a", cart.Options{Persister: p})
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, cart.LineItemInput{
		Item:     product.Item{ID: "v1", Title: "Scent Cards", UnitPrice: decimal.NewFromInt(15), CurrencyCode: "AUD"},
		Quantity: 2,
	}))

	reopened, err := cart.Open(ctx, "cart-storage:a", cart.Options{Persister: p})
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.ItemCount())
}
