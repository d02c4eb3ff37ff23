//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPersister_Redis(t *testing.T) {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	p := NewPersister(client, time.Minute)
	require.NoError(t, p.Ping(ctx))

	data, err := p.Load(ctx, "cart-storage:x")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, p.Save(ctx, "cart-storage:x", []byte(`{"items":[]}`)))
	data, err = p.Load(ctx, "cart-storage:x")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(data))

	ttl, err := client.TTL(ctx, "cart-storage:x").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}
