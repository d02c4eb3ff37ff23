package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func callEndpoint(t *testing.T, handler http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passing)
	h.AddLivenessCheck("redis", time.Second, failing("connection refused"))
	h.AddReadinessCheck("postgres", time.Second, failing("ignored by livez"))

	code, body := callEndpoint(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)

	for _, c := range h.checks {
		runN(c, 3)
	}
	code, body = callEndpoint(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"redis": "connection refused"}, body.Checks)
}

func TestThresholds(t *testing.T) {
	var fail atomic.Bool
	h := New()
	h.SetThresholds(Thresholds{Failure: 2, Success: 2})
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	})
	c := h.checks[0]

	fail.Store(true)
	runN(c, 1)
	assert.True(t, c.healthy.Load(), "one failure is below the threshold")
	runN(c, 1)
	assert.False(t, c.healthy.Load())

	fail.Store(false)
	runN(c, 1)
	assert.False(t, c.healthy.Load(), "one success is below the threshold")
	runN(c, 1)
	assert.True(t, c.healthy.Load())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)

	code, body := callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestStartRunsChecks(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.SetThresholds(Thresholds{Failure: 1, Success: 1})
	h.AddReadinessCheck("redis", time.Second, func(context.Context) error {
		runs.Add(1)
		return errors.New("no route to host")
	})
	h.SetReady(true)

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, runs.Load(), int32(1))

	h.Stop()
	h.Stop()
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.SetThresholds(Thresholds{Failure: 1, Success: 1})
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.SetReady(true)

	runN(h.checks[0], 1)
	_, body := callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(pingerFunc(passing))(ctx))
	require.EqualError(t, PingCheck(pingerFunc(failing("refused")))(ctx), "refused")

	open := 5
	check := GaugeCheck("open carts", func() int { return open }, 10)
	require.NoError(t, check(ctx))
	open = 11
	require.EqualError(t, check(ctx), "open carts 11 exceeds threshold 10")

	require.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	require.Error(t, GoroutineCountCheck(0)(ctx))
	require.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
