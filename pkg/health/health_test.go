package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(_ context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) probeStatus {
	t.Helper()
	var body probeStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("a", time.Second, pass)
		h.AddLivenessCheck("b", time.Second, pass)

		w := httptest.NewRecorder()
		h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "ok", decodeStatus(t, w).Status)
	})

	t.Run("no checks registered", func(t *testing.T) {
		h := New()
		w := httptest.NewRecorder()
		h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("failing past threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, fail("connection refused"))

		ctx := context.Background()
		for range failAfter {
			h.liveness[0].execute(ctx)
		}

		w := httptest.NewRecorder()
		h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeStatus(t, w)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["db"])
	})

	t.Run("failing below threshold stays healthy", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, fail("temporary"))

		ctx := context.Background()
		for range failAfter - 1 {
			h.liveness[0].execute(ctx)
		}

		w := httptest.NewRecorder()
		h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready and passing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, pass)
		h.SetReady(true)

		w := httptest.NewRecorder()
		h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decodeStatus(t, w).Status)
	})

	t.Run("gate closed by default", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, pass)

		w := httptest.NewRecorder()
		h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")
	})

	t.Run("gate closes again on SetReady false", func(t *testing.T) {
		h := New()
		h.SetReady(true)

		w := httptest.NewRecorder()
		h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		h.SetReady(false)
		w = httptest.NewRecorder()
		h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("one failing check reported, passing one omitted", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, pass)
		h.AddReadinessCheck("cache", time.Second, fail("cache miss"))
		h.SetReady(true)

		ctx := context.Background()
		for range failAfter {
			h.readiness[1].execute(ctx)
		}

		w := httptest.NewRecorder()
		h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeStatus(t, w)
		assert.Contains(t, body.Checks, "cache")
		assert.NotContains(t, body.Checks, "postgres")
	})
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, pass)

	assert.False(t, h.IsReady())
	h.SetReady(true)
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbeRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]
	ctx := context.Background()

	for range failAfter {
		p.execute(ctx)
	}
	assert.False(t, p.healthy.Load())

	failing = false
	p.execute(ctx)
	assert.True(t, p.healthy.Load())
}

func TestProbeLastError(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, fail("timeout"))
	p := h.liveness[0]

	_, bad := p.failure()
	assert.False(t, bad)

	for range failAfter {
		p.execute(context.Background())
	}
	msg, bad := p.failure()
	assert.True(t, bad)
	assert.Equal(t, "timeout", msg)
}

func TestStopIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, pass)
	h.Start(context.Background(), 100*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, fail("err"))
	h.AddReadinessCheck("b", time.Second, pass)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()

				w := httptest.NewRecorder()
				h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

				w = httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
