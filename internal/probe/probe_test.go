package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streakgate/internal/logging"
	"github.com/roach88/streakgate/internal/session"
)

func newClient(t *testing.T, baseURL string) *session.Client {
	t.Helper()
	client, err := session.New(baseURL, session.WithLogger(logging.Discard()))
	require.NoError(t, err)
	return client
}

func TestAwaitReady_ImmediateSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, DefaultPath, r.URL.Path)
		w.Write([]byte(`{"csrfToken":"t"}`))
	}))
	defer srv.Close()

	p := New(newClient(t, srv.URL), WithLogger(logging.Discard()))
	assert.True(t, p.AwaitReady(context.Background(), time.Second))
	assert.Equal(t, int32(1), hits.Load())
}

func TestAwaitReady_SucceedsAfterWarmup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(newClient(t, srv.URL), WithInterval(10*time.Millisecond), WithLogger(logging.Discard()))
	assert.True(t, p.AwaitReady(context.Background(), 2*time.Second))
	assert.Equal(t, int32(3), hits.Load())
}

func TestAwaitReady_TimesOutOnTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := New(newClient(t, url), WithInterval(10*time.Millisecond), WithLogger(logging.Discard()))

	start := time.Now()
	assert.False(t, p.AwaitReady(context.Background(), 100*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitReady_BoundedAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(newClient(t, srv.URL), WithInterval(20*time.Millisecond), WithLogger(logging.Discard()))
	assert.False(t, p.AwaitReady(context.Background(), 100*time.Millisecond))
	assert.LessOrEqual(t, int(hits.Load()), p.MaxAttempts(100*time.Millisecond))
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestAwaitReady_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(newClient(t, srv.URL), WithInterval(time.Hour), WithLogger(logging.Discard()))
	assert.False(t, p.AwaitReady(ctx, time.Hour))
}

func TestAwaitReady_CustomPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(newClient(t, srv.URL), WithPath("/healthz"), WithLogger(logging.Discard()))
	assert.True(t, p.AwaitReady(context.Background(), time.Second))
}

func TestMaxAttempts(t *testing.T) {
	p := New(nil)
	assert.Equal(t, 31, p.MaxAttempts(30*time.Second))
	assert.Equal(t, 3, p.MaxAttempts(1500*time.Millisecond))
	assert.Equal(t, 1, p.MaxAttempts(0))
}
