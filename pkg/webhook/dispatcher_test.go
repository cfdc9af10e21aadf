package webhook

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestDispatcher(config Config) (*Dispatcher, *MemoryDeliveryLog) {
	if config.RetryBackoff == 0 {
		config.RetryBackoff = time.Millisecond
	}

	log := NewMemoryDeliveryLog()

	return NewDispatcher(config, log, testLogger()), log
}

func TestEnqueue_DeliversRequest(t *testing.T) {
	var (
		mu      sync.Mutex
		gotBody string
		gotCT   string
		gotAuth string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		gotBody = string(body)
		gotCT = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher, log := newTestDispatcher(Config{})

	id := dispatcher.Enqueue(Request{
		URL:     server.URL,
		Body:    `{"hello": "world"}`,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	require.NotEmpty(t, id)

	dispatcher.Wait()

	delivery, found := log.Delivery(id)
	require.True(t, found)
	assert.Equal(t, DeliveryDelivered, delivery.Status)
	assert.Equal(t, http.StatusOK, delivery.StatusCode)
	assert.Equal(t, 1, delivery.Attempts)
	assert.Equal(t, http.MethodPost, delivery.Method)
	require.NotNil(t, delivery.CompletedAt)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `{"hello": "world"}`, gotBody)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "Bearer token", gotAuth)
}

func TestEnqueue_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher, log := newTestDispatcher(Config{MaxAttempts: 3})

	id := dispatcher.Enqueue(Request{URL: server.URL, Method: "post"})
	dispatcher.Wait()

	delivery, found := log.Delivery(id)
	require.True(t, found)
	assert.Equal(t, DeliveryDelivered, delivery.Status)
	assert.Equal(t, 3, delivery.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestEnqueue_FailsAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	dispatcher, log := newTestDispatcher(Config{MaxAttempts: 2})

	id := dispatcher.Enqueue(Request{URL: server.URL})
	dispatcher.Wait()

	delivery, found := log.Delivery(id)
	require.True(t, found)
	assert.Equal(t, DeliveryFailed, delivery.Status)
	assert.Equal(t, 2, delivery.Attempts)
	assert.NotEmpty(t, delivery.LastError)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEnqueue_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dispatcher, log := newTestDispatcher(Config{MaxAttempts: 3})

	id := dispatcher.Enqueue(Request{URL: server.URL})
	dispatcher.Wait()

	// 4xx is the receiver's verdict, not a transient failure: the call is
	// recorded as delivered with the status code it got.
	delivery, found := log.Delivery(id)
	require.True(t, found)
	assert.Equal(t, DeliveryDelivered, delivery.Status)
	assert.Equal(t, http.StatusNotFound, delivery.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnqueue_UnreachableHostFails(t *testing.T) {
	dispatcher, log := newTestDispatcher(Config{MaxAttempts: 2, Timeout: 200 * time.Millisecond})

	id := dispatcher.Enqueue(Request{URL: "http://127.0.0.1:1/unreachable"})
	dispatcher.Wait()

	delivery, found := log.Delivery(id)
	require.True(t, found)
	assert.Equal(t, DeliveryFailed, delivery.Status)
}

func TestEnqueue_BoundsConcurrency(t *testing.T) {
	var (
		current atomic.Int32
		peak    atomic.Int32
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		now := current.Add(1)

		for {
			p := peak.Load()
			if now <= p || peak.CompareAndSwap(p, now) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher, _ := newTestDispatcher(Config{MaxConcurrency: 2})

	for range 8 {
		dispatcher.Enqueue(Request{URL: server.URL})
	}

	dispatcher.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}
