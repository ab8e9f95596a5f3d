package events

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestWebhookDelivery(t *testing.T) {
	var received atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received.Store(struct {
			body      []byte
			event     string
			signature string
		}{body, r.Header.Get("X-Gatherly-Event"), r.Header.Get("X-Gatherly-Signature")})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wm := NewWebhookManager()
	require.NoError(t, wm.Register(&Endpoint{
		URL:    server.URL,
		Events: []Type{PostCreated},
		Secret: "hush",
	}))

	wm.Dispatch(context.Background(), &Event{ID: "evt-1", Type: PostCreated, PostID: "p1"})

	waitFor(t, func() bool { return received.Load() != nil })

	got := received.Load().(struct {
		body      []byte
		event     string
		signature string
	})
	assert.Equal(t, string(PostCreated), got.event)
	assert.True(t, VerifySignature(got.body, got.signature, "hush"))
	assert.False(t, VerifySignature(got.body, got.signature, "wrong"))
}

func TestWebhookSkipsUninterestedEndpoints(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wm := NewWebhookManager()
	require.NoError(t, wm.Register(&Endpoint{URL: server.URL, Events: []Type{CollectionDeleted}}))

	wm.Dispatch(context.Background(), &Event{ID: "evt-1", Type: PostCreated})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(0), hits.Load())
}

func TestWebhookFailureSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	wm := NewWebhookManager()
	endpoint := &Endpoint{URL: server.URL, Events: []Type{PostDeleted}}
	require.NoError(t, wm.Register(endpoint))

	wm.Dispatch(context.Background(), &Event{ID: "evt-1", Type: PostDeleted})

	waitFor(t, func() bool {
		logs := wm.GetDeliveryLogs(endpoint.ID, 1)
		return len(logs) == 1 && logs[0].Status == DeliveryStatusRetrying
	})

	logs := wm.GetDeliveryLogs(endpoint.ID, 1)
	assert.Equal(t, http.StatusBadGateway, logs[0].StatusCode)
	assert.NotNil(t, logs[0].NextRetryAt)
}

func TestWebhookRegisterValidation(t *testing.T) {
	wm := NewWebhookManager()

	assert.Error(t, wm.Register(&Endpoint{Events: []Type{PostCreated}}))
	assert.Error(t, wm.Register(&Endpoint{URL: "https://example.com/hook"}))
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, time.Second, p.NextRetryDelay(1))
	assert.Equal(t, 2*time.Second, p.NextRetryDelay(2))
	assert.Equal(t, 4*time.Second, p.NextRetryDelay(3))

	assert.True(t, p.ShouldRetry(2, assert.AnError))
	assert.False(t, p.ShouldRetry(3, assert.AnError))
	assert.False(t, p.ShouldRetry(1, nil))
}

func TestRetryPolicyCapsDelay(t *testing.T) {
	p := NewRetryPolicy(DefaultRetryConfig())
	assert.Equal(t, 5*time.Minute, p.NextRetryDelay(20))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)

	assert.True(t, rl.Allow("e1"))
	assert.True(t, rl.Allow("e1"))
	assert.False(t, rl.Allow("e1"))

	// Buckets are per endpoint.
	assert.True(t, rl.Allow("e2"))

	rl.Reset("e1")
	assert.True(t, rl.Allow("e1"))
}
