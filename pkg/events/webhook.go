package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/async"
)

// Endpoint is a registered webhook target.
type Endpoint struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Events      []Type    `json:"events"`
	Secret      string    `json:"secret,omitempty"`
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WebhookManager delivers domain events to registered HTTP endpoints.
// It subscribes to a Dispatcher and implements delivery with HMAC
// signing, per-endpoint rate limiting and retries.
type WebhookManager struct {
	mu            sync.RWMutex
	endpoints     map[string]*Endpoint
	client        *http.Client
	deliveryStore *DeliveryLogStore
	retryWorker   *RetryWorker
	retryPolicy   *RetryPolicy
	rateLimiter   *RateLimiter
	pool          *async.WorkerPool
}

// NewWebhookManager creates a new webhook manager
func NewWebhookManager() *WebhookManager {
	deliveryStore := NewDeliveryLogStore(1000)
	retryPolicy := NewRetryPolicy(DefaultRetryConfig())

	manager := &WebhookManager{
		endpoints: make(map[string]*Endpoint),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		deliveryStore: deliveryStore,
		retryPolicy:   retryPolicy,
		rateLimiter:   NewRateLimiter(100, time.Minute),
		pool:          async.NewWorkerPool(context.Background(), 4, "webhook delivery", 15*time.Second),
	}
	manager.retryWorker = NewRetryWorker(manager, deliveryStore, retryPolicy)
	return manager
}

// AttachTo subscribes the manager to every event on the dispatcher.
func (wm *WebhookManager) AttachTo(d *Dispatcher) {
	d.Subscribe(func(ctx context.Context, event *Event) {
		wm.Dispatch(ctx, event)
	})
}

// StartRetryWorker starts the retry worker
func (wm *WebhookManager) StartRetryWorker(ctx context.Context) {
	wm.retryWorker.Start(ctx, 30*time.Second)
}

// StopRetryWorker stops the retry worker and drains in-flight deliveries.
func (wm *WebhookManager) StopRetryWorker() {
	wm.retryWorker.Stop()
	_ = wm.pool.Shutdown(5 * time.Second)
}

// GetDeliveryLogs retrieves delivery logs for an endpoint.
func (wm *WebhookManager) GetDeliveryLogs(endpointID string, limit int) []*DeliveryLog {
	return wm.deliveryStore.GetByEndpoint(endpointID, limit)
}

// Register registers a new endpoint.
func (wm *WebhookManager) Register(endpoint *Endpoint) error {
	if endpoint.URL == "" {
		return fmt.Errorf("endpoint URL is required")
	}
	if len(endpoint.Events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}

	endpoint.ID = uuid.NewString()
	endpoint.Active = true
	endpoint.CreatedAt = time.Now()
	endpoint.UpdatedAt = time.Now()

	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.endpoints[endpoint.ID] = endpoint
	return nil
}

// Unregister removes an endpoint.
func (wm *WebhookManager) Unregister(id string) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if _, exists := wm.endpoints[id]; !exists {
		return fmt.Errorf("endpoint not found")
	}
	delete(wm.endpoints, id)
	return nil
}

// GetEndpoint retrieves an endpoint by ID.
func (wm *WebhookManager) GetEndpoint(id string) (*Endpoint, error) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	endpoint, exists := wm.endpoints[id]
	if !exists {
		return nil, fmt.Errorf("endpoint not found")
	}
	return endpoint, nil
}

// ListEndpoints returns all registered endpoints.
func (wm *WebhookManager) ListEndpoints() []*Endpoint {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	endpoints := make([]*Endpoint, 0, len(wm.endpoints))
	for _, e := range wm.endpoints {
		endpoints = append(endpoints, e)
	}
	return endpoints
}

// SetActive toggles delivery to an endpoint.
func (wm *WebhookManager) SetActive(id string, active bool) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	endpoint, exists := wm.endpoints[id]
	if !exists {
		return fmt.Errorf("endpoint not found")
	}
	endpoint.Active = active
	endpoint.UpdatedAt = time.Now()
	return nil
}

// Dispatch sends an event to every interested endpoint. Deliveries
// run asynchronously; Dispatch never blocks on the network.
func (wm *WebhookManager) Dispatch(ctx context.Context, event *Event) {
	wm.mu.RLock()
	targets := make([]*Endpoint, 0, len(wm.endpoints))
	for _, endpoint := range wm.endpoints {
		if endpoint.Active && endpoint.subscribed(event.Type) {
			targets = append(targets, endpoint)
		}
	}
	wm.mu.RUnlock()

	for _, endpoint := range targets {
		deliveryLog := &DeliveryLog{
			ID:         uuid.NewString(),
			EndpointID: endpoint.ID,
			EventID:    event.ID,
			EventType:  event.Type,
			URL:        endpoint.URL,
			Status:     DeliveryStatusPending,
			CreatedAt:  time.Now(),
		}
		wm.deliveryStore.Add(deliveryLog)

		endpoint := endpoint
		if err := wm.pool.Submit(func(ctx context.Context) error {
			wm.deliver(ctx, endpoint, event, deliveryLog)
			return nil
		}); err != nil {
			// The pool only refuses work during shutdown; deliver inline
			// so the log does not stay pending forever.
			wm.deliver(ctx, endpoint, event, deliveryLog)
		}
	}
}

func (e *Endpoint) subscribed(t Type) bool {
	for _, et := range e.Events {
		if et == t {
			return true
		}
	}
	return false
}

func (wm *WebhookManager) deliver(ctx context.Context, endpoint *Endpoint, event *Event, deliveryLog *DeliveryLog) {
	deliveryLog.Attempts++
	startTime := time.Now()

	err := wm.send(ctx, endpoint, event, deliveryLog)
	deliveryLog.Duration = time.Since(startTime)

	if err != nil {
		if wm.retryPolicy.ShouldRetry(deliveryLog.Attempts, err) {
			deliveryLog.Status = DeliveryStatusRetrying
			nextRetry := wm.retryPolicy.NextRetryTime(deliveryLog.Attempts)
			deliveryLog.NextRetryAt = &nextRetry
			deliveryLog.ErrorMessage = err.Error()
		} else {
			deliveryLog.Status = DeliveryStatusFailed
			deliveryLog.ErrorMessage = err.Error()
			now := time.Now()
			deliveryLog.CompletedAt = &now
		}
	} else {
		deliveryLog.Status = DeliveryStatusSuccess
		now := time.Now()
		deliveryLog.CompletedAt = &now
	}

	wm.deliveryStore.Update(deliveryLog)
}

func (wm *WebhookManager) send(ctx context.Context, endpoint *Endpoint, event *Event, deliveryLog *DeliveryLog) error {
	if !wm.rateLimiter.Allow(endpoint.ID) {
		return fmt.Errorf("rate limit exceeded for endpoint %s", endpoint.ID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gatherly-Event", string(event.Type))
	req.Header.Set("X-Gatherly-Event-ID", event.ID)
	req.Header.Set("X-Gatherly-Delivery", time.Now().Format(time.RFC3339))

	if endpoint.Secret != "" {
		req.Header.Set("X-Gatherly-Signature", generateSignature(payload, endpoint.Secret))
	}

	resp, err := wm.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if deliveryLog != nil {
		deliveryLog.StatusCode = resp.StatusCode
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// VerifySignature verifies a webhook payload signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateSignature generates HMAC-SHA256 signature
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
