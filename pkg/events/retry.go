package events

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"time"
)

// RetryConfig configures delivery retry behavior
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		MaxDelay:          5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy implements exponential backoff retry logic
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a new retry policy
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Minute
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = 2.0
	}

	return &RetryPolicy{config: config}
}

// ShouldRetry determines if a delivery should be retried
func (p *RetryPolicy) ShouldRetry(attempts int, err error) bool {
	if err == nil {
		return false
	}
	return attempts < p.config.MaxAttempts
}

// NextRetryDelay calculates the delay before the next retry
func (p *RetryPolicy) NextRetryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return p.config.InitialDelay
	}

	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// NextRetryTime calculates when the next retry should occur
func (p *RetryPolicy) NextRetryTime(attempts int) time.Time {
	return time.Now().Add(p.NextRetryDelay(attempts))
}

// RetryWorker re-delivers failed webhook deliveries on a ticker.
type RetryWorker struct {
	manager       *WebhookManager
	deliveryStore *DeliveryLogStore
	retryPolicy   *RetryPolicy
	stopCh        chan struct{}
	ticker        *time.Ticker
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(manager *WebhookManager, deliveryStore *DeliveryLogStore, retryPolicy *RetryPolicy) *RetryWorker {
	return &RetryWorker{
		manager:       manager,
		deliveryStore: deliveryStore,
		retryPolicy:   retryPolicy,
		stopCh:        make(chan struct{}),
	}
}

// Start starts the retry worker
func (w *RetryWorker) Start(ctx context.Context, checkInterval time.Duration) {
	w.ticker = time.NewTicker(checkInterval)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("[RetryWorker] PANIC: %v\n%s\n", r, debug.Stack())
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-w.ticker.C:
				w.processRetries(ctx)
			}
		}
	}()
}

// Stop stops the retry worker
func (w *RetryWorker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopCh)
}

func (w *RetryWorker) processRetries(ctx context.Context) {
	logs := w.deliveryStore.GetPendingRetries()

	for _, log := range logs {
		endpoint, err := w.manager.GetEndpoint(log.EndpointID)
		if err != nil {
			w.complete(log, DeliveryStatusFailed, fmt.Sprintf("endpoint not found: %v", err))
			continue
		}
		if !endpoint.Active {
			w.complete(log, DeliveryStatusFailed, "endpoint is inactive")
			continue
		}

		w.retryDelivery(ctx, endpoint, log)
	}
}

func (w *RetryWorker) complete(log *DeliveryLog, status DeliveryStatus, message string) {
	log.Status = status
	log.ErrorMessage = message
	now := time.Now()
	log.CompletedAt = &now
	w.deliveryStore.Update(log)
}

func (w *RetryWorker) retryDelivery(ctx context.Context, endpoint *Endpoint, log *DeliveryLog) {
	log.Attempts++

	// The payload is rebuilt from the log; consumers treat redeliveries
	// with the same event id as duplicates.
	event := &Event{
		ID:        log.EventID,
		Type:      log.EventType,
		Timestamp: log.CreatedAt,
	}

	startTime := time.Now()
	err := w.manager.send(ctx, endpoint, event, log)
	log.Duration = time.Since(startTime)

	if err != nil {
		if w.retryPolicy.ShouldRetry(log.Attempts, err) {
			log.Status = DeliveryStatusRetrying
			nextRetry := w.retryPolicy.NextRetryTime(log.Attempts)
			log.NextRetryAt = &nextRetry
			log.ErrorMessage = err.Error()
			w.deliveryStore.Update(log)
			return
		}
		w.complete(log, DeliveryStatusFailed, fmt.Sprintf("max retries exceeded: %v", err))
		return
	}

	log.ErrorMessage = ""
	w.complete(log, DeliveryStatusSuccess, "")
}
