// Package events carries the domain event bus.
//
// Producers publish through the Bus interface and never learn whether
// any consumer succeeded. The in-process Dispatcher fans events out to
// subscribed handlers on panic-safe goroutines, and WebhookManager can
// attach to it to forward events to external HTTP endpoints with HMAC
// signatures, per-endpoint rate limits and exponential backoff
// retries.
package events
