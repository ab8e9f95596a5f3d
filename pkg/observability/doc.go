// Package observability provides structured logging, Prometheus
// metrics, health probes, and OpenTelemetry tracing for the Gatherly
// services.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("collection_id", id).Info("collection created")
//
// Handlers pull a request-scoped logger with FromContext, which picks
// up the request ID and user ID placed in the context by the HTTP
// middleware.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.TransitionsTotal.WithLabelValues("join", "ok").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, s3Client)
//	observability.RegisterHealthRoutes(mux, checker)
//
// Readiness treats Postgres as required and Redis and media storage as
// degradable.
package observability
