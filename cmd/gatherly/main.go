// Command gatherly runs the Gatherly REST API server.
//
// It serves the collection, membership, post, media, token, and webhook
// APIs on the main port and exposes health probes plus Prometheus
// metrics on a separate port so load balancers never see them.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gatherly/gatherly/pkg/api"
	"github.com/gatherly/gatherly/pkg/auth"
	"github.com/gatherly/gatherly/pkg/config"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/membership"
	"github.com/gatherly/gatherly/pkg/middleware"
	"github.com/gatherly/gatherly/pkg/observability"
	"github.com/gatherly/gatherly/pkg/posts"
	"github.com/gatherly/gatherly/pkg/rbac"
	"github.com/gatherly/gatherly/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatherly: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("port", cfg.Server.Port).Info("Starting Gatherly API server")

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Postgres: primary for writes, replicas (when configured) for reads.
	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Storage.PostgresURL,
		ReplicaURLs: cfg.Storage.PostgresReplicaURLs,
		MaxConns:    cfg.Storage.PostgresMaxConns,
		MinConns:    cfg.Storage.PostgresMinConns,
		Timeout:     cfg.Storage.PostgresTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cm.Primary()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	cm.StartHealthCheckRoutine(ctx, 30*time.Second)

	// Redis backs the shared cache and the distributed rate limiter. The
	// server still comes up without it, on local fallbacks.
	var redisClient *postgres.RedisClient
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without shared cache")
			redisClient = nil
		}
	}

	s3Client, err := postgres.NewS3Client(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	collStore := postgres.NewCollectionStore(cm.Primary(), cm.Replica(), redisClient)
	postStore := postgres.NewPostStore(cm.Primary(), cm.Replica(), redisClient)
	inviteStore := postgres.NewInvitationStore(cm.Primary())
	replyStore := postgres.NewReplyStore(cm.Primary())
	users := postgres.NewUserDirectory(cm.Primary(), cfg.Storage.UserCacheSize, cfg.Storage.CacheTTL["user"])

	tokens := auth.NewTokenManager(auth.NewSQLTokenStore(cm.Primary()))

	dispatcher := events.NewDispatcher()
	var webhooks *events.WebhookManager
	if cfg.Webhooks.Enabled {
		webhooks = events.NewWebhookManager()
		webhooks.AttachTo(dispatcher)
		webhooks.StartRetryWorker(ctx)
	}

	checker := rbac.NewChecker()
	getter := api.NewCollectionGetter(collStore)
	coordinator := membership.NewCoordinator(collStore, postStore, inviteStore, checker, dispatcher)
	postService := posts.NewService(postStore, getter, checker, dispatcher)
	replyService := posts.NewReplyService(replyStore, postStore, getter, checker, dispatcher)

	server := api.NewServer(api.Deps{
		Collections: collStore,
		Coordinator: coordinator,
		Posts:       postService,
		Replies:     replyService,
		Users:       users,
		Media:       s3Client,
		Webhooks:    webhooks,
		Tokens:      tokens,
		Bus:         dispatcher,
		Logger:      logger,
	})

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	handler := buildHandlerChain(cfg, server, tokens, redisClient, metrics, logger)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "gatherly-api")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux(cm, redisClient, s3Client, registry, cfg.Observability.MetricsEnabled),
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	sm := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if webhooks != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			webhooks.StopRetryWorker()
			return nil
		})
	}
	if redisClient != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return cm.Close()
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
	cancel()
	return g.Wait()
}

// buildHandlerChain wraps the API router in the standard middleware.
// Order matters: request ids and metrics observe everything, auth runs
// before rate limiting so limits are keyed per user, and the body cap
// sits innermost. Panic recovery sits outside everything that runs
// handler code.
func buildHandlerChain(cfg *config.Config, server *api.Server, tokens *auth.TokenManager, redisClient *postgres.RedisClient, metrics *observability.Metrics, logger *observability.Logger) http.Handler {
	var handler http.Handler = server

	handler = middleware.LimitBody(cfg.Server.MaxBodyBytes)(handler)

	if redisClient != nil {
		handler = middleware.NewDistributedRateLimitMiddleware(redisClient.GetClient()).Handler(handler)
	} else {
		handler = middleware.NewRateLimitMiddleware().Handler(handler)
	}

	// Auth is optional at this layer. Handlers that need an identity or
	// a scope enforce it themselves.
	handler = middleware.NewAuthMiddleware(tokens, true).Handler(handler)

	if cfg.Observability.MetricsEnabled {
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}
	handler = middleware.RequestID(handler)
	handler = middleware.Recover(logger)(handler)

	return handler
}

func healthMux(cm *postgres.ConnectionManager, redisClient *postgres.RedisClient, s3Client *postgres.S3Client, registry *prometheus.Registry, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()

	var redisConn *redis.Client
	if redisClient != nil {
		redisConn = redisClient.GetClient()
	}
	checker := observability.NewHealthChecker(cm.Primary(), redisConn, s3Client)
	observability.RegisterHealthRoutes(mux, checker)

	if metricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}
	return mux
}
