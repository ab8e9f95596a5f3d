// Command gatherly-janitor runs periodic cleanup against the Gatherly
// datastore: expired invitations, expired API tokens, and soft-deleted
// posts past their retention window.
//
// Multiple replicas may run at once; a Redis lock ensures only one of
// them executes a given sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/pkg/auth"
	"github.com/gatherly/gatherly/pkg/config"
	"github.com/gatherly/gatherly/pkg/storage/postgres"
)

const lockKey = "gatherly:janitor:lock"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("janitor failed")
	}
}

func run(log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL: cfg.Storage.PostgresURL,
		MaxConns:   cfg.Storage.PostgresMaxConns,
		MinConns:   cfg.Storage.PostgresMinConns,
		Timeout:    cfg.Storage.PostgresTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer cm.Close()

	var redisClient *postgres.RedisClient
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, sweeps run unlocked")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	j := &janitor{
		log:      log,
		colls:    postgres.NewCollectionStore(cm.Primary(), nil, redisClient),
		invites:  postgres.NewInvitationStore(cm.Primary()),
		posts:    postgres.NewPostStore(cm.Primary(), nil, nil),
		tokens:   auth.NewTokenManager(auth.NewSQLTokenStore(cm.Primary())),
		redis:    redisClient,
		lockTTL:  cfg.Janitor.LockTTL,
		purgeAge: cfg.Janitor.PurgeAge,
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Janitor.Schedule, func() { j.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", cfg.Janitor.Schedule, err)
	}

	log.WithField("schedule", cfg.Janitor.Schedule).Info("janitor started")
	c.Start()

	// Run one sweep immediately so a fresh deployment does not wait a
	// full schedule interval for its first cleanup.
	j.sweep(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("janitor shutting down")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

type janitor struct {
	log      *logrus.Logger
	colls    *postgres.CollectionStore
	invites  *postgres.InvitationStore
	posts    *postgres.PostStore
	tokens   *auth.TokenManager
	redis    *postgres.RedisClient
	lockTTL  time.Duration
	purgeAge time.Duration
}

// sweep runs all cleanup tasks once, behind the distributed lock.
func (j *janitor) sweep(ctx context.Context) {
	if !j.acquireLock(ctx) {
		j.log.Debug("another replica holds the janitor lock, skipping sweep")
		return
	}

	now := time.Now()

	if n, err := j.invites.DeleteExpired(ctx, now); err != nil {
		j.log.WithError(err).Error("failed to delete expired invitations")
	} else if n > 0 {
		j.log.WithField("count", n).Info("deleted expired invitations")
	}

	if n, err := j.tokens.CleanupExpiredTokens(ctx); err != nil {
		j.log.WithError(err).Error("failed to delete expired tokens")
	} else if n > 0 {
		j.log.WithField("count", n).Info("deleted expired tokens")
	}

	if n, err := j.posts.Purge(ctx, now.Add(-j.purgeAge)); err != nil {
		j.log.WithError(err).Error("failed to purge deleted posts")
	} else if n > 0 {
		j.log.WithField("count", n).Info("purged soft-deleted posts")
	}

	// Membership writes maintain member_count inline; this catches any
	// record that drifted.
	if n, err := j.colls.ReconcileMemberCounts(ctx); err != nil {
		j.log.WithError(err).Error("failed to reconcile member counts")
	} else if n > 0 {
		j.log.WithField("count", n).Info("reconciled member counts")
	}
}

// acquireLock takes the sweep lock in Redis. Without Redis every
// replica sweeps; the deletes are idempotent so that is safe, just
// wasteful.
func (j *janitor) acquireLock(ctx context.Context) bool {
	if j.redis == nil {
		return true
	}
	ok, err := j.redis.SetNX(ctx, lockKey, time.Now().Unix(), j.lockTTL)
	if err != nil {
		j.log.WithError(err).Warn("janitor lock check failed, sweeping anyway")
		return true
	}
	return ok
}
