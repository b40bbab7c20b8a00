package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
)

type outboxStore interface {
	Relay(ctx context.Context, limit int, publish repository.PublishFunc) (int, error)
	OldestPendingAge(ctx context.Context) (time.Duration, error)
	PurgePublished(ctx context.Context, cutoff time.Time) (int64, error)
}

type messagePublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// OutboxRelayConfig tunes polling.
type OutboxRelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Channel      string
	// Retention is how long delivered rows are kept before purging.
	Retention time.Duration
}

// OutboxRelay publishes transition notifications written by the petition store to Redis pub/sub.
type OutboxRelay struct {
	store     outboxStore
	publisher messagePublisher
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       OutboxRelayConfig
	now       func() time.Time
}

// NewOutboxRelay constructs a relay.
func NewOutboxRelay(store outboxStore, publisher messagePublisher, metrics *MetricsService, logger *zap.Logger, cfg OutboxRelayConfig) *OutboxRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Channel == "" {
		cfg.Channel = "vigilance:notifications"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	lastPurge := r.now()
	r.logger.Info("outbox relay started", zap.Duration("interval", r.cfg.PollInterval), zap.String("channel", r.cfg.Channel))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
			if r.now().Sub(lastPurge) >= time.Hour {
				r.purge(ctx)
				lastPurge = r.now()
			}
		}
	}
}

// Tick drains pending messages batch by batch and refreshes the lag gauge.
func (r *OutboxRelay) Tick(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := r.store.Relay(ctx, r.cfg.BatchSize, r.publish)
		if err != nil {
			r.logger.Error("outbox relay failed", zap.Error(err))
			break
		}
		total += n
		if n < r.cfg.BatchSize {
			break
		}
	}
	r.metrics.AddOutboxPublished(total)

	if lag, err := r.store.OldestPendingAge(ctx); err != nil {
		r.logger.Warn("outbox lag probe failed", zap.Error(err))
	} else {
		r.metrics.SetOutboxLag(lag)
	}
	if total > 0 {
		r.logger.Debug("outbox relayed", zap.Int("published", total))
	}
	return total
}

func (r *OutboxRelay) publish(ctx context.Context, msg models.OutboxMessage) error {
	envelope, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outbox %s: %w", msg.ID, err)
	}
	if err := r.publisher.Publish(ctx, r.cfg.Channel, envelope); err != nil {
		r.logger.Warn("outbox publish failed", zap.String("id", msg.ID), zap.Int("attempts", msg.Attempts), zap.Error(err))
		return err
	}
	return nil
}

func (r *OutboxRelay) purge(ctx context.Context) {
	n, err := r.store.PurgePublished(ctx, r.now().Add(-r.cfg.Retention))
	if err != nil {
		r.logger.Warn("outbox purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("outbox purged", zap.Int64("rows", n))
	}
}
