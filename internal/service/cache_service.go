package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

const dashboardKeyPrefix = "dash:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// CacheService keeps per-user dashboard summaries. Every transition drops all of them,
// so a cached summary is at most one TTL stale with respect to reads that bypass the engine.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service. A nil repo disables caching.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// DashboardKey is the cache key of one user's dashboard. The role is part of the key so a
// role change never serves the previous role's cards.
func DashboardKey(actor models.Actor) string {
	return dashboardKeyPrefix + string(actor.Role) + ":" + actor.UserID
}

// LoadSummary returns the cached dashboard of actor. Read failures count as a miss.
func (s *CacheService) LoadSummary(ctx context.Context, actor models.Actor) (*models.DashboardSummary, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := DashboardKey(actor)
	var summary models.DashboardSummary
	start := time.Now()
	err := s.repo.Get(ctx, key, &summary)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return &summary, true
	case errors.Is(err, appErrors.ErrCacheMiss):
	default:
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// StoreSummary caches summary for actor. A zero ttl uses the service default.
func (s *CacheService) StoreSummary(ctx context.Context, actor models.Actor, summary *models.DashboardSummary, ttl time.Duration) {
	if !s.Enabled() || summary == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	key := DashboardKey(actor)
	start := time.Now()
	err := s.repo.Set(ctx, key, summary, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateDashboards drops every cached dashboard.
func (s *CacheService) InvalidateDashboards(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	removed, err := s.repo.DeleteByPattern(ctx, dashboardKeyPrefix+"*")
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Debug("dashboards invalidated", zap.Int("removed", removed))
	}
	return nil
}
