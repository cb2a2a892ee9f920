package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-watch/internal/cache"
	"github.com/kjstillabower/station-watch/internal/client"
	"github.com/kjstillabower/station-watch/internal/models"
	"github.com/kjstillabower/station-watch/internal/observability"
)

// ReadingService is a client.Fetcher that serves recent readings from a cache
// and falls back to the upstream client. Cache failures are logged and
// counted but never fail the fetch.
type ReadingService struct {
	client client.Fetcher
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewReadingService wraps upstream with cache-aside lookups. A nil cache or a
// non-positive ttl makes it a pass-through.
func NewReadingService(upstream client.Fetcher, c cache.Cache, ttl time.Duration, logger *zap.Logger) *ReadingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadingService{
		client: upstream,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Fetch implements client.Fetcher.
func (s *ReadingService) Fetch(ctx context.Context, stationID string) (models.Reading, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.client.Fetch(ctx, stationID)
	}

	cached, ok, err := s.cache.Get(ctx, stationID)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		s.logger.Warn("cache get failed", zap.String("station_id", stationID), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("reading").Inc()
		s.logger.Debug("cache hit", zap.String("station_id", stationID))
		return cached, nil
	}

	reading, err := s.client.Fetch(ctx, stationID)
	if err != nil {
		return models.Reading{}, err
	}

	if setErr := s.cache.Set(ctx, stationID, reading, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		s.logger.Warn("cache set failed", zap.String("station_id", stationID), zap.Error(setErr))
	}
	return reading, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
