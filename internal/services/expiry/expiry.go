// Package expiry периодически переводит просроченные подписки в статус expired.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/cache"
)

// Repository описывает операции хранилища, нужные сервису.
type Repository interface {
	ExpireSubscriptions(ctx context.Context, before time.Time) ([]string, error)
}

// Cache описывает сброс кешированных подписок.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

type Service struct {
	repo     Repository
	cache    Cache
	metrics  *metrics.Metrics
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New создает сервис, который проверяет подписки раз в interval.
func New(repo Repository, c Cache, m *metrics.Metrics, log *slog.Logger, interval time.Duration) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		metrics:  m,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Start запускает проверку сразу и затем по таймеру до отмены ctx.
func (s *Service) Start(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
	}
}

// Sweep помечает истекшие подписки и сбрасывает их кеш. Возвращает число измененных записей.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	ids, err := s.repo.ExpireSubscriptions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		s.log.Debug("no overdue subscriptions found")
		return 0, nil
	}

	for _, id := range ids {
		if err := s.cache.Invalidate(ctx, cache.SubscriptionKey(id)); err != nil {
			s.log.Warn("failed to invalidate cached subscription", sl.SubscriptionID(id), sl.Err(err))
		}
	}
	s.metrics.Expired.Add(float64(len(ids)))
	s.log.Info("subscriptions expired", slog.Int("count", len(ids)))
	return len(ids), nil
}
