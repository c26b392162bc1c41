package service

import (
	"context"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/linkmint/linkmint/internal/cache"
	"github.com/linkmint/linkmint/internal/infra/metrics"
	"go.uber.org/zap"
)

// CleanupScheduler periodically reaps expired links and links whose last
// recorded access is older than the inactivity window, invalidating their
// cache entries as it goes. It is started and stopped explicitly by the
// process lifecycle; a failed pass is logged and the next tick retries.
//
// The inactivity query joins on link_stats, so a link that was never
// accessed has no stats to join against and is never reaped by that pass.
type CleanupScheduler struct {
	logger   *zap.Logger
	repo     repository.LinkRepository
	cache    cache.Cache
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	stopChan chan struct{}
}

// CleanupDeps groups the scheduler's collaborators and tuning knobs.
type CleanupDeps struct {
	Logger   *zap.Logger
	Repo     repository.LinkRepository
	Cache    cache.Cache
	Interval time.Duration // default 24h
	Window   time.Duration // default 30 days
	Now      func() time.Time
}

// NewCleanupScheduler builds a scheduler; Start must be called to run it.
func NewCleanupScheduler(deps CleanupDeps) *CleanupScheduler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	window := deps.Window
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &CleanupScheduler{
		logger:   logger,
		repo:     deps.Repo,
		cache:    deps.Cache,
		interval: interval,
		window:   window,
		now:      now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic passes.
func (s *CleanupScheduler) Start() {
	go s.run()
}

// Stop halts the scheduler between passes.
func (s *CleanupScheduler) Stop() {
	close(s.stopChan)
}

func (s *CleanupScheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunPass(context.Background())
		case <-s.stopChan:
			s.logger.Info("cleanup scheduler stopped")
			return
		}
	}
}

// RunPass executes one cleanup pass: expired links first, then inactive
// ones. Errors abort the failing sub-pass only.
func (s *CleanupScheduler) RunPass(ctx context.Context) {
	now := s.now()

	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		s.logger.Error("cleanup: listing expired links failed", zap.Error(err))
	} else {
		s.reap(ctx, expired, "expired")
	}

	cutoff := now.Add(-s.window)
	inactive, err := s.repo.ListInactiveSince(ctx, cutoff)
	if err != nil {
		s.logger.Error("cleanup: listing inactive links failed", zap.Error(err))
	} else {
		s.reap(ctx, inactive, "inactive")
	}
}

// reap deletes each link and drops its cache keys. Interruptible between
// deletions; a single failed delete does not stop the rest.
func (s *CleanupScheduler) reap(ctx context.Context, links []model.Link, reason string) {
	var deleted int
	for i := range links {
		if ctx.Err() != nil {
			break
		}
		link := &links[i]

		cache.InvalidateLink(ctx, s.cache, link.ShortCode)

		if err := s.repo.Delete(ctx, link); err != nil {
			s.logger.Error("cleanup: delete failed",
				zap.String("code", link.ShortCode),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}
		deleted++
		metrics.CleanupDeletions.WithLabelValues(reason).Inc()
	}

	if deleted > 0 {
		s.logger.Info("cleanup pass removed links",
			zap.Int("count", deleted),
			zap.String("reason", reason))
	}
}
