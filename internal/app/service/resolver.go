package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/linkmint/linkmint/internal/cache"
	"github.com/linkmint/linkmint/internal/infra/metrics"
	"go.uber.org/zap"
)

// Visitor carries the request attributes recorded with each redirect.
type Visitor struct {
	IP        string
	UserAgent string
	Referer   string
}

// Resolver is the redirect engine: short code in, destination URL out, one
// access event submitted per successful resolve.
type Resolver interface {
	Resolve(ctx context.Context, code string, visitor Visitor) (string, error)
}

// AccessSink receives access events off the request path. Submission
// failures are best-effort: logged, never surfaced to the visitor.
type AccessSink interface {
	Submit(ctx context.Context, ev model.AccessEvent) error
}

type resolver struct {
	repo   repository.LinkRepository
	cache  cache.Cache
	sink   AccessSink
	logger *zap.Logger
	now    func() time.Time
}

// ResolverDeps groups the resolver's collaborators. Sink may be nil, which
// disables statistics recording entirely.
type ResolverDeps struct {
	Repo   repository.LinkRepository
	Cache  cache.Cache
	Sink   AccessSink
	Logger *zap.Logger
	Now    func() time.Time
}

// NewResolver builds the redirect engine from its dependencies.
func NewResolver(deps ResolverDeps) Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &resolver{
		repo:   deps.Repo,
		cache:  deps.Cache,
		sink:   deps.Sink,
		logger: logger,
		now:    now,
	}
}

// Resolve checks the cache, falls back to the store, enforces expiry, and
// records the access.
//
// The cache only ever holds the destination URL, never counters, so even a
// cache hit loads the authoritative row for statistics. The one deliberate
// inconsistency: a cached URL whose store row was deleted after caching is
// still served until its TTL runs out, with no stat recorded — there is no
// authoritative row to count against.
func (r *resolver) Resolve(ctx context.Context, code string, visitor Visitor) (string, error) {
	now := r.now()

	if url, ok := r.cache.Get(ctx, cache.LinkKey(code)); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()

		link, err := r.repo.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				// Accepted staleness, bounded by the 24h TTL.
				r.logger.Debug("serving cached url for deleted link", zap.String("code", code))
				metrics.Redirects.WithLabelValues("stale_hit").Inc()
				return url, nil
			}
			return "", err
		}

		// Expiry beats the cache: an expired link is gone no matter what
		// the cache still holds.
		if link.Expired(now) {
			metrics.Redirects.WithLabelValues("gone").Inc()
			return "", ErrLinkGone
		}

		r.record(ctx, link, visitor, now)
		metrics.Redirects.WithLabelValues("ok").Inc()
		return url, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	link, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			metrics.Redirects.WithLabelValues("not_found").Inc()
		}
		return "", err
	}

	if link.Expired(now) {
		// Never cache a dead link.
		metrics.Redirects.WithLabelValues("gone").Inc()
		return "", ErrLinkGone
	}

	// Read-through repopulation after a confirmed live row.
	r.cache.Put(ctx, cache.LinkKey(code), link.OriginalURL, cache.LinkTTL)

	r.record(ctx, link, visitor, now)
	metrics.Redirects.WithLabelValues("ok").Inc()
	return link.OriginalURL, nil
}

func (r *resolver) record(ctx context.Context, link *model.Link, visitor Visitor, now time.Time) {
	if r.sink == nil {
		return
	}

	ev := model.AccessEvent{
		ID:         uuid.New().String(),
		LinkID:     link.ID,
		ShortCode:  link.ShortCode,
		IP:         visitor.IP,
		UserAgent:  visitor.UserAgent,
		Referer:    visitor.Referer,
		AccessedAt: now,
	}

	if err := r.sink.Submit(ctx, ev); err != nil {
		r.logger.Error("failed to submit access event",
			zap.String("code", link.ShortCode), zap.Error(err))
	}
}
