package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
)

// memRepo is an in-memory LinkRepository for service tests.
type memRepo struct {
	mu     sync.Mutex
	nextID uint
	links  map[string]*model.Link // keyed by short code
	stats  map[uint][]model.LinkStat
}

func newMemRepo() *memRepo {
	return &memRepo{
		links: make(map[string]*model.Link),
		stats: make(map[uint][]model.LinkStat),
	}
}

func (r *memRepo) Create(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codeTaken(link.ShortCode, 0) {
		return repository.ErrDuplicateCode
	}
	r.nextID++
	link.ID = r.nextID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	cp := *link
	r.links[link.ShortCode] = &cp
	return nil
}

func (r *memRepo) GetByCode(_ context.Context, code string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (r *memRepo) GetByAlias(_ context.Context, alias string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.links {
		if link.CustomAlias != nil && *link.CustomAlias == alias {
			cp := *link
			return &cp, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (r *memRepo) CodeInUse(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codeTaken(code, 0), nil
}

func (r *memRepo) AliasInUse(_ context.Context, alias string, excludeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codeTaken(alias, excludeID), nil
}

func (r *memRepo) codeTaken(code string, excludeID uint) bool {
	for _, link := range r.links {
		if link.ID == excludeID {
			continue
		}
		if link.ShortCode == code {
			return true
		}
		if link.CustomAlias != nil && *link.CustomAlias == code {
			return true
		}
	}
	return false
}

func (r *memRepo) Update(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, existing := range r.links {
		if existing.ID == link.ID {
			cp := *link
			r.links[code] = &cp
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (r *memRepo) Delete(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, existing := range r.links {
		if existing.ID == link.ID {
			delete(r.links, code)
			delete(r.stats, link.ID)
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (r *memRepo) Search(_ context.Context, text string, limit int) ([]model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Link
	for _, link := range r.links {
		if strings.Contains(strings.ToLower(link.OriginalURL), strings.ToLower(text)) {
			out = append(out, *link)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListProjects(_ context.Context, ownerID uint) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, link := range r.links {
		if link.OwnerID != nil && *link.OwnerID == ownerID && link.Project != nil && !seen[*link.Project] {
			seen[*link.Project] = true
			out = append(out, *link.Project)
		}
	}
	return out, nil
}

func (r *memRepo) ListByProject(_ context.Context, ownerID uint, project string) ([]model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Link
	for _, link := range r.links {
		if link.OwnerID != nil && *link.OwnerID == ownerID && link.Project != nil && *link.Project == project {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (r *memRepo) ListExpired(_ context.Context, now time.Time) ([]model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Link
	for _, link := range r.links {
		if link.ExpiresAt != nil && link.ExpiresAt.Before(now) {
			out = append(out, *link)
		}
	}
	return out, nil
}

// ListInactiveSince mirrors the join semantics of the real query: links
// without any stat rows never match.
func (r *memRepo) ListInactiveSince(_ context.Context, cutoff time.Time) ([]model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Link
	for _, link := range r.links {
		stats := r.stats[link.ID]
		if len(stats) == 0 {
			continue
		}
		latest := stats[0].AccessedAt
		for _, st := range stats[1:] {
			if st.AccessedAt.After(latest) {
				latest = st.AccessedAt
			}
		}
		if latest.Before(cutoff) {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (r *memRepo) ListCodes(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.links))
	for code := range r.links {
		codes = append(codes, code)
	}
	return codes, nil
}

// addStat seeds a stat row directly, bypassing the recording path.
func (r *memRepo) addStat(linkID uint, accessedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[linkID] = append(r.stats[linkID], model.LinkStat{LinkID: linkID, AccessedAt: accessedAt})
}

// applyAccess emulates the recorder transaction against the in-memory state.
func (r *memRepo) applyAccess(ev model.AccessEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.links {
		if link.ID == ev.LinkID {
			link.AccessCount++
			at := ev.AccessedAt
			link.LastAccess = &at
			r.stats[link.ID] = append(r.stats[link.ID], model.LinkStat{LinkID: link.ID, AccessedAt: at})
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

// memCache is an in-memory Cache for service tests; TTLs are recorded but
// never enforced.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	incr map[string]int64
}

func newMemCache() *memCache {
	return &memCache{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
		incr: make(map[string]int64),
	}
}

func (c *memCache) Put(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
}

func (c *memCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.data[key]
	return val, ok
}

func (c *memCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
		delete(c.ttls, key)
	}
}

func (c *memCache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incr[key]++
	if c.incr[key] == 1 {
		c.ttls[key] = ttl
	}
	return c.incr[key], nil
}

// captureSink records submitted access events and optionally applies them to
// a memRepo synchronously, standing in for the recorder pipeline.
type captureSink struct {
	mu     sync.Mutex
	events []model.AccessEvent
	repo   *memRepo
}

func (s *captureSink) Submit(_ context.Context, ev model.AccessEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.applyAccess(ev)
	}
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
