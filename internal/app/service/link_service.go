package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/linkmint/linkmint/internal/cache"
	"go.uber.org/zap"
)

// LinkService covers link lifecycle and read paths; the redirect path itself
// lives on Resolver.
type LinkService interface {
	Shorten(ctx context.Context, input ShortenInput) (*model.Link, error)
	Get(ctx context.Context, code string) (*model.Link, error)
	Stats(ctx context.Context, code string) (*StatsSnapshot, error)
	Search(ctx context.Context, text string) ([]model.Link, error)
	Projects(ctx context.Context, ownerID uint) ([]string, error)
	ProjectLinks(ctx context.Context, ownerID uint, project string) ([]model.Link, error)
	Update(ctx context.Context, code string, callerID *uint, patch UpdatePatch) (*model.Link, error)
	Delete(ctx context.Context, code string, callerID *uint) error
}

// ShortenInput captures everything needed to create a link. OwnerID is nil
// for anonymous callers.
type ShortenInput struct {
	OriginalURL string
	CustomAlias *string
	ExpiresAt   *time.Time
	Project     *string
	OwnerID     *uint
}

// UpdatePatch mutates only the fields that are set.
type UpdatePatch struct {
	OriginalURL *string
	CustomAlias *string
	ExpiresAt   *time.Time
	Project     *string
}

// StatsSnapshot is the cached, eventually-consistent stats view of a link.
// A cached snapshot may undercount redirects by up to its TTL.
type StatsSnapshot struct {
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	AccessCount int64      `json:"access_count"`
	LastAccess  *time.Time `json:"last_accessed"`
}

type linkService struct {
	repo   repository.LinkRepository
	cache  cache.Cache
	gen    CodeGenerator
	filter *CodeFilter
	logger *zap.Logger
	now    func() time.Time
}

// LinkServiceDeps groups the collaborators of the link service. Filter may
// be nil, in which case every candidate pays the store check.
type LinkServiceDeps struct {
	Repo   repository.LinkRepository
	Cache  cache.Cache
	Gen    CodeGenerator
	Filter *CodeFilter
	Logger *zap.Logger
	Now    func() time.Time
}

// NewLinkService builds the service from its dependencies.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := deps.Gen
	if gen == nil {
		gen = NewCodeGenerator()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &linkService{
		repo:   deps.Repo,
		cache:  deps.Cache,
		gen:    gen,
		filter: deps.Filter,
		logger: logger,
		now:    now,
	}
}

func (s *linkService) Shorten(ctx context.Context, input ShortenInput) (*model.Link, error) {
	aliased := input.CustomAlias != nil && *input.CustomAlias != ""
	if !aliased {
		input.CustomAlias = nil
	}

	var link *model.Link
	for {
		var code string
		if aliased {
			inUse, err := s.repo.CodeInUse(ctx, *input.CustomAlias)
			if err != nil {
				return nil, fmt.Errorf("shorten: check alias: %w", err)
			}
			if inUse {
				return nil, ErrAliasTaken
			}
			code = *input.CustomAlias
		} else {
			var err error
			code, err = s.pickCode(ctx)
			if err != nil {
				return nil, err
			}
		}

		link = &model.Link{
			OriginalURL: input.OriginalURL,
			ShortCode:   code,
			CustomAlias: input.CustomAlias,
			ExpiresAt:   input.ExpiresAt,
			Project:     input.Project,
			OwnerID:     input.OwnerID,
		}

		err := s.repo.Create(ctx, link)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateCode) {
			// Lost an insert race: the unique index is the last word on
			// uniqueness. An alias conflict belongs to the caller; a
			// generated-code collision just means another spin.
			if aliased {
				return nil, ErrAliasTaken
			}
			continue
		}
		return nil, fmt.Errorf("shorten: create link: %w", err)
	}

	if s.filter != nil {
		s.filter.Add(link.ShortCode)
	}

	// Write-through so the first redirect skips the cold store read. Runs
	// only after the insert committed; a failed create never taints cache.
	s.cache.Put(ctx, cache.LinkKey(link.ShortCode), link.OriginalURL, cache.LinkTTL)

	return link, nil
}

// pickCode loops generator candidates until one passes the uniqueness check.
// Collisions are possible by construction, so the retry is a correctness
// requirement, not an optimization.
func (s *linkService) pickCode(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := s.gen.Candidate()

		// Bloom says "definitely new": skip the store round-trip.
		if s.filter != nil && !s.filter.MayContain(candidate) {
			return candidate, nil
		}

		inUse, err := s.repo.CodeInUse(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("shorten: check code: %w", err)
		}
		if !inUse {
			return candidate, nil
		}
	}
}

func (s *linkService) Get(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *linkService) Stats(ctx context.Context, code string) (*StatsSnapshot, error) {
	var snapshot StatsSnapshot
	if cache.GetJSON(ctx, s.cache, cache.StatsKey(code), &snapshot) {
		return &snapshot, nil
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	snapshot = StatsSnapshot{
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		AccessCount: link.AccessCount,
		LastAccess:  link.LastAccess,
	}
	cache.PutJSON(ctx, s.cache, cache.StatsKey(code), snapshot, cache.SnapshotTTL)

	return &snapshot, nil
}

func (s *linkService) Search(ctx context.Context, text string) ([]model.Link, error) {
	var cached []model.Link
	if cache.GetJSON(ctx, s.cache, cache.SearchKey(text), &cached) {
		return cached, nil
	}

	links, err := s.repo.Search(ctx, text, 100)
	if err != nil {
		return nil, fmt.Errorf("search links: %w", err)
	}

	cache.PutJSON(ctx, s.cache, cache.SearchKey(text), links, cache.SnapshotTTL)
	return links, nil
}

func (s *linkService) Projects(ctx context.Context, ownerID uint) ([]string, error) {
	projects, err := s.repo.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *linkService) ProjectLinks(ctx context.Context, ownerID uint, project string) ([]model.Link, error) {
	links, err := s.repo.ListByProject(ctx, ownerID, project)
	if err != nil {
		return nil, fmt.Errorf("list project links: %w", err)
	}
	return links, nil
}

func (s *linkService) Update(ctx context.Context, code string, callerID *uint, patch UpdatePatch) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !owns(link, callerID) {
		return nil, ErrForbidden
	}

	if patch.OriginalURL != nil {
		link.OriginalURL = *patch.OriginalURL
	}
	if patch.CustomAlias != nil && *patch.CustomAlias != "" {
		inUse, err := s.repo.AliasInUse(ctx, *patch.CustomAlias, link.ID)
		if err != nil {
			return nil, fmt.Errorf("update link: check alias: %w", err)
		}
		if inUse {
			return nil, ErrAliasTaken
		}
		link.CustomAlias = patch.CustomAlias
	}
	if patch.ExpiresAt != nil {
		link.ExpiresAt = patch.ExpiresAt
	}
	if patch.Project != nil {
		link.Project = patch.Project
	}

	if err := s.repo.Update(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrAliasTaken
		}
		return nil, fmt.Errorf("update link: %w", err)
	}

	// Drop both key families, then repopulate the URL mapping. A resolve
	// racing this update must never be served the old destination past the
	// repopulate.
	cache.InvalidateLink(ctx, s.cache, code)
	s.cache.Put(ctx, cache.LinkKey(code), link.OriginalURL, cache.LinkTTL)

	return link, nil
}

func (s *linkService) Delete(ctx context.Context, code string, callerID *uint) error {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !owns(link, callerID) {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, link); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	cache.InvalidateLink(ctx, s.cache, code)
	return nil
}

// owns reports whether the caller identity matches the link owner. Anonymous
// links have no owner and cannot be mutated through the API.
func owns(link *model.Link, callerID *uint) bool {
	return callerID != nil && link.OwnerID != nil && *link.OwnerID == *callerID
}
