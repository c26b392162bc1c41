package handler

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/linkmint/linkmint/internal/app/service"
	"github.com/linkmint/linkmint/internal/http/middleware"
	"go.uber.org/zap"
)

// LinkDeps groups dependencies required by the link API handlers.
type LinkDeps struct {
	Logger *zap.Logger
	Links  service.LinkService
}

// LinkHandler implements the /links management and read API.
type LinkHandler struct {
	logger *zap.Logger
	links  service.LinkService
}

// NewLinkHandler creates a link API handler with the provided dependencies.
func NewLinkHandler(deps LinkDeps) *LinkHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		logger: logger,
		links:  deps.Links,
	}
}

// Register wires the link API routes. Static segments are registered before
// the :code parameter so /search and /projects stay reachable.
func (h *LinkHandler) Register(router fiber.Router) {
	links := router.Group("/links")
	{
		links.Post("/shorten", h.Shorten)
		links.Get("/search", h.Search)
		links.Get("/projects", h.Projects)
		links.Get("/projects/:name", h.ProjectLinks)
		links.Get("/:code", h.Get)
		links.Get("/:code/stats", h.Stats)
		links.Put("/:code", h.Update)
		links.Delete("/:code", h.Delete)
	}
}

// LinkResponse is the API shape of a link.
type LinkResponse struct {
	ID          uint       `json:"id"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	CustomAlias *string    `json:"custom_alias"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	LastAccess  *time.Time `json:"last_accessed"`
	AccessCount int64      `json:"access_count"`
	Project     *string    `json:"project"`
	OwnerID     *uint      `json:"owner_id"`
}

func toResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		CustomAlias: link.CustomAlias,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		LastAccess:  link.LastAccess,
		AccessCount: link.AccessCount,
		Project:     link.Project,
		OwnerID:     link.OwnerID,
	}
}

func toResponses(links []model.Link) []LinkResponse {
	out := make([]LinkResponse, len(links))
	for i := range links {
		out[i] = toResponse(&links[i])
	}
	return out
}

// ShortenRequest is the request body for creating a link.
type ShortenRequest struct {
	OriginalURL string     `json:"original_url"`
	CustomAlias *string    `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Project     *string    `json:"project,omitempty"`
}

// Shorten handles POST /links/shorten. Anonymous callers are allowed; the
// link simply has no owner.
func (h *LinkHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if !validURL(req.OriginalURL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "original_url must be an absolute http(s) URL",
		})
	}

	link, err := h.links.Shorten(c.UserContext(), service.ShortenInput{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		Project:     req.Project,
		OwnerID:     middleware.Caller(c),
	})
	if err != nil {
		return h.fail(c, err, "failed to create link")
	}

	return c.JSON(toResponse(link))
}

// Get handles GET /links/:code.
func (h *LinkHandler) Get(c *fiber.Ctx) error {
	link, err := h.links.Get(c.UserContext(), c.Params("code"))
	if err != nil {
		return h.fail(c, err, "failed to load link")
	}
	return c.JSON(toResponse(link))
}

// Stats handles GET /links/:code/stats.
func (h *LinkHandler) Stats(c *fiber.Ctx) error {
	snapshot, err := h.links.Stats(c.UserContext(), c.Params("code"))
	if err != nil {
		return h.fail(c, err, "failed to load stats")
	}
	return c.JSON(snapshot)
}

// Search handles GET /links/search?original_url=.
func (h *LinkHandler) Search(c *fiber.Ctx) error {
	query := c.Query("original_url")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "original_url query parameter is required",
		})
	}

	links, err := h.links.Search(c.UserContext(), query)
	if err != nil {
		return h.fail(c, err, "search failed")
	}
	return c.JSON(toResponses(links))
}

// Projects handles GET /links/projects.
func (h *LinkHandler) Projects(c *fiber.Ctx) error {
	caller := middleware.Caller(c)
	if caller == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	projects, err := h.links.Projects(c.UserContext(), *caller)
	if err != nil {
		return h.fail(c, err, "failed to list projects")
	}
	if projects == nil {
		projects = []string{}
	}
	return c.JSON(projects)
}

// ProjectLinks handles GET /links/projects/:name.
func (h *LinkHandler) ProjectLinks(c *fiber.Ctx) error {
	caller := middleware.Caller(c)
	if caller == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	links, err := h.links.ProjectLinks(c.UserContext(), *caller, c.Params("name"))
	if err != nil {
		return h.fail(c, err, "failed to list project links")
	}
	return c.JSON(toResponses(links))
}

// UpdateRequest is the request body for updating a link; absent fields stay
// untouched.
type UpdateRequest struct {
	OriginalURL *string    `json:"original_url,omitempty"`
	CustomAlias *string    `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Project     *string    `json:"project,omitempty"`
}

// Update handles PUT /links/:code (owner only).
func (h *LinkHandler) Update(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.OriginalURL != nil && !validURL(*req.OriginalURL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "original_url must be an absolute http(s) URL",
		})
	}

	link, err := h.links.Update(c.UserContext(), c.Params("code"), middleware.Caller(c), service.UpdatePatch{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		Project:     req.Project,
	})
	if err != nil {
		return h.fail(c, err, "failed to update link")
	}

	return c.JSON(toResponse(link))
}

// Delete handles DELETE /links/:code (owner only).
func (h *LinkHandler) Delete(c *fiber.Ctx) error {
	if err := h.links.Delete(c.UserContext(), c.Params("code"), middleware.Caller(c)); err != nil {
		return h.fail(c, err, "failed to delete link")
	}
	return c.JSON(fiber.Map{"message": "link deleted successfully"})
}

// fail maps service errors onto the API contract. Ownership mismatches are
// reported as not-found so the API does not leak which codes exist.
func (h *LinkHandler) fail(c *fiber.Ctx, err error, logMsg string) error {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found or you don't have permission",
		})
	case errors.Is(err, service.ErrAliasTaken):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "custom alias already exists",
		})
	case errors.Is(err, service.ErrLinkGone):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "link has expired",
		})
	default:
		h.logger.Error(logMsg, zap.Error(err), zap.String("path", c.Path()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
