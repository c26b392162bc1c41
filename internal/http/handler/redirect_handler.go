package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/linkmint/linkmint/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver service.Resolver
}

// RedirectHandler serves the user-facing redirect entry points.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver service.Resolver
}

// NewRedirectHandler creates a redirect handler with the provided
// dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
	}
}

// Register wires redirect routes. The bare /:code route must be registered
// after every static route on the app.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/links/:code/redirect", h.Resolve)
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
}

// Health is a simple liveness endpoint.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "linkmint",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code and GET /links/:code/redirect, answering with
// the destination URL.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	url, err := h.resolver.Resolve(c.UserContext(), code, service.Visitor{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referer:   c.Get(fiber.HeaderReferer),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		case errors.Is(err, service.ErrLinkGone):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{
				"error": "link has expired",
			})
		default:
			h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	h.logger.Debug("resolved short link", zap.String("code", code), zap.String("target", url))
	return c.JSON(fiber.Map{"url": url})
}
