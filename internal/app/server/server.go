package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/linkmint/linkmint/internal/app/service"
	"github.com/linkmint/linkmint/internal/cache"
	inthttp "github.com/linkmint/linkmint/internal/http/handler"
	"github.com/linkmint/linkmint/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs.
type Dependencies struct {
	Logger   *zap.Logger
	Cache    cache.Cache
	Links    service.LinkService
	Resolver service.Resolver
	Secret   []byte
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger

	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(log))
	s.app.Use(middleware.Logger(log))
	s.app.Use(middleware.CORS())
	s.app.Use(middleware.Identity(s.deps.Secret))

	// Rate limiting only guards the management API, not redirects.
	if s.deps.Cache != nil {
		s.app.Use("/links", middleware.RateLimit(s.deps.Cache, middleware.DefaultRateLimitConfig(), log))
	}

	linkHandler := inthttp.NewLinkHandler(inthttp.LinkDeps{
		Logger: log,
		Links:  s.deps.Links,
	})
	linkHandler.Register(s.app)

	// Registered last so the catch-all /:code route loses to every static
	// route above it.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:   log,
		Resolver: s.deps.Resolver,
	})
	redirectHandler.Register(s.app)
}
