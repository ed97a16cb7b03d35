package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/SnapLink/internal/app/service"
	inthttp "github.com/sifan077/SnapLink/internal/http/handler"
	"github.com/sifan077/SnapLink/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs. Postgres and Redis are
// optional and only feed the health check.
type Dependencies struct {
	Logger         *zap.Logger
	Postgres       *pgxpool.Pool
	Redis          *redis.Client
	Links          service.LinkService
	LocationHeader string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LocationHeader == "" {
		deps.LocationHeader = inthttp.DefaultLocationHeader
	}

	app := fiber.New(fiber.Config{
		AppName:               "SnapLink",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(s.deps.Logger),
		middleware.Logger(s.deps.Logger),
		middleware.CORS(s.deps.LocationHeader),
	)
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.Links,
	})
	apiHandler.Register(s.app)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:         s.deps.Logger,
		Links:          s.deps.Links,
		LocationHeader: s.deps.LocationHeader,
		Postgres:       s.deps.Postgres,
		Redis:          s.deps.Redis,
	})
	redirectHandler.Register(s.app)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled request error", zap.Error(err), zap.String("path", c.Path()))
		}
		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
