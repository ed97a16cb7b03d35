package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/SnapLink/internal/app/service"
	"github.com/sifan077/SnapLink/internal/http/view"
	"go.uber.org/zap"
)

// DefaultLocationHeader carries the caller's coarse location when no other
// header is configured.
const DefaultLocationHeader = "X-Client-Location"

const healthTimeout = 2 * time.Second

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger         *zap.Logger
	Links          service.LinkService
	LocationHeader string
	Postgres       *pgxpool.Pool
	Redis          *redis.Client
	Now            func() time.Time
}

// RedirectHandler resolves short codes and serves the health endpoint.
type RedirectHandler struct {
	logger         *zap.Logger
	links          service.LinkService
	locationHeader string
	postgres       *pgxpool.Pool
	redis          *redis.Client
	now            func() time.Time
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	header := deps.LocationHeader
	if header == "" {
		header = DefaultLocationHeader
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RedirectHandler{
		logger:         logger,
		links:          deps.Links,
		locationHeader: header,
		postgres:       deps.Postgres,
		redis:          deps.Redis,
		now:            now,
	}
}

// Register wires redirect routes onto the provided router. It must be
// registered after every other route because /:code matches any segment.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
}

// Health reports whether the service and its backing stores are reachable.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	if h.postgres != nil {
		checks["postgres"] = "ok"
		if err := h.postgres.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status, code := "ok", fiber.StatusOK
	if !healthy {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"service": "SnapLink",
		"status":  status,
		"checks":  checks,
		"time":    h.now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code, recording the click and redirecting to the
// original URL.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	target, err := h.links.Resolve(requestContext(c), code, service.Visit{
		At:       h.now(),
		Source:   c.Get(fiber.HeaderReferer),
		Location: c.Get(h.locationHeader),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			return h.unavailable(c, fiber.StatusNotFound, code, "Link not found", "This short link does not exist.")
		case errors.Is(err, service.ErrLinkExpired):
			return h.unavailable(c, fiber.StatusGone, code, "Link expired", "This short link is no longer valid.")
		default:
			h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}

// unavailable answers browsers with an HTML page and everyone else with JSON.
func (h *RedirectHandler) unavailable(c *fiber.Ctx, status int, code, heading, message string) error {
	if c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) != fiber.MIMETextHTML {
		return c.Status(status).JSON(fiber.Map{
			"error": heading,
			"code":  code,
		})
	}

	html, err := view.RenderLinkPage(view.LinkPageData{
		StatusCode: status,
		Code:       code,
		Heading:    heading,
		Message:    message,
	})
	if err != nil {
		h.logger.Error("failed to render link page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}

	return c.Status(status).
		Type("html", "utf-8").
		SendString(html)
}
