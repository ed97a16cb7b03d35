package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/SnapLink/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Now         func() time.Time
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	now         func() time.Time
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		now:         now,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLinks)
			links.Get("/", h.ListLinks)
			links.Get("/:code", h.GetLink)
		}
	}
}

// CreateLinks handles POST /api/links
func (h *APIHandler) CreateLinks(c *fiber.Ctx) error {
	var req CreateLinksRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(req.Links) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "links must contain at least one row",
		})
	}

	input := make([]service.CreateLinkRequest, len(req.Links))
	for i, item := range req.Links {
		input[i] = service.CreateLinkRequest{
			OriginalURL: item.OriginalURL,
			Validity:    string(item.Validity),
			Shortcode:   strings.TrimSpace(item.Shortcode),
		}
	}

	outcomes, err := h.linkService.CreateLinks(requestContext(c), input)
	if err != nil {
		var dup *service.DuplicateShortcodeError
		if errors.As(err, &dup) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":     fmt.Sprintf("Shortcode %q already exists.", dup.Code),
				"shortcode": dup.Code,
				"row":       dup.Row,
			})
		}
		h.logger.Error("failed to create links", zap.Error(err), zap.Int("rows", len(input)))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create links",
		})
	}

	now := h.now()
	results := make([]RowResponse, len(outcomes))
	var created, invalid, failed int
	for i, o := range outcomes {
		results[i] = RowResponse{Row: o.Row}
		switch {
		case o.Created():
			link := newLinkResponse(*o.Record, c.BaseURL(), now)
			results[i].Status = RowCreated
			results[i].Link = &link
			created++
		case o.Skipped:
			results[i].Status = RowSkipped
		case len(o.Errors) > 0:
			results[i].Status = RowInvalid
			results[i].Errors = o.Errors
			invalid++
		default:
			results[i].Status = RowFailed
			if o.Err != nil {
				results[i].Error = o.Err.Error()
			}
			failed++
		}
	}

	status := fiber.StatusOK
	switch {
	case created > 0:
		status = fiber.StatusCreated
	case failed > 0:
		status = fiber.StatusInternalServerError
	case invalid > 0:
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(fiber.Map{
		"results": results,
		"created": created,
	})
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.linkService.GetAllLinks(requestContext(c))
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	now := h.now()
	response := make([]LinkResponse, len(links))
	for i, link := range links {
		response[i] = newLinkResponse(link, c.BaseURL(), now)
	}

	return c.JSON(fiber.Map{
		"links": response,
		"count": len(response),
	})
}

// GetLink handles GET /api/links/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	link, err := h.linkService.GetLink(requestContext(c), code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get link",
		})
	}

	return c.JSON(newLinkResponse(*link, c.BaseURL(), h.now()))
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
