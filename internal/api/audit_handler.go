package api

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mqueue-go/internal/audit"
	"mqueue-go/internal/domain"
)

// AuditHandler handles HTTP requests for the queue lifecycle audit log.
type AuditHandler struct {
	service *audit.Service
	logger  *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(service *audit.Service, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger,
	}
}

// List handles GET /audit?queue-name=&limit=
// Returns recorded create and delete events, newest first.
func (h *AuditHandler) List(c *fiber.Ctx) error {
	filter := domain.QueueEventFilter{
		Queue: c.Query("queue-name"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return BadRequest(c, ErrLabelInvalidLimit, "Limit must be a positive integer")
		}
		filter.Limit = limit
	}

	events, err := h.service.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list queue events", "error", err)
		return InternalError(c, ErrLabelInternalError, "failed to list queue events")
	}

	return Success(c, fiber.Map{"data": events})
}
