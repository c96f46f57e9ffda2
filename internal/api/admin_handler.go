package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"mqueue-go/internal/audit"
	"mqueue-go/internal/auth"
	"mqueue-go/internal/domain"
	"mqueue-go/internal/registry"
)

// AdminHandler handles HTTP requests that create and delete queues.
type AdminHandler struct {
	registry *registry.Registry
	audit    *audit.Service
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(reg *registry.Registry, auditService *audit.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		registry: reg,
		audit:    auditService,
		logger:   logger,
	}
}

// Create handles POST /create
// Registers a new, empty queue.
func (h *AdminHandler) Create(c *fiber.Ctx) error {
	name, ok, err := h.parseName(c)
	if !ok {
		return err
	}

	if err := h.registry.Create(c.Context(), name); err != nil {
		return writeError(c, h.logger, name, err)
	}

	h.record(c, name, domain.QueueCreated)
	return Created(c, MessageResponse{Message: fmt.Sprintf("Queue %s created", name)})
}

// Delete handles DELETE /delete
// Unregisters a queue and discards its messages.
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	name, ok, err := h.parseName(c)
	if !ok {
		return err
	}

	if err := h.registry.Delete(c.Context(), name); err != nil {
		return writeError(c, h.logger, name, err)
	}

	h.record(c, name, domain.QueueDeleted)
	return Success(c, MessageResponse{Message: fmt.Sprintf("Queue %s deleted", name)})
}

// parseName reads and validates the {name} body.
// When ok is false the error response has already been written.
func (h *AdminHandler) parseName(c *fiber.Ctx) (name string, ok bool, err error) {
	var req domain.QueueNameRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return "", false, BadRequest(c, ErrLabelInvalidBody, "request body must be a JSON object with 'name'")
	}

	if err := req.Validate(); err != nil {
		h.logger.Debug("validation failed", "error", err)
		return "", false, writeError(c, h.logger, "", err)
	}

	return *req.Name, true, nil
}

func (h *AdminHandler) record(c *fiber.Ctx, name string, action domain.QueueAction) {
	var principalID, role string
	if p, ok := auth.PrincipalFrom(c); ok {
		principalID, role = p.ID, string(p.Role)
	}
	h.audit.Record(c.Context(), name, action, principalID, role)
}
