package api

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mqueue-go/internal/domain"
	"mqueue-go/internal/queue"
)

// QueueHandler handles HTTP requests that move messages in and out of queues.
type QueueHandler struct {
	service *queue.Service
	logger  *slog.Logger
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(service *queue.Service, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		service: service,
		logger:  logger,
	}
}

// Push handles POST /push
// Validates a single message and appends it to the queue.
func (h *QueueHandler) Push(c *fiber.Ctx) error {
	var req domain.PushRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse push body", "error", err)
		return BadRequest(c, ErrLabelInvalidBody, "request body must be a JSON object with 'queue_name' and 'message'")
	}

	size, err := h.service.Push(c.Context(), req.QueueName, req.Message)
	if err != nil {
		h.logger.Debug("push rejected", "queue", req.QueueName, "error", err)
		return writeError(c, h.logger, req.QueueName, err)
	}

	return Created(c, PushResponse{
		Message: fmt.Sprintf("Message has been added to queue %s", req.QueueName),
		Queue:   req.QueueName,
		Size:    size,
	})
}

// PushBatch handles POST /push-n
// Validates every message and appends the whole batch, or nothing.
func (h *QueueHandler) PushBatch(c *fiber.Ctx) error {
	var req domain.PushBatchRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse push-n body", "error", err)
		return BadRequest(c, ErrLabelInvalidBody, domain.ErrInvalidBatch.Error())
	}

	if err := req.Validate(); err != nil {
		return writeError(c, h.logger, req.QueueName, err)
	}

	size, err := h.service.PushMany(c.Context(), req.QueueName, req.Messages)
	if err != nil {
		h.logger.Debug("push-n rejected", "queue", req.QueueName, "count", len(req.Messages), "error", err)
		return writeError(c, h.logger, req.QueueName, err)
	}

	h.logger.Info("pushed batch", "queue", req.QueueName, "count", len(req.Messages), "size", size)
	return Created(c, PushBatchResponse{
		Message: fmt.Sprintf("%d message(s) have been added to queue %s. New queue size: %d.", len(req.Messages), req.QueueName, size),
		Queue:   req.QueueName,
		Count:   len(req.Messages),
		Size:    size,
	})
}

// Pull handles GET /pull?queue-name=
// Removes and returns the oldest message.
func (h *QueueHandler) Pull(c *fiber.Ctx) error {
	name := c.Query("queue-name")
	if name == "" {
		return BadRequest(c, ErrLabelNameRequired, "Queue name is missing")
	}

	msg, err := h.service.Pop(c.Context(), name)
	if err != nil {
		return writeError(c, h.logger, name, err)
	}

	return Success(c, msg)
}

// PullBatch handles GET /pull-n?queue-name=&count=
// Long-polls for a first message, then returns up to count messages.
// Responds 204 when nothing arrived before the pull timeout.
func (h *QueueHandler) PullBatch(c *fiber.Ctx) error {
	name := c.Query("queue-name")
	if name == "" {
		return BadRequest(c, ErrLabelNameRequired, "Queue name is missing")
	}

	count, err := strconv.Atoi(c.Query("count"))
	if err != nil || count <= 0 {
		return BadRequest(c, ErrLabelInvalidCount, "Count must be a positive integer")
	}

	msgs, err := h.service.PopBatch(c.Context(), name, count)
	if err != nil {
		if errors.Is(err, domain.ErrNoMessages) {
			return NoContent(c)
		}
		return writeError(c, h.logger, name, err)
	}

	return Success(c, msgs)
}

// List handles GET /list?queue-name=
// Returns every message in the queue without removing any.
func (h *QueueHandler) List(c *fiber.Ctx) error {
	name := c.Query("queue-name")
	if name == "" {
		return BadRequest(c, ErrLabelNameRequired, "Queue name is missing")
	}

	msgs, err := h.service.Range(c.Context(), name)
	if err != nil {
		return writeError(c, h.logger, name, err)
	}

	return Success(c, ListResponse{Data: msgs})
}
