package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"mqueue-go/internal/domain"
)

// writeError translates a service error into a response.
// Broker failures are logged and reported without their internal detail.
func writeError(c *fiber.Ctx, logger *slog.Logger, queue string, err error) error {
	var verr *domain.ValidationError
	var capErr *domain.CapacityError

	switch {
	case errors.As(err, &verr) && errors.Is(err, domain.ErrInvalidQueueName):
		return ValidationFailed(c, ErrLabelInvalidName, verr)
	case errors.As(err, &verr):
		return ValidationFailed(c, ErrLabelInvalidMessage, verr)
	case errors.Is(err, domain.ErrInvalidBatch):
		return BadRequest(c, ErrLabelInvalidBody, err.Error())
	case errors.Is(err, domain.ErrQueueNotFound):
		return NotFound(c, ErrLabelQueueMissing, fmt.Sprintf("Queue %s does not exist", queue))
	case errors.Is(err, domain.ErrQueueEmpty):
		return NotFound(c, ErrLabelQueueEmpty, "No messages in the queue")
	case errors.As(err, &capErr):
		return Conflict(c, ErrLabelQueueFull, capErr.Error())
	case errors.Is(err, domain.ErrQueueExists):
		return Conflict(c, ErrLabelQueueExists, fmt.Sprintf("Queue %s already exists", queue))
	case domain.IsBrokerError(err):
		logger.Error("broker operation failed", "queue", queue, "path", c.Path(), "error", err)
		return InternalError(c, ErrLabelBrokerError, "The request could not be completed due to a server error")
	default:
		logger.Error("unexpected error", "queue", queue, "path", c.Path(), "error", err)
		return InternalError(c, ErrLabelInternalError, "unexpected error")
	}
}
