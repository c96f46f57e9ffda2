// Package api provides HTTP handlers and routing for the message queue service.
package api

import (
	"github.com/gofiber/fiber/v2"

	"mqueue-go/internal/domain"
)

// ErrorResponse is the body of every failed request.
// Issues is set only for validation failures.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Issues  []domain.Issue `json:"issues,omitempty"`
}

// MessageResponse is the body of a successful request with nothing else to return.
type MessageResponse struct {
	Message string `json:"message"`
}

// PushResponse is the body of a successful /push.
type PushResponse struct {
	Message string `json:"message"`
	Queue   string `json:"queue"`
	Size    int64  `json:"size"`
}

// PushBatchResponse is the body of a successful /push-n.
type PushBatchResponse struct {
	Message string `json:"message"`
	Queue   string `json:"queue"`
	Count   int    `json:"count"`
	Size    int64  `json:"size"`
}

// ListResponse wraps a queue snapshot.
type ListResponse struct {
	Data []domain.Message `json:"data"`
}

// Error labels for consistent API responses.
const (
	ErrLabelUnauthorized     = "Unauthorized"
	ErrLabelForbidden        = "Forbidden"
	ErrLabelInvalidBody      = "Invalid request body"
	ErrLabelInvalidMessage   = "Invalid message format"
	ErrLabelInvalidName      = "Invalid message queue name format"
	ErrLabelNameRequired     = "Queue name is required"
	ErrLabelInvalidCount     = "Invalid count parameter"
	ErrLabelInvalidLimit     = "Invalid limit parameter"
	ErrLabelQueueMissing     = "Queue does not exist"
	ErrLabelQueueEmpty       = "Queue is empty"
	ErrLabelQueueFull        = "Queue is full"
	ErrLabelQueueExists      = "Queue already exists"
	ErrLabelNotFound         = "Not found"
	ErrLabelBrokerError      = "Broker error"
	ErrLabelInternalError    = "Internal server error"
	ErrLabelServiceUnhealthy = "Service unavailable"
)

// Success sends a 200 JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

// Created sends a 201 Created response with the given data.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

// NoContent sends a 204 No Content response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Error sends an error JSON response with the given status code.
func Error(c *fiber.Ctx, status int, label, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error:   label,
		Message: message,
	})
}

// ValidationFailed sends a 400 response carrying per-field issues.
func ValidationFailed(c *fiber.Ctx, label string, err *domain.ValidationError) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   label,
		Message: err.Error(),
		Issues:  err.Issues,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *fiber.Ctx, label, message string) error {
	return Error(c, fiber.StatusBadRequest, label, message)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *fiber.Ctx, label, message string) error {
	return Error(c, fiber.StatusNotFound, label, message)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *fiber.Ctx, label, message string) error {
	return Error(c, fiber.StatusConflict, label, message)
}

// InternalError sends a 500 Internal Server Error response.
func InternalError(c *fiber.Ctx, label, message string) error {
	return Error(c, fiber.StatusInternalServerError, label, message)
}
