package server

import (
	"errors"
	"fitagent/app/service/conversation"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusCode(err)

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", code,
			"error", err,
		)
	}

	return c.Status(code).JSON(errorResponse{Error: publicMessage(err)})
}

func statusCode(err error) int {
	var fiberErr *fiber.Error
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, conversation.ErrNoAPIKey):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, conversation.ErrEmptyInput), errors.As(err, &validationErrs):
		return fiber.StatusBadRequest
	case errors.Is(err, conversation.ErrModel):
		return fiber.StatusBadGateway
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return fiber.StatusInternalServerError
	}
}

// publicMessage is the error text safe to show in the page.
func publicMessage(err error) string {
	var fiberErr *fiber.Error
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, conversation.ErrNoAPIKey):
		return conversation.APIKeyNotice
	case errors.Is(err, conversation.ErrEmptyInput):
		return "message is empty"
	case errors.As(err, &validationErrs):
		return "invalid request: " + validationErrs.Error()
	case errors.Is(err, conversation.ErrModel):
		return "the coach is unavailable right now, please try again"
	case errors.As(err, &fiberErr):
		return fiberErr.Message
	default:
		return "internal server error"
	}
}
