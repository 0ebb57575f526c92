package models

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Success    bool         `json:"success"`
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Code       string       `json:"code,omitempty"`
	Token      string       `json:"token,omitempty"`
	Data       any          `json:"data"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// Respond writes a successful envelope.
func Respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// RespondWithToken writes a successful envelope that also carries an access token.
func RespondWithToken(c *fiber.Ctx, status int, message, token string, data any) error {
	return c.Status(status).JSON(Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Token:      token,
		Data:       data,
	})
}

// RespondWithError creates a standardized error response. Wrapped causes are
// never serialized; only the AppError message reaches the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := Envelope{
		Success:    false,
		StatusCode: status,
		Message:    "Internal server error",
		Code:       CodeInternal,
	}

	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		response.Message = appErr.Message
		response.Code = appErr.Code
		response.Errors = appErr.Fields
	case errors.As(err, &fiberErr):
		response.Message = fiberErr.Message
		response.Code = ""
	}

	return c.Status(status).JSON(response)
}

// RespondError writes err with the status StatusFor assigns to it.
func RespondError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusFor(err), err)
}
