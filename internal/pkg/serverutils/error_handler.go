package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"wiki-console-be/pkg/wizard"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by handlers as BaseResponse.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// StatusFor maps an error to its HTTP status and client message.
func StatusFor(err error) (int, string) {
	var validationErr *wizard.ValidationError
	var fiberErr *fiber.Error
	var reqErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusUnprocessableEntity, validationErr.Error()
	case errors.Is(err, wizard.ErrTransitionInFlight), errors.Is(err, wizard.ErrSessionClosed),
		errors.Is(err, wizard.ErrNotClosable), errors.Is(err, wizard.ErrMissingKnowledgeBase):
		return fiber.StatusConflict, err.Error()
	case errors.As(err, &reqErrs):
		parts := make([]string, 0, len(reqErrs))
		for _, fe := range reqErrs {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
		return fiber.StatusBadRequest, strings.Join(parts, ", ")
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}
