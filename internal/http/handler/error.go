package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"paygate/internal/gateway"
	"paygate/internal/http/middleware"
	"paygate/internal/model"
	"paygate/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// mapServiceError translates application-layer sentinels into the error
// envelope. Unknown errors become opaque 500s.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "payment not found")
	case errors.Is(err, service.ErrDuplicateReference):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_REFERENCE", "reference already used")
	case errors.Is(err, service.ErrInvalidState):
		return writeError(c, fiber.StatusConflict, "INVALID_STATE", "operation not allowed in current state")
	case errors.Is(err, service.ErrConflict):
		return writeError(c, fiber.StatusConflict, "CONFLICT", "payment was modified concurrently, retry")
	case errors.Is(err, service.ErrPaymentDeclined):
		return writeError(c, fiber.StatusUnprocessableEntity, "PAYMENT_DECLINED", "payment declined by provider")
	case errors.Is(err, service.ErrRefundDeclined):
		return writeError(c, fiber.StatusUnprocessableEntity, "REFUND_DECLINED", "refund declined by provider")
	case errors.Is(err, service.ErrGatewayUnavailable):
		return writeError(c, fiber.StatusBadGateway, "GATEWAY_UNAVAILABLE", "payment provider unavailable")
	case errors.Is(err, service.ErrReceiptNotReady):
		return writeError(c, fiber.StatusConflict, "RECEIPT_NOT_READY", "receipt not available yet")
	case errors.Is(err, service.ErrUnknownProviderTrx):
		return writeError(c, fiber.StatusNotFound, "UNKNOWN_TRANSACTION", "unknown provider transaction")
	case errors.Is(err, service.ErrAmountMismatch):
		return writeError(c, fiber.StatusUnprocessableEntity, "AMOUNT_MISMATCH", "notification amount does not match payment")
	case errors.Is(err, gateway.ErrInvalidNotification):
		return writeError(c, fiber.StatusBadRequest, "INVALID_NOTIFICATION", "invalid provider notification")
	case errors.Is(err, model.ErrInvalidStatus):
		return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "unknown payment status")
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrUnsupportedCurrency):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid amount or currency")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "unauthorized")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
