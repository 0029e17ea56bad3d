package handler

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"paygate/internal/model"
	"paygate/internal/service"
)

// HealthCheck reports whether the service and its database are usable.
//
// @Summary  Dependency health check
// @Tags     ops
// @Produce  json
// @Success  200 {object} map[string]string
// @Failure  503 {object} errorPayload
// @Router   /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a minimal liveness endpoint for orchestrators.
//
// @Summary  Liveness probe
// @Tags     ops
// @Success  200
// @Router   /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// CreatePayment registers a new pending payment.
//
// @Summary  Create a payment
// @Tags     payments
// @Accept   json
// @Produce  json
// @Param    payment body service.CreatePaymentRequest true "payment to create"
// @Success  201 {object} model.Payment
// @Failure  400 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Router   /payments [post]
func CreatePayment(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req service.CreatePaymentRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		if err := model.GetValidator().Struct(req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "missing or invalid fields")
		}

		p, err := svc.Create(c.UserContext(), req)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// ListPayments returns a page of payments, newest first.
//
// @Summary  List payments
// @Tags     payments
// @Produce  json
// @Param    limit  query int    false "page size (default 10)"
// @Param    offset query int    false "page offset"
// @Param    status query string false "filter by lifecycle status"
// @Success  200 {object} service.PaymentListResult
// @Failure  400 {object} errorPayload
// @Router   /payments [get]
func ListPayments(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset, c.Query("status"))
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetPayment returns a single payment by ID.
//
// @Summary  Get a payment
// @Tags     payments
// @Produce  json
// @Param    id path string true "payment id"
// @Success  200 {object} model.Payment
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /payments/{id} [get]
func GetPayment(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		p, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(p)
	}
}

// AuthorizePayment asks the provider to place a hold for the full amount.
//
// @Summary  Authorize a payment
// @Tags     payments
// @Produce  json
// @Param    id path string true "payment id"
// @Success  200 {object} model.Payment
// @Failure  409 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Failure  502 {object} errorPayload
// @Router   /payments/{id}/authorize [post]
func AuthorizePayment(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		p, err := svc.Authorize(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(p)
	}
}

// CapturePayment settles an authorized payment and archives its receipt.
//
// @Summary  Capture a payment
// @Tags     payments
// @Produce  json
// @Param    id path string true "payment id"
// @Success  200 {object} model.Payment
// @Failure  409 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Failure  502 {object} errorPayload
// @Router   /payments/{id}/capture [post]
func CapturePayment(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		p, err := svc.Capture(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(p)
	}
}

// RefundPayment returns a captured amount to the customer.
//
// @Summary  Refund a payment
// @Tags     payments
// @Produce  json
// @Param    id path string true "payment id"
// @Success  200 {object} model.Payment
// @Failure  409 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Failure  502 {object} errorPayload
// @Router   /payments/{id}/refund [post]
func RefundPayment(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		p, err := svc.Refund(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(p)
	}
}

// GetReceipt returns a presigned download URL for the capture receipt.
//
// @Summary  Get a receipt download URL
// @Tags     payments
// @Produce  json
// @Param    id path string true "payment id"
// @Success  200 {object} map[string]string
// @Failure  404 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Router   /payments/{id}/receipt [get]
func GetReceipt(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		url, err := svc.ReceiptURL(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// ProviderWebhook ingests an asynchronous provider notification. The
// signature middleware has already authenticated the body by the time this
// handler runs.
//
// @Summary  Provider notification webhook
// @Tags     webhooks
// @Accept   json
// @Produce  json
// @Success  200 {object} model.Payment
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Router   /webhooks/provider [post]
func ProviderWebhook(svc service.PaymentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.ApplyProviderNotification(c.UserContext(), c.Body())
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(p)
	}
}
