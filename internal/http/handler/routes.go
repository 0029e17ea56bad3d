package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"paygate/internal/http/middleware"
	"paygate/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay free of business logic; everything below the parse/validate line
// lives in the service layer.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.PaymentService, webhookSecret string) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/payments", CreatePayment(svc))
	app.Get("/payments", ListPayments(svc))
	app.Get("/payments/:id", GetPayment(svc))
	app.Post("/payments/:id/authorize", AuthorizePayment(svc))
	app.Post("/payments/:id/capture", CapturePayment(svc))
	app.Post("/payments/:id/refund", RefundPayment(svc))
	app.Get("/payments/:id/receipt", GetReceipt(svc))

	// Inbound provider notifications are authenticated by signature, not by
	// merchant credentials.
	app.Post("/webhooks/provider", middleware.WebhookAuth(webhookSecret), ProviderWebhook(svc))
}
