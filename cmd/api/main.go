package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paygate/docs"
	"paygate/internal/config"
	"paygate/internal/database"
	"paygate/internal/database/migration"
	"paygate/internal/gateway"
	handlers "paygate/internal/http/handler"
	"paygate/internal/http/middleware"
	"paygate/internal/otel"
	"paygate/internal/repository/postgres"
	"paygate/internal/service"
	"paygate/internal/storage"
	"paygate/internal/util"
)

// @title Payment Gateway API
// @version 1.0
// @description Payment lifecycle API: create, authorize, capture, refund, receipts and provider webhooks.
// @BasePath /
func main() {
	util.InitLogger()
	logger := util.GetLogger()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc := time.Local

	ctx := context.Background()

	// Tracing first so every later init is observable. Init degrades to a
	// no-op provider when the exporter is disabled or unreachable.
	shutdownTracer, err := otel.Init(ctx, loc)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(ctx, 30*time.Second)
	defer cancelMigrate()
	if err := migration.EnsureMigrated(migrateCtx, db, loc, cfg.Database.Host); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	archive, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		logger.Error("failed to initialize receipt archive", "error", err)
		os.Exit(1)
	}

	// Upstream provider client (traced transport)
	provider, err := gateway.NewHTTPGateway(cfg.Gateway)
	if err != nil {
		logger.Error("failed to initialize provider gateway", "error", err)
		os.Exit(1)
	}

	// An empty secret would make webhook signatures trivially forgeable;
	// refuse to serve the route unauthenticated.
	if cfg.Webhook.Secret == "" {
		logger.Error("WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	// Initialize repositories and services
	payRepo := postgres.NewPaymentPostgres(db)
	paySvc := service.NewPaymentService(payRepo, provider, archive)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(fiberrecover.New())
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())

	// Metrics live on their own registry so the scrape endpoint only exposes
	// what this process registers.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	app.Use(promMW.Handler())

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, paySvc, cfg.Webhook.Secret)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// Buffered channel so the signal is not lost if it arrives before the
	// receive below.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}
}
