package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"toolhub-backend/internal/admin"
	"toolhub-backend/internal/auth"
	"toolhub-backend/internal/billing"
	"toolhub-backend/internal/config"
	"toolhub-backend/internal/credits"
	"toolhub-backend/internal/engine"
	"toolhub-backend/internal/instrument"
	"toolhub-backend/internal/metadata"
	"toolhub-backend/internal/store"
	"toolhub-backend/internal/usage"
	"toolhub-backend/internal/webhook"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db driver: %s)", cfg.Server.Port, cfg.Database.Driver)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap tables and the seed admin account
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap tables: %v", err)
	}
	log.Println("Tables ready")

	// 4. Load the tool registry
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db, reg); err != nil {
		log.Printf("WARN: Failed to load tool registry: %v", err)
	}

	// 5. Credit ledger and usage recorder
	ledger := credits.NewLedger(db)
	recorder := usage.NewRecorder(db)

	// 6. Webhook pipeline: guard, dispatcher, invoker
	guard := webhook.NewGuard(nil, cfg.Webhook.DNSTimeout())
	dispatcher := webhook.NewDispatcher(cfg.Webhook.DispatchTimeout(), cfg.Webhook.MaxResponseBytes)
	invoker := webhook.NewInvoker(guard, dispatcher, ledger, recorder)

	// 7. Event buffer and retention cleanup
	var buffer *instrument.EventBuffer
	if cfg.Events.Enabled {
		buffer = instrument.NewEventBuffer(db, cfg.Events.BufferSize, cfg.Events.FlushIntervalMs)
		defer buffer.Stop()
		stopCleanup := instrument.StartCleanup(db, cfg.Events.RetentionDays)
		defer stopCleanup()
	}

	// 8. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    int(cfg.Webhook.MaxUploadBytes) + 1024*1024,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(instrument.Middleware(cfg.Events.Enabled, buffer))

	// 9. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 10. Auth routes (signup/login/refresh need no token)
	authMW := auth.AuthMiddleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()
	authHandler := auth.NewAuthHandler(db, ledger, cfg.JWTSecret, cfg.SignupCredits)
	auth.RegisterAuthRoutes(app, authHandler, authMW)

	// 11. Admin routes (auth + admin required)
	adminHandler := admin.NewHandler(db, reg, ledger)
	admin.RegisterAdminRoutes(app, adminHandler, authMW, adminMW)

	// 12. Billing routes (auth required)
	provider := billing.NewHTTPProvider(cfg.Billing.ProviderURL, cfg.Billing.ProviderKey)
	billingHandler := billing.NewHandler(db, ledger, provider,
		time.Duration(cfg.Billing.SessionWindowMinutes)*time.Minute)
	billing.RegisterBillingRoutes(app, billingHandler, authMW)

	// 13. Tool catalog, run, credits and usage routes (auth required)
	engineHandler := engine.NewHandler(db, reg, ledger, recorder, invoker, cfg.Webhook.MaxUploadBytes)
	engine.RegisterRoutes(app, engineHandler, authMW)

	// 14. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
