package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simywang/Teambot/internal/bot"
	"github.com/simywang/Teambot/internal/config"
	"github.com/simywang/Teambot/internal/database"
	"github.com/simywang/Teambot/internal/handler"
	"github.com/simywang/Teambot/internal/middleware"
	"github.com/simywang/Teambot/internal/repository"
	"github.com/simywang/Teambot/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()

	// Database
	db, err := database.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied successfully")

	// Repositories
	loiRepo := repository.NewLOIRepository(db)

	// Services. The sync bus starts detached; the hub is attached below once
	// it exists, so early mutations degrade to warn-and-skip, never panic.
	syncSvc := service.NewSyncService()
	loiSvc := service.NewLOIService(loiRepo, syncSvc)
	extractor := service.NewExtractionService(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)

	wsHub := service.NewWSHub()
	syncSvc.Attach(wsHub)

	// Chat surface (disabled when no token is configured)
	chatBot, err := bot.NewBot(cfg.DiscordToken, loiSvc, extractor)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	if err := chatBot.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	defer chatBot.Stop()

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(cfg.FrontendOrigin))

	// Health
	healthH := handler.NewHealthHandler(db)
	app.Get("/api/health", healthH.Health)
	app.Get("/api/ready", healthH.Ready)

	// LOI API
	loiH := handler.NewLOIHandler(loiSvc)
	api := app.Group("/api")
	api.Get("/lois", loiH.List)
	api.Post("/lois", middleware.RateLimit(30, time.Minute), loiH.Create)
	api.Get("/lois/:id", loiH.GetByID)
	api.Put("/lois/:id", middleware.RateLimit(60, time.Minute), loiH.Update)
	api.Delete("/lois/:id", middleware.RateLimit(30, time.Minute), loiH.Delete)
	api.Get("/lois/:id/history", loiH.GetHistory)

	// WebSocket
	wsH := handler.NewWSHandler(wsHub)
	app.Get("/ws", wsH.Upgrade)

	// Start hub
	go wsHub.Run()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("LOI sync backend running on :%s (%s)", cfg.Port, cfg.Env)

	<-quit
	log.Println("Shutting down...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
	wsHub.Shutdown()
	log.Println("Server stopped")
}
