package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xo-arena/handlers"
	"xo-arena/middleware"
	"xo-arena/models"
	"xo-arena/services"
	"xo-arena/storage"
	"xo-arena/utils"
	"xo-arena/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "xo-arena",
	})

	app.Use(middleware.ServiceAuthMiddleware())

	app.Use(cors.New(cors.Config{
		AllowOrigins: utils.Env("ALLOWED_ORIGINS", "http://localhost:3000"),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Player-ID, X-Player-Name",
	}))

	var store storage.Store
	switch driver := utils.Env("STORE_DRIVER", "postgres"); driver {
	case "memory":
		log.Println("Using in-memory store, state will not survive a restart")
		store = storage.NewMemoryStore()
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("DATABASE_URL environment variable not set")
		}
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}
		if err := db.AutoMigrate(
			&models.QueueEntry{},
			&models.GameSession{},
			&models.LeaderboardEntry{},
		); err != nil {
			log.Fatal("failed to migrate database:", err)
		}
		store = storage.NewGormStore(db)
	default:
		log.Fatalf("unknown STORE_DRIVER %q", driver)
	}

	bus := services.NewEventBus()
	ratings := services.NewRatingService(store, utils.EnvInt("RATING_K_FACTOR", services.DefaultKFactor))
	games := services.NewGameService(store, ratings, bus)
	matchmaking := services.NewMatchmakingService(store, games)

	checker := workers.NewTimeoutChecker(
		store,
		games,
		time.Duration(utils.EnvInt("SWEEP_INTERVAL_SECONDS", 30))*time.Second,
		time.Duration(utils.EnvInt("GAME_TIMEOUT_MINUTES", 5))*time.Minute,
	)
	if err := checker.Start(); err != nil {
		log.Fatal("failed to start timeout checker:", err)
	}

	handlers.SetupMatchRoutes(app, matchmaking, games)
	handlers.SetupLeaderboardRoutes(app, store)
	handlers.SetupEventRoutes(app, bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := utils.Env("PORT", "8080")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()
	log.Printf("xo-arena running on http://localhost:%s", port)

	<-ctx.Done()
	log.Println("Shutting down...")
	checker.Stop()
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
