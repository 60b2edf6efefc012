package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/api/handlers"
	"github.com/brandpulse/backend/internal/api/middleware/ratelimit"
	"github.com/brandpulse/backend/internal/cache/redis"
	"github.com/brandpulse/backend/internal/metrics"
	"github.com/brandpulse/backend/internal/storage/sqlite"
	"github.com/brandpulse/backend/pkg/config"
	appLogger "github.com/brandpulse/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting BrandPulse API server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var scoreCache *redis.Client
	if cfg.Redis.Enabled {
		scoreCache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, serving uncached", zap.Error(err))
			scoreCache = nil
		} else {
			defer scoreCache.Close()
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(120)
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(limiter.Middleware())

	app.Get("/metrics", metrics.MetricsHandler())

	scoreTTL := time.Duration(cfg.Redis.ScoreTTL) * time.Second
	analyticsHandler := handlers.NewAnalyticsHandler(sqliteClient, nil, scoreTTL)
	if scoreCache != nil {
		analyticsHandler = handlers.NewAnalyticsHandler(sqliteClient, scoreCache, scoreTTL)
	}
	catalogHandler := handlers.NewCatalogHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Get("/categories", analyticsHandler.GetCategories)
	api.Post("/categories", catalogHandler.CreateCategory)
	api.Get("/categories/:id/brands", catalogHandler.GetBrands)
	api.Post("/categories/:id/brands", catalogHandler.CreateBrand)
	api.Get("/categories/:id/prompts", catalogHandler.GetPrompts)
	api.Post("/categories/:id/prompts", catalogHandler.CreatePrompt)
	api.Get("/categories/:id/leaderboard", analyticsHandler.GetLeaderboard)
	api.Get("/brands/:id/visibility", analyticsHandler.GetBrandVisibility)
	api.Get("/brands/:id/visibility/daily", analyticsHandler.GetBrandDailySeries)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
