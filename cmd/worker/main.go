package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/cache/redis"
	"github.com/brandpulse/backend/internal/credentials"
	"github.com/brandpulse/backend/internal/enrichment"
	"github.com/brandpulse/backend/internal/metrics"
	"github.com/brandpulse/backend/internal/proxy"
	"github.com/brandpulse/backend/internal/scraper"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/internal/storage/sqlite"
	"github.com/brandpulse/backend/internal/worker"
	"github.com/brandpulse/backend/pkg/config"
	appLogger "github.com/brandpulse/backend/pkg/logger"
)

func main() {
	var (
		platformFlag  = flag.String("platform", "all", "platform to scrape (chatgpt, gemini, perplexity or all)")
		categoryFlag  = flag.String("category", "", "limit scraping to one category ID")
		maxIterations = flag.Int("max-iterations", 0, "stop after N backlog passes (0 = run forever)")
	)
	flag.Parse()

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

	platforms, err := parsePlatforms(*platformFlag)
	if err != nil {
		appLogger.Fatal("Invalid platform flag", zap.Error(err))
	}

	appLogger.Info("Starting BrandPulse scrape worker",
		zap.String("platforms", *platformFlag),
		zap.String("category", *categoryFlag),
		zap.Int("maxIterations", *maxIterations))
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	var credStore *credentials.Store
	if cacheClient != nil {
		credStore, err = credentials.NewStore(sqliteClient, cacheClient, cfg.Scraper.StoragePath)
	} else {
		credStore, err = credentials.NewStore(sqliteClient, nil, cfg.Scraper.StoragePath)
	}
	if err != nil {
		appLogger.Fatal("Failed to create credential store", zap.Error(err))
	}

	var origins scraper.OriginSelector
	if cfg.Proxy.Enabled {
		sel := proxy.NewSelector(cfg.Proxy)
		if sel.Size() == 0 {
			appLogger.Fatal("Proxy enabled but no endpoints configured")
		}
		origins = sel
	}

	session := scraper.NewSession(
		browser.NewChromeLauncher(),
		scraper.DefaultRegistry(),
		credStore,
		origins,
		cfg.Scraper,
		cfg.Proxy,
	)

	var enricher worker.Enricher
	if client := enrichment.NewClient(cfg.Enrichment, sqliteClient); client != nil {
		enricher = client
	}

	var invalidator worker.ScoreInvalidator
	if cacheClient != nil {
		invalidator = cacheClient
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		appLogger.Info("Shutdown signal received, finishing current prompts")
		cancel()
	}()

	var wg sync.WaitGroup
	for _, platform := range platforms {
		w := worker.New(worker.Options{
			Platform:      platform,
			CategoryID:    *categoryFlag,
			MaxIterations: *maxIterations,
		}, sqliteClient, session, enricher, invalidator, cfg.Scraper)

		wg.Add(1)
		go func(p models.Platform) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				appLogger.Error("Worker exited with error",
					zap.String("platform", string(p)), zap.Error(err))
			}
		}(platform)
	}

	wg.Wait()
	appLogger.Info("All workers stopped")
}

func parsePlatforms(flagValue string) ([]models.Platform, error) {
	if flagValue == "all" || flagValue == "" {
		return models.AllPlatforms(), nil
	}

	var platforms []models.Platform
	for _, part := range strings.Split(flagValue, ",") {
		p, err := models.ParsePlatform(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}
