package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/analytics"
	"github.com/brandpulse/backend/internal/metrics"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/internal/storage/sqlite"
	"github.com/brandpulse/backend/pkg/logger"
)

const (
	defaultTopN       = 3
	defaultSeriesDays = 30
)

type scoreCache interface {
	GetScores(ctx context.Context, key string, scores interface{}) (bool, error)
	SetScores(ctx context.Context, key string, scores interface{}, ttl time.Duration) error
}

// AnalyticsHandler serves the aggregation read path. All scores are computed
// from a storage snapshot; Redis fronts the computation when available.
type AnalyticsHandler struct {
	db    *sqlite.Client
	cache scoreCache
	ttl   time.Duration
}

// NewAnalyticsHandler builds the handler. cache may be nil.
func NewAnalyticsHandler(db *sqlite.Client, cache scoreCache, ttl time.Duration) *AnalyticsHandler {
	return &AnalyticsHandler{db: db, cache: cache, ttl: ttl}
}

// GetCategories lists tracked categories with their top brands nested.
func (h *AnalyticsHandler) GetCategories(c *fiber.Ctx) error {
	topN := queryInt(c, "top", defaultTopN)

	var summaries []analytics.CategorySummary
	key := fmt.Sprintf("summary:%d", topN)
	if h.cached(c.Context(), key, &summaries) {
		return c.JSON(fiber.Map{"categories": summaries})
	}

	snap, err := h.db.LoadSnapshot(c.Context(), "")
	if err != nil {
		logger.Error("Failed to load snapshot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analytics data",
		})
	}

	summaries = analytics.CategorySummaries(snap, topN)
	h.store(c.Context(), key, summaries)
	return c.JSON(fiber.Map{"categories": summaries})
}

// GetLeaderboard ranks every brand in one category.
func (h *AnalyticsHandler) GetLeaderboard(c *fiber.Ctx) error {
	categoryID := c.Params("id")

	var board []analytics.LeaderboardEntry
	key := fmt.Sprintf("leaderboard:%s", categoryID)
	if h.cached(c.Context(), key, &board) {
		return c.JSON(fiber.Map{"categoryId": categoryID, "leaderboard": board})
	}

	if _, err := h.db.GetCategory(c.Context(), categoryID); err == sqlite.ErrNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Category not found",
		})
	} else if err != nil {
		logger.Error("Failed to load category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analytics data",
		})
	}

	snap, err := h.db.LoadSnapshot(c.Context(), categoryID)
	if err != nil {
		logger.Error("Failed to load snapshot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analytics data",
		})
	}

	board = analytics.Leaderboard(snap, categoryID)
	h.store(c.Context(), key, board)
	return c.JSON(fiber.Map{"categoryId": categoryID, "leaderboard": board})
}

// GetBrandVisibility returns one brand's combined and per-platform scores.
func (h *AnalyticsHandler) GetBrandVisibility(c *fiber.Ctx) error {
	brandID := c.Params("id")

	var scores []analytics.BrandScore
	key := fmt.Sprintf("brand:%s", brandID)
	if h.cached(c.Context(), key, &scores) {
		return c.JSON(fiber.Map{"brandId": brandID, "scores": scores})
	}

	snap, brand, err := h.snapshotForBrand(c.Context(), brandID)
	if err != nil {
		return h.brandError(c, brandID, err)
	}

	scores = analytics.PlatformBreakdown(snap, *brand)
	h.store(c.Context(), key, scores)
	return c.JSON(fiber.Map{"brandId": brandID, "scores": scores})
}

// GetBrandDailySeries returns the brand's trailing daily visibility series.
func (h *AnalyticsHandler) GetBrandDailySeries(c *fiber.Ctx) error {
	brandID := c.Params("id")
	days := queryInt(c, "days", defaultSeriesDays)

	var series []analytics.DailyPoint
	key := fmt.Sprintf("daily:%s:%d", brandID, days)
	if h.cached(c.Context(), key, &series) {
		return c.JSON(fiber.Map{"brandId": brandID, "series": series})
	}

	snap, brand, err := h.snapshotForBrand(c.Context(), brandID)
	if err != nil {
		return h.brandError(c, brandID, err)
	}

	series = analytics.DailySeries(snap, *brand, days, time.Now())
	h.store(c.Context(), key, series)
	return c.JSON(fiber.Map{"brandId": brandID, "series": series})
}

func (h *AnalyticsHandler) snapshotForBrand(ctx context.Context, brandID string) (*models.Snapshot, *models.Brand, error) {
	snap, err := h.db.LoadSnapshot(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	for i := range snap.Brands {
		if snap.Brands[i].ID == brandID {
			return snap, &snap.Brands[i], nil
		}
	}
	return nil, nil, sqlite.ErrNotFound
}

func (h *AnalyticsHandler) brandError(c *fiber.Ctx, brandID string, err error) error {
	if err == sqlite.ErrNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Brand not found",
		})
	}
	logger.Error("Failed to load snapshot", zap.String("brandID", brandID), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load analytics data",
	})
}

func (h *AnalyticsHandler) cached(ctx context.Context, key string, out interface{}) bool {
	if h.cache == nil {
		return false
	}
	hit, err := h.cache.GetScores(ctx, key, out)
	if err != nil {
		logger.Warn("Score cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if hit {
		metrics.ScoreCacheHits.WithLabelValues("hit").Inc()
		return true
	}
	metrics.ScoreCacheHits.WithLabelValues("miss").Inc()
	return false
}

func (h *AnalyticsHandler) store(ctx context.Context, key string, val interface{}) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetScores(ctx, key, val, h.ttl); err != nil {
		logger.Warn("Score cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func queryInt(c *fiber.Ctx, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
