// Package worker runs the claim-scrape-persist loop for one platform.
//
// Each worker is single threaded: it claims one eligible prompt at a time,
// runs a fresh browser session for it, records the outcome, and paces itself
// with a rate-limit delay measured from the end of the previous request.
// Several workers may share a platform; the storage layer's conditional
// claim keeps them off each other's prompts.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/metrics"
	"github.com/brandpulse/backend/internal/scraper"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/internal/storage/sqlite"
	"github.com/brandpulse/backend/pkg/config"
	"github.com/brandpulse/backend/pkg/logger"
)

const promptBatchLimit = 15

type store interface {
	PendingPrompts(ctx context.Context, platform models.Platform, categoryID string, freshness time.Duration, limit int) ([]models.Prompt, error)
	ClaimPrompt(ctx context.Context, promptID string, platform models.Platform, freshness time.Duration) (*models.Response, error)
	CompleteResponse(ctx context.Context, responseID, text string, brandsMentioned []string, rawHTML *string) error
	FailResponse(ctx context.Context, responseID, errorMessage string) error
	GetBrandNames(ctx context.Context, categoryID string) ([]string, error)
}

type queryRunner interface {
	RunQuery(ctx context.Context, platform models.Platform, promptText string, candidateBrands []string) (*scraper.Result, error)
}

// Enricher is optional post-completion enrichment. Nil disables it.
type Enricher interface {
	Enrich(ctx context.Context, resp *models.Response, brands []string)
}

// ScoreInvalidator drops cached visibility scores after new completions.
// Nil disables invalidation.
type ScoreInvalidator interface {
	InvalidateScores(ctx context.Context) error
}

// Options select what one worker instance processes.
type Options struct {
	Platform models.Platform

	// CategoryID limits the backlog to one category when set.
	CategoryID string

	// MaxIterations stops the loop after that many passes over the
	// backlog. Zero means run until the context is cancelled.
	MaxIterations int
}

type Worker struct {
	opts    Options
	store   store
	runner  queryRunner
	enrich  Enricher
	scores  ScoreInvalidator
	cfg     config.ScraperConfig
	lastEnd time.Time

	completed int
	failed    int
}

// New builds a worker. enrich and scores may be nil.
func New(opts Options, st store, runner queryRunner, enrich Enricher, scores ScoreInvalidator, cfg config.ScraperConfig) *Worker {
	return &Worker{
		opts:   opts,
		store:  st,
		runner: runner,
		enrich: enrich,
		scores: scores,
		cfg:    cfg,
	}
}

// Run executes the loop until the context is cancelled or MaxIterations is
// reached. Per-prompt failures never stop the loop; only cancellation does.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Worker starting",
		zap.String("platform", string(w.opts.Platform)),
		zap.String("category", w.opts.CategoryID),
		zap.Int("maxIterations", w.opts.MaxIterations))

	iteration := 0
	for {
		if ctx.Err() != nil {
			break
		}
		iteration++
		if w.opts.MaxIterations > 0 && iteration > w.opts.MaxIterations {
			logger.Info("Max iterations reached", zap.Int("iterations", w.opts.MaxIterations))
			break
		}

		prompts, err := w.store.PendingPrompts(ctx, w.opts.Platform, w.opts.CategoryID, w.cfg.FreshnessWindow(), promptBatchLimit)
		if err != nil {
			logger.Error("Failed to load pending prompts", zap.Error(err))
			if !sleepCtx(ctx, w.cfg.IdleWait()) {
				break
			}
			continue
		}

		if len(prompts) == 0 {
			logger.Info("Backlog empty, idling",
				zap.String("platform", string(w.opts.Platform)),
				zap.Duration("wait", w.cfg.IdleWait()))
			if !sleepCtx(ctx, w.cfg.IdleWait()) {
				break
			}
			continue
		}

		logger.Info("Pending prompts found",
			zap.String("platform", string(w.opts.Platform)),
			zap.Int("count", len(prompts)))

		for i := range prompts {
			if ctx.Err() != nil {
				break
			}
			if !w.waitRateLimit(ctx) {
				break
			}
			w.processPrompt(ctx, &prompts[i])
		}
	}

	logger.Info("Worker stopped",
		zap.String("platform", string(w.opts.Platform)),
		zap.Int("completed", w.completed),
		zap.Int("failed", w.failed))
	return nil
}

// processPrompt claims and runs one prompt. Every failure mode is recorded
// on the response row and absorbed here.
func (w *Worker) processPrompt(ctx context.Context, prompt *models.Prompt) {
	platform := w.opts.Platform

	brands, err := w.store.GetBrandNames(ctx, prompt.CategoryID)
	if err != nil {
		logger.Error("Failed to load brands",
			zap.String("categoryID", prompt.CategoryID), zap.Error(err))
		return
	}
	if len(brands) == 0 {
		logger.Warn("Category has no brands, skipping prompt",
			zap.String("promptID", prompt.ID))
		return
	}

	resp, err := w.store.ClaimPrompt(ctx, prompt.ID, platform, w.cfg.FreshnessWindow())
	if errors.Is(err, sqlite.ErrClaimConflict) {
		metrics.ClaimConflicts.WithLabelValues(string(platform)).Inc()
		logger.Debug("Claim lost, prompt taken or fresh",
			zap.String("promptID", prompt.ID))
		return
	}
	if err != nil {
		logger.Error("Claim failed", zap.String("promptID", prompt.ID), zap.Error(err))
		return
	}

	logger.Info("Prompt claimed",
		zap.String("promptID", prompt.ID),
		zap.String("responseID", resp.ID),
		zap.String("platform", string(platform)))

	start := time.Now()
	result, err := w.runner.RunQuery(ctx, platform, prompt.Text, brands)
	w.lastEnd = time.Now()
	metrics.ScrapeDuration.WithLabelValues(string(platform)).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, scraper.ErrAuthenticationRequired) {
			metrics.AuthFailures.WithLabelValues(string(platform)).Inc()
		}
		metrics.ScrapesTotal.WithLabelValues(string(platform), "failed").Inc()
		w.failed++

		logger.Error("Query failed",
			zap.String("responseID", resp.ID), zap.Error(err))
		if ferr := w.store.FailResponse(ctx, resp.ID, err.Error()); ferr != nil {
			logger.Error("Failed to mark response failed",
				zap.String("responseID", resp.ID), zap.Error(ferr))
		}
		return
	}

	var rawHTML *string
	if result.RawHTML != "" {
		rawHTML = &result.RawHTML
	}
	if err := w.store.CompleteResponse(ctx, resp.ID, result.Text, result.BrandsMentioned, rawHTML); err != nil {
		logger.Error("Failed to mark response completed",
			zap.String("responseID", resp.ID), zap.Error(err))
		return
	}

	metrics.ScrapesTotal.WithLabelValues(string(platform), "completed").Inc()
	metrics.BrandsDetected.WithLabelValues(string(platform)).Observe(float64(len(result.BrandsMentioned)))
	w.completed++

	logger.Info("Prompt completed",
		zap.String("responseID", resp.ID),
		zap.Int("responseChars", len(result.Text)),
		zap.Strings("brandsMentioned", result.BrandsMentioned))

	if w.scores != nil {
		if err := w.scores.InvalidateScores(ctx); err != nil {
			logger.Warn("Score cache invalidation failed", zap.Error(err))
		}
	}

	if w.enrich != nil && len(result.BrandsMentioned) > 0 {
		enriched := *resp
		enriched.Text = &result.Text
		// Decoupled from the loop's pacing; uses its own context so a
		// worker shutdown does not cut the call short mid-write.
		go w.enrich.Enrich(context.Background(), &enriched, result.BrandsMentioned)
	}
}

// waitRateLimit sleeps out the remainder of the inter-request delay,
// measured from the end of the previous request. Returns false when the
// context was cancelled while waiting.
func (w *Worker) waitRateLimit(ctx context.Context) bool {
	if w.lastEnd.IsZero() {
		return true
	}
	elapsed := time.Since(w.lastEnd)
	if elapsed >= w.cfg.RateLimitDelay() {
		return true
	}
	wait := w.cfg.RateLimitDelay() - elapsed
	logger.Info("Rate limiting",
		zap.String("platform", string(w.opts.Platform)),
		zap.Duration("wait", wait))
	return sleepCtx(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
