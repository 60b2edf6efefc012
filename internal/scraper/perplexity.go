package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/storage/models"
)

const (
	perplexityURL         = "https://www.perplexity.ai"
	perplexityInputSel    = `div[contenteditable="true"][id="ask-input"]`
	perplexitySendSel     = `button[aria-label="Submit"]`
	perplexityResponseSel = `div[id^="markdown-content-"] .prose`
)

type PerplexityAdapter struct{}

func NewPerplexityAdapter() *PerplexityAdapter { return &PerplexityAdapter{} }

func (a *PerplexityAdapter) Platform() models.Platform { return models.PlatformPerplexity }
func (a *PerplexityAdapter) URL() string               { return perplexityURL }
func (a *PerplexityAdapter) AuthSelector() string      { return perplexityInputSel }

func (a *PerplexityAdapter) ComposeAndSubmit(ctx context.Context, d browser.Driver, promptText string) error {
	return submitPrompt(ctx, d, perplexityInputSel, perplexitySendSel, promptText)
}

// Perplexity has no stop-generating marker; the answer container streams in
// instead. Treat generation as done once the prose holds more than a
// placeholder's worth of text.
func (a *PerplexityAdapter) AwaitCompletion(ctx context.Context, d browser.Driver, timeout time.Duration) (bool, error) {
	time.Sleep(3 * time.Second)

	outcome, err := poll(ctx, 2*time.Second, timeout, func(ctx context.Context) (bool, error) {
		html, err := d.ExtractHTML(ctx, perplexityResponseSel)
		if err != nil {
			return false, err
		}
		return len(strings.TrimSpace(browser.FlattenHTML(html))) > 10, nil
	})
	if outcome == PollErrored {
		return false, err
	}
	randomDelay(time.Second, 2*time.Second)
	return outcome == PollTimedOut, nil
}

func (a *PerplexityAdapter) ExtractText(ctx context.Context, d browser.Driver) string {
	return extractFlattened(ctx, d, perplexityResponseSel, a.Platform())
}
