package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/mentions"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/logger"
)

const mentionsSentinel = mentions.NoResponseSentinel

// Adapter holds the per-platform selectors and timing quirks. Everything
// else about a session (launch, cookies, auth, teardown) is shared and lives
// in the Session driver.
type Adapter interface {
	Platform() models.Platform
	URL() string

	// AuthSelector matches an element only present when logged in.
	AuthSelector() string

	ComposeAndSubmit(ctx context.Context, d browser.Driver, promptText string) error

	// AwaitCompletion blocks until generation finishes or timeout lapses.
	// A timed-out wait is reported, not failed; extraction then proceeds
	// best effort on whatever is visible.
	AwaitCompletion(ctx context.Context, d browser.Driver, timeout time.Duration) (timedOut bool, err error)

	// ExtractText never fails: driver errors and empty pages degrade to
	// the sentinel so mention extraction and persistence still run.
	ExtractText(ctx context.Context, d browser.Driver) string
}

// Registry maps platform tags to adapters. Passed into workers explicitly so
// tests and multiple processes run with independent state.
type Registry struct {
	adapters map[models.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[models.Platform]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Platform()] = a
	}
	return &Registry{adapters: m}
}

// DefaultRegistry returns a registry with all supported platforms.
func DefaultRegistry() *Registry {
	return NewRegistry(NewChatGPTAdapter(), NewGeminiAdapter(), NewPerplexityAdapter())
}

func (r *Registry) Get(platform models.Platform) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return a, nil
}

// submitPrompt is the shared compose-and-submit flow: focus the input,
// type, then click send.
func submitPrompt(ctx context.Context, d browser.Driver, inputSel, sendSel, prompt string) error {
	if err := d.WaitVisible(ctx, inputSel, 20*time.Second); err != nil {
		return fmt.Errorf("%w: input field not found: %v", ErrTransientNetwork, err)
	}

	if err := d.Click(ctx, inputSel); err != nil {
		return fmt.Errorf("%w: failed to focus input: %v", ErrTransientNetwork, err)
	}
	randomDelay(500*time.Millisecond, time.Second)

	if err := d.Type(ctx, inputSel, prompt); err != nil {
		return fmt.Errorf("%w: failed to type prompt: %v", ErrTransientNetwork, err)
	}
	randomDelay(500*time.Millisecond, 1500*time.Millisecond)

	if err := d.WaitVisible(ctx, sendSel, 10*time.Second); err != nil {
		return fmt.Errorf("%w: send button not found: %v", ErrTransientNetwork, err)
	}
	if err := d.Click(ctx, sendSel); err != nil {
		return fmt.Errorf("%w: failed to click send: %v", ErrTransientNetwork, err)
	}
	return nil
}

// extractFlattened pulls the last element matching sel and flattens it to
// text with link URLs inlined. Empty or failed extraction yields the
// sentinel.
func extractFlattened(ctx context.Context, d browser.Driver, sel string, platform models.Platform) string {
	html, err := d.ExtractHTML(ctx, sel)
	if err != nil {
		logger.Warn("Response extraction failed",
			zap.String("platform", string(platform)), zap.Error(err))
		return mentionsSentinel
	}

	text := browser.FlattenHTML(html)
	if text == "" {
		logger.Warn("Empty response extracted", zap.String("platform", string(platform)))
		return mentionsSentinel
	}
	return text
}

// randomDelay mimics human pacing between interactions.
func randomDelay(min, max time.Duration) {
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min)+1)))
}
