package scraper

import (
	"context"
	"time"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/storage/models"
)

const (
	geminiURL         = "https://gemini.google.com"
	geminiAuthSel     = `div.ql-editor.textarea[contenteditable="true"]`
	geminiInputSel    = `div.ql-editor.textarea.new-input-ui[contenteditable="true"]`
	geminiSendSel     = `button.send-button[aria-label="Send message"]`
	geminiResponseSel = `model-response .markdown.markdown-main-panel`
	geminiBusySel     = `model-response .markdown[aria-busy="true"]`
)

type GeminiAdapter struct{}

func NewGeminiAdapter() *GeminiAdapter { return &GeminiAdapter{} }

func (a *GeminiAdapter) Platform() models.Platform { return models.PlatformGemini }
func (a *GeminiAdapter) URL() string               { return geminiURL }
func (a *GeminiAdapter) AuthSelector() string      { return geminiAuthSel }

func (a *GeminiAdapter) ComposeAndSubmit(ctx context.Context, d browser.Driver, promptText string) error {
	return submitPrompt(ctx, d, geminiInputSel, geminiSendSel, promptText)
}

// Done when the response container exists and has dropped its aria-busy
// marker.
func (a *GeminiAdapter) AwaitCompletion(ctx context.Context, d browser.Driver, timeout time.Duration) (bool, error) {
	time.Sleep(3 * time.Second) // let the response start rendering

	outcome, err := poll(ctx, time.Second, timeout, func(ctx context.Context) (bool, error) {
		present, err := d.ProbeElement(ctx, geminiResponseSel)
		if err != nil || !present {
			return false, err
		}
		busy, err := d.ProbeElement(ctx, geminiBusySel)
		if err != nil {
			return false, err
		}
		return !busy, nil
	})
	if outcome == PollErrored {
		return false, err
	}
	randomDelay(time.Second, 2*time.Second)
	return outcome == PollTimedOut, nil
}

func (a *GeminiAdapter) ExtractText(ctx context.Context, d browser.Driver) string {
	return extractFlattened(ctx, d, geminiResponseSel, a.Platform())
}
