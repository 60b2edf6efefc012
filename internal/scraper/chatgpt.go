package scraper

import (
	"context"
	"time"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/storage/models"
)

const (
	chatgptURL           = "https://chatgpt.com"
	chatgptInputSel      = `div[contenteditable="true"][id="prompt-textarea"]`
	chatgptSendSel       = `button[data-testid="send-button"]`
	chatgptResponseSel   = `[data-message-author-role="assistant"] .markdown`
	chatgptGeneratingSel = `button[aria-label="Stop generating"]`
)

type ChatGPTAdapter struct{}

func NewChatGPTAdapter() *ChatGPTAdapter { return &ChatGPTAdapter{} }

func (a *ChatGPTAdapter) Platform() models.Platform { return models.PlatformChatGPT }
func (a *ChatGPTAdapter) URL() string               { return chatgptURL }

// The composer is only rendered for signed-in users, so it doubles as the
// auth probe.
func (a *ChatGPTAdapter) AuthSelector() string { return chatgptInputSel }

func (a *ChatGPTAdapter) ComposeAndSubmit(ctx context.Context, d browser.Driver, promptText string) error {
	return submitPrompt(ctx, d, chatgptInputSel, chatgptSendSel, promptText)
}

// Generation is done once the stop button disappears.
func (a *ChatGPTAdapter) AwaitCompletion(ctx context.Context, d browser.Driver, timeout time.Duration) (bool, error) {
	outcome, err := poll(ctx, time.Second, timeout, func(ctx context.Context) (bool, error) {
		generating, err := d.ProbeElement(ctx, chatgptGeneratingSel)
		if err != nil {
			return false, err
		}
		return !generating, nil
	})
	if outcome == PollErrored {
		return false, err
	}
	randomDelay(time.Second, 2*time.Second)
	return outcome == PollTimedOut, nil
}

func (a *ChatGPTAdapter) ExtractText(ctx context.Context, d browser.Driver) string {
	return extractFlattened(ctx, d, chatgptResponseSel, a.Platform())
}
