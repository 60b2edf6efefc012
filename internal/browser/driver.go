package browser

import (
	"context"
	"time"

	"github.com/brandpulse/backend/internal/storage/models"
)

// Driver is the capability surface the session layer needs from a browser
// automation backend. One Driver is one isolated browser lifetime: nothing
// (cookies, heap, profile) survives Close.
type Driver interface {
	Navigate(ctx context.Context, url string) error

	// RestoreCookies injects a saved credential snapshot into the context.
	// Cookies whose domain does not match the current page are skipped,
	// not treated as errors.
	RestoreCookies(ctx context.Context, cookies []models.Cookie) error

	// ProbeElement reports whether a selector currently matches, without
	// waiting. Used for the authenticated-only element check.
	ProbeElement(ctx context.Context, selector string) (bool, error)

	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// ExtractHTML returns the outer HTML of the last element matching the
	// selector, or "" when nothing matches.
	ExtractHTML(ctx context.Context, selector string) (string, error)

	PageHTML(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]models.Cookie, error)

	// Close tears the browser down. It must be safe to call more than
	// once; only the first call does work.
	Close() error
}

// LaunchOptions configure a single browser lifetime.
type LaunchOptions struct {
	Headless  bool
	ProxyURL  string
	UserAgent string
}

// Launcher creates fresh, fully isolated Drivers. Implementations must never
// reuse state between Launch calls.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
}
