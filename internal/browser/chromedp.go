package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeLauncher launches disposable Chrome contexts via chromedp with the
// automation-control blink feature disabled.
type ChromeLauncher struct{}

func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{}
}

func (l *ChromeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(ua),
	)
	if opts.Headless {
		allocOpts = append(allocOpts,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-software-rasterizer", true),
		)
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures surface
	// here, not on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Info("Browser launched",
		zap.Bool("headless", opts.Headless),
		zap.String("proxy", opts.ProxyURL),
	)

	return &chromeDriver{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
	}, nil
}

type chromeDriver struct {
	ctx       context.Context
	cancels   []context.CancelFunc
	closeOnce sync.Once
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *chromeDriver) RestoreCookies(ctx context.Context, cookies []models.Cookie) error {
	var currentHost string
	if err := d.run(ctx, chromedp.Evaluate(`document.domain`, &currentHost)); err != nil {
		return fmt.Errorf("failed to read current domain: %w", err)
	}

	applied := 0
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			domain := strings.TrimPrefix(c.Domain, ".")
			if domain != "" && !strings.Contains(currentHost, domain) && !strings.Contains(domain, currentHost) {
				continue
			}

			p := network.SetCookie(c.Name, c.Value).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Domain != "" {
				p = p.WithDomain(c.Domain)
			}
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(c.Expires, 0))
				p = p.WithExpires(&expires)
			}
			if err := p.Do(ctx); err != nil {
				logger.Debug("Skipping cookie", zap.String("name", c.Name), zap.Error(err))
				continue
			}
			applied++
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}

	logger.Info("Cookies restored",
		zap.Int("applied", applied),
		zap.Int("total", len(cookies)),
	)
	return nil
}

func (d *chromeDriver) ProbeElement(ctx context.Context, selector string) (bool, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := d.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", selector, err)
	}
	return count > 0, nil
}

func (d *chromeDriver) Type(ctx context.Context, selector, text string) error {
	// Contenteditable inputs on these surfaces ignore SendKeys for long
	// text; set the content directly and fire an input event, the same
	// way a paste would.
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.focus();
		el.textContent = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		return true;
	})()`, selector, text)

	var ok bool
	if err := d.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("failed to type into %s: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("input element %s not found", selector)
	}
	return nil
}

func (d *chromeDriver) Click(ctx context.Context, selector string) error {
	if err := d.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (d *chromeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element %s not visible: %w", selector, err)
	}
	return nil
}

func (d *chromeDriver) ExtractHTML(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf(`(() => {
		const nodes = document.querySelectorAll(%q);
		if (nodes.length === 0) return '';
		return nodes[nodes.length - 1].outerHTML;
	})()`, selector)

	var html string
	if err := d.run(ctx, chromedp.Evaluate(script, &html)); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", selector, err)
	}
	return html, nil
}

func (d *chromeDriver) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

func (d *chromeDriver) Cookies(ctx context.Context) ([]models.Cookie, error) {
	var cookies []models.Cookie
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, models.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  int64(c.Expires),
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return cookies, nil
}

func (d *chromeDriver) Close() error {
	d.closeOnce.Do(func() {
		for _, cancel := range d.cancels {
			cancel()
		}
		logger.Info("Browser closed")
	})
	return nil
}

// run executes actions on the browser context while honoring the caller's
// deadline and cancellation.
func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(d.ctx, actions...)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
