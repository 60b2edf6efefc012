// Package scraper drives one browser session per query against an AI
// platform: launch, restore credentials, verify auth, submit, await, extract.
// Every invocation gets a fresh browser so nothing leaks between prompts.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/credentials"
	"github.com/brandpulse/backend/internal/mentions"
	"github.com/brandpulse/backend/internal/proxy"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/config"
	"github.com/brandpulse/backend/pkg/logger"
)

// Result is what one completed query produced.
type Result struct {
	Text            string
	BrandsMentioned []string
	RawHTML         string
}

type credentialStore interface {
	Load(ctx context.Context, platform models.Platform) (*models.SessionCredential, error)
	Save(ctx context.Context, platform models.Platform, cookies []models.Cookie) error
	Touch(ctx context.Context, platform models.Platform) error
}

// OriginSelector picks and probes egress endpoints. Nil means direct
// connections.
type OriginSelector interface {
	Select() (proxy.Endpoint, error)
	Verify(ctx context.Context, ep proxy.Endpoint) error
	Size() int
}

// Session owns browser lifetimes. It is stateless between RunQuery calls.
type Session struct {
	launcher browser.Launcher
	registry *Registry
	creds    credentialStore
	origins  OriginSelector
	cfg      config.ScraperConfig
	proxyCfg config.ProxyConfig
}

func NewSession(
	launcher browser.Launcher,
	registry *Registry,
	creds credentialStore,
	origins OriginSelector,
	cfg config.ScraperConfig,
	proxyCfg config.ProxyConfig,
) *Session {
	return &Session{
		launcher: launcher,
		registry: registry,
		creds:    creds,
		origins:  origins,
		cfg:      cfg,
		proxyCfg: proxyCfg,
	}
}

// RunQuery runs one prompt against one platform in a fresh browser and
// returns the extracted text plus the candidate brands found in it. The
// browser is closed exactly once no matter where the call fails.
func (s *Session) RunQuery(ctx context.Context, platform models.Platform, promptText string, candidateBrands []string) (res *Result, err error) {
	adapter, err := s.registry.Get(platform)
	if err != nil {
		return nil, err
	}

	proxyURL, err := s.pickOrigin(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting fresh browser session",
		zap.String("platform", string(platform)),
		zap.Bool("proxied", proxyURL != ""))

	d, err := s.launcher.Launch(ctx, browser.LaunchOptions{
		Headless: s.cfg.Headless,
		ProxyURL: proxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: browser launch failed: %v", ErrTransientNetwork, err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			logger.Warn("Browser teardown failed",
				zap.String("platform", string(platform)), zap.Error(cerr))
		}
	}()

	if err := d.Navigate(ctx, adapter.URL()); err != nil {
		return nil, fmt.Errorf("%w: navigation failed: %v", ErrTransientNetwork, err)
	}
	s.pause()

	if err := s.restoreCredentials(ctx, d, adapter); err != nil {
		return nil, err
	}

	if err := s.verifyAuth(ctx, d, adapter); err != nil {
		return nil, err
	}

	s.pause()

	if err := adapter.ComposeAndSubmit(ctx, d, promptText); err != nil {
		return nil, err
	}

	timedOut, err := adapter.AwaitCompletion(ctx, d, s.cfg.CompletionWait())
	if err != nil {
		return nil, fmt.Errorf("%w: completion wait aborted: %v", ErrTransientNetwork, err)
	}
	if timedOut {
		logger.Warn("Generation did not finish in time, extracting best effort",
			zap.String("platform", string(platform)),
			zap.Duration("waited", s.cfg.CompletionWait()))
	}

	text := adapter.ExtractText(ctx, d)
	mentioned := mentions.Detect(text, candidateBrands)

	result := &Result{Text: text, BrandsMentioned: mentioned}
	if s.cfg.KeepRawHTML {
		if html, herr := d.PageHTML(ctx); herr == nil {
			result.RawHTML = html
		}
	}

	// Refresh the credential's last-used marker so staleness reflects real
	// platform activity, not just manual logins.
	if terr := s.creds.Touch(ctx, platform); terr != nil && !errors.Is(terr, credentials.ErrNoSession) {
		logger.Warn("Failed to touch session credential",
			zap.String("platform", string(platform)), zap.Error(terr))
	}

	logger.Info("Query completed",
		zap.String("platform", string(platform)),
		zap.Int("responseChars", len(text)),
		zap.Strings("brandsMentioned", mentioned))
	return result, nil
}

// pickOrigin selects and probes an egress endpoint before a browser launch
// is committed to it. A dead endpoint fails fast here instead of burning a
// full launch cycle.
func (s *Session) pickOrigin(ctx context.Context) (string, error) {
	if s.origins == nil || s.origins.Size() == 0 {
		return "", nil
	}

	ep, err := s.origins.Select()
	if err != nil {
		return "", fmt.Errorf("%w: no egress endpoint available: %v", ErrTransientNetwork, err)
	}
	if err := s.origins.Verify(ctx, ep); err != nil {
		return "", fmt.Errorf("%w: egress endpoint %s unreachable: %v", ErrTransientNetwork, ep.Addr(), err)
	}
	return ep.URL(s.proxyCfg.Username, s.proxyCfg.Password), nil
}

// restoreCredentials loads the platform's last session snapshot into the
// fresh context, when one exists. The page is reloaded afterwards so the
// cookies take effect.
func (s *Session) restoreCredentials(ctx context.Context, d browser.Driver, adapter Adapter) error {
	cred, err := s.creds.Load(ctx, adapter.Platform())
	if errors.Is(err, credentials.ErrNoSession) {
		logger.Info("No stored session, starting unauthenticated",
			zap.String("platform", string(adapter.Platform())))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session credential: %w", err)
	}

	if err := d.RestoreCookies(ctx, cred.Cookies); err != nil {
		return fmt.Errorf("%w: cookie restore failed: %v", ErrTransientNetwork, err)
	}
	if err := d.Navigate(ctx, adapter.URL()); err != nil {
		return fmt.Errorf("%w: reload after cookie restore failed: %v", ErrTransientNetwork, err)
	}
	s.pause()
	return nil
}

// verifyAuth probes for the platform's authenticated-only element. When the
// probe misses, a bounded manual-login window opens: an operator can log in
// out of band, after which the resulting cookies are snapshotted and saved.
// A window that lapses unauthenticated fails the invocation.
func (s *Session) verifyAuth(ctx context.Context, d browser.Driver, adapter Adapter) error {
	platform := adapter.Platform()

	authed, err := d.ProbeElement(ctx, adapter.AuthSelector())
	if err != nil {
		return fmt.Errorf("%w: auth probe failed: %v", ErrTransientNetwork, err)
	}
	if authed {
		logger.Info("Session restored, already authenticated",
			zap.String("platform", string(platform)))
		return nil
	}

	logger.Warn("Manual login required, waiting for operator",
		zap.String("platform", string(platform)),
		zap.Duration("window", s.cfg.LoginWait()))

	outcome, perr := poll(ctx, s.loginPollInterval(), s.cfg.LoginWait(), func(ctx context.Context) (bool, error) {
		return d.ProbeElement(ctx, adapter.AuthSelector())
	})
	switch outcome {
	case PollDone:
	case PollTimedOut:
		return fmt.Errorf("%w: login window lapsed for %s", ErrAuthenticationRequired, platform)
	default:
		return fmt.Errorf("%w: login wait aborted: %v", ErrTransientNetwork, perr)
	}

	cookies, err := d.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("%w: cookie snapshot failed: %v", ErrTransientNetwork, err)
	}
	if err := s.creds.Save(ctx, platform, cookies); err != nil {
		return fmt.Errorf("failed to persist session credential: %w", err)
	}

	logger.Info("Manual login completed, session saved",
		zap.String("platform", string(platform)),
		zap.Int("cookies", len(cookies)))
	return nil
}

// pause sleeps a random human-looking interval between page interactions.
func (s *Session) pause() {
	min := time.Duration(s.cfg.RandomDelayMinSec) * time.Second
	max := time.Duration(s.cfg.RandomDelayMaxSec) * time.Second
	if max < min {
		max = min
	}
	randomDelay(min, max)
}

func (s *Session) loginPollInterval() time.Duration {
	if s.cfg.LoginWait() < 5*time.Second {
		return 50 * time.Millisecond
	}
	return 5 * time.Second
}
