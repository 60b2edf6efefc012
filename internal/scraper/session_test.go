package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/backend/internal/browser"
	"github.com/brandpulse/backend/internal/credentials"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/config"
)

// ==================== fakes ====================

type fakeDriver struct {
	mu         sync.Mutex
	closeCalls int

	navErr     error
	probeQueue []bool
	probeErr   error
	cookies    []models.Cookie
	cookiesErr error
	restoreErr error
}

func (d *fakeDriver) Navigate(context.Context, string) error { return d.navErr }

func (d *fakeDriver) RestoreCookies(context.Context, []models.Cookie) error { return d.restoreErr }

func (d *fakeDriver) ProbeElement(context.Context, string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.probeErr != nil {
		return false, d.probeErr
	}
	if len(d.probeQueue) == 0 {
		return false, nil
	}
	next := d.probeQueue[0]
	if len(d.probeQueue) > 1 {
		d.probeQueue = d.probeQueue[1:]
	}
	return next, nil
}

func (d *fakeDriver) Type(context.Context, string, string) error { return nil }

func (d *fakeDriver) Click(context.Context, string) error { return nil }

func (d *fakeDriver) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (d *fakeDriver) ExtractHTML(context.Context, string) (string, error) { return "", nil }

func (d *fakeDriver) PageHTML(context.Context) (string, error) { return "<html></html>", nil }

func (d *fakeDriver) Cookies(context.Context) ([]models.Cookie, error) {
	return d.cookies, d.cookiesErr
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCalls++
	return nil
}

type fakeLauncher struct {
	driver    *fakeDriver
	launchErr error
	launches  int
}

func (l *fakeLauncher) Launch(context.Context, browser.LaunchOptions) (browser.Driver, error) {
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.driver, nil
}

type fakeAdapter struct {
	platform  models.Platform
	submitErr error
	timedOut  bool
	awaitErr  error
	text      string
}

func (a *fakeAdapter) Platform() models.Platform { return a.platform }

func (a *fakeAdapter) URL() string { return "https://example.test" }

func (a *fakeAdapter) AuthSelector() string { return "#composer" }

func (a *fakeAdapter) ComposeAndSubmit(context.Context, browser.Driver, string) error {
	return a.submitErr
}

func (a *fakeAdapter) AwaitCompletion(context.Context, browser.Driver, time.Duration) (bool, error) {
	return a.timedOut, a.awaitErr
}

func (a *fakeAdapter) ExtractText(context.Context, browser.Driver) string { return a.text }

type fakeCredStore struct {
	cred    *models.SessionCredential
	saved   [][]models.Cookie
	touched []models.Platform
}

func (s *fakeCredStore) Load(_ context.Context, platform models.Platform) (*models.SessionCredential, error) {
	if s.cred == nil {
		return nil, credentials.ErrNoSession
	}
	return s.cred, nil
}

func (s *fakeCredStore) Save(_ context.Context, _ models.Platform, cookies []models.Cookie) error {
	s.saved = append(s.saved, cookies)
	return nil
}

func (s *fakeCredStore) Touch(_ context.Context, platform models.Platform) error {
	if s.cred == nil {
		return credentials.ErrNoSession
	}
	s.touched = append(s.touched, platform)
	return nil
}

// ==================== helpers ====================

func testConfig(loginWaitSec int) config.ScraperConfig {
	return config.ScraperConfig{
		LoginWaitSec:      loginWaitSec,
		CompletionWaitSec: 1,
		RandomDelayMinSec: 0,
		RandomDelayMaxSec: 0,
	}
}

func newTestSession(launcher *fakeLauncher, adapter *fakeAdapter, creds *fakeCredStore, loginWaitSec int) *Session {
	return NewSession(launcher, NewRegistry(adapter), creds, nil, testConfig(loginWaitSec), config.ProxyConfig{})
}

// ==================== tests ====================

func TestRunQuery_AuthenticatedSuccess(t *testing.T) {
	driver := &fakeDriver{probeQueue: []bool{true}}
	launcher := &fakeLauncher{driver: driver}
	adapter := &fakeAdapter{platform: models.PlatformChatGPT, text: "HubSpot is the most popular choice."}
	creds := &fakeCredStore{cred: &models.SessionCredential{
		Platform: models.PlatformChatGPT,
		Cookies:  []models.Cookie{{Name: "session", Value: "tok"}},
	}}

	session := newTestSession(launcher, adapter, creds, 0)
	result, err := session.RunQuery(context.Background(), models.PlatformChatGPT, "best CRM?", []string{"HubSpot", "Salesforce"})

	require.NoError(t, err)
	assert.Equal(t, "HubSpot is the most popular choice.", result.Text)
	assert.Equal(t, []string{"HubSpot"}, result.BrandsMentioned)
	assert.Equal(t, 1, driver.closeCalls, "browser closed exactly once")
	assert.Empty(t, creds.saved, "no re-authentication means no credential write")
	assert.Equal(t, []models.Platform{models.PlatformChatGPT}, creds.touched,
		"successful query refreshes the credential's last-used marker")
}

func TestRunQuery_NoStoredSessionSkipsTouch(t *testing.T) {
	// Manual login during the window leaves no loadable snapshot in this
	// fake, so the touch reports no session; the query still succeeds.
	driver := &fakeDriver{
		probeQueue: []bool{false, true},
		cookies:    []models.Cookie{{Name: "session", Value: "new"}},
	}
	launcher := &fakeLauncher{driver: driver}
	creds := &fakeCredStore{}
	session := newTestSession(launcher, &fakeAdapter{platform: models.PlatformGemini, text: "ok"}, creds, 1)

	_, err := session.RunQuery(context.Background(), models.PlatformGemini, "q", nil)
	require.NoError(t, err)
	assert.Empty(t, creds.touched)
}

func TestRunQuery_UnknownPlatform(t *testing.T) {
	launcher := &fakeLauncher{driver: &fakeDriver{}}
	session := newTestSession(launcher, &fakeAdapter{platform: models.PlatformChatGPT}, &fakeCredStore{}, 0)

	_, err := session.RunQuery(context.Background(), models.Platform("unknown"), "q", nil)
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	assert.Equal(t, 0, launcher.launches, "no browser launched for an unknown platform")
}

func TestRunQuery_LaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{launchErr: errors.New("chrome missing")}
	session := newTestSession(launcher, &fakeAdapter{platform: models.PlatformChatGPT}, &fakeCredStore{}, 0)

	_, err := session.RunQuery(context.Background(), models.PlatformChatGPT, "q", nil)
	assert.ErrorIs(t, err, ErrTransientNetwork)
}

func TestRunQuery_NavigationFailureStillCloses(t *testing.T) {
	driver := &fakeDriver{navErr: errors.New("dns failure")}
	launcher := &fakeLauncher{driver: driver}
	session := newTestSession(launcher, &fakeAdapter{platform: models.PlatformGemini}, &fakeCredStore{}, 0)

	_, err := session.RunQuery(context.Background(), models.PlatformGemini, "q", nil)
	assert.ErrorIs(t, err, ErrTransientNetwork)
	assert.Equal(t, 1, driver.closeCalls, "browser closed exactly once on failure")
}

func TestRunQuery_AuthenticationRequired(t *testing.T) {
	// No stored session and the probe never succeeds: the login window
	// lapses and the invocation fails.
	driver := &fakeDriver{}
	launcher := &fakeLauncher{driver: driver}
	session := newTestSession(launcher, &fakeAdapter{platform: models.PlatformChatGPT}, &fakeCredStore{}, 0)

	_, err := session.RunQuery(context.Background(), models.PlatformChatGPT, "q", nil)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Equal(t, 1, driver.closeCalls)
}

func TestRunQuery_ManualLoginSavesCredential(t *testing.T) {
	// First probe misses, the next one hits: the operator logged in during
	// the window, so the fresh cookies get persisted.
	driver := &fakeDriver{
		probeQueue: []bool{false, true},
		cookies:    []models.Cookie{{Name: "session", Value: "new"}},
	}
	launcher := &fakeLauncher{driver: driver}
	creds := &fakeCredStore{}
	session := newTestSession(launcher, &fakeAdapter{platform: models.PlatformChatGPT, text: "ok"}, creds, 1)

	_, err := session.RunQuery(context.Background(), models.PlatformChatGPT, "q", nil)
	require.NoError(t, err)
	require.Len(t, creds.saved, 1)
	assert.Equal(t, "new", creds.saved[0][0].Value)
	assert.Equal(t, 1, driver.closeCalls)
}

func TestRunQuery_SubmitFailureStillCloses(t *testing.T) {
	driver := &fakeDriver{probeQueue: []bool{true}}
	launcher := &fakeLauncher{driver: driver}
	adapter := &fakeAdapter{platform: models.PlatformChatGPT, submitErr: errors.New("input gone")}
	creds := &fakeCredStore{cred: &models.SessionCredential{Platform: models.PlatformChatGPT}}

	session := newTestSession(launcher, adapter, creds, 0)
	_, err := session.RunQuery(context.Background(), models.PlatformChatGPT, "q", nil)
	require.Error(t, err)
	assert.Equal(t, 1, driver.closeCalls)
}

func TestRunQuery_TimedOutCompletionDegrades(t *testing.T) {
	// A completion timeout is not a failure: extraction runs best effort.
	driver := &fakeDriver{probeQueue: []bool{true}}
	launcher := &fakeLauncher{driver: driver}
	adapter := &fakeAdapter{platform: models.PlatformPerplexity, timedOut: true, text: "partial answer"}
	creds := &fakeCredStore{cred: &models.SessionCredential{Platform: models.PlatformPerplexity}}

	session := newTestSession(launcher, adapter, creds, 0)
	result, err := session.RunQuery(context.Background(), models.PlatformPerplexity, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "partial answer", result.Text)
}

func TestRunQuery_SentinelYieldsNoMentions(t *testing.T) {
	driver := &fakeDriver{probeQueue: []bool{true}}
	launcher := &fakeLauncher{driver: driver}
	adapter := &fakeAdapter{platform: models.PlatformChatGPT, text: mentionsSentinel}
	creds := &fakeCredStore{cred: &models.SessionCredential{Platform: models.PlatformChatGPT}}

	session := newTestSession(launcher, adapter, creds, 0)
	result, err := session.RunQuery(context.Background(), models.PlatformChatGPT, "q", []string{"HubSpot"})
	require.NoError(t, err)
	assert.Empty(t, result.BrandsMentioned)
}
