package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/internal/storage/sqlite"
)

type fakeDurable struct {
	sessions map[models.Platform]*models.SessionCredential
	saveErr  error
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{sessions: map[models.Platform]*models.SessionCredential{}}
}

func (f *fakeDurable) SaveSession(_ context.Context, cred *models.SessionCredential) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *cred
	f.sessions[cred.Platform] = &cp
	return nil
}

func (f *fakeDurable) LoadSession(_ context.Context, platform models.Platform) (*models.SessionCredential, error) {
	cred, ok := f.sessions[platform]
	if !ok {
		return nil, sqlite.ErrNotFound
	}
	return cred, nil
}

type fakeCache struct {
	creds  map[models.Platform]*models.SessionCredential
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{creds: map[models.Platform]*models.SessionCredential{}}
}

func (f *fakeCache) SetCredential(_ context.Context, cred *models.SessionCredential) error {
	if f.setErr != nil {
		return f.setErr
	}
	cp := *cred
	f.creds[cred.Platform] = &cp
	return nil
}

func (f *fakeCache) GetCredential(_ context.Context, platform models.Platform) (*models.SessionCredential, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	cred, ok := f.creds[platform]
	return cred, ok, nil
}

func testCookies(value string) []models.Cookie {
	return []models.Cookie{{Name: "session", Value: value, Domain: ".chatgpt.com"}}
}

func TestSave_WritesAllLayers(t *testing.T) {
	db := newFakeDurable()
	cache := newFakeCache()
	dir := t.TempDir()

	store, err := NewStore(db, cache, dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformChatGPT, testCookies("v1")))

	assert.Contains(t, db.sessions, models.PlatformChatGPT)
	assert.Contains(t, cache.creds, models.PlatformChatGPT)

	data, err := os.ReadFile(filepath.Join(dir, "chatgpt_session.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v1"`)

	// Atomic mirror writes leave no temp file behind.
	_, err = os.Stat(filepath.Join(dir, "chatgpt_session.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSave_DurableFailureIsFatal(t *testing.T) {
	db := newFakeDurable()
	db.saveErr = errors.New("disk full")
	cache := newFakeCache()

	store, err := NewStore(db, cache, t.TempDir())
	require.NoError(t, err)

	err = store.Save(context.Background(), models.PlatformGemini, testCookies("v1"))
	assert.Error(t, err)
	assert.Empty(t, cache.creds)
}

func TestSave_CacheFailureIsBestEffort(t *testing.T) {
	db := newFakeDurable()
	cache := newFakeCache()
	cache.setErr = errors.New("redis down")

	store, err := NewStore(db, cache, t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Save(context.Background(), models.PlatformGemini, testCookies("v1")))
	assert.Contains(t, db.sessions, models.PlatformGemini)
}

func TestLoad_PrefersCache(t *testing.T) {
	db := newFakeDurable()
	cache := newFakeCache()
	store, err := NewStore(db, cache, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformChatGPT, testCookies("cached")))
	// Diverge the durable copy so the source of the read is observable.
	db.sessions[models.PlatformChatGPT].Cookies = testCookies("durable")

	cred, err := store.Load(context.Background(), models.PlatformChatGPT)
	require.NoError(t, err)
	assert.Equal(t, "cached", cred.Cookies[0].Value)
}

func TestLoad_CacheFailureFallsThrough(t *testing.T) {
	db := newFakeDurable()
	cache := newFakeCache()
	dir := t.TempDir()
	store, err := NewStore(db, cache, dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformChatGPT, testCookies("v1")))
	cache.getErr = errors.New("redis down")

	cred, err := store.Load(context.Background(), models.PlatformChatGPT)
	require.NoError(t, err)
	assert.Equal(t, "v1", cred.Cookies[0].Value)
}

func TestLoad_MirrorBeforeDatabase(t *testing.T) {
	db := newFakeDurable()
	dir := t.TempDir()
	store, err := NewStore(db, nil, dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformPerplexity, testCookies("mirrored")))
	db.sessions[models.PlatformPerplexity].Cookies = testCookies("durable")

	cred, err := store.Load(context.Background(), models.PlatformPerplexity)
	require.NoError(t, err)
	assert.Equal(t, "mirrored", cred.Cookies[0].Value)
}

func TestLoad_MalformedMirrorFallsThrough(t *testing.T) {
	db := newFakeDurable()
	dir := t.TempDir()
	store, err := NewStore(db, nil, dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformChatGPT, testCookies("durable")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chatgpt_session.json"), []byte("{broken"), 0o600))

	cred, err := store.Load(context.Background(), models.PlatformChatGPT)
	require.NoError(t, err)
	assert.Equal(t, "durable", cred.Cookies[0].Value)
}

func TestLoad_NoSessionAnywhere(t *testing.T) {
	store, err := NewStore(newFakeDurable(), nil, t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), models.PlatformGemini)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestTouch(t *testing.T) {
	db := newFakeDurable()
	store, err := NewStore(db, nil, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformChatGPT, testCookies("v1")))
	before := db.sessions[models.PlatformChatGPT].LastUsedAt

	require.NoError(t, store.Touch(context.Background(), models.PlatformChatGPT))
	after := db.sessions[models.PlatformChatGPT].LastUsedAt
	assert.False(t, after.Before(before))

	assert.ErrorIs(t, store.Touch(context.Background(), models.PlatformPerplexity), ErrNoSession)
}

func TestNewStore_NoMirrorDir(t *testing.T) {
	db := newFakeDurable()
	store, err := NewStore(db, nil, "")
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), models.PlatformChatGPT, testCookies("v1")))
	cred, err := store.Load(context.Background(), models.PlatformChatGPT)
	require.NoError(t, err)
	assert.Equal(t, "v1", cred.Cookies[0].Value)
}
