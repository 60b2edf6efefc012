// Package credentials manages per-platform session cookie snapshots.
//
// SQLite is the durable store. Each snapshot is mirrored to a JSON file so
// operators can inspect or seed sessions by hand, and optionally cached in
// Redis so worker restarts skip the database on the hot path. Reads prefer
// cache, then mirror, then the database; writes go to all three.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/internal/storage/sqlite"
	"github.com/brandpulse/backend/pkg/logger"
)

// ErrNoSession is returned when no snapshot exists for a platform anywhere.
var ErrNoSession = errors.New("no session credential stored")

// durableStore is the subset of the SQLite client the store needs.
type durableStore interface {
	SaveSession(ctx context.Context, cred *models.SessionCredential) error
	LoadSession(ctx context.Context, platform models.Platform) (*models.SessionCredential, error)
}

// cacheStore is the subset of the Redis client the store needs. Nil is
// allowed; the store then runs without a cache layer.
type cacheStore interface {
	SetCredential(ctx context.Context, cred *models.SessionCredential) error
	GetCredential(ctx context.Context, platform models.Platform) (*models.SessionCredential, bool, error)
}

type Store struct {
	db        durableStore
	cache     cacheStore
	mirrorDir string
}

func NewStore(db durableStore, cache cacheStore, mirrorDir string) (*Store, error) {
	if mirrorDir != "" {
		if err := os.MkdirAll(mirrorDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session mirror dir: %w", err)
		}
	}
	return &Store{db: db, cache: cache, mirrorDir: mirrorDir}, nil
}

// Save overwrites the platform's snapshot wholesale. The database write must
// succeed; mirror and cache writes are best effort.
func (s *Store) Save(ctx context.Context, platform models.Platform, cookies []models.Cookie) error {
	cred := &models.SessionCredential{
		Platform:   platform,
		Cookies:    cookies,
		LastUsedAt: time.Now().UTC(),
	}

	if err := s.db.SaveSession(ctx, cred); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	if err := s.writeMirror(cred); err != nil {
		logger.Warn("Failed to mirror session to file",
			zap.String("platform", string(platform)), zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.SetCredential(ctx, cred); err != nil {
			logger.Warn("Failed to cache session",
				zap.String("platform", string(platform)), zap.Error(err))
		}
	}

	logger.Info("Session credential saved",
		zap.String("platform", string(platform)),
		zap.Int("cookies", len(cookies)))
	return nil
}

// Load returns the freshest available snapshot for the platform. Cache and
// mirror failures fall through to the next layer; ErrNoSession means no
// layer had one.
func (s *Store) Load(ctx context.Context, platform models.Platform) (*models.SessionCredential, error) {
	if s.cache != nil {
		cred, ok, err := s.cache.GetCredential(ctx, platform)
		if err != nil {
			logger.Warn("Session cache read failed",
				zap.String("platform", string(platform)), zap.Error(err))
		} else if ok {
			return cred, nil
		}
	}

	if cred, err := s.readMirror(platform); err == nil {
		return cred, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Session mirror read failed",
			zap.String("platform", string(platform)), zap.Error(err))
	}

	cred, err := s.db.LoadSession(ctx, platform)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Touch records that the platform's snapshot was just used.
func (s *Store) Touch(ctx context.Context, platform models.Platform) error {
	cred, err := s.Load(ctx, platform)
	if err != nil {
		return err
	}
	return s.Save(ctx, platform, cred.Cookies)
}

func (s *Store) writeMirror(cred *models.SessionCredential) error {
	if s.mirrorDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	path := s.mirrorPath(cred.Platform)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) readMirror(platform models.Platform) (*models.SessionCredential, error) {
	if s.mirrorDir == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(s.mirrorPath(platform))
	if err != nil {
		return nil, err
	}
	var cred models.SessionCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("malformed session mirror: %w", err)
	}
	cred.Platform = platform
	return &cred, nil
}

func (s *Store) mirrorPath(platform models.Platform) string {
	return filepath.Join(s.mirrorDir, fmt.Sprintf("%s_session.json", platform))
}
