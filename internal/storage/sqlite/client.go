package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/logger"
)

// ErrClaimConflict is returned when the conditional claim insert affects no
// rows: either another worker holds the pair or a fresh response exists.
var ErrClaimConflict = errors.New("prompt already claimed or still fresh")

// ErrNotFound is returned for lookups of missing rows.
var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS brands (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		name TEXT NOT NULL,
		logo_url TEXT,
		website_url TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (category_id, name),
		FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_brands_category ON brands(category_id);

	CREATE TABLE IF NOT EXISTS prompts (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (category_id, text),
		FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts(category_id);

	CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		prompt_id TEXT NOT NULL,
		prompt_text TEXT NOT NULL,
		platform TEXT NOT NULL,
		response_text TEXT,
		brands_mentioned TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'processing',
		error_message TEXT,
		raw_html TEXT,
		created_at INTEGER NOT NULL,
		completed_at INTEGER,
		FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_responses_prompt_platform ON responses(prompt_id, platform, created_at);
	CREATE INDEX IF NOT EXISTS idx_responses_status ON responses(status);

	CREATE TABLE IF NOT EXISTS platform_sessions (
		platform TEXT PRIMARY KEY,
		cookies TEXT NOT NULL,
		last_used_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS citations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		response_id TEXT NOT NULL,
		brand_name TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		domain TEXT,
		position INTEGER,
		FOREIGN KEY (response_id) REFERENCES responses(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_citations_response ON citations(response_id);

	CREATE TABLE IF NOT EXISTS mention_contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		response_id TEXT NOT NULL,
		brand_name TEXT NOT NULL,
		context TEXT,
		sentiment TEXT,
		keywords TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (response_id) REFERENCES responses(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_mention_contexts_response ON mention_contexts(response_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ==================== Catalog writes ====================
//
// Categories, brands, and prompts are created by configuration or the CRUD
// surface, never mutated by the pipeline itself.

func (c *Client) CreateCategory(ctx context.Context, cat *models.Category) error {
	now := time.Now().Unix()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			updated_at = excluded.updated_at`,
		cat.ID, cat.Name, cat.Description, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (c *Client) CreateBrand(ctx context.Context, b *models.Brand) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO brands (id, category_id, name, logo_url, website_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.CategoryID, b.Name, b.LogoURL, b.WebsiteURL, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create brand: %w", err)
	}
	return nil
}

func (c *Client) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO prompts (id, category_id, text, created_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.CategoryID, p.Text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create prompt: %w", err)
	}
	return nil
}

// ==================== Catalog reads ====================

func (c *Client) GetCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var cat models.Category
		var createdAt, updatedAt int64
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.CreatedAt = time.Unix(createdAt, 0)
		cat.UpdatedAt = time.Unix(updatedAt, 0)
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

func (c *Client) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var cat models.Category
	var createdAt, updatedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM categories WHERE id = ?`, id).
		Scan(&cat.ID, &cat.Name, &cat.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	cat.CreatedAt = time.Unix(createdAt, 0)
	cat.UpdatedAt = time.Unix(updatedAt, 0)
	return &cat, nil
}

func (c *Client) GetBrands(ctx context.Context, categoryID string) ([]models.Brand, error) {
	query := `SELECT id, category_id, name, logo_url, website_url, created_at FROM brands`
	args := []interface{}{}
	if categoryID != "" {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY created_at, name`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	defer rows.Close()

	var brands []models.Brand
	for rows.Next() {
		var b models.Brand
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Name, &b.LogoURL, &b.WebsiteURL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		b.CreatedAt = time.Unix(createdAt, 0)
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// GetBrandNames returns brand names for a category in creation order. That
// order is what mention extraction preserves in its output.
func (c *Client) GetBrandNames(ctx context.Context, categoryID string) ([]string, error) {
	brands, err := c.GetBrands(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(brands))
	for _, b := range brands {
		names = append(names, b.Name)
	}
	return names, nil
}

func (c *Client) GetPrompts(ctx context.Context, categoryID string) ([]models.Prompt, error) {
	query := `SELECT id, category_id, text, created_at FROM prompts`
	args := []interface{}{}
	if categoryID != "" {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY created_at`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// ==================== Claiming and responses ====================

// ClaimPrompt atomically reserves one (prompt, platform) pair by inserting a
// processing response, but only if no response for the pair was created
// inside the freshness window. Zero rows affected means the pair is either
// fresh or already held by a concurrent worker; callers get ErrClaimConflict
// and move on.
func (c *Client) ClaimPrompt(ctx context.Context, promptID string, platform models.Platform, freshness time.Duration) (*models.Response, error) {
	id := uuid.NewString()
	now := time.Now()
	cutoff := now.Add(-freshness).Unix()

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO responses (id, prompt_id, prompt_text, platform, status, created_at)
		SELECT ?, p.id, p.text, ?, 'processing', ?
		FROM prompts p
		WHERE p.id = ?
		AND NOT EXISTS (
			SELECT 1 FROM responses r
			WHERE r.prompt_id = p.id AND r.platform = ? AND r.created_at > ?
		)`,
		id, string(platform), now.Unix(), promptID, string(platform), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim prompt: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read claim result: %w", err)
	}
	if affected == 0 {
		return nil, ErrClaimConflict
	}

	logger.Debug("Prompt claimed",
		zap.String("response_id", id),
		zap.String("prompt_id", promptID),
		zap.String("platform", string(platform)),
	)

	return c.GetResponse(ctx, id)
}

// PendingPrompts lists prompts with no response for the platform inside the
// freshness window, oldest prompts first. Results are candidates only; the
// claim step is what actually reserves them.
func (c *Client) PendingPrompts(ctx context.Context, platform models.Platform, categoryID string, freshness time.Duration, limit int) ([]models.Prompt, error) {
	cutoff := time.Now().Add(-freshness).Unix()

	query := `
		SELECT p.id, p.category_id, p.text, p.created_at
		FROM prompts p
		WHERE NOT EXISTS (
			SELECT 1 FROM responses r
			WHERE r.prompt_id = p.id AND r.platform = ? AND r.created_at > ?
		)`
	args := []interface{}{string(platform), cutoff}
	if categoryID != "" {
		query += ` AND p.category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY p.created_at LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// CompleteResponse moves a processing response to completed. Terminal rows
// are never rewritten; the status guard makes the transition one-way.
func (c *Client) CompleteResponse(ctx context.Context, responseID, text string, brandsMentioned []string, rawHTML *string) error {
	brandsJSON, err := json.Marshal(brandsMentioned)
	if err != nil {
		return fmt.Errorf("failed to marshal brand mentions: %w", err)
	}
	if brandsMentioned == nil {
		brandsJSON = []byte("[]")
	}

	res, err := c.db.ExecContext(ctx, `
		UPDATE responses
		SET response_text = ?, brands_mentioned = ?, raw_html = ?, status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		text, string(brandsJSON), rawHTML, time.Now().Unix(), responseID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete response: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("response %s is not in processing state: %w", responseID, ErrNotFound)
	}

	logger.Info("Response completed",
		zap.String("response_id", responseID),
		zap.Int("text_length", len(text)),
		zap.Int("mentions", len(brandsMentioned)),
	)
	return nil
}

// FailResponse moves a processing response to failed with the captured error.
func (c *Client) FailResponse(ctx context.Context, responseID, errorMessage string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE responses
		SET status = 'failed', error_message = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		errorMessage, time.Now().Unix(), responseID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark response failed: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("response %s is not in processing state: %w", responseID, ErrNotFound)
	}

	logger.Warn("Response failed",
		zap.String("response_id", responseID),
		zap.String("error", errorMessage),
	)
	return nil
}

func (c *Client) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, prompt_id, prompt_text, platform, response_text, brands_mentioned,
		       status, error_message, raw_html, created_at, completed_at
		FROM responses WHERE id = ?`, id)

	r, err := scanResponse(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ==================== Sessions ====================

// SaveSession overwrites the platform's credential snapshot wholesale.
func (c *Client) SaveSession(ctx context.Context, cred *models.SessionCredential) error {
	cookiesJSON, err := json.Marshal(cred.Cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO platform_sessions (platform, cookies, last_used_at)
		VALUES (?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			cookies = excluded.cookies,
			last_used_at = excluded.last_used_at`,
		string(cred.Platform), string(cookiesJSON), cred.LastUsedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	logger.Info("Session saved",
		zap.String("platform", string(cred.Platform)),
		zap.Int("cookies", len(cred.Cookies)),
	)
	return nil
}

func (c *Client) LoadSession(ctx context.Context, platform models.Platform) (*models.SessionCredential, error) {
	var cookiesJSON string
	var lastUsed int64
	err := c.db.QueryRowContext(ctx,
		`SELECT cookies, last_used_at FROM platform_sessions WHERE platform = ?`,
		string(platform)).Scan(&cookiesJSON, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	cred := &models.SessionCredential{
		Platform:   platform,
		LastUsedAt: time.Unix(lastUsed, 0),
	}
	if err := json.Unmarshal([]byte(cookiesJSON), &cred.Cookies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	return cred, nil
}

// ==================== Enrichment artifacts ====================

func (c *Client) InsertCitation(ctx context.Context, cit *models.Citation) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO citations (response_id, brand_name, url, title, domain, position)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cit.ResponseID, cit.BrandName, cit.URL, cit.Title, cit.Domain, cit.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to insert citation: %w", err)
	}
	return nil
}

func (c *Client) InsertMentionContext(ctx context.Context, mc *models.MentionContext) error {
	keywordsJSON, err := json.Marshal(mc.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	if mc.Keywords == nil {
		keywordsJSON = []byte("[]")
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO mention_contexts (response_id, brand_name, context, sentiment, keywords)
		VALUES (?, ?, ?, ?, ?)`,
		mc.ResponseID, mc.BrandName, mc.Context, mc.Sentiment, string(keywordsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert mention context: %w", err)
	}
	return nil
}

// ==================== Aggregation snapshot ====================

// LoadSnapshot pulls everything the aggregation layer needs in one pass.
// Only completed responses are included; the aggregates never see in-flight
// or failed rows. An empty categoryID loads the whole catalog.
func (c *Client) LoadSnapshot(ctx context.Context, categoryID string) (*models.Snapshot, error) {
	snap := &models.Snapshot{}

	if categoryID != "" {
		cat, err := c.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		snap.Categories = []models.Category{*cat}
	} else {
		cats, err := c.GetCategories(ctx)
		if err != nil {
			return nil, err
		}
		snap.Categories = cats
	}

	brands, err := c.GetBrands(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	snap.Brands = brands

	prompts, err := c.GetPrompts(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	snap.Prompts = prompts

	query := `
		SELECT r.id, r.prompt_id, r.prompt_text, r.platform, r.response_text, r.brands_mentioned,
		       r.status, r.error_message, r.raw_html, r.created_at, r.completed_at
		FROM responses r
		JOIN prompts p ON p.id = r.prompt_id
		WHERE r.status = 'completed'`
	args := []interface{}{}
	if categoryID != "" {
		query += ` AND p.category_id = ?`
		args = append(args, categoryID)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, err
		}
		snap.Responses = append(snap.Responses, *r)
	}
	return snap, rows.Err()
}

func scanResponse(scan func(...interface{}) error) (*models.Response, error) {
	var r models.Response
	var platform, brandsJSON string
	var createdAt int64
	var completedAt sql.NullInt64

	err := scan(&r.ID, &r.PromptID, &r.PromptText, &platform, &r.Text, &brandsJSON,
		(*string)(&r.Status), &r.ErrorMessage, &r.RawHTML, &createdAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan response: %w", err)
	}

	r.Platform = models.Platform(platform)
	r.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		r.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(brandsJSON), &r.BrandsMentioned); err != nil {
		// Malformed mention data degrades to an empty set rather than
		// poisoning the read path.
		r.BrandsMentioned = nil
	}
	return &r, nil
}
