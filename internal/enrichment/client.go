// Package enrichment runs a single structured-extraction call per completed
// response, pulling citations, mention context, sentiment and keywords for
// each mentioned brand. Enrichment is strictly additive: any failure here is
// logged and swallowed, never surfaced to the scraping pipeline.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brandpulse/backend/internal/mentions"
	"github.com/brandpulse/backend/internal/metrics"
	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/circuitbreaker"
	"github.com/brandpulse/backend/pkg/config"
	"github.com/brandpulse/backend/pkg/logger"
	"github.com/brandpulse/backend/pkg/retry"
)

type artifactStore interface {
	InsertCitation(ctx context.Context, cit *models.Citation) error
	InsertMentionContext(ctx context.Context, mc *models.MentionContext) error
}

type brandExtraction struct {
	Citations []struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Position int    `json:"position"`
	} `json:"citations"`
	Context   string   `json:"context"`
	Sentiment string   `json:"sentiment"`
	Keywords  []string `json:"keywords"`
}

type extractionResult struct {
	Brands map[string]brandExtraction `json:"brands"`
}

type Client struct {
	store    artifactStore
	breaker  *circuitbreaker.CircuitBreaker
	cfg      config.EnrichmentConfig
	complete func(ctx context.Context, prompt string) (string, error)
}

// NewClient returns nil when enrichment is disabled or unconfigured; callers
// treat a nil client as a no-op.
func NewClient(cfg config.EnrichmentConfig, store artifactStore) *Client {
	if !cfg.Enabled || cfg.APIKey == "" {
		logger.Info("Enrichment disabled")
		return nil
	}
	c := &Client{
		store: store,
		breaker: circuitbreaker.NewCircuitBreaker("enrichment", circuitbreaker.Config{
			FailureThreshold: 3,
			Timeout:          30 * time.Second,
		}),
		cfg: cfg,
	}
	api := openai.NewClient(cfg.APIKey)
	c.complete = func(ctx context.Context, prompt string) (string, error) {
		resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	}
	return c
}

// Enrich extracts and persists structured artifacts for one completed
// response. It never returns an error; every failure mode degrades to a log
// line so the base response stays untouched.
func (c *Client) Enrich(ctx context.Context, resp *models.Response, brands []string) {
	if c == nil || len(brands) == 0 || resp.Text == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSec)*time.Second)
	defer cancel()

	result, err := c.extract(ctx, *resp.Text, brands, resp.PromptText)
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues("failed").Inc()
		logger.Warn("Enrichment extraction failed, persisting snippet fallback",
			zap.String("responseID", resp.ID), zap.Error(err))
		c.persistFallback(ctx, resp.ID, *resp.Text, brands)
		return
	}
	metrics.EnrichmentTotal.WithLabelValues("success").Inc()

	saved := 0
	for brand, data := range result.Brands {
		if c.persistBrand(ctx, resp.ID, brand, data) {
			saved++
		}
	}

	logger.Info("Response enriched",
		zap.String("responseID", resp.ID),
		zap.Int("brands", saved))
}

func (c *Client) extract(ctx context.Context, responseText string, brands []string, promptText string) (*extractionResult, error) {
	prompt := buildPrompt(responseText, brands, promptText)

	var content string
	err := c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, retry.Config{MaxAttempts: 3}, func() error {
			out, err := c.complete(ctx, prompt)
			if err != nil {
				return err
			}
			content = out
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(stripFences(content)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}
	return &result, nil
}

// persistBrand writes one brand's artifacts; partial failures are logged
// and skipped.
func (c *Client) persistBrand(ctx context.Context, responseID, brand string, data brandExtraction) bool {
	sentiment := data.Sentiment
	switch sentiment {
	case "positive", "neutral", "negative":
	default:
		sentiment = "neutral"
	}

	mc := &models.MentionContext{
		ResponseID: responseID,
		BrandName:  brand,
		Context:    data.Context,
		Sentiment:  sentiment,
		Keywords:   data.Keywords,
	}
	if err := c.store.InsertMentionContext(ctx, mc); err != nil {
		logger.Warn("Failed to persist mention context",
			zap.String("responseID", responseID),
			zap.String("brand", brand), zap.Error(err))
		return false
	}

	for _, cit := range data.Citations {
		if cit.URL == "" {
			continue
		}
		err := c.store.InsertCitation(ctx, &models.Citation{
			ResponseID: responseID,
			BrandName:  brand,
			URL:        cit.URL,
			Title:      cit.Title,
			Domain:     extractDomain(cit.URL),
			Position:   cit.Position,
		})
		if err != nil {
			logger.Warn("Failed to persist citation",
				zap.String("responseID", responseID),
				zap.String("brand", brand), zap.Error(err))
		}
	}
	return true
}

// persistFallback stores raw text windows around each mentioned brand so a
// failed extraction still leaves a usable mention context. Sentiment stays
// neutral and keywords empty; a later successful run adds richer rows.
func (c *Client) persistFallback(ctx context.Context, responseID, text string, brands []string) {
	for _, brand := range brands {
		snippets := mentions.ContextSnippets(text, brand, 120, 2)
		if len(snippets) == 0 {
			continue
		}
		mc := &models.MentionContext{
			ResponseID: responseID,
			BrandName:  brand,
			Context:    strings.Join(snippets, " ... "),
			Sentiment:  "neutral",
		}
		if err := c.store.InsertMentionContext(ctx, mc); err != nil {
			logger.Warn("Failed to persist fallback mention context",
				zap.String("responseID", responseID),
				zap.String("brand", brand), zap.Error(err))
		}
	}
}

func buildPrompt(responseText string, brands []string, promptText string) string {
	var b strings.Builder
	b.WriteString("Extract structured data from this AI response about brand mentions.\n\n")
	fmt.Fprintf(&b, "PROMPT: %q\n\nRESPONSE:\n%s\n\nBRANDS: %s\n\n", promptText, responseText, strings.Join(brands, ", "))
	b.WriteString(`For each brand, extract:
1. Citations: URLs in format "text (URL)" - extract URL, infer title, note position
2. Context: 2-3 sentence summary of how the brand is mentioned
3. Sentiment: positive/neutral/negative
4. Keywords: 3-5 key themes

Return valid JSON only:
{
  "brands": {
    "BrandName": {
      "citations": [{"url": "https://...", "title": "...", "position": 1}],
      "context": "2-3 sentence summary",
      "sentiment": "positive",
      "keywords": ["word1", "word2"]
    }
  }
}

Rules:
- Empty citations array if no URLs
- Use "neutral" if sentiment unclear
- Only include actually mentioned brands
- Keep context concise (2-3 sentences max)`)
	return b.String()
}

// stripFences removes markdown code fences some models wrap JSON in despite
// the JSON response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
