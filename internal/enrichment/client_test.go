package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/backend/internal/storage/models"
	"github.com/brandpulse/backend/pkg/circuitbreaker"
	"github.com/brandpulse/backend/pkg/config"
)

type fakeArtifactStore struct {
	citations []models.Citation
	contexts  []models.MentionContext
	insertErr error
}

func (f *fakeArtifactStore) InsertCitation(_ context.Context, cit *models.Citation) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.citations = append(f.citations, *cit)
	return nil
}

func (f *fakeArtifactStore) InsertMentionContext(_ context.Context, mc *models.MentionContext) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.contexts = append(f.contexts, *mc)
	return nil
}

func newTestClient(store *fakeArtifactStore, complete func(ctx context.Context, prompt string) (string, error)) *Client {
	return &Client{
		store: store,
		breaker: circuitbreaker.NewCircuitBreaker("enrichment", circuitbreaker.Config{
			FailureThreshold: 100,
			Timeout:          time.Second,
		}),
		cfg:      config.EnrichmentConfig{TimeoutSec: 5},
		complete: complete,
	}
}

func testResponse(text string) *models.Response {
	return &models.Response{ID: "resp1", PromptText: "best CRM?", Text: &text}
}

func TestEnrich_PersistsExtraction(t *testing.T) {
	store := &fakeArtifactStore{}
	client := newTestClient(store, func(_ context.Context, _ string) (string, error) {
		return `{
			"brands": {
				"HubSpot": {
					"citations": [{"url": "https://www.hubspot.com/pricing", "title": "Pricing", "position": 1}],
					"context": "HubSpot is recommended for inbound teams.",
					"sentiment": "positive",
					"keywords": ["inbound", "free tier"]
				}
			}
		}`, nil
	})

	client.Enrich(context.Background(), testResponse("HubSpot is recommended."), []string{"HubSpot"})

	require.Len(t, store.contexts, 1)
	assert.Equal(t, "positive", store.contexts[0].Sentiment)
	assert.Equal(t, []string{"inbound", "free tier"}, store.contexts[0].Keywords)

	require.Len(t, store.citations, 1)
	assert.Equal(t, "https://www.hubspot.com/pricing", store.citations[0].URL)
	assert.Equal(t, "hubspot.com", store.citations[0].Domain)
}

func TestEnrich_StripsCodeFences(t *testing.T) {
	store := &fakeArtifactStore{}
	client := newTestClient(store, func(_ context.Context, _ string) (string, error) {
		return "```json\n{\"brands\": {\"Asana\": {\"citations\": [], \"context\": \"Asana leads.\", \"sentiment\": \"neutral\", \"keywords\": []}}}\n```", nil
	})

	client.Enrich(context.Background(), testResponse("Asana leads the field."), []string{"Asana"})

	require.Len(t, store.contexts, 1)
	assert.Equal(t, "Asana leads.", store.contexts[0].Context)
}

func TestEnrich_UnknownSentimentNormalizedToNeutral(t *testing.T) {
	store := &fakeArtifactStore{}
	client := newTestClient(store, func(_ context.Context, _ string) (string, error) {
		return `{"brands": {"Trello": {"citations": [], "context": "Mentioned once.", "sentiment": "enthusiastic", "keywords": []}}}`, nil
	})

	client.Enrich(context.Background(), testResponse("Trello is mentioned."), []string{"Trello"})

	require.Len(t, store.contexts, 1)
	assert.Equal(t, "neutral", store.contexts[0].Sentiment)
}

func TestEnrich_FailurePersistsSnippetFallback(t *testing.T) {
	store := &fakeArtifactStore{}
	client := newTestClient(store, func(_ context.Context, _ string) (string, error) {
		return "", errors.New("api unavailable")
	})

	text := "Many startups still pick HubSpot for its free tier and ecosystem."
	client.Enrich(context.Background(), testResponse(text), []string{"HubSpot", "Salesforce"})

	// Only the brand actually present in the text gets a fallback row.
	require.Len(t, store.contexts, 1)
	assert.Equal(t, "HubSpot", store.contexts[0].BrandName)
	assert.Contains(t, store.contexts[0].Context, "HubSpot")
	assert.Equal(t, "neutral", store.contexts[0].Sentiment)
	assert.Empty(t, store.contexts[0].Keywords)
	assert.Empty(t, store.citations)
}

func TestEnrich_MalformedJSONFallsBack(t *testing.T) {
	store := &fakeArtifactStore{}
	client := newTestClient(store, func(_ context.Context, _ string) (string, error) {
		return "not json at all", nil
	})

	client.Enrich(context.Background(), testResponse("Notion keeps coming up."), []string{"Notion"})

	require.Len(t, store.contexts, 1)
	assert.Contains(t, store.contexts[0].Context, "Notion")
}

func TestEnrich_NilClientIsNoOp(t *testing.T) {
	var client *Client
	client.Enrich(context.Background(), testResponse("anything"), []string{"HubSpot"})
}

func TestEnrich_SkipsWithoutBrandsOrText(t *testing.T) {
	store := &fakeArtifactStore{}
	calls := 0
	client := newTestClient(store, func(_ context.Context, _ string) (string, error) {
		calls++
		return "{}", nil
	})

	client.Enrich(context.Background(), testResponse("text"), nil)
	client.Enrich(context.Background(), &models.Response{ID: "r2"}, []string{"HubSpot"})

	assert.Zero(t, calls)
	assert.Empty(t, store.contexts)
}

func TestNewClient_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, NewClient(config.EnrichmentConfig{Enabled: false}, &fakeArtifactStore{}))
	assert.Nil(t, NewClient(config.EnrichmentConfig{Enabled: true, APIKey: ""}, &fakeArtifactStore{}))
}
