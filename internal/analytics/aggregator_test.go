package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/backend/internal/storage/models"
)

func strPtr(s string) *string { return &s }

func completedResponse(id, promptID string, platform models.Platform, mentioned []string, completedAt time.Time) models.Response {
	text := "some response"
	return models.Response{
		ID:              id,
		PromptID:        promptID,
		Platform:        platform,
		Text:            &text,
		BrandsMentioned: mentioned,
		Status:          models.StatusCompleted,
		CreatedAt:       completedAt.Add(-time.Minute),
		CompletedAt:     &completedAt,
	}
}

// Two completed responses on one platform: one mentions A, the other A and B.
func crmSnapshot(now time.Time) *models.Snapshot {
	return &models.Snapshot{
		Categories: []models.Category{{ID: "cat1", Name: "CRM"}},
		Brands: []models.Brand{
			{ID: "brandA", CategoryID: "cat1", Name: "A"},
			{ID: "brandB", CategoryID: "cat1", Name: "B"},
		},
		Prompts: []models.Prompt{{ID: "p1", CategoryID: "cat1", Text: "best CRM?"}},
		Responses: []models.Response{
			completedResponse("r1", "p1", models.PlatformChatGPT, []string{"A"}, now),
			completedResponse("r2", "p1", models.PlatformChatGPT, []string{"A", "B"}, now),
		},
	}
}

func TestVisibility_CRMExample(t *testing.T) {
	snap := crmSnapshot(time.Now())

	scoreA := Visibility(snap, snap.Brands[0], models.PlatformChatGPT)
	assert.Equal(t, 100.00, scoreA.Score)
	assert.Equal(t, 2, scoreA.Mentions)
	assert.Equal(t, 2, scoreA.TotalResponses)

	scoreB := Visibility(snap, snap.Brands[1], models.PlatformChatGPT)
	assert.Equal(t, 50.00, scoreB.Score)
	assert.Equal(t, 1, scoreB.Mentions)
}

func TestVisibility_ZeroResponses(t *testing.T) {
	snap := &models.Snapshot{
		Categories: []models.Category{{ID: "cat1", Name: "CRM"}},
		Brands:     []models.Brand{{ID: "b1", CategoryID: "cat1", Name: "A"}},
		Prompts:    []models.Prompt{{ID: "p1", CategoryID: "cat1"}},
	}

	score := Visibility(snap, snap.Brands[0], models.PlatformChatGPT)
	assert.Equal(t, 0.0, score.Score, "zero denominator yields 0, never NaN")
	assert.Equal(t, 0, score.TotalResponses)
}

func TestVisibility_IgnoresOtherPlatforms(t *testing.T) {
	now := time.Now()
	snap := crmSnapshot(now)
	snap.Responses = append(snap.Responses,
		completedResponse("r3", "p1", models.PlatformGemini, nil, now))

	scoreA := Visibility(snap, snap.Brands[0], models.PlatformChatGPT)
	assert.Equal(t, 2, scoreA.TotalResponses)

	combined := CombinedVisibility(snap, snap.Brands[0])
	assert.Equal(t, 3, combined.TotalResponses)
	assert.Equal(t, 66.67, combined.Score)
}

func TestVisibility_IgnoresNonCompletedResponses(t *testing.T) {
	now := time.Now()
	snap := crmSnapshot(now)
	snap.Responses = append(snap.Responses, models.Response{
		ID:           "r-failed",
		PromptID:     "p1",
		Platform:     models.PlatformChatGPT,
		Status:       models.StatusFailed,
		ErrorMessage: strPtr("browser crash"),
	}, models.Response{
		ID:       "r-inflight",
		PromptID: "p1",
		Platform: models.PlatformChatGPT,
		Status:   models.StatusProcessing,
	})

	score := Visibility(snap, snap.Brands[0], models.PlatformChatGPT)
	assert.Equal(t, 2, score.TotalResponses)
}

func TestVisibility_ScoreBounds(t *testing.T) {
	snap := crmSnapshot(time.Now())
	for _, b := range snap.Brands {
		for _, p := range append(models.AllPlatforms(), "") {
			s := Visibility(snap, b, p)
			assert.GreaterOrEqual(t, s.Score, 0.0)
			assert.LessOrEqual(t, s.Score, 100.0)
		}
	}
}

func TestPlatformBreakdown(t *testing.T) {
	snap := crmSnapshot(time.Now())
	scores := PlatformBreakdown(snap, snap.Brands[1])

	require.Len(t, scores, 4)
	assert.Equal(t, models.Platform(""), scores[0].Platform)
	assert.Equal(t, 50.00, scores[0].Score)

	var gemini BrandScore
	for _, s := range scores {
		if s.Platform == models.PlatformGemini {
			gemini = s
		}
	}
	assert.Equal(t, 0.0, gemini.Score, "platform without responses gets a zero row")
}

func TestLeaderboard_OrderAndRanks(t *testing.T) {
	snap := crmSnapshot(time.Now())
	board := Leaderboard(snap, "cat1")

	require.Len(t, board, 2)
	assert.Equal(t, "A", board[0].BrandName)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "B", board[1].BrandName)
	assert.Equal(t, 2, board[1].Rank)
}

func TestLeaderboard_TieBreaks(t *testing.T) {
	now := time.Now()
	// Three brands all at 100%, equal mentions: name ascending decides.
	snap := &models.Snapshot{
		Brands: []models.Brand{
			{ID: "b3", CategoryID: "cat1", Name: "Zeta"},
			{ID: "b1", CategoryID: "cat1", Name: "Alpha"},
			{ID: "b2", CategoryID: "cat1", Name: "Mid"},
		},
		Prompts: []models.Prompt{{ID: "p1", CategoryID: "cat1"}},
		Responses: []models.Response{
			completedResponse("r1", "p1", models.PlatformChatGPT, []string{"Zeta", "Alpha", "Mid"}, now),
		},
	}

	board := Leaderboard(snap, "cat1")
	require.Len(t, board, 3)
	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"},
		[]string{board[0].BrandName, board[1].BrandName, board[2].BrandName})
}

func TestLeaderboard_TieBrokenByMentions(t *testing.T) {
	now := time.Now()
	// Both brands at 50%, but Beta was mentioned across platforms more.
	snap := &models.Snapshot{
		Brands: []models.Brand{
			{ID: "b1", CategoryID: "cat1", Name: "Alpha"},
			{ID: "b2", CategoryID: "cat1", Name: "Beta"},
		},
		Prompts: []models.Prompt{{ID: "p1", CategoryID: "cat1"}},
		Responses: []models.Response{
			completedResponse("r1", "p1", models.PlatformChatGPT, []string{"Alpha", "Beta"}, now),
			completedResponse("r2", "p1", models.PlatformChatGPT, nil, now),
		},
	}

	board := Leaderboard(snap, "cat1")
	require.Len(t, board, 2)
	assert.Equal(t, board[0].Score, board[1].Score)
	assert.Equal(t, "Alpha", board[0].BrandName, "equal score and mentions fall back to name order")
}

func TestLeaderboard_IncludesZeroBrands(t *testing.T) {
	snap := crmSnapshot(time.Now())
	snap.Brands = append(snap.Brands, models.Brand{ID: "b3", CategoryID: "cat1", Name: "Never Mentioned"})

	board := Leaderboard(snap, "cat1")
	require.Len(t, board, 3)
	assert.Equal(t, "Never Mentioned", board[2].BrandName)
	assert.Equal(t, 0.0, board[2].Score)
}

func TestTopN(t *testing.T) {
	snap := crmSnapshot(time.Now())
	top := TopN(snap, "cat1", 1)
	require.Len(t, top, 1)
	assert.Equal(t, "A", top[0].BrandName)
}

func TestCategorySummaries_ResponseCounts(t *testing.T) {
	now := time.Now()
	snap := crmSnapshot(now)
	snap.Responses = append(snap.Responses,
		completedResponse("r3", "p1", models.PlatformGemini, []string{"B"}, now))

	summaries := CategorySummaries(snap, 3)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].BrandCount)
	assert.Equal(t, 3, summaries[0].TotalResponses)
	assert.Equal(t, 2, summaries[0].ResponseCounts["chatgpt"])
	assert.Equal(t, 1, summaries[0].ResponseCounts["gemini"])
	require.Len(t, summaries[0].TopBrands, 2)
	assert.Equal(t, "A", summaries[0].TopBrands[0].BrandName)
}

func TestCategorySummaries_EmptyCategory(t *testing.T) {
	snap := &models.Snapshot{
		Categories: []models.Category{{ID: "empty", Name: "Nothing Tracked"}},
	}
	summaries := CategorySummaries(snap, 3)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].BrandCount)
	assert.Empty(t, summaries[0].TopBrands)
}

func TestDailySeries(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	snap := crmSnapshot(now)
	snap.Responses = append(snap.Responses,
		completedResponse("r3", "p1", models.PlatformChatGPT, nil, yesterday))

	series := DailySeries(snap, snap.Brands[0], 30, now)
	require.Len(t, series, 30)

	last := series[29]
	assert.Equal(t, "2026-08-28", last.Date)
	assert.Equal(t, 100.00, last.Score)
	assert.Equal(t, 2, last.Responses)

	prev := series[28]
	assert.Equal(t, "2026-08-27", prev.Date)
	assert.Equal(t, 0.0, prev.Score)
	assert.Equal(t, 1, prev.Responses)

	first := series[0]
	assert.Equal(t, 0, first.Responses, "days without activity are zero rows, not gaps")
}

func TestRounding(t *testing.T) {
	now := time.Now()
	snap := &models.Snapshot{
		Brands:  []models.Brand{{ID: "b1", CategoryID: "cat1", Name: "A"}},
		Prompts: []models.Prompt{{ID: "p1", CategoryID: "cat1"}},
		Responses: []models.Response{
			completedResponse("r1", "p1", models.PlatformChatGPT, []string{"A"}, now),
			completedResponse("r2", "p1", models.PlatformChatGPT, nil, now),
			completedResponse("r3", "p1", models.PlatformChatGPT, nil, now),
		},
	}

	score := CombinedVisibility(snap, snap.Brands[0])
	assert.Equal(t, 33.33, score.Score)
}
