// Package analytics derives visibility metrics from the response log. All
// functions are pure over a Snapshot: no I/O, no side effects, so the same
// formulas can be checked against fixtures and re-run on live data.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/brandpulse/backend/internal/storage/models"
)

// BrandScore is one brand's visibility on one platform, or across all
// platforms when Platform is empty.
type BrandScore struct {
	BrandID        string          `json:"brandId"`
	BrandName      string          `json:"brandName"`
	Platform       models.Platform `json:"platform,omitempty"`
	Score          float64         `json:"score"`
	Mentions       int             `json:"mentions"`
	TotalResponses int             `json:"totalResponses"`
}

// DailyPoint is one day of a visibility time series.
type DailyPoint struct {
	Date      string  `json:"date"`
	Score     float64 `json:"score"`
	Mentions  int     `json:"mentions"`
	Responses int     `json:"responses"`
}

// LeaderboardEntry is one row of a category leaderboard, ranked by combined
// visibility.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	BrandID    string  `json:"brandId"`
	BrandName  string  `json:"brandName"`
	LogoURL    *string `json:"logoUrl"`
	WebsiteURL *string `json:"websiteUrl"`
	Score      float64 `json:"score"`
	Mentions   int     `json:"mentions"`
}

// CategorySummary nests a category's top brands for the dashboard overview.
// ResponseCounts holds completed responses per platform.
type CategorySummary struct {
	CategoryID     string             `json:"categoryId"`
	CategoryName   string             `json:"categoryName"`
	Description    string             `json:"description"`
	BrandCount     int                `json:"brandCount"`
	TotalResponses int                `json:"totalResponses"`
	ResponseCounts map[string]int     `json:"responseCounts"`
	TopBrands      []LeaderboardEntry `json:"topBrands"`
}

// Visibility computes one brand's score on one platform. An empty platform
// means combined across platforms. A zero-response denominator yields a
// score of 0, never an error.
//
// Score = completed responses in the brand's category (on that platform)
// whose mention set contains the brand, as a percentage of all completed
// responses for that (category, platform), rounded to two decimals.
func Visibility(snap *models.Snapshot, brand models.Brand, platform models.Platform) BrandScore {
	mentions, total := countMentions(snap, brand, platform, time.Time{}, time.Time{})
	return BrandScore{
		BrandID:        brand.ID,
		BrandName:      brand.Name,
		Platform:       platform,
		Score:          ratio(mentions, total),
		Mentions:       mentions,
		TotalResponses: total,
	}
}

// CombinedVisibility is Visibility without the platform filter.
func CombinedVisibility(snap *models.Snapshot, brand models.Brand) BrandScore {
	return Visibility(snap, brand, "")
}

// PlatformBreakdown returns one score per known platform plus the combined
// score, zero-valued rows included.
func PlatformBreakdown(snap *models.Snapshot, brand models.Brand) []BrandScore {
	scores := make([]BrandScore, 0, len(models.AllPlatforms())+1)
	scores = append(scores, CombinedVisibility(snap, brand))
	for _, p := range models.AllPlatforms() {
		scores = append(scores, Visibility(snap, brand, p))
	}
	return scores
}

// DailySeries buckets the visibility ratio by completion date over a
// trailing window ending at now. Days without responses are zero-valued
// rows, not gaps.
func DailySeries(snap *models.Snapshot, brand models.Brand, days int, now time.Time) []DailyPoint {
	if days <= 0 {
		return nil
	}

	series := make([]DailyPoint, 0, days)
	today := now.UTC().Truncate(24 * time.Hour)
	for i := days - 1; i >= 0; i-- {
		dayStart := today.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		mentions, total := countMentions(snap, brand, "", dayStart, dayEnd)
		series = append(series, DailyPoint{
			Date:      dayStart.Format("2006-01-02"),
			Score:     ratio(mentions, total),
			Mentions:  mentions,
			Responses: total,
		})
	}
	return series
}

// Leaderboard ranks every brand in the category by combined visibility,
// descending. Ties break by higher mention count, then brand name ascending
// so ordering is deterministic. Brands with zero responses still appear.
func Leaderboard(snap *models.Snapshot, categoryID string) []LeaderboardEntry {
	var entries []LeaderboardEntry
	for _, b := range snap.Brands {
		if b.CategoryID != categoryID {
			continue
		}
		score := CombinedVisibility(snap, b)
		entries = append(entries, LeaderboardEntry{
			BrandID:    b.ID,
			BrandName:  b.Name,
			LogoURL:    b.LogoURL,
			WebsiteURL: b.WebsiteURL,
			Score:      score.Score,
			Mentions:   score.Mentions,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Mentions != entries[j].Mentions {
			return entries[i].Mentions > entries[j].Mentions
		}
		return entries[i].BrandName < entries[j].BrandName
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// TopN truncates the category leaderboard to n entries.
func TopN(snap *models.Snapshot, categoryID string, n int) []LeaderboardEntry {
	board := Leaderboard(snap, categoryID)
	if n >= 0 && len(board) > n {
		board = board[:n]
	}
	return board
}

// CategorySummaries returns every category with its top n brands embedded.
// Categories with no brands get an empty list, never an omitted row.
func CategorySummaries(snap *models.Snapshot, n int) []CategorySummary {
	summaries := make([]CategorySummary, 0, len(snap.Categories))
	for _, cat := range snap.Categories {
		top := TopN(snap, cat.ID, n)
		count := 0
		for _, b := range snap.Brands {
			if b.CategoryID == cat.ID {
				count++
			}
		}

		categoryPrompts := make(map[string]bool)
		for _, p := range snap.Prompts {
			if p.CategoryID == cat.ID {
				categoryPrompts[p.ID] = true
			}
		}
		byPlatform := make(map[string]int)
		total := 0
		for _, r := range snap.Responses {
			if r.Status != models.StatusCompleted || !categoryPrompts[r.PromptID] {
				continue
			}
			byPlatform[string(r.Platform)]++
			total++
		}

		summaries = append(summaries, CategorySummary{
			CategoryID:     cat.ID,
			CategoryName:   cat.Name,
			Description:    cat.Description,
			BrandCount:     count,
			TotalResponses: total,
			ResponseCounts: byPlatform,
			TopBrands:      top,
		})
	}
	return summaries
}

// countMentions walks the snapshot once: total completed responses for the
// brand's category (optionally one platform, optionally a completion-time
// window) and how many of them mention the brand. Malformed rows (missing
// completion time, unknown prompt) count as zero rather than erroring.
func countMentions(snap *models.Snapshot, brand models.Brand, platform models.Platform, from, to time.Time) (mentions, total int) {
	categoryPrompts := make(map[string]bool)
	for _, p := range snap.Prompts {
		if p.CategoryID == brand.CategoryID {
			categoryPrompts[p.ID] = true
		}
	}

	for _, r := range snap.Responses {
		if r.Status != models.StatusCompleted || !categoryPrompts[r.PromptID] {
			continue
		}
		if platform != "" && r.Platform != platform {
			continue
		}
		if !from.IsZero() {
			if r.CompletedAt == nil {
				continue
			}
			t := r.CompletedAt.UTC()
			if t.Before(from) || !t.Before(to) {
				continue
			}
		}

		total++
		for _, name := range r.BrandsMentioned {
			if name == brand.Name {
				mentions++
				break
			}
		}
	}
	return mentions, total
}

func ratio(mentions, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(mentions)/float64(total)*100*100) / 100
}
