package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_WordBoundary(t *testing.T) {
	text := "For small teams, HubSpot and Pipedrive are solid choices."
	got := Detect(text, []string{"HubSpot", "Salesforce", "Pipedrive"})
	assert.Equal(t, []string{"HubSpot", "Pipedrive"}, got)
}

func TestDetect_CaseInsensitive(t *testing.T) {
	got := Detect("SALESFORCE dominates the enterprise market.", []string{"Salesforce"})
	assert.Equal(t, []string{"Salesforce"}, got)
}

func TestDetect_PreservesCandidateOrder(t *testing.T) {
	text := "Trello is simpler than Asana, but Asana scales better than Trello."
	got := Detect(text, []string{"Asana", "Trello"})
	assert.Equal(t, []string{"Asana", "Trello"}, got, "output order follows the candidate list, not text order")
}

func TestDetect_Idempotent(t *testing.T) {
	text := "Notion and Linear both ship fast."
	candidates := []string{"Notion", "Linear", "Jira"}
	first := Detect(text, candidates)
	second := Detect(text, candidates)
	assert.Equal(t, first, second)
}

func TestDetect_SpaceCollapsed(t *testing.T) {
	got := Detect("Many teams pick Hub Spot for marketing.", []string{"HubSpot"})
	assert.Equal(t, []string{"HubSpot"}, got)
}

func TestDetect_FlexibleSpacing(t *testing.T) {
	got := Detect("ZohoCRM has a generous free tier.", []string{"Zoho CRM"})
	assert.Equal(t, []string{"Zoho CRM"}, got)
}

func TestDetect_CamelCaseSplit(t *testing.T) {
	got := Detect("click up keeps all tasks in one place", []string{"ClickUp"})
	assert.Equal(t, []string{"ClickUp"}, got)
}

func TestDetect_Aliases(t *testing.T) {
	got := Detect("SFDC remains the market leader.", []string{"Salesforce"})
	assert.Equal(t, []string{"Salesforce"}, got)
}

func TestDetect_SuffixVariants(t *testing.T) {
	got := Detect("Copper integrates tightly with Google Workspace.", []string{"Copper CRM"})
	assert.Equal(t, []string{"Copper CRM"}, got)
}

func TestDetect_NoFalsePositiveOnPartialWord(t *testing.T) {
	// "Mondays" must not count as a Monday.com mention.
	got := Detect("Mondays are rough", []string{"Monday.com"})
	assert.Empty(t, got)
}

func TestDetect_EmptyText(t *testing.T) {
	assert.Empty(t, Detect("", []string{"HubSpot"}))
}

func TestDetect_SentinelText(t *testing.T) {
	assert.Empty(t, Detect(NoResponseSentinel, []string{"HubSpot"}))
}

func TestDetect_EmptyCandidates(t *testing.T) {
	assert.Empty(t, Detect("HubSpot is great", nil))
}

func TestDetect_DuplicateCandidates(t *testing.T) {
	got := Detect("HubSpot is great", []string{"HubSpot", "HubSpot"})
	assert.Equal(t, []string{"HubSpot"}, got)
}

func TestContextSnippets(t *testing.T) {
	text := "Salesforce is the enterprise standard. Many startups still pick Salesforce for its ecosystem."
	snippets := ContextSnippets(text, "Salesforce", 20, 5)
	assert.Len(t, snippets, 2)
	for _, s := range snippets {
		assert.Contains(t, s, "Salesforce")
	}
}

func TestContextSnippets_Limit(t *testing.T) {
	text := "A A A A A"
	snippets := ContextSnippets(text, "A", 2, 3)
	assert.Len(t, snippets, 3)
}

func TestContextSnippets_NoMatch(t *testing.T) {
	assert.Empty(t, ContextSnippets("nothing relevant here", "HubSpot", 20, 5))
}
