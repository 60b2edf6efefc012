// Package mentions detects brand names in natural-language platform output.
//
// Detection is pure and deterministic so stored responses can be re-scanned
// whenever the tracked brand list changes.
package mentions

import (
	"regexp"
	"strings"
)

// Sentinel returned by extraction when a platform produced nothing usable.
// Treated as empty text here.
const NoResponseSentinel = "No response extracted"

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
	camelRe      = regexp.MustCompile(`([a-z])([A-Z])`)
)

// Known aliases for tracked tools. Keyed by the lowercase canonical name.
var brandAliases = map[string][]string{
	"salesforce": {"sfdc", "sales force", "salesforce.com"},
	"hubspot":    {"hub spot", "hubspot crm"},
	"zoho crm":   {"zoho", "zohocrm"},
	"pipedrive":  {"pipe drive"},
	"freshsales": {"fresh sales", "freshworks crm"},
	"monday crm": {"monday.com crm"},
	"monday.com": {"monday", "mondaycom"},
	"sugarcrm":   {"sugar crm", "sugar"},
	"jira":       {"jira software", "atlassian jira"},
	"asana":      {"asana.com"},
	"trello":     {"trello.com"},
	"clickup":    {"click up", "clickup.com"},
	"notion":     {"notion.so"},
	"linear":     {"linear.app"},
	"basecamp":   {"base camp"},
	"smartsheet": {"smart sheet"},
	"wrike":      {"wrike.com"},
	"copper":     {"copper crm"},
	"close":      {"close crm", "close.com"},
	"insightly":  {"insightly crm"},
}

var brandSuffixes = []string{" crm", " software", ".com", ".io", " app"}

// Detect returns the subset of candidates textually present in text. Output
// order follows the candidate list, not text order, and duplicates in the
// candidate list collapse to one entry. Empty or sentinel text yields an
// empty result.
func Detect(text string, candidates []string) []string {
	if text == "" || text == NoResponseSentinel || len(candidates) == 0 {
		return nil
	}

	textLower := strings.ToLower(text)
	textNormalized := multiSpaceRe.ReplaceAllString(punctRe.ReplaceAllString(textLower, " "), " ")

	var mentioned []string
	seen := make(map[string]bool, len(candidates))
	for _, brand := range candidates {
		if brand == "" || seen[brand] {
			continue
		}
		if isMentioned(textLower, textNormalized, brand) {
			mentioned = append(mentioned, brand)
			seen[brand] = true
		}
	}
	return mentioned
}

// isMentioned tries several match strategies, cheapest first.
func isMentioned(textLower, textNormalized, brand string) bool {
	brandLower := strings.ToLower(brand)

	// Exact word-boundary match.
	if wordMatch(textLower, brandLower) {
		return true
	}

	// Space-collapsed match ("Hub Spot" in text matches "hubspot").
	noSpace := strings.ReplaceAll(brandLower, " ", "")
	if len(noSpace) > 3 && strings.Contains(strings.ReplaceAll(textNormalized, " ", ""), noSpace) {
		return true
	}

	// Flexible spacing between the brand's words.
	parts := strings.Fields(brandLower)
	if len(parts) > 1 {
		escaped := make([]string, len(parts))
		for i, p := range parts {
			escaped[i] = regexp.QuoteMeta(p)
		}
		re := regexp.MustCompile(`\b` + strings.Join(escaped, `\s*`) + `\b`)
		if re.MatchString(textLower) {
			return true
		}
	}

	// CamelCase split ("HubSpot" also matches "hub spot").
	camelSplit := strings.ToLower(camelRe.ReplaceAllString(brand, "$1 $2"))
	if camelSplit != brandLower {
		if wordMatch(textLower, camelSplit) {
			return true
		}
		if wordMatch(textNormalized, strings.ReplaceAll(camelSplit, " ", "")) {
			return true
		}
	}

	// Aliases and suffix-stripped variants.
	for _, v := range variations(brandLower) {
		if wordMatch(textLower, v) {
			return true
		}
	}

	return false
}

func wordMatch(text, needle string) bool {
	if needle == "" {
		return false
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(needle) + `\b`)
	return re.MatchString(text)
}

func variations(brandLower string) []string {
	var out []string
	out = append(out, brandAliases[brandLower]...)
	for _, suffix := range brandSuffixes {
		if strings.HasSuffix(brandLower, suffix) && len(brandLower) > len(suffix) {
			out = append(out, strings.TrimSuffix(brandLower, suffix))
		}
	}
	return out
}

// ContextSnippets returns up to limit windows of text around each occurrence
// of brand, used as a fallback mention context when extraction fails.
func ContextSnippets(text, brand string, window, limit int) []string {
	if text == "" || text == NoResponseSentinel || brand == "" {
		return nil
	}

	textLower := strings.ToLower(text)
	brandLower := strings.ToLower(brand)

	var snippets []string
	offset := 0
	for len(snippets) < limit {
		idx := strings.Index(textLower[offset:], brandLower)
		if idx < 0 {
			break
		}
		idx += offset

		start := idx - window
		if start < 0 {
			start = 0
		}
		end := idx + len(brand) + window
		if end > len(text) {
			end = len(text)
		}
		snippets = append(snippets, strings.TrimSpace(text[start:end]))
		offset = idx + len(brandLower)
	}
	return snippets
}
