package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)

// FlattenHTML renders a response fragment to plain text with links kept
// inline as "text (URL)", so citation URLs survive into the stored response.
// Block elements become line breaks. Unparseable input falls back to the raw
// string with tags stripped naively.
func FlattenHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(stripTags(html))
	}

	doc.Find("script, style").Remove()

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if ok && href != "" && text != "" {
			s.ReplaceWithHtml(text + " (" + href + ")")
		}
	})

	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})

	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return tagPattern.ReplaceAllString(html, " ")
}
