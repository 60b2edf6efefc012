package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenHTML_InlinesLinks(t *testing.T) {
	html := `<p>Try <a href="https://hubspot.com">HubSpot</a> for marketing.</p>`

	out := FlattenHTML(html)
	assert.Contains(t, out, "HubSpot (https://hubspot.com)")
}

func TestFlattenHTML_LinkWithoutHrefKeepsText(t *testing.T) {
	out := FlattenHTML(`<p>See <a>the docs</a> here.</p>`)

	assert.Contains(t, out, "the docs")
	assert.NotContains(t, out, "(")
}

func TestFlattenHTML_LineBreaks(t *testing.T) {
	out := FlattenHTML(`first line<br>second line`)

	assert.Equal(t, "first line\nsecond line", out)
}

func TestFlattenHTML_BlockElements(t *testing.T) {
	out := FlattenHTML(`<p>Salesforce leads the market.</p><p>HubSpot follows.</p>`)

	assert.Equal(t, "Salesforce leads the market.\n\nHubSpot follows.", out)
}

func TestFlattenHTML_ListItems(t *testing.T) {
	out := FlattenHTML(`<ul><li>HubSpot</li><li>Pipedrive</li></ul>`)

	assert.Contains(t, out, "HubSpot\n")
	assert.Contains(t, out, "Pipedrive")
}

func TestFlattenHTML_DropsScriptAndStyle(t *testing.T) {
	html := `<div><script>var x = 1;</script><style>.a{color:red}</style>visible</div>`

	out := FlattenHTML(html)
	assert.Equal(t, "visible", out)
}

func TestFlattenHTML_CollapsesNewlineRuns(t *testing.T) {
	out := FlattenHTML(`<div><div><p>top</p></div></div><p>bottom</p>`)

	assert.NotContains(t, out, "\n\n\n")
	assert.Contains(t, out, "top")
	assert.Contains(t, out, "bottom")
}

func TestFlattenHTML_PlainText(t *testing.T) {
	assert.Equal(t, "just words", FlattenHTML("just words"))
}

func TestFlattenHTML_Empty(t *testing.T) {
	assert.Equal(t, "", FlattenHTML(""))
}
