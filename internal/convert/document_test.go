package convert

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentMarkdown(t *testing.T) {
	doc := &Document{}
	doc.Heading(1, "Title")
	doc.Paragraph("Body text.")
	doc.Heading(9, "  Deep   heading ")
	doc.List(false, []string{"one", " ", "two\nlines"})
	doc.List(true, []string{"first", "second"})
	doc.Table([][]string{{"Name", "Value"}, {"a|b"}, {"c", "3"}})
	doc.Code("go", "fmt.Println(1)\n")
	doc.Paragraph("   ")

	want := strings.Join([]string{
		"# Title",
		"Body text.",
		"###### Deep heading",
		"- one\n- two lines",
		"1. first\n2. second",
		"| Name | Value |\n| --- | --- |\n| a\\|b |  |\n| c | 3 |",
		"```go\nfmt.Println(1)\n```",
	}, "\n\n") + "\n"

	assert.Equal(t, want, doc.Markdown())
}

func TestDocumentMarkdownEmpty(t *testing.T) {
	var doc *Document
	assert.Equal(t, "", doc.Markdown())
	assert.Equal(t, "", (&Document{}).Markdown())
}

func TestCodeFenceEscalates(t *testing.T) {
	doc := &Document{}
	doc.Code("", "```\ninner\n```")
	assert.Equal(t, "````\n```\ninner\n```\n````\n", doc.Markdown())
}

func TestParseMarkdown(t *testing.T) {
	src := []byte(`# Title

Body text with *emphasis*
continued.

## Section

- alpha
- beta **bold**

1. one
2. two

| A | B |
|---|---|
| 1 | 2 |

> quoted paragraph

` + "```python\nprint('x')\n```\n")

	doc := ParseMarkdown(src)
	assert.Equal(t, "Title", doc.Title)

	want := strings.Join([]string{
		"# Title",
		"Body text with *emphasis*\ncontinued.",
		"## Section",
		"- alpha\n- beta **bold**",
		"1. one\n2. two",
		"| A | B |\n| --- | --- |\n| 1 | 2 |",
		"quoted paragraph",
		"```python\nprint('x')\n```",
	}, "\n\n") + "\n"
	assert.Equal(t, want, doc.Markdown())
}

func TestParseMarkdownRoundTripIsStable(t *testing.T) {
	md := ParseMarkdown([]byte("# Title\n\nBody text.")).Markdown()
	assert.Equal(t, "# Title\n\nBody text.\n", md)
	assert.Equal(t, md, ParseMarkdown([]byte(md)).Markdown())
}

func TestParseMarkdownKeepsStructure(t *testing.T) {
	src := "- parent\n  - child one\n  - child two\n- see [docs](https://x.io/d) and `code`\n\n" +
		"1. first\n   1. inner\n\n" +
		"| Name | Link |\n|---|---|\n| a\\|b | [x](https://x.io) |\n\n" +
		"Para with [link](https://x.io) and `code`.\n\n<!-- image -->\n\n![fig](a.png)\n"

	want := strings.Join([]string{
		"- parent\n  - child one\n  - child two\n- see [docs](https://x.io/d) and `code`",
		"1. first\n   1. inner",
		"| Name | Link |\n| --- | --- |\n| a\\|b | [x](https://x.io) |",
		"Para with [link](https://x.io) and `code`.",
		"<!-- image -->",
		"![fig](a.png)",
	}, "\n\n") + "\n"
	assert.Equal(t, want, ParseMarkdown([]byte(src)).Markdown())
}

func TestDocumentRendered(t *testing.T) {
	doc := &Document{Rendered: "raw export"}
	doc.Paragraph("ignored")
	assert.Equal(t, "raw export", doc.Markdown())
}

func TestNestedListDropsEmptyEntries(t *testing.T) {
	doc := &Document{}
	doc.NestedList(false, []Item{
		{Text: "top", Sub: &Block{Kind: KindList, Ordered: true, Items: []Item{{Text: " "}, {Text: "kept"}}}},
		{Text: "", Sub: &Block{Kind: KindList, Items: []Item{{Text: ""}}}},
		{Text: "", Sub: &Block{Kind: KindList, Items: []Item{{Text: "only child"}}}},
	})
	assert.Equal(t, "- top\n  1. kept\n-\n  - only child\n", doc.Markdown())
}

func TestParseText(t *testing.T) {
	doc := parseText([]byte("first paragraph\nsecond line\r\n\r\n  \n\nnext one\n"))
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "first paragraph\nsecond line", doc.Blocks[0].Text)
	assert.Equal(t, "next one", doc.Blocks[1].Text)
}

func TestHTMLWalker(t *testing.T) {
	html := `<html><body>
<nav>Skip me</nav>
<div>
  <h2>Heading <em>two</em></h2>
  <p>First   paragraph.</p>
  loose <a href="#">inline</a> text
  <ul><li>one <b>bold</b></li><li>two<ol><li>nested</li></ol></li></ul>
  <table>
    <thead><tr><th>K</th><th>V</th></tr></thead>
    <tbody><tr><td>x</td><td>1</td></tr></tbody>
  </table>
  <pre><code class="language-sh">ls -la</code></pre>
  <script>alert(1)</script>
</div>
</body></html>`
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	doc := &Document{}
	w := &htmlWalker{doc: doc}
	w.walk(dom.Find("body"))
	w.flush()

	want := strings.Join([]string{
		"## Heading two",
		"First paragraph.",
		"loose inline text",
		"- one bold\n- two\n  1. nested",
		"| K | V |\n| --- | --- |\n| x | 1 |",
		"```sh\nls -la\n```",
	}, "\n\n") + "\n"
	assert.Equal(t, want, doc.Markdown())
}

func TestJoinPDFLines(t *testing.T) {
	assert.Equal(t, "an example line", joinPDFLines([]string{"an exam-", "ple line"}))
	assert.Equal(t, "Jean- Paul", joinPDFLines([]string{"Jean-", "Paul"}))
	assert.Equal(t, "single", joinPDFLines([]string{"single"}))
}

func TestPDFHeadingDetection(t *testing.T) {
	pages := [][]pdfLine{{
		{text: "Big Title", size: 24, y: 800},
		{text: "Sub heading", size: 13, y: 770},
		{text: "body line one", size: 10, y: 750},
		{text: "body line two", size: 10, y: 738},
		{text: "after a gap", size: 10, y: 700},
	}}
	body := bodyFontSize(pages)
	assert.Equal(t, 10.0, body)

	doc := &Document{}
	appendPDFPage(doc, pages[0], body)
	assert.Equal(t, "# Big Title\n\n## Sub heading\n\nbody line one body line two\n\nafter a gap\n", doc.Markdown())
}
