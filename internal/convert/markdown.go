package convert

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// ParseMarkdown reads Markdown (CommonMark + GFM tables) into a Document.
// Inline markup is kept verbatim; nested lists stay nested.
func ParseMarkdown(src []byte) *Document {
	root := markdownParser.Parse(text.NewReader(src))
	doc := &Document{}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		markdownBlock(doc, n, src)
	}
	return doc
}

func markdownBlock(doc *Document, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		txt := linesText(node, src)
		if node.Level == 1 && doc.Title == "" {
			doc.Title = collapse(txt)
		}
		doc.Heading(node.Level, txt)
	case *ast.Paragraph, *ast.TextBlock:
		doc.Paragraph(linesText(node, src))
	case *ast.List:
		doc.NestedList(node.IsOrdered(), markdownItems(node, src))
	case *ast.FencedCodeBlock:
		doc.Code(string(node.Language(src)), rawLines(node, src))
	case *ast.CodeBlock:
		doc.Code("", rawLines(node, src))
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			markdownBlock(doc, c, src)
		}
	case *east.Table:
		var rows [][]string
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, linesText(cell, src))
			}
			rows = append(rows, cells)
		}
		doc.Table(rows)
	case *ast.HTMLBlock:
		html := rawLines(node, src)
		if node.HasClosure() {
			html += string(node.ClosureLine.Value(src))
		}
		doc.Paragraph(html)
	case *ast.ThematicBreak:
		doc.Paragraph("---")
	default:
		if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
			doc.Paragraph(linesText(n, src))
		}
	}
}

// linesText joins the source lines of a leaf block.
func linesText(n ast.Node, src []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(src)), " \t\r\n"))
	}
	return strings.Join(parts, "\n")
}

// rawLines keeps line endings, as needed for code blocks.
func rawLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

func markdownItems(list *ast.List, src []byte) []Item {
	var items []Item
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		var it Item
		var parts []string
		for c := li.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				it.Sub = &Block{Kind: KindList, Ordered: sub.IsOrdered(), Items: markdownItems(sub, src)}
				continue
			}
			parts = append(parts, blockText(c, src))
		}
		it.Text = strings.Join(parts, " ")
		items = append(items, it)
	}
	return items
}

// blockText is the source of a block on one line, inline markup included.
func blockText(n ast.Node, src []byte) string {
	if n.Type() != ast.TypeBlock {
		return ""
	}
	if n.Lines().Len() > 0 {
		return collapse(linesText(n, src))
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if txt := blockText(c, src); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// parseText treats blank-line separated chunks as paragraphs.
func parseText(data []byte) *Document {
	doc := &Document{}
	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, chunk := range blankLines.Split(normalized, -1) {
		doc.Paragraph(chunk)
	}
	return doc
}
