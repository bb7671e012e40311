package convert

import (
	"fmt"
	"strings"
)

// BlockKind enumerates the structural elements a Document is made of.
type BlockKind int

const (
	KindParagraph BlockKind = iota
	KindHeading
	KindList
	KindTable
	KindCode
)

// Block is one structural element. Which fields are used depends on Kind:
// Text for paragraphs, headings and code; Items for lists; Rows for tables
// (first row is the header).
type Block struct {
	Kind     BlockKind
	Level    int
	Text     string
	Items    []Item
	Ordered  bool
	Rows     [][]string
	Language string
}

// Item is one list entry. Sub is a nested list below the entry.
type Item struct {
	Text string
	Sub  *Block
}

// Document is the structured representation every backend produces.
//
// Rendered is Markdown exported by an external converter. When set it is
// returned by Markdown unchanged and Blocks only describe its structure.
type Document struct {
	Title    string
	Blocks   []Block
	Rendered string
}

func (d *Document) add(b Block) {
	switch b.Kind {
	case KindParagraph, KindHeading, KindCode:
		if strings.TrimSpace(b.Text) == "" {
			return
		}
	case KindList:
		if len(b.Items) == 0 {
			return
		}
	case KindTable:
		if len(b.Rows) == 0 {
			return
		}
	}
	d.Blocks = append(d.Blocks, b)
}

// Heading appends a heading, clamping the level to 1..6.
func (d *Document) Heading(level int, text string) {
	level = min(max(level, 1), 6)
	d.add(Block{Kind: KindHeading, Level: level, Text: collapse(text)})
}

// Paragraph appends a paragraph of text.
func (d *Document) Paragraph(text string) {
	d.add(Block{Kind: KindParagraph, Text: strings.TrimSpace(text)})
}

// List appends a flat bullet or numbered list.
func (d *Document) List(ordered bool, items []string) {
	flat := make([]Item, 0, len(items))
	for _, it := range items {
		flat = append(flat, Item{Text: it})
	}
	d.NestedList(ordered, flat)
}

// NestedList appends a list whose items may carry nested lists.
func (d *Document) NestedList(ordered bool, items []Item) {
	d.add(Block{Kind: KindList, Ordered: ordered, Items: cleanItems(items)})
}

// cleanItems collapses item text and drops entries left without content.
func cleanItems(items []Item) []Item {
	var clean []Item
	for _, it := range items {
		it.Text = collapse(it.Text)
		if it.Sub != nil {
			sub := *it.Sub
			sub.Items = cleanItems(sub.Items)
			it.Sub = &sub
			if len(sub.Items) == 0 {
				it.Sub = nil
			}
		}
		if it.Text == "" && it.Sub == nil {
			continue
		}
		clean = append(clean, it)
	}
	return clean
}

// Table appends a table; rows are padded to the widest row.
func (d *Document) Table(rows [][]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return
	}
	padded := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, width)
		for i := range r {
			row[i] = collapse(r[i])
		}
		padded = append(padded, row)
	}
	d.add(Block{Kind: KindTable, Rows: padded})
}

// Code appends a fenced code block.
func (d *Document) Code(language, text string) {
	d.add(Block{Kind: KindCode, Language: language, Text: strings.TrimRight(text, "\n")})
}

// Markdown renders the document. The output is deterministic and ends with
// a single newline unless the document is empty. A Rendered export is
// returned as is.
func (d *Document) Markdown() string {
	if d == nil {
		return ""
	}
	if d.Rendered != "" {
		return d.Rendered
	}
	if len(d.Blocks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		parts = append(parts, renderBlock(b))
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func renderBlock(b Block) string {
	var sb strings.Builder
	switch b.Kind {
	case KindHeading:
		sb.WriteString(strings.Repeat("#", b.Level))
		sb.WriteByte(' ')
		sb.WriteString(b.Text)
	case KindList:
		writeList(&sb, b, "")
	case KindTable:
		for i, row := range b.Rows {
			if i > 0 {
				sb.WriteByte('\n')
			}
			writeRow(&sb, row)
			if i == 0 {
				sb.WriteByte('\n')
				sep := make([]string, len(row))
				for j := range sep {
					sep[j] = "---"
				}
				writeRow(&sb, sep)
			}
		}
	case KindCode:
		fence := "```"
		for strings.Contains(b.Text, fence) {
			fence += "`"
		}
		sb.WriteString(fence)
		sb.WriteString(b.Language)
		sb.WriteByte('\n')
		sb.WriteString(b.Text)
		sb.WriteByte('\n')
		sb.WriteString(fence)
	default:
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// writeList indents nested lists by the width of their parent's marker.
func writeList(sb *strings.Builder, b Block, indent string) {
	for i, it := range b.Items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		marker := "- "
		if b.Ordered {
			marker = fmt.Sprintf("%d. ", i+1)
		}
		sb.WriteString(indent)
		if it.Text == "" {
			sb.WriteString(strings.TrimRight(marker, " "))
		} else {
			sb.WriteString(marker)
			sb.WriteString(it.Text)
		}
		if it.Sub != nil && len(it.Sub.Items) > 0 {
			sb.WriteByte('\n')
			writeList(sb, *it.Sub, indent+strings.Repeat(" ", len(marker)))
		}
	}
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteByte(' ')
		sb.WriteString(escapePipes(c))
		sb.WriteString(" |")
	}
}

// escapePipes escapes cell pipes that are not escaped already.
func escapePipes(s string) string {
	if !strings.Contains(s, "|") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '|' && (i == 0 || s[i-1] != '\\') {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// collapse folds all whitespace runs (including newlines) into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
