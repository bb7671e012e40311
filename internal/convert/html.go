package convert

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/mpilhlt/docinator/internal/acquire"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// skippedElements never contribute text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "footer": true, "header": true, "aside": true,
	"form": true, "svg": true, "iframe": true, "button": true, "menu": true,
}

// parseHTML narrows the page to its main content with readability and maps
// the remaining elements onto document blocks.
func parseHTML(data []byte, src acquire.Source) (*Document, error) {
	pageURL := &url.URL{Scheme: "file", Path: "/" + src.Name()}
	if src.IsRemote() {
		if u, err := url.Parse(src.URL); err == nil {
			pageURL = u
		}
	}

	content := string(data)
	title := ""
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		content = article.Content
		title = strings.TrimSpace(article.Title)
	}

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v", ErrUnsupportedFormat, err)
	}
	if title == "" {
		title = collapse(dom.Find("title").First().Text())
	}

	doc := &Document{Title: title}
	w := &htmlWalker{doc: doc}
	root := dom.Find("body")
	if root.Length() == 0 {
		root = dom.Selection
	}
	w.walk(root)
	w.flush()

	if title != "" && (len(doc.Blocks) == 0 || doc.Blocks[0].Kind != KindHeading) {
		doc.Blocks = append([]Block{{Kind: KindHeading, Level: 1, Text: collapse(title)}}, doc.Blocks...)
	}
	return doc, nil
}

type htmlWalker struct {
	doc    *Document
	inline strings.Builder
}

// flush emits the pending inline text as a paragraph.
func (w *htmlWalker) flush() {
	if txt := collapse(w.inline.String()); txt != "" {
		w.doc.Paragraph(txt)
	}
	w.inline.Reset()
}

func (w *htmlWalker) walk(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch name {
		case "#text":
			w.inline.WriteString(s.Text())
		case "#comment":
		case "br":
			w.inline.WriteByte(' ')
		case "h1", "h2", "h3", "h4", "h5", "h6":
			w.flush()
			w.doc.Heading(int(name[1]-'0'), s.Text())
		case "p":
			w.flush()
			w.doc.Paragraph(collapse(s.Text()))
		case "ul", "ol":
			w.flush()
			w.doc.NestedList(name == "ol", htmlItems(s))
		case "table":
			w.flush()
			w.doc.Table(tableRows(s))
		case "pre":
			w.flush()
			lang := ""
			if class, ok := s.Find("code").Attr("class"); ok {
				if fields := strings.Fields(class); len(fields) > 0 {
					lang = strings.TrimPrefix(fields[0], "language-")
				}
			}
			w.doc.Code(lang, s.Text())
		case "div", "section", "article", "main", "blockquote", "figure",
			"figcaption", "dl", "dd", "dt", "li", "center", "details", "summary":
			w.flush()
			w.walk(s)
			w.flush()
		default:
			if skippedElements[name] {
				return
			}
			// inline element: a, span, strong, em, code, ...
			w.inline.WriteString(s.Text())
		}
	})
}

// htmlItems keeps lists nested inside list entries as sub-lists.
func htmlItems(list *goquery.Selection) []Item {
	var items []Item
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		var it Item
		var sb strings.Builder
		li.Contents().Each(func(_ int, c *goquery.Selection) {
			switch name := goquery.NodeName(c); {
			case name == "ul" || name == "ol":
				if it.Sub == nil {
					it.Sub = &Block{Kind: KindList, Ordered: name == "ol"}
				}
				it.Sub.Items = append(it.Sub.Items, htmlItems(c)...)
			case name == "#comment" || skippedElements[name]:
			case name == "p" || name == "div" || name == "br":
				sb.WriteByte(' ')
				sb.WriteString(c.Text())
				sb.WriteByte(' ')
			default:
				sb.WriteString(c.Text())
			}
		})
		it.Text = sb.String()
		items = append(items, it)
	})
	return items
}

func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, cell.Text())
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	return rows
}
