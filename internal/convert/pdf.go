package convert

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	headingRatioH1  = 1.5
	headingRatioH2  = 1.2
	maxHeadingChars = 120
	paragraphGap    = 1.8

	// fractions of the font size
	baselineTolerance = 0.3
	wordGap           = 0.15
)

// pdfLine is one visual row of a page.
type pdfLine struct {
	text string
	size float64
	y    float64
}

// parsePDF extracts rows per page. Rows set in a noticeably larger font than
// the body text become headings, vertical gaps start new paragraphs.
func parsePDF(data []byte) (doc *Document, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: pdf: %v", ErrUnsupportedFormat, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %v", ErrUnsupportedFormat, err)
	}

	var pages [][]pdfLine
	var plain []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lines, err := pageLines(p)
		if err != nil || len(lines) == 0 {
			// row grouping failed, keep whatever plain text there is
			if txt, perr := p.GetPlainText(nil); perr == nil && strings.TrimSpace(txt) != "" {
				plain = append(plain, txt)
			}
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, lines)
	}

	doc = &Document{Title: strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())}
	body := bodyFontSize(pages)
	for _, lines := range pages {
		appendPDFPage(doc, lines, body)
	}
	for _, txt := range plain {
		doc.Paragraph(txt)
	}
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("%w: pdf contains no extractable text", ErrUnsupportedFormat)
	}
	return doc, nil
}

// pageLines groups the positioned glyphs of a page into rows by baseline.
// Glyphs keep content stream order within a row; rows run top to bottom.
func pageLines(p pdf.Page) (lines []pdfLine, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("pdf content: %v", r)
		}
	}()

	var rows []*glyphRow
	for _, t := range p.Content().Text {
		if t.S == "" || t.S == "\n" || t.S == "\r" {
			continue
		}
		row := findRow(rows, t)
		if row == nil {
			row = &glyphRow{y: t.Y}
			rows = append(rows, row)
		}
		row.add(t)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].y > rows[j].y
	})

	lines = make([]pdfLine, 0, len(rows))
	for _, row := range rows {
		text := collapse(row.sb.String())
		if text == "" {
			continue
		}
		lines = append(lines, pdfLine{text: text, size: row.size, y: row.y})
	}
	return lines, nil
}

type glyphRow struct {
	y    float64
	size float64
	sb   strings.Builder
	last *pdf.Text
}

func (r *glyphRow) add(t pdf.Text) {
	if r.last != nil && needsSpace(*r.last, t, strings.HasSuffix(r.sb.String(), " ")) {
		r.sb.WriteByte(' ')
	}
	r.sb.WriteString(t.S)
	if strings.TrimSpace(t.S) != "" {
		r.size = math.Max(r.size, math.Abs(t.FontSize))
	}
	r.last = &t
}

// findRow returns the row whose baseline is within baselineTolerance of the
// glyph's font size, preferring the most recently started row.
func findRow(rows []*glyphRow, t pdf.Text) *glyphRow {
	tol := baselineTolerance * math.Max(math.Abs(t.FontSize), 1)
	for i := len(rows) - 1; i >= 0; i-- {
		if math.Abs(rows[i].y-t.Y) <= tol {
			return rows[i]
		}
	}
	return nil
}

// needsSpace reports whether two consecutive glyphs of a row are visually
// apart. Fonts without a Widths array report zero width, so every glyph of a
// run shares its start position and only run boundaries show a gap.
func needsSpace(prev, next pdf.Text, written bool) bool {
	if written || strings.HasPrefix(next.S, " ") || prev.S == " " {
		return false
	}
	size := math.Max(math.Abs(prev.FontSize), 1)
	gap := next.X - (prev.X + prev.W)
	return gap > wordGap*size || gap < -size
}

// bodyFontSize is the font size covering the most characters.
func bodyFontSize(pages [][]pdfLine) float64 {
	counts := map[float64]int{}
	for _, lines := range pages {
		for _, l := range lines {
			counts[math.Round(l.size*2)/2] += len(l.text)
		}
	}
	best, bestCount := 0.0, -1
	for size, n := range counts {
		if n > bestCount || (n == bestCount && size < best) {
			best, bestCount = size, n
		}
	}
	return best
}

func appendPDFPage(doc *Document, lines []pdfLine, body float64) {
	var para []string
	flush := func() {
		if len(para) > 0 {
			doc.Paragraph(joinPDFLines(para))
			para = nil
		}
	}

	for i, l := range lines {
		if level := headingLevel(l, body); level > 0 {
			flush()
			doc.Heading(level, l.text)
			continue
		}
		if i > 0 && body > 0 && lines[i-1].y-l.y > paragraphGap*body {
			flush()
		}
		para = append(para, l.text)
	}
	flush()
}

func headingLevel(l pdfLine, body float64) int {
	if body <= 0 || len(l.text) > maxHeadingChars {
		return 0
	}
	switch {
	case l.size >= body*headingRatioH1:
		return 1
	case l.size >= body*headingRatioH2:
		return 2
	}
	return 0
}

// joinPDFLines glues wrapped lines back together, undoing hyphenation.
func joinPDFLines(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i == 0 {
			sb.WriteString(l)
			continue
		}
		cur := sb.String()
		first := []rune(l)[0]
		if strings.HasSuffix(cur, "-") && unicode.IsLower(first) {
			sb.Reset()
			sb.WriteString(strings.TrimSuffix(cur, "-"))
			sb.WriteString(l)
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(l)
	}
	return sb.String()
}
