package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mpilhlt/docinator/internal/acquire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a one-page PDF using the standard Helvetica font around
// the given content stream.
func buildPDF(t *testing.T, content string) []byte {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestParsePDF(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "text matrix positioning",
			content: `BT
/F1 24 Tf
1 0 0 1 72 720 Tm
(Big Heading) Tj
/F1 12 Tf
1 0 0 1 72 690 Tm
(Body line one.) Tj
1 0 0 1 72 676 Tm
(Body line two.) Tj
1 0 0 1 72 600 Tm
(Second paragraph after a big gap.) Tj
ET`,
			want: "# Big Heading\n\nBody line one. Body line two.\n\nSecond paragraph after a big gap.\n",
		},
		{
			name: "relative positioning",
			content: `BT
/F1 24 Tf
72 720 Td
(Big Heading) Tj
/F1 12 Tf
0 -30 Td
(Body line one of text here.) Tj
0 -14 Td
(Left part) Tj
150 0 Td
(right part.) Tj
ET`,
			want: "# Big Heading\n\nBody line one of text here. Left part right part.\n",
		},
		{
			name: "kerned runs",
			content: `BT
/F1 14 Tf
72 720 Td
(Section) Tj
/F1 10 Tf
0 -30 Td
[(Ke) 20 (rned words stay together in this body line.)] TJ
ET`,
			want: "## Section\n\nKerned words stay together in this body line.\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parsePDF(buildPDF(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Markdown())
		})
	}
}

func TestParsePDFLineMetrics(t *testing.T) {
	data := buildPDF(t, "BT\n/F1 24 Tf\n72 720 Td\n(Title) Tj\n/F1 12 Tf\n0 -40 Td\n(Body text runs longer than the title.) Tj\nET")
	doc, err := parsePDF(data)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, KindHeading, doc.Blocks[0].Kind)
	assert.Equal(t, 1, doc.Blocks[0].Level)
	assert.Equal(t, KindParagraph, doc.Blocks[1].Kind)
}

func TestParsePDFNoText(t *testing.T) {
	_, err := parsePDF(buildPDF(t, "0 0 m 100 100 l S"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLocalConvertPDFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	data := buildPDF(t, "BT\n/F1 24 Tf\n72 720 Td\n(Report) Tj\n/F1 12 Tf\n0 -30 Td\n(Quarterly numbers went up.) Tj\nET")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	l := NewLocal(LocalOptions{Logger: discardLogger()})
	doc, err := l.Convert(context.Background(), acquire.Source{Path: path, Filename: "report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\nQuarterly numbers went up.\n", doc.Markdown())
}
