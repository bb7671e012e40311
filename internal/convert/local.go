package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mpilhlt/docinator/internal/acquire"

	"github.com/gabriel-vasile/mimetype"
)

const (
	defaultMaxDocumentBytes = 64 << 20
	defaultUserAgent        = "Docinator/1.0 (+https://github.com/mpilhlt/docinator)"
)

// Format is the parser a document is dispatched to.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// LocalOptions configures the in-process backend.
type LocalOptions struct {
	HTTPClient *http.Client
	MaxBytes   int64
	UserAgent  string
	Logger     *slog.Logger
}

// Local converts documents in process. Remote sources are downloaded first.
type Local struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	log       *slog.Logger
}

func NewLocal(opts LocalOptions) *Local {
	l := &Local{
		client:    opts.HTTPClient,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
	if l.client == nil {
		l.client = &http.Client{}
	}
	if l.maxBytes <= 0 {
		l.maxBytes = defaultMaxDocumentBytes
	}
	if l.userAgent == "" {
		l.userAgent = defaultUserAgent
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Convert implements Converter.
func (l *Local) Convert(ctx context.Context, src acquire.Source) (*Document, error) {
	data, declared, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}

	format, detected, err := DetectFormat(data, declared, src.Name())
	if err != nil {
		return nil, err
	}
	l.log.DebugContext(ctx, "Parsing document",
		"source", src.Name(),
		"format", format,
		"detectedType", detected,
		"declaredType", declared,
		"bytes", len(data))

	switch format {
	case FormatPDF:
		return parsePDF(data)
	case FormatHTML:
		return parseHTML(data, src)
	case FormatMarkdown:
		return ParseMarkdown(data), nil
	default:
		return parseText(data), nil
	}
}

// read returns the document bytes and the declared content type.
func (l *Local) read(ctx context.Context, src acquire.Source) ([]byte, string, error) {
	if !src.IsRemote() {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, "", fmt.Errorf("%w: open %s: %v", ErrConversion, src.Name(), err)
		}
		defer f.Close()
		data, err := readLimited(f, l.maxBytes)
		if err != nil {
			return nil, "", err
		}
		return data, src.ContentType, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", ErrConversion, err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetch %s: %w", ErrConversion, src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: fetch %s: HTTP %d", ErrConversion, src.URL, resp.StatusCode)
	}
	data, err := readLimited(resp.Body, l.maxBytes)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %w", ErrConversion, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: document is larger than %d bytes", ErrUnsupportedFormat, maxBytes)
	}
	return data, nil
}

// DetectFormat picks a parser from the content, falling back on the
// declared content type and the file extension for text formats.
func DetectFormat(data []byte, declared, name string) (Format, string, error) {
	detected := mimetype.Detect(data)
	declaredType, _, _ := mime.ParseMediaType(declared)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case detected.Is("application/pdf"):
		return FormatPDF, detected.String(), nil
	case detected.Is("text/html"), declaredType == "text/html", ext == ".html" || ext == ".htm":
		if isText(detected) {
			return FormatHTML, detected.String(), nil
		}
	}

	if !isText(detected) {
		return "", detected.String(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected.String())
	}
	switch {
	case declaredType == "text/markdown", declaredType == "text/x-markdown",
		ext == ".md", ext == ".markdown":
		return FormatMarkdown, detected.String(), nil
	}
	return FormatText, detected.String(), nil
}

// isText is true for text/plain and everything derived from it.
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
