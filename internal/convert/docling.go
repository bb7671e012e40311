package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/mpilhlt/docinator/internal/acquire"
)

const (
	doclingSourcePath = "/v1/convert/source"
	doclingFilePath   = "/v1/convert/file"
	maxDoclingErrBody = 4 << 10
)

// DoclingOptions configures the docling-serve backend.
type DoclingOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Docling delegates conversion to a docling-serve instance. Its Markdown
// export is returned unchanged; the parsed blocks only feed logging.
type Docling struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

func NewDocling(opts DoclingOptions) (*Docling, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("docling base url is required")
	}
	d := &Docling{
		baseURL: base,
		apiKey:  opts.APIKey,
		client:  opts.HTTPClient,
		log:     opts.Logger,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d, nil
}

type doclingHTTPSource struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type doclingSourceRequest struct {
	Sources []doclingHTTPSource `json:"sources"`
	Options doclingOptions      `json:"options"`
}

type doclingOptions struct {
	ToFormats []string `json:"to_formats"`
}

type doclingResponse struct {
	Document struct {
		Filename  string `json:"filename"`
		MDContent string `json:"md_content"`
	} `json:"document"`
	Status string `json:"status"`
	Errors []struct {
		ComponentType string `json:"component_type"`
		ModuleName    string `json:"module_name"`
		ErrorMessage  string `json:"error_message"`
	} `json:"errors"`
	ProcessingTime float64 `json:"processing_time"`
}

// Convert implements Converter.
func (d *Docling) Convert(ctx context.Context, src acquire.Source) (*Document, error) {
	var (
		req *http.Request
		err error
	)
	if src.IsRemote() {
		req, err = d.sourceRequest(ctx, src)
	} else {
		req, err = d.fileRequest(ctx, src)
	}
	if err != nil {
		return nil, err
	}
	if d.apiKey != "" {
		req.Header.Set("X-Api-Key", d.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: docling: %w", ErrConversion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDoclingErrBody))
		cause := ErrConversion
		if resp.StatusCode == http.StatusUnsupportedMediaType || resp.StatusCode == http.StatusUnprocessableEntity {
			cause = ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("%w: docling: HTTP %d: %s", cause, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out doclingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: docling: decode response: %v", ErrConversion, err)
	}
	if out.Status != "success" && out.Status != "partial_success" {
		msg := out.Status
		if len(out.Errors) > 0 {
			msg = out.Errors[0].ErrorMessage
		}
		return nil, fmt.Errorf("%w: docling: %s", ErrConversion, msg)
	}
	if out.Status == "partial_success" {
		d.log.WarnContext(ctx, "Docling converted the document partially",
			"source", src.Name(),
			"errors", len(out.Errors))
	}

	d.log.DebugContext(ctx, "Docling conversion finished",
		"source", src.Name(),
		"processingSeconds", out.ProcessingTime)

	doc := ParseMarkdown([]byte(out.Document.MDContent))
	doc.Rendered = out.Document.MDContent
	return doc, nil
}

func (d *Docling) sourceRequest(ctx context.Context, src acquire.Source) (*http.Request, error) {
	body, err := json.Marshal(doclingSourceRequest{
		Sources: []doclingHTTPSource{{Kind: "http", URL: src.URL}},
		Options: doclingOptions{ToFormats: []string{"md"}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: docling: encode request: %v", ErrConversion, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+doclingSourcePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: docling: %v", ErrConversion, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// fileRequest streams the upload as multipart without buffering it.
func (d *Docling) fileRequest(ctx context.Context, src acquire.Source) (*http.Request, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrConversion, src.Name(), err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		err := func() error {
			if err := mw.WriteField("to_formats", "md"); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("files", src.Name())
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+doclingFilePath, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%w: docling: %v", ErrConversion, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}
