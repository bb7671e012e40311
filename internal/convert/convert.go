// Package convert turns a document source into structured Markdown.
//
// Backends implement Converter and return a *Document; the Adapter runs a
// backend under a timeout and renders the result. Two backends exist: Local,
// which parses PDF, HTML, Markdown and plain text in process, and Docling,
// which delegates to an external docling-serve instance.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpilhlt/docinator/internal/acquire"
)

var (
	ErrConversion        = errors.New("document conversion failed")
	ErrUnsupportedFormat = errors.New("unsupported or corrupt document format")
)

const DefaultTimeout = 2 * time.Minute

// Converter is implemented by conversion backends.
type Converter interface {
	Convert(ctx context.Context, src acquire.Source) (*Document, error)
}

// Adapter runs a Converter and renders its output to Markdown.
type Adapter struct {
	backend Converter
	timeout time.Duration
	log     *slog.Logger
}

// NewAdapter wraps backend. timeout <= 0 selects DefaultTimeout.
func NewAdapter(backend Converter, timeout time.Duration, log *slog.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{backend: backend, timeout: timeout, log: log}
}

type converted struct {
	doc *Document
	err error
}

// Convert returns the rendered text of src. Every error wraps ErrConversion;
// an exceeded deadline additionally matches context.DeadlineExceeded.
// Convert returns when the deadline passes even if the backend does not
// watch its context; the backend result is then discarded.
func (a *Adapter) Convert(ctx context.Context, src acquire.Source) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan converted, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- converted{err: fmt.Errorf("%w: backend panic: %v", ErrConversion, r)}
			}
		}()
		doc, err := a.backend.Convert(ctx, src)
		done <- converted{doc: doc, err: err}
	}()

	var (
		doc *Document
		err error
	)
	select {
	case res := <-done:
		doc, err = res.doc, res.err
	case <-ctx.Done():
		err = ctx.Err()
		a.log.WarnContext(ctx, "Conversion abandoned",
			"source", src.Name(),
			slog.Any("err", err),
			"durationMs", time.Since(start).Milliseconds())
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%w)", err, ctxErr)
		}
		if !errors.Is(err, ErrConversion) {
			err = fmt.Errorf("%w: %w", ErrConversion, err)
		}
		return "", err
	}
	if doc == nil {
		return "", fmt.Errorf("%w: backend returned no document", ErrConversion)
	}

	md := doc.Markdown()
	a.log.DebugContext(ctx, "Document converted",
		"source", src.Name(),
		"title", doc.Title,
		"blocks", len(doc.Blocks),
		"chars", len(md),
		"durationMs", time.Since(start).Milliseconds())
	return md, nil
}
