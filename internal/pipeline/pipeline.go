// Package pipeline sequences conversion, prompt templating and the
// optional language-model call for one request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpilhlt/docinator/internal/acquire"
	"github.com/mpilhlt/docinator/internal/llm"
	"github.com/mpilhlt/docinator/internal/prompt"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when conversion or completion ran out of time.
var ErrTimeout = errors.New("processing timed out")

// DefaultMaxConcurrent limits simultaneous conversions when Options leaves
// it unset.
const DefaultMaxConcurrent = 4

// Converter produces the rendered text of a document source.
type Converter interface {
	Convert(ctx context.Context, src acquire.Source) (string, error)
}

// Request carries the post-processing flags of a call.
type Request struct {
	Summary bool
	Facts   bool
}

// Options configures a Service.
type Options struct {
	MaxConcurrent int64
	Logger        *slog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	converter Converter
	completer llm.Completer
	slots     *semaphore.Weighted
	log       *slog.Logger
}

func New(converter Converter, completer llm.Completer, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		converter: converter,
		completer: completer,
		slots:     semaphore.NewWeighted(opts.MaxConcurrent),
		log:       opts.Logger,
	}
}

// Run converts src and, depending on req, passes the text through the
// language model. The model is called at most once, and never when the
// conversion failed. Nothing is returned alongside an error.
func (s *Service) Run(ctx context.Context, src acquire.Source, req Request) (string, error) {
	text, err := s.convert(ctx, src)
	if err != nil {
		return "", timeout(err)
	}

	purpose, ok := prompt.Select(req.Summary, req.Facts)
	if !ok {
		return text, nil
	}
	if s.completer == nil {
		return "", fmt.Errorf("%w: no language model configured", llm.ErrLLM)
	}

	start := time.Now()
	out, err := s.completer.Complete(ctx, prompt.Render(text, purpose))
	if err != nil {
		s.log.WarnContext(ctx, "Language model request failed",
			"source", src.Name(),
			"purpose", purpose.String(),
			slog.Any("err", err))
		return "", timeout(err)
	}
	s.log.InfoContext(ctx, "Document post-processed",
		"source", src.Name(),
		"purpose", purpose.String(),
		"inputChars", len(text),
		"outputChars", len(out),
		"durationMs", time.Since(start).Milliseconds())
	return out, nil
}

// convert holds a concurrency slot for the duration of the conversion.
func (s *Service) convert(ctx context.Context, src acquire.Source) (string, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.slots.Release(1)

	start := time.Now()
	text, err := s.converter.Convert(ctx, src)
	if err != nil {
		s.log.WarnContext(ctx, "Conversion failed",
			"source", src.Name(),
			slog.Any("err", err))
		return "", err
	}
	s.log.InfoContext(ctx, "Document converted",
		"source", src.Name(),
		"chars", len(text),
		"durationMs", time.Since(start).Milliseconds())
	return text, nil
}

// timeout adds ErrTimeout to the chain of deadline errors.
func timeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
