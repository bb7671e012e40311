package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpilhlt/docinator/internal/acquire"
	"github.com/mpilhlt/docinator/internal/convert"
	"github.com/mpilhlt/docinator/internal/llm"
	"github.com/mpilhlt/docinator/internal/logging"
	"github.com/mpilhlt/docinator/internal/pipeline"

	huma "github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

type contextKey string

// Context keys
const (
	RunnerKey = contextKey("runner")
	StoreKey  = contextKey("uploadStore")
)

// Error responses
var (
	ErrRunnerNotFound = errors.New("document pipeline not found in context")
	ErrStoreNotFound  = errors.New("upload store not found in context")
)

// RequestIDHeader is set on every response.
const RequestIDHeader = "X-Request-ID"

// Runner processes one document. *pipeline.Service implements it.
type Runner interface {
	Run(ctx context.Context, src acquire.Source, req pipeline.Request) (string, error)
}

// Config carries everything the routes need.
type Config struct {
	Runner         Runner
	Store          *acquire.Store
	MaxUploadBytes int64
	Health         HealthInfo
	Logger         *slog.Logger
}

// AddRoutes adds all the routes to the API
func AddRoutes(api huma.API, cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	err := RegisterDocumentRoutes(api, cfg)
	if err != nil {
		cfg.Logger.Error("Unable to register document routes", slog.Any("err", err))
		return err
	}
	RegisterHealthRoutes(api, cfg.Health)
	return nil
}

// Middleware to add the document pipeline to the context
func addRunnerToContext[I any, O any](runner Runner, next func(context.Context, *I) (*O, error)) func(context.Context, *I) (*O, error) {
	return func(ctx context.Context, input *I) (*O, error) {
		if runner == nil {
			return nil, fmt.Errorf("provided runner is nil")
		}
		ctx = context.WithValue(ctx, RunnerKey, runner)
		return next(ctx, input)
	}
}

// Middleware to add the upload store to the context
func addStoreToContext[I any, O any](store *acquire.Store, next func(context.Context, *I) (*O, error)) func(context.Context, *I) (*O, error) {
	return func(ctx context.Context, input *I) (*O, error) {
		if store == nil {
			return nil, fmt.Errorf("provided upload store is nil")
		}
		ctx = context.WithValue(ctx, StoreKey, store)
		return next(ctx, input)
	}
}

// Get the document pipeline from the context
// (exported helper function so that blackbox testing can access it)
func GetRunner(ctx context.Context) (Runner, error) {
	runner, ok := ctx.Value(RunnerKey).(Runner)
	if !ok {
		return nil, huma.NewError(http.StatusInternalServerError, ErrRunnerNotFound.Error())
	}
	return runner, nil
}

// Get the upload store from the context
// (exported helper function so that blackbox testing can access it)
func GetStore(ctx context.Context) (*acquire.Store, error) {
	store, ok := ctx.Value(StoreKey).(*acquire.Store)
	if !ok {
		return nil, huma.NewError(http.StatusInternalServerError, ErrStoreNotFound.Error())
	}
	return store, nil
}

// RequestID tags the request with an ID. A well-formed UUID sent by the
// client is kept, anything else is replaced by a fresh one.
func RequestID(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		id := ctx.Header(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		ctx.SetHeader(RequestIDHeader, id)
		next(huma.WithContext(ctx, logging.WithRequestID(ctx.Context(), id)))
	}
}

// AccessLog logs one line per handled operation.
func AccessLog(log *slog.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)
		status := ctx.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.Log(ctx.Context(), level, "Request handled",
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.URL().Path),
			slog.Int("status", status),
			slog.Int64("durationMs", time.Since(start).Milliseconds()))
	}
}

// statusError maps a pipeline error onto an HTTP problem response.
// Client mistakes become 4xx, failing collaborators 5xx.
func statusError(err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, acquire.ErrInvalidSource):
		return huma.Error400BadRequest(msg)
	case errors.Is(err, acquire.ErrTooLarge):
		return huma.NewError(http.StatusRequestEntityTooLarge, msg)
	case errors.Is(err, pipeline.ErrTimeout):
		return huma.Error504GatewayTimeout(msg)
	case errors.Is(err, convert.ErrUnsupportedFormat):
		return huma.Error415UnsupportedMediaType(msg)
	case errors.Is(err, convert.ErrConversion):
		return huma.Error502BadGateway(msg)
	case errors.Is(err, llm.ErrLLM):
		return huma.Error502BadGateway(msg)
	case errors.Is(err, acquire.ErrIO):
		return huma.Error500InternalServerError(msg)
	case errors.Is(err, context.Canceled):
		return huma.Error503ServiceUnavailable("request was cancelled")
	default:
		return huma.Error500InternalServerError("internal error while processing the document")
	}
}
