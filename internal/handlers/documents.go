package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpilhlt/docinator/internal/acquire"
	"github.com/mpilhlt/docinator/internal/auth"
	"github.com/mpilhlt/docinator/internal/logging"
	"github.com/mpilhlt/docinator/internal/models"
	"github.com/mpilhlt/docinator/internal/pipeline"

	huma "github.com/danielgtaylor/huma/v2"
)

const (
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
	uploadReadTimeout = 5 * time.Minute
)

type documentHandlers struct {
	log *slog.Logger
}

func (h documentHandlers) postDocURLFunc(ctx context.Context, input *models.DocURLRequest) (*models.DocResponse, error) {
	runner, err := GetRunner(ctx)
	if err != nil {
		return nil, err
	}

	src, err := acquire.FromURL(input.SourceURL)
	if err != nil {
		return nil, statusError(err)
	}
	return h.run(ctx, runner, src, input.PostProcessing)
}

func (h documentHandlers) postDocUploadFunc(ctx context.Context, input *models.DocUploadRequest) (*models.DocResponse, error) {
	runner, err := GetRunner(ctx)
	if err != nil {
		return nil, err
	}
	store, err := GetStore(ctx)
	if err != nil {
		return nil, err
	}

	file := input.RawBody.Data().File
	defer file.Close()

	upload, err := store.Save(ctx, file, file.Filename, file.ContentType)
	if err != nil {
		h.log.WarnContext(ctx, "Unable to store upload",
			slog.String("filename", file.Filename),
			slog.Any("err", err))
		return nil, statusError(err)
	}
	defer func() {
		if err := upload.Release(); err != nil {
			h.log.WarnContext(ctx, "Unable to remove upload", slog.Any("err", err))
		}
	}()

	return h.run(ctx, runner, upload.Source(), input.PostProcessing)
}

func (h documentHandlers) run(ctx context.Context, runner Runner, src acquire.Source, flags models.PostProcessing) (*models.DocResponse, error) {
	out, err := runner.Run(ctx, src, pipeline.Request{Summary: flags.LLMSummary, Facts: flags.LLMFacts})
	if err != nil {
		h.log.WarnContext(ctx, "Document request failed",
			slog.String("source", src.String()),
			slog.Any("err", err))
		return nil, statusError(err)
	}
	return &models.DocResponse{RequestID: logging.RequestID(ctx), Body: out}, nil
}

// RegisterDocumentRoutes registers the doc_url and doc_upload operations
func RegisterDocumentRoutes(api huma.API, cfg Config) error {
	if cfg.Runner == nil {
		return ErrRunnerNotFound
	}
	if cfg.Store == nil {
		return ErrStoreNotFound
	}
	h := documentHandlers{log: cfg.Logger}
	if h.log == nil {
		h.log = slog.Default()
	}

	postDocURLOp := huma.Operation{
		OperationID: "postDocURL",
		Method:      http.MethodPost,
		Path:        "/doc_url",
		Summary:     "Parse a document from a URL and output Markdown",
		Description: "Takes a URL to a document as input, and optionally allows LLM summarization or fact extraction",
		Tags:        []string{"documents"},
		Security:    auth.Security,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnsupportedMediaType, http.StatusBadGateway, http.StatusGatewayTimeout},
	}
	postDocUploadOp := huma.Operation{
		OperationID:     "postDocUpload",
		Method:          http.MethodPost,
		Path:            "/doc_upload",
		Summary:         "Parse a document from a file upload and output Markdown",
		Description:     "Takes a document file as input and outputs Markdown. Optionally allows LLM summarization or fact extraction",
		Tags:            []string{"documents"},
		Security:        auth.Security,
		MaxBodyBytes:    cfg.MaxUploadBytes + multipartOverhead,
		BodyReadTimeout: uploadReadTimeout,
		Middlewares:     huma.Middlewares{limitUpload(api, cfg.MaxUploadBytes+multipartOverhead, uploadReadTimeout, h.log)},
		Errors:          []int{http.StatusUnauthorized, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType, http.StatusBadGateway, http.StatusGatewayTimeout},
	}

	huma.Register(api, postDocURLOp, addRunnerToContext(cfg.Runner, h.postDocURLFunc))
	huma.Register(api, postDocUploadOp, addStoreToContext(cfg.Store, addRunnerToContext(cfg.Runner, h.postDocUploadFunc)))
	return nil
}
