package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpilhlt/docinator/internal/acquire"
	"github.com/mpilhlt/docinator/internal/auth"
	"github.com/mpilhlt/docinator/internal/config"
	"github.com/mpilhlt/docinator/internal/convert"
	"github.com/mpilhlt/docinator/internal/handlers"
	"github.com/mpilhlt/docinator/internal/llm"
	"github.com/mpilhlt/docinator/internal/models"
	"github.com/mpilhlt/docinator/internal/pipeline"

	huma "github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
)

const (
	version           = "1.0"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// app holds the wired service for one server run.
type app struct {
	server  *http.Server
	janitor *acquire.Janitor
	stop    context.CancelFunc
	log     *slog.Logger
}

// newApp loads the LLM configuration and wires all components. Any error
// is fatal for the process.
func newApp(options *models.Options, log *slog.Logger) (*app, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	llmConfig, err := config.Load(options.LLMConfig)
	if err != nil {
		return nil, err
	}
	log.Info("LLM configuration loaded", slog.Any("llm", llmConfig))

	backend, err := newBackend(options, log)
	if err != nil {
		return nil, err
	}
	client, err := llm.New(llmConfig, llm.WithTimeout(options.LLMTimeoutDuration()), llm.WithLogger(log))
	if err != nil {
		return nil, err
	}
	svc := pipeline.New(
		convert.NewAdapter(backend, options.ConvertTimeoutDuration(), log),
		client,
		pipeline.Options{MaxConcurrent: int64(options.MaxConcurrent), Logger: log},
	)

	store, err := acquire.NewStore(options.UploadDir, options.MaxUploadBytes(), log)
	if err != nil {
		return nil, err
	}
	ctx, stop := context.WithCancel(context.Background())
	janitor, err := acquire.NewJanitor(ctx, store, options.SweepSchedule, options.UploadMaxAgeDuration(), log)
	if err != nil {
		stop()
		return nil, err
	}

	router := http.NewServeMux()
	api := newAPI(router, options, log)
	err = handlers.AddRoutes(api, handlers.Config{
		Runner:         svc,
		Store:          store,
		MaxUploadBytes: options.MaxUploadBytes(),
		Health:         handlers.HealthInfo{Converter: options.Converter, Model: llmConfig.Model, Version: version},
		Logger:         log,
	})
	if err != nil {
		stop()
		return nil, fmt.Errorf("unable to add routes: %w", err)
	}

	return &app{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", options.Host, options.Port),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		janitor: janitor,
		stop:    stop,
		log:     log,
	}, nil
}

// newAPI creates the huma API with the middleware chain.
func newAPI(router *http.ServeMux, options *models.Options, log *slog.Logger) huma.API {
	cfg := huma.DefaultConfig("Docinator", version)
	cfg.Info.Description = "Feed me documents and I'll give you Markdown"
	cfg.Info.License = &huma.License{Name: "MIT License", URL: "https://opensource.org/license/mit/"}
	cfg.Components.SecuritySchemes = auth.Config

	api := humago.New(router, cfg)
	api.UseMiddleware(auth.CORSMiddleware(api))
	api.UseMiddleware(handlers.RequestID(api))
	api.UseMiddleware(handlers.AccessLog(log))
	api.UseMiddleware(auth.ServiceKeyAuth(api, options))
	api.UseMiddleware(auth.AuthTermination(api, log))
	return api
}

func newBackend(options *models.Options, log *slog.Logger) (convert.Converter, error) {
	switch options.Converter {
	case models.ConverterDocling:
		return convert.NewDocling(convert.DoclingOptions{
			BaseURL: options.DoclingURL,
			APIKey:  options.DoclingKey,
			Logger:  log,
		})
	default:
		return convert.NewLocal(convert.LocalOptions{
			MaxBytes: options.MaxUploadBytes(),
			Logger:   log,
		}), nil
	}
}

// serve blocks until the server is shut down.
func (a *app) serve() error {
	a.janitor.Start()
	a.log.Info("Starting API server", slog.String("addr", a.server.Addr))
	err := a.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.log.Info("API server stopped", slog.String("addr", a.server.Addr))
	return nil
}

// shutdown waits for running requests, then stops the upload janitor.
func (a *app) shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.janitor.Stop()
	a.stop()
	return err
}
