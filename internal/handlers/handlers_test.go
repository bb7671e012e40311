package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/mpilhlt/docinator/internal/acquire"
	"github.com/mpilhlt/docinator/internal/auth"
	"github.com/mpilhlt/docinator/internal/handlers"
	"github.com/mpilhlt/docinator/internal/llm"
	"github.com/mpilhlt/docinator/internal/models"
	"github.com/mpilhlt/docinator/internal/pipeline"

	huma "github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	sampleURL  = "https://example.com/sample.pdf"
	sampleText = "# Title\n\nBody text."
)

// --- Helper functions and types ---

// MockConverter is a mock implementation of pipeline.Converter.
type MockConverter struct{ mock.Mock }

func (m *MockConverter) Convert(ctx context.Context, src acquire.Source) (string, error) {
	args := m.Called(src)
	return args.String(0), args.Error(1)
}

// MockCompleter is a mock implementation of llm.Completer. A func(string)
// string return value is called with the prompt.
type MockCompleter struct{ mock.Mock }

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(prompt)
	if fn, ok := args.Get(0).(func(string) string); ok {
		return fn(prompt), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

var _ llm.Completer = (*MockCompleter)(nil)

type testEnv struct {
	api       humatest.TestAPI
	store     *acquire.Store
	converter pipeline.Converter
}

type envSettings struct {
	serviceKey string
	storeLimit int64
	maxUpload  int64
}

type envOption func(*envSettings)

func withServiceKey(key string) envOption {
	return func(s *envSettings) { s.serviceKey = key }
}

func withStoreLimit(n int64) envOption {
	return func(s *envSettings) { s.storeLimit = n }
}

func withMaxUpload(n int64) envOption {
	return func(s *envSettings) { s.maxUpload = n }
}

// startTestAPI sets up the API with the middleware chain used by the
// server and a real pipeline around the given collaborators.
func startTestAPI(t *testing.T, conv pipeline.Converter, comp llm.Completer, opts ...envOption) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	settings := envSettings{storeLimit: 1 << 20, maxUpload: 1 << 20}
	for _, opt := range opts {
		opt(&settings)
	}
	options := &models.Options{APIKey: settings.serviceKey}

	store, err := acquire.NewStore(t.TempDir(), settings.storeLimit, log)
	require.NoError(t, err)

	config := huma.DefaultConfig("Docinator", "1.0")
	config.Components.SecuritySchemes = auth.Config
	_, api := humatest.New(t, config)
	api.UseMiddleware(auth.CORSMiddleware(api))
	api.UseMiddleware(handlers.RequestID(api))
	api.UseMiddleware(auth.ServiceKeyAuth(api, options))
	api.UseMiddleware(auth.AuthTermination(api, log))

	err = handlers.AddRoutes(api, handlers.Config{
		Runner:         pipeline.New(conv, comp, pipeline.Options{MaxConcurrent: 4, Logger: log}),
		Store:          store,
		MaxUploadBytes: settings.maxUpload,
		Health:         handlers.HealthInfo{Converter: "local", Model: "test-model", Version: "1.0"},
		Logger:         log,
	})
	require.NoError(t, err)

	return &testEnv{api: api, store: store, converter: conv}
}

func docURLPath(source string, flags ...string) string {
	q := url.Values{}
	q.Set("source_url", source)
	for _, f := range flags {
		q.Set(f, "true")
	}
	return "/doc_url?" + q.Encode()
}

// multipartBody builds a form with a single "file" field.
func multipartBody(t *testing.T, field, filename, content string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return "Content-Type: " + mw.FormDataContentType(), &buf
}

// decodeString unmarshals a JSON string response body.
func decodeString(t *testing.T, body []byte) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(body, &s), "body: %s", body)
	return s
}

// leftoverUploads lists the upload files still in the store directory.
func leftoverUploads(t *testing.T, store *acquire.Store) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(store.Dir(), "docinator-upload-*"))
	require.NoError(t, err)
	return files
}

func fileContent(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
