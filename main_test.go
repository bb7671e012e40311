package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mpilhlt/docinator/internal/config"
	"github.com/mpilhlt/docinator/internal/crypto"
	"github.com/mpilhlt/docinator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) *models.Options {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_key":"sk-test","base_url":"http://localhost:1234/v1","model":"local-model"}`), 0o600))
	return &models.Options{
		Host:           "localhost",
		Port:           0,
		LLMConfig:      path,
		Converter:      models.ConverterLocal,
		UploadDir:      filepath.Join(dir, "uploads"),
		MaxUploadMB:    1,
		ConvertTimeout: 5,
		LLMTimeout:     5,
		MaxConcurrent:  2,
		SweepSchedule:  "@every 1h",
		UploadMaxAge:   60,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAppServesDocuments(t *testing.T) {
	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = io.WriteString(w, "# Title\n\nBody text.")
	}))
	defer docs.Close()

	a, err := newApp(testOptions(t), quietLogger())
	require.NoError(t, err)
	defer func() { _ = a.shutdown(context.Background()) }()

	srv := httptest.NewServer(a.server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/doc_url?source_url="+docs.URL+"/sample.md", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "# Title\n\nBody text.\n", body)
}

func TestNewAppFailsWithoutConfig(t *testing.T) {
	options := testOptions(t)
	options.LLMConfig = filepath.Join(t.TempDir(), "missing.json")

	_, err := newApp(options, quietLogger())
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestNewAppRejectsBadOptions(t *testing.T) {
	options := testOptions(t)
	options.Converter = "pandoc"
	_, err := newApp(options, quietLogger())
	assert.Error(t, err)

	options = testOptions(t)
	options.SweepSchedule = "every now and then"
	_, err = newApp(options, quietLogger())
	assert.Error(t, err)
}

func TestEncryptKeyCmd(t *testing.T) {
	t.Setenv(crypto.EnvKey, "passphrase")

	var out bytes.Buffer
	cmd := encryptKeyCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sk-secret"})
	require.NoError(t, cmd.Execute())

	sealed := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(sealed, "enc:"))

	plain, err := crypto.NewEncryptionKey("passphrase").DecryptFromBase64(strings.TrimPrefix(sealed, "enc:"))
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", plain)
}

func TestEncryptKeyCmdNeedsPassphrase(t *testing.T) {
	t.Setenv(crypto.EnvKey, "")

	cmd := encryptKeyCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"sk-secret"})
	assert.Error(t, cmd.Execute())
}
