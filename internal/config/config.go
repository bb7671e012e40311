package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mpilhlt/docinator/internal/crypto"

	"github.com/caarlos0/env/v11"
)

// ErrConfig is wrapped by every error returned from Load.
var ErrConfig = errors.New("invalid llm configuration")

// encryptedPrefix marks an api_key that has to be decrypted with ENCRYPTION_KEY.
const encryptedPrefix = "enc:"

// LLMConfig is the record describing the chat-completion endpoint.
// It is loaded once at startup and never modified afterwards.
type LLMConfig struct {
	APIKey  string `json:"api_key"  env:"API_KEY"`
	BaseURL string `json:"base_url" env:"BASE_URL"`
	Model   string `json:"model"    env:"MODEL"`
}

// Load reads the JSON record at path, applies LLM_* environment overrides,
// decrypts an "enc:" api_key and validates that all fields are present.
func Load(path string) (*LLMConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read %s: %v", ErrConfig, path, err)
	}
	var c LLMConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: unable to parse %s: %v", ErrConfig, path, err)
	}

	// Environment wins over the file, so the key can stay out of it
	if err := env.ParseWithOptions(&c, env.Options{Prefix: "LLM_"}); err != nil {
		return nil, fmt.Errorf("%w: unable to read environment: %v", ErrConfig, err)
	}

	if strings.HasPrefix(c.APIKey, encryptedPrefix) {
		key, err := crypto.GetEncryptionKeyFromEnv()
		if err != nil {
			return nil, fmt.Errorf("%w: api_key is encrypted: %v", ErrConfig, err)
		}
		plain, err := key.DecryptFromBase64(strings.TrimPrefix(c.APIKey, encryptedPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: unable to decrypt api_key: %v", ErrConfig, err)
		}
		c.APIKey = plain
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that no field is empty.
func (c *LLMConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	if strings.TrimSpace(c.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// EncryptAPIKey returns the "enc:" form of apiKey that Load understands.
func EncryptAPIKey(key *crypto.EncryptionKey, apiKey string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("api key is empty")
	}
	enc, err := key.EncryptToBase64(apiKey)
	if err != nil {
		return "", err
	}
	return encryptedPrefix + enc, nil
}

// String redacts the api key.
func (c LLMConfig) String() string {
	return fmt.Sprintf("{base_url:%s model:%s api_key:%s}", c.BaseURL, c.Model, redact(c.APIKey))
}

// LogValue keeps the key out of slog output as well.
func (c LLMConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", c.BaseURL),
		slog.String("model", c.Model),
		slog.String("api_key", redact(c.APIKey)),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}
