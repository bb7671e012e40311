package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mpilhlt/docinator/internal/config"
	"github.com/mpilhlt/docinator/internal/crypto"
	"github.com/mpilhlt/docinator/internal/logging"
	"github.com/mpilhlt/docinator/internal/models"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Variables from .env never override the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("Failed to load .env file", slog.Any("err", err))
		os.Exit(1)
	}

	// Create a CLI app
	cli := humacli.New(func(hooks humacli.Hooks, options *models.Options) {
		log := logging.New(os.Stdout, options.Debug)
		slog.SetDefault(log)

		var running atomic.Pointer[app]

		hooks.OnStart(func() {
			log.Info("Starting Docinator",
				slog.String("host", options.Host),
				slog.Int("port", options.Port),
				slog.String("converter", options.Converter),
				slog.String("llmConfig", options.LLMConfig))

			a, err := newApp(options, log)
			if err != nil {
				log.Error("Unable to start", slog.Any("err", err))
				os.Exit(1)
			}
			running.Store(a)
			if err := a.serve(); err != nil {
				log.Error("Listen error", slog.Any("err", err))
				os.Exit(1)
			}
		})

		// Gracefully shutdown server
		hooks.OnStop(func() {
			a := running.Load()
			if a == nil {
				return
			}
			log.Info("Shutting down API server")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.shutdown(ctx); err != nil {
				log.Error("Shutdown error", slog.Any("err", err))
			}
			log.Info("Docinator stopped")
		})
	})

	cli.Root().AddCommand(encryptKeyCmd())

	// Run the CLI. When passed no commands, it starts the server.
	cli.Run()
}

// encryptKeyCmd prints the enc: form of an API key for the config file.
func encryptKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-key <api-key>",
		Short: "Encrypt an LLM API key with " + crypto.EnvKey,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GetEncryptionKeyFromEnv()
			if err != nil {
				return err
			}
			sealed, err := config.EncryptAPIKey(key, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return err
		},
	}
}
