package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/docrag/api"
	"github.com/koopa0/docrag/internal/app"
	"github.com/koopa0/docrag/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Serve starts the JSON chat API. POST /api/chat takes {"message": ...} and
answers from the ingested documentation through the tool-calling agent.
Health probes are exposed at /health and /ready.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (overrides the configured one)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	if err := requireAPIKey(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.ServeAddr = serveAddr
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	srv, err := api.NewServer(api.ServerConfig{
		Answerer: a.NewAgent(),
		Pool:     a.Pool,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	if err := srv.Run(ctx, cfg.ServeAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}
