// Command flowctl-devserver serves an in-memory copy of the workflow platform
// API for local development and end-to-end tests of flowctl.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowctl/flowctl/internal/devserver"
)

type options struct {
	addr         string
	apiKey       string
	seed         string
	corsOrigins  []string
	strictGraphs bool
	production   bool
}

func main() {
	_ = godotenv.Load()

	opts := options{
		addr:   getenv("FLOWCTL_DEVSERVER_ADDR", "127.0.0.1:8787"),
		apiKey: os.Getenv("FLOWCTL_DEVSERVER_API_KEY"),
		seed:   os.Getenv("FLOWCTL_DEVSERVER_SEED"),
	}
	if v := os.Getenv("FLOWCTL_DEVSERVER_CORS_ORIGINS"); v != "" {
		opts.corsOrigins = strings.Split(v, ",")
	}
	cmd := &cobra.Command{
		Use:           "flowctl-devserver",
		Short:         "Serve an in-memory workflow platform API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "Listen address ($FLOWCTL_DEVSERVER_ADDR)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", opts.apiKey, "Require this X-API-Key ($FLOWCTL_DEVSERVER_API_KEY)")
	cmd.Flags().StringVar(&opts.seed, "seed", opts.seed, "JSON file of workflows to load at startup ($FLOWCTL_DEVSERVER_SEED)")
	cmd.Flags().StringSliceVar(&opts.corsOrigins, "cors-origin", opts.corsOrigins, "Allow browser requests from these origins ($FLOWCTL_DEVSERVER_CORS_ORIGINS)")
	cmd.Flags().BoolVar(&opts.strictGraphs, "strict-graphs", false, "Reject definitions that fail graph validation with 422")
	cmd.Flags().BoolVar(&opts.production, "production-logs", false, "Log JSON instead of the development console format")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	logger, err := newLogger(opts.production)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := devserver.NewMemoryStore()
	if opts.seed != "" {
		seeded, err := devserver.LoadSeed(ctx, store, opts.seed)
		if err != nil {
			return err
		}
		for _, wf := range seeded {
			logger.Info("Seeded workflow",
				zap.String("id", wf.ID),
				zap.String("name", wf.Name),
				zap.Int64("lock_version", int64(wf.LockVersion)),
			)
		}
	}

	srv := &http.Server{
		Addr: opts.addr,
		Handler: devserver.NewServer(store, devserver.Options{
			APIKey:       opts.apiKey,
			StrictGraphs: opts.strictGraphs,
			CORSOrigins:  opts.corsOrigins,
		}, logger).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", opts.addr),
			zap.Bool("api_key_required", opts.apiKey != ""),
			zap.Bool("strict_graphs", opts.strictGraphs),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", opts.addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
