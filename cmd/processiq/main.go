package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"

	"github.com/neomorfeo/processiq/internal/adapter/auth"
	"github.com/neomorfeo/processiq/internal/adapter/fsm"
	otelAdapter "github.com/neomorfeo/processiq/internal/adapter/otel"
	promAdapter "github.com/neomorfeo/processiq/internal/adapter/prometheus"
	riverAdapter "github.com/neomorfeo/processiq/internal/adapter/river"
	"github.com/neomorfeo/processiq/internal/adapter/sqlite"
	"github.com/neomorfeo/processiq/internal/app"
	"github.com/neomorfeo/processiq/internal/config"

	handler "github.com/neomorfeo/processiq/internal/adapter/http"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processiq",
		Short: "Back-office process lifecycle and SLA engine",
		Long: `processiq tracks billing and quota transfers through configurable
phases, computes SLA deadlines and attributes elapsed time to the
administradora, the corretora and the cliente when a process closes.

Configuration is read from the environment (PORT, DATABASE_PATH,
PROCESSIQ_AUTH_SECRET, PROCESSIQ_TIMEZONE, PROCESSIQ_CATALOG_SEED,
LOG_LEVEL and the OTEL_* variables).`,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return run()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the notification worker (default)",
			RunE: func(*cobra.Command, []string) error {
				return run()
			},
		},
		tokenCmd(),
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context())
			},
		},
	)

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.RequireAuthSecret(); err != nil {
				return err
			}
			authn, err := auth.New(cfg.AuthSecret)
			if err != nil {
				return err
			}
			token, err := authn.IssueToken(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Actor recorded on events and processes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func migrate(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	return riverAdapter.Migrate(ctx, store.DB())
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := cfg.RequireAuthSecret(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := otelAdapter.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	metrics := promAdapter.NewRecorder()

	// --- Adapters (out) ---
	db, err := otelAdapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	riverClient, err := riverAdapter.Setup(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error("river stop", "error", err)
		}
	}()

	repo := otelAdapter.NewTracingRepository(store)
	catalog := otelAdapter.NewTracingCatalog(store)
	publisher := otelAdapter.NewTracingPublisher(riverAdapter.NewPublisher(riverClient))

	// --- Application ---
	processes := app.NewProcessService(repo, catalog, publisher, fsm.New(),
		app.WithLocation(cfg.Location),
		app.WithMetrics(metrics),
		app.WithLogger(logger),
	)
	phases := app.NewCatalogService(catalog)

	if cfg.CatalogSeed != "" {
		seeds, err := config.LoadCatalogSeed(cfg.CatalogSeed)
		if err != nil {
			return err
		}
		created, err := phases.Seed(ctx, seeds)
		if err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		logger.Info("catalog seeded", "path", cfg.CatalogSeed, "created", created)
	}

	authn, err := auth.New(cfg.AuthSecret)
	if err != nil {
		return err
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(cfg.Telemetry.ServiceName, otelchi.WithChiRoutes(router)))
	router.Use(authn.Middleware("/api/"))

	router.Handle("/metrics", metrics.Handler())

	api := humachi.New(router, huma.DefaultConfig("processiq", cfg.Telemetry.ServiceVersion))
	handler.Register(api, processes, phases)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("processiq listening", "port", cfg.Port, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("stopped")
	return nil
}
