package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"servingd/internal/config"
	"servingd/internal/httpapi"
	"servingd/internal/manager"
)

const shutdownTimeout = 30 * time.Second

// serveFlags override config values when set on the command line.
type serveFlags struct {
	addr          string
	host          string
	minPort       int
	maxPort       int
	ttl           int
	maxModels     int
	maxRetries    int
	sweepInterval int
	maxBatchSize  int
	resolver      string
	catalogPath   string
	sqlitePath    string
	trackingURI   string
	corsOrigins   string
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the serving daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, f, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log)
		},
	}
	bindServeFlags(cmd, f)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.addr, "addr", os.Getenv("SERVINGD_ADDR"), "HTTP listen address (default from config, or SERVINGD_ADDR)")
	fs.StringVar(&f.host, "host", "", "Host model processes bind to")
	fs.IntVar(&f.minPort, "min-port", 0, "Lowest port handed to model processes")
	fs.IntVar(&f.maxPort, "max-port", 0, "Highest port handed to model processes")
	fs.IntVar(&f.ttl, "ttl", 0, "Idle seconds before a model process is evicted")
	fs.IntVar(&f.maxModels, "max-concurrent-models", 0, "Maximum live model processes (0 = uncapped)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "Invocation attempts per prediction")
	fs.IntVar(&f.sweepInterval, "sweep-interval", 0, "Seconds between eviction sweeps")
	fs.IntVar(&f.maxBatchSize, "max-batch-size", 0, "Maximum rows per prediction (0 = unlimited)")
	fs.StringVar(&f.resolver, "resolver", "", "Artifact resolver: mlflow|catalog|sqlite")
	fs.StringVar(&f.catalogPath, "catalog", "", "Catalog file for the catalog resolver")
	fs.StringVar(&f.sqlitePath, "sqlite", "", "Database file for the sqlite resolver")
	fs.StringVar(&f.trackingURI, "mlflow-tracking-uri", os.Getenv("MLFLOW_TRACKING_URI"), "MLflow tracking server URI")
	fs.StringVar(&f.corsOrigins, "cors-origins", os.Getenv("SERVINGD_CORS_ORIGINS"), "Comma separated CORS origins; enables CORS")
}

// applyServeFlags copies explicitly set flags, and env backed defaults, onto cfg.
func applyServeFlags(cmd *cobra.Command, f *serveFlags, cfg *config.Config) {
	fs := cmd.Flags()
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("min-port") {
		cfg.MinPort = f.minPort
	}
	if fs.Changed("max-port") {
		cfg.MaxPort = f.maxPort
	}
	if fs.Changed("ttl") {
		cfg.TTL = f.ttl
	}
	if fs.Changed("max-concurrent-models") {
		cfg.MaxConcurrentModels = f.maxModels
	}
	if fs.Changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if fs.Changed("sweep-interval") {
		cfg.SweepInterval = f.sweepInterval
	}
	if fs.Changed("max-batch-size") {
		cfg.MaxBatchSize = f.maxBatchSize
	}
	if fs.Changed("resolver") {
		cfg.Resolver = f.resolver
	}
	if fs.Changed("catalog") {
		cfg.CatalogPath = f.catalogPath
	}
	if fs.Changed("sqlite") {
		cfg.SQLitePath = f.sqlitePath
	}
	if f.trackingURI != "" {
		cfg.MLflow.TrackingURI = f.trackingURI
	}
	if origins := splitCSV(f.corsOrigins); len(origins) > 0 {
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = origins
	}
}

// runServe wires the orchestrator behind the HTTP surface and blocks until
// ctx is cancelled or the listener fails.
func runServe(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	resolver, closer, err := buildResolver(cfg)
	if err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	defer closer.Close()

	ring := manager.NewRingPublisher(0)
	mgr, err := manager.NewWithConfig(manager.ManagerConfig{
		Resolver:            resolver,
		Publisher:           ring,
		Logger:              &log,
		Host:                cfg.Host,
		MinPort:             cfg.MinPort,
		MaxPort:             cfg.MaxPort,
		TTL:                 cfg.TTLDuration(),
		MaxConcurrentModels: cfg.MaxConcurrentModels,
		MaxRetries:          cfg.MaxRetries,
		BackoffBase:         cfg.BackoffBase(),
		InvokeTimeout:       cfg.InvokeTimeoutDuration(),
		KillGrace:           cfg.KillGraceDuration(),
	})
	if err != nil {
		return err
	}

	if err := configureHTTP(ctx, cfg, log); err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go manager.NewSweeper(mgr, cfg.SweepIntervalDuration()).Run(sweepCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, ring),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("resolver", cfg.Resolver).
			Int("min_port", cfg.MinPort).
			Int("max_port", cfg.MaxPort).
			Int("ttl_s", cfg.TTL).
			Int("max_models", cfg.MaxConcurrentModels).
			Msg("servingd listening")
		errCh <- srv.ListenAndServe()
	}()
	notifySystemd(log, daemon.SdNotifyReady)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownModels(mgr, log)
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}
	notifySystemd(log, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	stopSweep()
	shutdownModels(mgr, log)
	log.Info().Msg("servingd stopped")
	return nil
}

// configureHTTP pushes config into the httpapi package settings.
func configureHTTP(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetMaxBatchSize(cfg.MaxBatchSize)
	httpapi.SetPredictTimeout(cfg.PredictTimeoutDuration())
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	if len(cfg.AuthTokenHashes) == 0 {
		httpapi.SetAuthenticator(nil)
		return nil
	}
	auth, err := httpapi.NewTokenAuthenticator(cfg.AuthTokenHashes)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	httpapi.SetAuthenticator(auth)
	return nil
}

func shutdownModels(mgr *manager.Manager, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mgr.StopAll(ctx); err != nil {
		log.Error().Err(err).Msg("stopping model processes")
	}
}

// notifySystemd is a no-op outside a systemd unit with Type=notify.
func notifySystemd(log zerolog.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Warn().Err(err).Str("state", state).Msg("sd_notify failed")
	}
}
