package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	r "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/config"
	"github.com/SirClappington/jobstream/internal/httpserver"
	"github.com/SirClappington/jobstream/internal/logging"
	"github.com/SirClappington/jobstream/internal/observability"
	"github.com/SirClappington/jobstream/internal/registry"
	"github.com/SirClappington/jobstream/internal/storage"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	var debug bool

	c := &cobra.Command{
		Use:          "registry",
		Short:        "HTTP service that creates jobs and reports their status",
		Example:      "JOB_THRESHOLD=2s registry --debug",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRegistry(envFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.AppEnv, debug)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg, logger)
		},
	}

	c.Flags().StringVar(&envFile, "env-file", ".env", "Path to an optional dotenv file")
	c.Flags().BoolVar(&debug, "debug", false, "Enable debug logs")

	return c
}

func run(ctx context.Context, cfg config.Registry, logger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := registry.New(store, cfg.Threshold,
		registry.WithLogger(logger),
		registry.WithMetrics(observability.NewMetrics(otel.GetMeterProvider())),
		registry.WithTracer(observability.NewTracer(otel.GetTracerProvider())),
	)

	logger.Info("starting registry",
		zap.String("addr", cfg.Addr),
		zap.Duration("threshold", cfg.Threshold),
		zap.String("store", cfg.Store),
	)

	h := registry.NewHandler(reg, logger, registry.HandlerOptions{ServerTiming: cfg.ServerTiming})
	return httpserver.ListenAndRun(ctx, cfg.Addr, h, logger, closeStore)
}

func openStore(ctx context.Context, cfg config.Registry, logger *zap.Logger) (storage.Store, func() error, error) {
	if cfg.Store != config.StoreRedis {
		return storage.NewMemory(), func() error { return nil }, nil
	}

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	store := storage.NewRedis(rdb, cfg.RedisKeyTTL)
	if err := store.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Debug("connected to redis", zap.String("addr", cfg.RedisAddr))

	return store, rdb.Close, nil
}
