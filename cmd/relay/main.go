package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/config"
	"github.com/SirClappington/jobstream/internal/httpserver"
	"github.com/SirClappington/jobstream/internal/logging"
	"github.com/SirClappington/jobstream/internal/observability"
	"github.com/SirClappington/jobstream/internal/relay"
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
		Use:          "relay",
		Short:        "Streams registry job status to subscribers as Server-Sent Events",
		Example:      "REGISTRY_URL=http://localhost:9000 relay --debug",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRelay(envFile)
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

func run(ctx context.Context, cfg config.Relay, logger *zap.Logger) error {
	encode, err := relay.EncoderFor(cfg.PayloadFormat)
	if err != nil {
		return err
	}

	client := relay.NewHTTPClient(cfg.RegistryURL, cfg.RegistryTimeout,
		observability.NewTracer(otel.GetTracerProvider()))

	rl := relay.New(client,
		relay.WithPollInterval(cfg.PollInterval),
		relay.WithLogger(logger),
		relay.WithMetrics(observability.NewMetrics(otel.GetMeterProvider())),
	)

	logger.Info("starting relay",
		zap.String("addr", cfg.Addr),
		zap.String("registry_url", cfg.RegistryURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("payload_format", cfg.PayloadFormat),
	)

	return httpserver.ListenAndRun(ctx, cfg.Addr, relay.NewHandler(rl, encode, logger), logger)
}
