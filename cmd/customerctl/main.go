// Command customerctl browses and edits the customer directory from a terminal.
// Every command drives a list synchronization controller against the store
// and renders the resulting list state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/erp/customerdir/internal/application/listsync"
	"github.com/erp/customerdir/internal/infrastructure/config"
	"github.com/erp/customerdir/internal/infrastructure/logger"
	"github.com/erp/customerdir/internal/infrastructure/notify"
	"github.com/erp/customerdir/internal/infrastructure/remote"
	"github.com/erp/customerdir/internal/infrastructure/telemetry"
)

// errReported marks a failure that was already shown to the user
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// rootOptions holds the global flags
type rootOptions struct {
	v          *viper.Viper
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:               "customerctl",
		Short:             "Customer directory client",
		Long:              `customerctl lists, creates, updates and deletes customers of a customer directory server.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (default: search for config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); logs go to stderr")
	flags.String("base-url", "", "Base URL of the customer directory server")
	flags.String("api-version", "", "API version path segment")
	flags.Duration("timeout", 0, "Request timeout")
	flags.Int("retries", 0, "Retries for idempotent requests")
	flags.Float64("rate", 0, "Maximum requests per second (0 = unlimited)")

	for key, flag := range map[string]string{
		"client.base_url":            "base-url",
		"client.api_version":         "api-version",
		"client.timeout":             "timeout",
		"client.max_retries":         "retries",
		"client.requests_per_second": "rate",
	} {
		if err := opts.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newListCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newSeedCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}

// session is the wiring shared by every command
type session struct {
	cfg        *config.Config
	log        *zap.Logger
	client     *remote.Client
	controller *listsync.Controller
	registry   *prometheus.Registry
	tracer     *telemetry.TracerProvider
}

func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadFrom(o.v, o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.CLIConfig()
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tp, err := telemetry.NewTracerProvider(cmd.Context(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       "customerctl",
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	client, err := remote.New(cfg.Client, remote.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	emitter := notify.NewHub(log,
		notify.NewWriterEmitter(cmd.ErrOrStderr()),
		notify.NewLogEmitter(log),
	)

	registry := prometheus.NewRegistry()
	controller := listsync.NewController(client, emitter,
		listsync.WithLogger(log),
		listsync.WithMetrics(listsync.NewMetrics(registry)),
	)

	log.Debug("session opened",
		zap.String("base_url", client.BaseURL()),
		zap.Duration("timeout", cfg.Client.Timeout),
	)

	return &session{
		cfg:        cfg,
		log:        log,
		client:     client,
		controller: controller,
		registry:   registry,
		tracer:     tp,
	}, nil
}

func (s *session) Close() {
	s.controller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracer.Shutdown(ctx); err != nil {
		s.log.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync(s.log)
}
