package cli

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/config"
	"github.com/EndaleK/Synaptic-sub005/internal/llm"
	"github.com/EndaleK/Synaptic-sub005/internal/logging"
	"github.com/EndaleK/Synaptic-sub005/internal/metrics"
	"github.com/EndaleK/Synaptic-sub005/internal/study"
)

// app is everything a command needs, built from config.
type app struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	registry *prometheus.Registry
	factory  *llm.Factory
	study    *study.Service
}

func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, cfgPath, err := config.LoadOrDefault(flags.cfgFile, lookupEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "config error: %v\n", e)
		}
		return nil, fmt.Errorf("invalid configuration")
	}

	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	for _, k := range cfg.UnsetKeys() {
		logger.Warn("api key variable not set, ignoring", "field", k.Field, "var", k.Var)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(cfg.Metrics.Namespace, registry)

	factory, err := buildFactory(cfg, lookupEnv, logger, recorder)
	if err != nil {
		return nil, err
	}

	svc := study.NewService(factory,
		study.WithRetry(study.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxElapsed:      cfg.Retry.MaxElapsed,
		}),
		study.WithLogger(logger),
	)

	if cfgPath != "" {
		logger.Debug("loaded config", "path", cfgPath)
	}

	return &app{
		cfg:      cfg,
		cfgPath:  cfgPath,
		logger:   logger,
		registry: registry,
		factory:  factory,
		study:    svc,
	}, nil
}

// buildFactory wires config blocks, routing overrides and telemetry into a
// provider factory.
func buildFactory(cfg *config.Config, lookup llm.LookupEnv, logger *slog.Logger, recorder *metrics.Recorder) (*llm.Factory, error) {
	policy, err := llm.NewPolicy(lookup, cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("invalid provider overrides: %w", err)
	}

	opts := []llm.FactoryOption{
		llm.WithEnv(lookup),
		llm.WithFactoryLogger(logger),
		llm.WithFactoryMetrics(recorder),
		llm.WithPolicy(policy),
	}
	for _, t := range llm.ProviderTypes() {
		opts = append(opts, llm.WithVendorOptions(t, cfg.Provider(t).AdapterOptions()...))
	}

	return llm.NewFactory(opts...), nil
}
