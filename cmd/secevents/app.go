package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"secevents/internal/config"
	"secevents/internal/metrics"
	"secevents/internal/tracing"
)

// app carries what every subcommand needs once flags and config are merged.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	shutdown tracing.ShutdownFunc
}

type globalOptions struct {
	configPath    string
	profile       string
	checkpointURL string
	apiURL        string
	debug         bool
}

func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.profile != "" && opts.profile != cfg.Profile {
		cfg.Profile = opts.profile
		cfg.Checkpoint.URL = config.DefaultCheckpointURL(cfg.Profile)
	}
	if opts.checkpointURL != "" {
		cfg.Checkpoint.URL = opts.checkpointURL
	}
	if opts.apiURL != "" {
		cfg.API.BaseURL = opts.apiURL
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.LogLevel).With("profile", cfg.Profile)

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: "secevents",
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.New(reg),
		shutdown: shutdown,
	}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}
}

// setupLogger writes JSON to stderr; stdout is reserved for records.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
