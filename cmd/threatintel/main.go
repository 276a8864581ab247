// Command threatintel runs one triage pass over recent DNS query logs:
// fetch per-domain stats, drop known-good and recently evaluated domains,
// enrich the rest with public threat intel, classify them with a local
// model, persist the verdicts, and report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"threatintel/internal/allowlist"
	"threatintel/internal/backend/ollama"
	"threatintel/internal/classify"
	"threatintel/internal/config"
	"threatintel/internal/enrich"
	"threatintel/internal/output"
	"threatintel/internal/pipeline"
	"threatintel/internal/storage"
	"threatintel/internal/storage/opensearch"
	"threatintel/internal/storage/sqlite"
	"threatintel/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	// The report goes to stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdown, err := telemetry.InitTracer("threatintel", logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	source, err := newDataSource(cfg, logger)
	if err != nil {
		return err
	}

	client := ollama.NewClient(
		ollama.WithBaseURL(cfg.Ollama.BaseURL),
		ollama.WithLogger(logger),
	)
	classifier := classify.New(client, cfg.Ollama.Model, cfg.Prompts,
		classify.WithLogger(logger))

	handlers := []output.Handler{output.NewConsole(cfg.Output)}
	if cfg.Email.Enabled {
		handlers = append(handlers, output.NewEmail(cfg.Email, logger))
	}

	coordinator := pipeline.NewCoordinator(
		source,
		allowlist.New(cfg.KnownDomains, logger),
		enrich.New(cfg.Agent.EnrichConcurrency, logger),
		classifier,
		handlers,
		cfg.Agent.BatchSize,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting triage run", slog.String("data_source", cfg.DataSource))
	if _, err := coordinator.Run(ctx); err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	return nil
}

func newDataSource(cfg *config.Config, logger *slog.Logger) (storage.DataSource, error) {
	switch cfg.DataSource {
	case "opensearch":
		return opensearch.New(opensearch.Options{
			Host:                     cfg.OpenSearch.Host,
			Port:                     cfg.OpenSearch.Port,
			PiholeIndexPrefix:        cfg.OpenSearch.PiholeIndexPrefix,
			EvaluationsIndex:         cfg.OpenSearch.EvaluationsIndex,
			LookbackHours:            cfg.Agent.LookbackHours,
			PreviousEvaluationsCount: cfg.Agent.PreviousEvaluationsCount,
			EvaluationTTLDays:        cfg.Agent.EvaluationTTLDays,
		}, logger)
	case "sqlite":
		return sqlite.New(sqlite.Options{
			PiholeDB:                 cfg.SQLite.PiholeDB,
			EvalDB:                   cfg.SQLite.EvalDB,
			LookbackHours:            cfg.Agent.LookbackHours,
			PreviousEvaluationsCount: cfg.Agent.PreviousEvaluationsCount,
			EvaluationTTLDays:        cfg.Agent.EvaluationTTLDays,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown data_source %q (want sqlite or opensearch)", cfg.DataSource)
	}
}
