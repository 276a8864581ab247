package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"threatintel/internal/domain"
	"threatintel/internal/enrich"
	"threatintel/internal/output"
	"threatintel/internal/storage"
)

// KnownGoodFilter removes domains that never need evaluation.
type KnownGoodFilter interface {
	FilterKnownGood(stats []domain.DomainStats) []domain.DomainStats
}

// Enricher gathers external signals for the domains under evaluation.
type Enricher interface {
	EnrichAll(ctx context.Context, stats []domain.DomainStats) []*enrich.EnrichedDomain
}

// Classifier evaluates one enriched batch.
type Classifier interface {
	Classify(ctx context.Context, batch []*enrich.EnrichedDomain, previous []domain.DomainEvaluation) ([]domain.DomainEvaluation, error)
}

// Coordinator owns one triage run end to end.
type Coordinator struct {
	source     storage.DataSource
	filter     KnownGoodFilter
	enricher   Enricher
	classifier Classifier
	handlers   []output.Handler
	batchSize  int
	logger     *slog.Logger
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(source storage.DataSource, filter KnownGoodFilter, enricher Enricher, classifier Classifier, handlers []output.Handler, batchSize int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		source:     source,
		filter:     filter,
		enricher:   enricher,
		classifier: classifier,
		handlers:   handlers,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run executes one full triage pass. Storage and classification failures
// degrade (empty results, error counter); only a misconfigured batch size
// aborts the run. A summary is always emitted, even when there is nothing
// to evaluate.
func (c *Coordinator) Run(ctx context.Context) (domain.RunStats, error) {
	runID := uuid.NewString()
	ctx, span := otel.Tracer("threatintel/pipeline").Start(ctx, "triage.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	logger := c.logger.With(slog.String("run_id", runID))
	var stats domain.RunStats

	domainStats := c.source.FetchDomainStats(ctx)
	stats.TotalDomainsQueried = len(domainStats)
	if len(domainStats) == 0 {
		logger.Warn("no domains found in lookback window")
		c.emitSummary(nil, stats)
		return stats, nil
	}

	filtered := c.filter.FilterKnownGood(domainStats)
	stats.DomainsAfterFiltering = len(filtered)

	evaluated := c.source.FetchAlreadyEvaluatedDomains(ctx)
	stats.DomainsAlreadyEvaluated = len(evaluated)
	toEvaluate := RemoveAlreadyEvaluated(filtered, evaluated)
	stats.DomainsToEvaluate = len(toEvaluate)

	if len(toEvaluate) == 0 {
		logger.Info("no new domains to evaluate")
		c.emitSummary(nil, stats)
		return stats, nil
	}

	enriched := c.enricher.EnrichAll(ctx, toEvaluate)
	previous := c.source.FetchPreviousEvaluations(ctx)

	batches, err := Batch(enriched, c.batchSize)
	if err != nil {
		return stats, err
	}

	var all []domain.DomainEvaluation
	for i, batch := range batches {
		logger.Info("processing batch",
			slog.Int("batch", i+1),
			slog.Int("total", len(batches)),
			slog.Int("domains", len(batch)))

		evaluations, err := c.classifier.Classify(ctx, batch, previous)
		stats.BatchesProcessed++
		if err != nil {
			logger.Error("batch evaluation failed",
				slog.Int("batch", i+1),
				slog.String("error", err.Error()))
			stats.Errors++
			continue
		}
		if len(evaluations) == 0 {
			stats.Errors++
			continue
		}
		all = append(all, evaluations...)
	}

	for _, ev := range all {
		switch ev.ThreatLevel {
		case domain.ThreatBenign:
			stats.BenignCount++
		case domain.ThreatSuspicious:
			stats.SuspiciousCount++
		case domain.ThreatMalicious:
			stats.MaliciousCount++
		default:
			stats.UnknownCount++
		}
		if ev.Escalated {
			stats.Escalations++
		}
	}
	stats.EvaluationsProduced = len(all)

	stored := c.source.StoreEvaluations(ctx, all)
	logger.Info("evaluations stored", slog.Int("count", stored))

	for _, ev := range all {
		if ev.ThreatLevel == domain.ThreatSuspicious || ev.ThreatLevel == domain.ThreatMalicious {
			for _, h := range c.handlers {
				h.EmitAlert(ev)
			}
		}
	}

	c.emitSummary(all, stats)

	logger.Info("run complete",
		slog.Int("total_domains_queried", stats.TotalDomainsQueried),
		slog.Int("domains_to_evaluate", stats.DomainsToEvaluate),
		slog.Int("evaluations_produced", stats.EvaluationsProduced),
		slog.Int("malicious", stats.MaliciousCount),
		slog.Int("suspicious", stats.SuspiciousCount),
		slog.Int("errors", stats.Errors))

	return stats, nil
}

func (c *Coordinator) emitSummary(evaluations []domain.DomainEvaluation, stats domain.RunStats) {
	for _, h := range c.handlers {
		h.EmitSummary(evaluations, stats)
	}
}
