// Package storage defines the backend-agnostic data source interface for
// reading DNS query stats and persisting evaluations.
package storage

import (
	"context"

	"threatintel/internal/domain"
)

// DataSource is implemented by the sqlite and opensearch backends. The
// pipeline never issues two storage calls concurrently, so implementations
// may open a connection per logical operation.
//
// Read methods degrade to empty results on failure; StoreEvaluations
// reports how many records were actually persisted and never returns an
// error past this boundary.
type DataSource interface {
	// FetchDomainStats aggregates the lookback window into one row per domain.
	FetchDomainStats(ctx context.Context) []domain.DomainStats

	// FetchPreviousEvaluations returns the most recent evaluations,
	// newest first, for use as learning context.
	FetchPreviousEvaluations(ctx context.Context) []domain.DomainEvaluation

	// FetchAlreadyEvaluatedDomains returns the distinct domains evaluated
	// within the TTL window.
	FetchAlreadyEvaluatedDomains(ctx context.Context) map[string]struct{}

	// StoreEvaluations persists records and returns the count stored.
	StoreEvaluations(ctx context.Context, evaluations []domain.DomainEvaluation) int
}
