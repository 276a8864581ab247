// Package pipeline runs the triage sequence: fetch, filter, dedup,
// enrich, classify, tally, persist, report.
package pipeline

import (
	"fmt"

	"threatintel/internal/domain"
)

// RemoveAlreadyEvaluated drops domains whose normalized name appears in
// the evaluated set. Order is preserved and the input is never mutated;
// running the filter twice yields the same result.
func RemoveAlreadyEvaluated(stats []domain.DomainStats, evaluated map[string]struct{}) []domain.DomainStats {
	if len(evaluated) == 0 {
		return stats
	}

	normalized := make(map[string]struct{}, len(evaluated))
	for name := range evaluated {
		normalized[domain.Normalize(name)] = struct{}{}
	}

	out := make([]domain.DomainStats, 0, len(stats))
	for _, s := range stats {
		if _, seen := normalized[domain.Normalize(s.Domain)]; seen {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Batch splits items into contiguous chunks of at most size elements.
func Batch[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches, nil
}
