package pipeline

import (
	"testing"

	"threatintel/internal/domain"
)

func statsFor(names ...string) []domain.DomainStats {
	out := make([]domain.DomainStats, len(names))
	for i, n := range names {
		out[i] = domain.DomainStats{Domain: n}
	}
	return out
}

func TestRemoveAlreadyEvaluated(t *testing.T) {
	in := statsFor("a.example", "b.example", "c.example")
	evaluated := map[string]struct{}{"b.example": {}}

	out := RemoveAlreadyEvaluated(in, evaluated)
	if len(out) != 2 {
		t.Fatalf("got %d domains, want 2", len(out))
	}
	if out[0].Domain != "a.example" || out[1].Domain != "c.example" {
		t.Errorf("order not preserved: %v", out)
	}
}

func TestRemoveAlreadyEvaluatedNormalizes(t *testing.T) {
	// The log side may carry trailing dots and mixed case while the ledger
	// stores canonical names; membership must not depend on either.
	in := statsFor("Tracker.Example.", "new.example")
	evaluated := map[string]struct{}{"tracker.example": {}}

	out := RemoveAlreadyEvaluated(in, evaluated)
	if len(out) != 1 || out[0].Domain != "new.example" {
		t.Errorf("normalization mismatch: %v", out)
	}
}

func TestRemoveAlreadyEvaluatedIdempotent(t *testing.T) {
	in := statsFor("a.example", "b.example")
	evaluated := map[string]struct{}{"a.example": {}}

	once := RemoveAlreadyEvaluated(in, evaluated)
	twice := RemoveAlreadyEvaluated(once, evaluated)
	if len(once) != len(twice) {
		t.Errorf("filter not idempotent: %v vs %v", once, twice)
	}
}

func TestRemoveAlreadyEvaluatedEmptySet(t *testing.T) {
	in := statsFor("a.example")
	out := RemoveAlreadyEvaluated(in, nil)
	if len(out) != 1 {
		t.Errorf("empty set must pass everything through: %v", out)
	}
}

func TestBatch(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	batches, err := Batch(items, 3)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 3 || len(batches[1]) != 3 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d/%d/%d, want 3/3/1", len(batches[0]), len(batches[1]), len(batches[2]))
	}
	if batches[2][0] != 7 {
		t.Errorf("last batch = %v, want [7]", batches[2])
	}
}

func TestBatchExact(t *testing.T) {
	batches, err := Batch([]int{1, 2, 3, 4}, 2)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(batches) != 2 {
		t.Errorf("got %d batches, want 2", len(batches))
	}
}

func TestBatchEmpty(t *testing.T) {
	batches, err := Batch([]int(nil), 5)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("empty input must yield no batches, got %v", batches)
	}
}

func TestBatchInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Batch([]int{1}, size); err == nil {
			t.Errorf("size %d must be rejected", size)
		}
	}
}
