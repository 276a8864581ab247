// Package output delivers run results: a console report, stderr alerts,
// and an optional HTML email digest.
package output

import "threatintel/internal/domain"

// Handler receives the results of a pipeline run. EmitAlert fires once per
// suspicious or malicious evaluation before the summary; EmitSummary always
// fires exactly once, even for an empty run.
type Handler interface {
	EmitSummary(evaluations []domain.DomainEvaluation, stats domain.RunStats)
	EmitAlert(evaluation domain.DomainEvaluation)
}
