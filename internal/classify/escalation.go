package classify

import "threatintel/internal/domain"

// EscalationPolicy decides whether an evaluation should be reviewed by a
// second, stronger model tier. Apply returns the evaluation to persist,
// with Escalated set when a second opinion replaced the first.
type EscalationPolicy interface {
	Apply(ev domain.DomainEvaluation) domain.DomainEvaluation
}

// AcceptAll keeps every first-tier evaluation as-is. It is the default
// policy; a confidence-threshold tier can be swapped in without touching
// the classifier.
type AcceptAll struct{}

func (AcceptAll) Apply(ev domain.DomainEvaluation) domain.DomainEvaluation {
	return ev
}
