// Package domain holds the core data model shared by every pipeline stage.
package domain

import (
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// ThreatLevel is the classifier's verdict for a domain.
type ThreatLevel string

const (
	ThreatBenign     ThreatLevel = "benign"
	ThreatSuspicious ThreatLevel = "suspicious"
	ThreatMalicious  ThreatLevel = "malicious"
	ThreatUnknown    ThreatLevel = "unknown"
)

// Valid reports whether t is one of the four known threat levels.
func (t ThreatLevel) Valid() bool {
	switch t {
	case ThreatBenign, ThreatSuspicious, ThreatMalicious, ThreatUnknown:
		return true
	}
	return false
}

// Verdict is a tri-state result from a resolver-based blocklist check.
// A lookup that failed is VerdictUnknown, which must never be treated as
// "clean".
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictClean
	VerdictBlocked
)

func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictBlocked:
		return "blocked"
	}
	return "unknown"
}

// DomainStats aggregates one lookback window of DNS queries for a single
// domain. Immutable once built by a data source.
type DomainStats struct {
	Domain        string   `json:"domain"`
	QueryCount    int      `json:"query_count"`
	UniqueClients []string `json:"unique_clients"`
	QueryTypes    []string `json:"query_types"`
}

// DomainEvaluation is the persisted result of one LLM threat evaluation.
// Created only by the classifier or reconstructed from storage, never
// updated in place.
type DomainEvaluation struct {
	Domain        string      `json:"domain"`
	ThreatLevel   ThreatLevel `json:"threat_level"`
	Confidence    int         `json:"confidence"`
	Reasoning     string      `json:"reasoning"`
	Indicators    []string    `json:"indicators"`
	EvaluatedBy   string      `json:"evaluated_by"`
	Escalated     bool        `json:"escalated"`
	QueryCount    int         `json:"query_count"`
	UniqueClients []string    `json:"unique_clients"`
	EvaluatedAt   time.Time   `json:"evaluated_at"`
}

// RunStats carries the counters for a single pipeline run. Mutated only by
// the coordinator, read-only afterward.
type RunStats struct {
	TotalDomainsQueried     int `json:"total_domains_queried"`
	DomainsAfterFiltering   int `json:"domains_after_filtering"`
	DomainsAlreadyEvaluated int `json:"domains_already_evaluated"`
	DomainsToEvaluate       int `json:"domains_to_evaluate"`
	BatchesProcessed        int `json:"batches_processed"`
	EvaluationsProduced     int `json:"evaluations_produced"`
	Escalations             int `json:"escalations"`
	Errors                  int `json:"errors"`
	BenignCount             int `json:"benign_count"`
	SuspiciousCount         int `json:"suspicious_count"`
	MaliciousCount          int `json:"malicious_count"`
	UnknownCount            int `json:"unknown_count"`
}

// ClampConfidence bounds a confidence score to [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// Normalize canonicalizes a domain name for comparison: lower-case, strip
// the trailing dot, and fold internationalized names to their ASCII form.
// Both the allowlist filter and the already-evaluated dedup use this so the
// two stages never disagree on identity.
func Normalize(domain string) string {
	d := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if ascii, err := idna.Lookup.ToASCII(d); err == nil && ascii != "" {
		return ascii
	}
	return d
}
