package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"threatintel/internal/config"
	"threatintel/internal/domain"
)

// Console prints the run report to stdout and alerts to stderr.
type Console struct {
	cfg    config.OutputConfig
	stdout io.Writer
	stderr io.Writer
}

// ConsoleOption configures the console handler.
type ConsoleOption func(*Console)

// WithWriters redirects the report and alert streams.
func WithWriters(stdout, stderr io.Writer) ConsoleOption {
	return func(c *Console) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// NewConsole builds a console handler with the configured report strings.
func NewConsole(cfg config.OutputConfig, opts ...ConsoleOption) *Console {
	c := &Console{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmitSummary prints the header, the expanded stats block, the non-benign
// domains sorted by confidence descending, and the footer.
func (c *Console) EmitSummary(evaluations []domain.DomainEvaluation, stats domain.RunStats) {
	fmt.Fprintln(c.stdout, c.cfg.SummaryHeader)
	fmt.Fprintln(c.stdout, expandStats(c.cfg.StatsTemplate, stats))

	threats := nonBenign(evaluations)
	if len(threats) == 0 {
		fmt.Fprintln(c.stdout, c.cfg.NoThreatsMessage)
	} else {
		fmt.Fprintf(c.stdout, "Non-benign domains (%d):\n", len(threats))
		for _, ev := range threats {
			fmt.Fprintf(c.stdout, "  [%-10s] (conf: %3d) %s -- %s\n",
				strings.ToUpper(string(ev.ThreatLevel)), ev.Confidence, ev.Domain, ev.Reasoning)
			if len(ev.Indicators) > 0 {
				fmt.Fprintf(c.stdout, "             indicators: %s\n", strings.Join(ev.Indicators, ", "))
			}
		}
	}

	fmt.Fprintln(c.stdout, c.cfg.SummaryFooter)
}

// EmitAlert prints one alert line to stderr.
func (c *Console) EmitAlert(ev domain.DomainEvaluation) {
	fmt.Fprintf(c.stderr, "%s %s domain: %s (confidence: %d) -- %s\n",
		c.cfg.AlertPrefix, strings.ToUpper(string(ev.ThreatLevel)), ev.Domain, ev.Confidence, ev.Reasoning)
}

// nonBenign returns the suspicious, malicious, and unknown evaluations
// sorted by confidence descending.
func nonBenign(evaluations []domain.DomainEvaluation) []domain.DomainEvaluation {
	var threats []domain.DomainEvaluation
	for _, ev := range evaluations {
		if ev.ThreatLevel != domain.ThreatBenign {
			threats = append(threats, ev)
		}
	}
	sort.SliceStable(threats, func(i, j int) bool {
		return threats[i].Confidence > threats[j].Confidence
	})
	return threats
}

// expandStats substitutes {counter_name} placeholders in the configured
// stats template.
func expandStats(tmpl string, stats domain.RunStats) string {
	return strings.NewReplacer(
		"{total_domains_queried}", strconv.Itoa(stats.TotalDomainsQueried),
		"{domains_after_filtering}", strconv.Itoa(stats.DomainsAfterFiltering),
		"{domains_already_evaluated}", strconv.Itoa(stats.DomainsAlreadyEvaluated),
		"{domains_to_evaluate}", strconv.Itoa(stats.DomainsToEvaluate),
		"{batches_processed}", strconv.Itoa(stats.BatchesProcessed),
		"{evaluations_produced}", strconv.Itoa(stats.EvaluationsProduced),
		"{escalations}", strconv.Itoa(stats.Escalations),
		"{errors}", strconv.Itoa(stats.Errors),
		"{benign_count}", strconv.Itoa(stats.BenignCount),
		"{suspicious_count}", strconv.Itoa(stats.SuspiciousCount),
		"{malicious_count}", strconv.Itoa(stats.MaliciousCount),
		"{unknown_count}", strconv.Itoa(stats.UnknownCount),
	).Replace(tmpl)
}
