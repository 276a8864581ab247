package output

import (
	"bytes"
	"strings"
	"testing"

	"threatintel/internal/config"
	"threatintel/internal/domain"
)

func testOutputConfig() config.OutputConfig {
	return config.OutputConfig{
		SummaryHeader:    "=== DNS Threat Report ===",
		SummaryFooter:    "=== End of report ===",
		StatsTemplate:    "Queried: {total_domains_queried} | To evaluate: {domains_to_evaluate} | Malicious: {malicious_count} | Errors: {errors}",
		NoThreatsMessage: "No threats detected.",
		AlertPrefix:      "[ALERT]",
	}
}

func TestConsoleSummaryWithThreats(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsole(testOutputConfig(), WithWriters(&stdout, &stderr))

	evaluations := []domain.DomainEvaluation{
		{Domain: "ok.example", ThreatLevel: domain.ThreatBenign, Confidence: 90},
		{Domain: "meh.example", ThreatLevel: domain.ThreatSuspicious, Confidence: 55, Reasoning: "newly registered"},
		{Domain: "bad.example", ThreatLevel: domain.ThreatMalicious, Confidence: 97, Reasoning: "on two blocklists",
			Indicators: []string{"spamhaus", "quad9"}},
	}
	stats := domain.RunStats{TotalDomainsQueried: 10, DomainsToEvaluate: 3, MaliciousCount: 1, Errors: 0}

	c.EmitSummary(evaluations, stats)
	out := stdout.String()

	if !strings.HasPrefix(out, "=== DNS Threat Report ===\n") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "Queried: 10 | To evaluate: 3 | Malicious: 1 | Errors: 0") {
		t.Errorf("stats template not expanded:\n%s", out)
	}
	if !strings.Contains(out, "Non-benign domains (2):") {
		t.Errorf("threat count wrong:\n%s", out)
	}
	// Sorted by confidence descending: bad.example (97) before meh.example (55).
	if strings.Index(out, "bad.example") > strings.Index(out, "meh.example") {
		t.Errorf("threats not sorted by confidence desc:\n%s", out)
	}
	if !strings.Contains(out, "[MALICIOUS ] (conf:  97) bad.example -- on two blocklists") {
		t.Errorf("threat line malformed:\n%s", out)
	}
	if !strings.Contains(out, "indicators: spamhaus, quad9") {
		t.Errorf("indicators line missing:\n%s", out)
	}
	if strings.Contains(out, "ok.example") {
		t.Errorf("benign domain listed as a threat:\n%s", out)
	}
	if !strings.HasSuffix(out, "=== End of report ===\n") {
		t.Errorf("missing footer:\n%s", out)
	}
	if stderr.Len() != 0 {
		t.Errorf("summary must not write to stderr: %q", stderr.String())
	}
}

func TestConsoleSummaryNoThreats(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsole(testOutputConfig(), WithWriters(&stdout, &stderr))

	c.EmitSummary([]domain.DomainEvaluation{
		{Domain: "ok.example", ThreatLevel: domain.ThreatBenign, Confidence: 90},
	}, domain.RunStats{})

	if !strings.Contains(stdout.String(), "No threats detected.") {
		t.Errorf("missing no-threats message:\n%s", stdout.String())
	}
	if strings.Contains(stdout.String(), "Non-benign") {
		t.Errorf("threat section must be absent:\n%s", stdout.String())
	}
}

func TestConsoleAlert(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := NewConsole(testOutputConfig(), WithWriters(&stdout, &stderr))

	c.EmitAlert(domain.DomainEvaluation{
		Domain:      "bad.example",
		ThreatLevel: domain.ThreatMalicious,
		Confidence:  88,
		Reasoning:   "sinkholed by Cloudflare",
	})

	want := "[ALERT] MALICIOUS domain: bad.example (confidence: 88) -- sinkholed by Cloudflare\n"
	if stderr.String() != want {
		t.Errorf("alert = %q, want %q", stderr.String(), want)
	}
	if stdout.Len() != 0 {
		t.Errorf("alerts must go to stderr only: %q", stdout.String())
	}
}
