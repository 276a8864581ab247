// Package enrich gathers public threat-intel signals for domains before
// classification: DNS records, resolver-based and zone-based blocklists,
// RDAP registration data, and AlienVault OTX pulses.
package enrich

import (
	"fmt"
	"strings"

	"threatintel/internal/domain"
)

// EnrichedDomain is a domain's query stats plus every signal the enricher
// could gather. Absent signals stay at their zero/unknown values; unknown
// means "no signal", never "clean".
type EnrichedDomain struct {
	Stats domain.DomainStats

	// DNS record sets
	DNSA   []string
	DNSMX  []string
	DNSNS  []string
	DNSTXT []string

	// Resolver-based blocklist verdicts
	Quad9      domain.Verdict
	Cloudflare domain.Verdict

	// Zone-based DNSBL categories; empty means queried and clean
	Spamhaus string
	SURBL    string

	// RDAP registration data; AgeDays < 0 means unknown
	AgeDays      int
	Registrar    string
	CreationDate string

	// AlienVault OTX; zero counts are meaningful ("no reports")
	OTXPulseCount   int
	OTXMalwareCount int
	OTXTags         []string
}

func newEnriched(stats domain.DomainStats) *EnrichedDomain {
	return &EnrichedDomain{Stats: stats, AgeDays: -1}
}

// Domain returns the wrapped domain name.
func (e *EnrichedDomain) Domain() string {
	return e.Stats.Domain
}

// PromptLine formats the domain and its signals as a concise digest for
// the classifier prompt. A signal line is appended only when at least one
// enrichment field carries a positive signal; otherwise the line states
// explicitly that nothing was found on any blocklist.
func (e *EnrichedDomain) PromptLine() string {
	var b strings.Builder

	clients := e.Stats.UniqueClients
	if len(clients) > 5 {
		clients = clients[:5]
	}
	fmt.Fprintf(&b, "- %s | queries: %d | clients: %s | types: %s",
		e.Stats.Domain,
		e.Stats.QueryCount,
		strings.Join(clients, ", "),
		strings.Join(e.Stats.QueryTypes, ", "))

	var signals []string

	if e.Quad9 == domain.VerdictBlocked {
		signals = append(signals, "BLOCKED by Quad9 (malicious)")
	}
	if e.Cloudflare == domain.VerdictBlocked {
		signals = append(signals, "BLOCKED by Cloudflare (malicious)")
	}
	if e.Spamhaus != "" {
		signals = append(signals, "Spamhaus: "+e.Spamhaus)
	}
	if e.SURBL != "" {
		signals = append(signals, "SURBL: "+e.SURBL)
	}

	// Young domains are called out; anything a year or older is not worth
	// a line in the prompt.
	if e.AgeDays >= 0 {
		if e.AgeDays < 30 {
			signals = append(signals, fmt.Sprintf("Domain age: %d days (NEW)", e.AgeDays))
		} else if e.AgeDays < 365 {
			signals = append(signals, fmt.Sprintf("Domain age: %d days", e.AgeDays))
		}
	}
	if e.Registrar != "" {
		signals = append(signals, "Registrar: "+e.Registrar)
	}

	if e.OTXPulseCount > 0 {
		signals = append(signals, fmt.Sprintf("AlienVault OTX: %d threat reports", e.OTXPulseCount))
	}
	if e.OTXMalwareCount > 0 {
		signals = append(signals, fmt.Sprintf("OTX malware samples: %d", e.OTXMalwareCount))
	}

	if len(e.DNSA) > 0 {
		signals = append(signals, "A: "+strings.Join(head(e.DNSA, 3), ", "))
	}
	if len(e.DNSMX) > 0 {
		signals = append(signals, "MX: "+strings.Join(head(e.DNSMX, 2), ", "))
	}
	if len(e.DNSNS) > 0 {
		signals = append(signals, "NS: "+strings.Join(head(e.DNSNS, 2), ", "))
	}

	if len(signals) > 0 {
		b.WriteString("\n  Intel: " + strings.Join(signals, " | "))
	} else {
		b.WriteString("\n  Intel: no signals (not listed in any blocklist)")
	}

	return b.String()
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
