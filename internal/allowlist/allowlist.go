// Package allowlist implements the known-good domain filter.
package allowlist

import (
	"log/slog"
	"strings"

	"threatintel/internal/config"
	"threatintel/internal/domain"
)

// Filter matches domains against a static allowlist of suffixes and exact
// entries. Built once from config and read-only afterward.
type Filter struct {
	suffixes []string
	exact    map[string]struct{}
	logger   *slog.Logger
}

// New builds a Filter. Entries are normalized at construction so lookups
// only normalize the candidate domain.
func New(cfg config.KnownDomainsConfig, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Filter{
		exact:  make(map[string]struct{}, len(cfg.Exact)),
		logger: logger,
	}
	for _, s := range cfg.Suffixes {
		// A leading dot in config means the same thing as none: matching is
		// always anchored at a label boundary.
		if n := domain.Normalize(strings.TrimPrefix(s, ".")); n != "" {
			f.suffixes = append(f.suffixes, n)
		}
	}
	for _, e := range cfg.Exact {
		if n := domain.Normalize(e); n != "" {
			f.exact[n] = struct{}{}
		}
	}
	return f
}

// IsKnownGood reports whether name matches an exact entry or a configured
// suffix. Suffix matching is dot-aware: "evil-example.com" does not match
// the suffix "example.com".
func (f *Filter) IsKnownGood(name string) bool {
	d := domain.Normalize(name)
	if _, ok := f.exact[d]; ok {
		return true
	}
	for _, suffix := range f.suffixes {
		if d == suffix {
			return true
		}
		if strings.HasSuffix(d, suffix) {
			rest := d[:len(d)-len(suffix)]
			if strings.HasSuffix(rest, ".") {
				return true
			}
		}
	}
	return false
}

// FilterKnownGood removes allowlisted domains, preserving order.
func (f *Filter) FilterKnownGood(stats []domain.DomainStats) []domain.DomainStats {
	filtered := make([]domain.DomainStats, 0, len(stats))
	for _, s := range stats {
		if !f.IsKnownGood(s.Domain) {
			filtered = append(filtered, s)
		}
	}
	f.logger.Info("filtered known-good domains",
		slog.Int("before", len(stats)),
		slog.Int("after", len(filtered)),
		slog.Int("removed", len(stats)-len(filtered)))
	return filtered
}
