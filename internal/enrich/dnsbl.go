package enrich

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"threatintel/internal/domain"
)

// Well-known resolver pairs. Each provider runs a filtered resolver that
// refuses to answer for domains on its blocklist and an unfiltered one
// that answers normally.
const (
	quad9Filtered        = "9.9.9.9"
	quad9Unfiltered      = "9.9.9.10"
	cloudflareFiltered   = "1.1.1.2"
	cloudflareUnfiltered = "1.1.1.1"

	spamhausZone = "dbl.spamhaus.org"
	surblZone    = "multi.surbl.org"

	// cloudflareSinkhole is the null answer Cloudflare's filtered resolver
	// returns for some blocked domains instead of an empty response.
	cloudflareSinkhole = "0.0.0.0"
)

// spamhausCodes maps Spamhaus DBL return addresses to threat categories.
var spamhausCodes = map[string]string{
	"127.0.1.2":   "spam",
	"127.0.1.4":   "phishing",
	"127.0.1.5":   "malware",
	"127.0.1.6":   "botnet_cc",
	"127.0.1.102": "abused_spam",
	"127.0.1.104": "abused_phishing",
	"127.0.1.105": "abused_malware",
	"127.0.1.106": "abused_botnet_cc",
}

// surblBits maps SURBL last-octet bitmask values to categories. Multiple
// bits combine into a comma-joined string.
var surblBits = []struct {
	bit  int
	name string
}{
	{8, "phishing"},
	{16, "malware"},
	{64, "abuse"},
	{128, "cracked"},
}

// checkPair resolves the domain against a provider's filtered and
// unfiltered resolvers concurrently and compares the answers. An empty
// filtered answer alongside a non-empty unfiltered one means the provider
// blocks the domain. Either resolver failing yields VerdictUnknown.
func checkPair(ctx context.Context, filtered, unfiltered Resolver, name string, sinkhole string) domain.Verdict {
	var fAnswer, uAnswer []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fAnswer, err = filtered.LookupA(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		uAnswer, err = unfiltered.LookupA(gctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.VerdictUnknown
	}

	if len(uAnswer) > 0 {
		if len(fAnswer) == 0 {
			return domain.VerdictBlocked
		}
		if sinkhole != "" {
			for _, ip := range fAnswer {
				if ip == sinkhole {
					return domain.VerdictBlocked
				}
			}
		}
	}
	return domain.VerdictClean
}

// zoneLookup queries `<name>.<zone>` for A records. An empty answer means
// the domain is not listed.
func zoneLookup(ctx context.Context, r Resolver, name, zone string) ([]string, error) {
	return r.LookupA(ctx, name+"."+zone)
}

// spamhausCategory interprets Spamhaus DBL answers through the discrete
// return-code table. Returns "" when no answer maps to a known category.
func spamhausCategory(answers []string) string {
	for _, ip := range answers {
		if cat, ok := spamhausCodes[ip]; ok {
			return cat
		}
	}
	return ""
}

// surblCategory interprets SURBL answers through the last-octet bitmask.
func surblCategory(answers []string) string {
	var categories []string
	for _, ip := range answers {
		parts := strings.Split(ip, ".")
		if len(parts) != 4 {
			continue
		}
		code, err := strconv.Atoi(parts[3])
		if err != nil {
			continue
		}
		for _, b := range surblBits {
			if code&b.bit != 0 {
				categories = append(categories, b.name)
			}
		}
	}
	return strings.Join(categories, ", ")
}
