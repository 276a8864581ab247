package enrich

import (
	"context"
	"errors"
	"net"
	"sort"
	"time"
)

const (
	// perQueryTimeout caps a single DNS query, matching dig +time=3 +tries=1.
	perQueryTimeout = 3 * time.Second
	// lookupBudget caps a whole sub-lookup including the resolver-pair case.
	lookupBudget = 5 * time.Second
)

// Resolver is the subset of DNS lookups the enricher needs. Results are
// ordered deterministically. An empty result with a nil error means the
// name resolved to nothing (NXDOMAIN or an empty answer); a non-nil error
// means the lookup itself failed and the caller must treat the signal as
// unknown.
type Resolver interface {
	LookupA(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]string, error)
	LookupNS(ctx context.Context, name string) ([]string, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// systemResolver queries either the system default or a fixed server.
type systemResolver struct {
	r *net.Resolver
}

// NewResolver returns a resolver. An empty server uses the host's default
// DNS configuration; otherwise every query goes to server:53.
func NewResolver(server string) Resolver {
	r := &net.Resolver{PreferGo: true}
	if server != "" {
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: perQueryTimeout}
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		}
	}
	return &systemResolver{r: r}
}

func (s *systemResolver) LookupA(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, perQueryTimeout)
	defer cancel()

	ips, err := s.r.LookupIP(ctx, "ip4", name)
	if err != nil {
		return nilIfNotFound(err)
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	sort.Strings(out)
	return out, nil
}

func (s *systemResolver) LookupMX(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, perQueryTimeout)
	defer cancel()

	mxs, err := s.r.LookupMX(ctx, name)
	if err != nil {
		return nilIfNotFound(err)
	}
	out := make([]string, 0, len(mxs))
	for _, mx := range mxs {
		out = append(out, mx.Host)
	}
	return out, nil
}

func (s *systemResolver) LookupNS(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, perQueryTimeout)
	defer cancel()

	nss, err := s.r.LookupNS(ctx, name)
	if err != nil {
		return nilIfNotFound(err)
	}
	out := make([]string, 0, len(nss))
	for _, ns := range nss {
		out = append(out, ns.Host)
	}
	sort.Strings(out)
	return out, nil
}

func (s *systemResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, perQueryTimeout)
	defer cancel()

	txts, err := s.r.LookupTXT(ctx, name)
	if err != nil {
		return nilIfNotFound(err)
	}
	return txts, nil
}

// nilIfNotFound converts "name does not exist / has no records" into an
// empty answer, keeping real failures (timeout, SERVFAIL, network) as
// errors so verdicts degrade to unknown rather than clean.
func nilIfNotFound(err error) ([]string, error) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return nil, nil
	}
	return nil, err
}
