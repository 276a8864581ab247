package enrich

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"threatintel/internal/domain"
)

// rdapLookuper and otxLookuper are seams for tests; the real clients are
// RDAPClient and OTXClient.
type rdapLookuper interface {
	Lookup(ctx context.Context, name string) (RDAPResult, error)
}

type otxLookuper interface {
	Lookup(ctx context.Context, name string) (OTXResult, error)
}

// Enricher gathers all signals for each domain. A global semaphore bounds
// how many domains are enriched at once; within one domain every
// sub-lookup runs concurrently and writes its own field.
type Enricher struct {
	concurrency int64
	system      Resolver
	resolverFor func(server string) Resolver
	rdap        rdapLookuper
	otx         otxLookuper
	logger      *slog.Logger
}

// Option configures the enricher.
type Option func(*Enricher)

// WithResolverFactory overrides how per-server resolvers are built.
func WithResolverFactory(f func(server string) Resolver) Option {
	return func(e *Enricher) {
		e.resolverFor = f
		e.system = f("")
	}
}

// WithRDAPClient overrides the RDAP client.
func WithRDAPClient(c rdapLookuper) Option {
	return func(e *Enricher) {
		e.rdap = c
	}
}

// WithOTXClient overrides the OTX client.
func WithOTXClient(c otxLookuper) Option {
	return func(e *Enricher) {
		e.otx = c
	}
}

// New builds an enricher with the given domain-level concurrency cap.
func New(concurrency int, logger *slog.Logger, opts ...Option) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enricher{
		concurrency: int64(concurrency),
		system:      NewResolver(""),
		resolverFor: NewResolver,
		rdap:        NewRDAPClient(),
		otx:         NewOTXClient(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichAll enriches every domain, preserving input order. Individual
// lookup failures degrade to unknown/empty fields and never abort other
// lookups or other domains.
func (e *Enricher) EnrichAll(ctx context.Context, stats []domain.DomainStats) []*EnrichedDomain {
	e.logger.Info("enriching domains",
		slog.Int("count", len(stats)),
		slog.Int64("concurrency", e.concurrency))

	sem := semaphore.NewWeighted(e.concurrency)
	results := make([]*EnrichedDomain, len(stats))

	var wg sync.WaitGroup
	for i, s := range stats {
		wg.Add(1)
		go func(i int, s domain.DomainStats) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = newEnriched(s)
				return
			}
			defer sem.Release(1)
			results[i] = e.enrichOne(ctx, s)
		}(i, s)
	}
	wg.Wait()

	e.logger.Info("enrichment complete", slog.Int("count", len(results)))
	return results
}

// enrichOne runs all sub-lookups for one domain concurrently. Each
// goroutine writes a disjoint field of the result.
func (e *Enricher) enrichOne(ctx context.Context, stats domain.DomainStats) *EnrichedDomain {
	name := stats.Domain
	enriched := newEnriched(stats)

	var wg sync.WaitGroup
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	run(func() { enriched.DNSA = e.records(ctx, name, e.system.LookupA) })
	run(func() { enriched.DNSMX = e.records(ctx, name, e.system.LookupMX) })
	run(func() { enriched.DNSNS = e.records(ctx, name, e.system.LookupNS) })
	run(func() { enriched.DNSTXT = e.records(ctx, name, e.system.LookupTXT) })

	run(func() {
		enriched.Quad9 = checkPair(ctx,
			e.resolverFor(quad9Filtered), e.resolverFor(quad9Unfiltered), name, "")
	})
	run(func() {
		enriched.Cloudflare = checkPair(ctx,
			e.resolverFor(cloudflareFiltered), e.resolverFor(cloudflareUnfiltered), name, cloudflareSinkhole)
	})

	run(func() {
		answers, err := zoneLookup(ctx, e.system, name, spamhausZone)
		if err != nil {
			e.logger.Debug("spamhaus lookup failed", slog.String("domain", name), slog.String("error", err.Error()))
			return
		}
		enriched.Spamhaus = spamhausCategory(answers)
	})
	run(func() {
		answers, err := zoneLookup(ctx, e.system, name, surblZone)
		if err != nil {
			e.logger.Debug("surbl lookup failed", slog.String("domain", name), slog.String("error", err.Error()))
			return
		}
		enriched.SURBL = surblCategory(answers)
	})

	run(func() {
		result, err := e.rdap.Lookup(ctx, name)
		if err != nil {
			e.logger.Debug("rdap lookup failed", slog.String("domain", name), slog.String("error", err.Error()))
			return
		}
		enriched.AgeDays = result.AgeDays
		enriched.Registrar = result.Registrar
		enriched.CreationDate = result.CreationDate
	})
	run(func() {
		result, err := e.otx.Lookup(ctx, name)
		if err != nil {
			e.logger.Debug("otx lookup failed", slog.String("domain", name), slog.String("error", err.Error()))
			return
		}
		enriched.OTXPulseCount = result.PulseCount
		enriched.OTXMalwareCount = result.MalwareCount
		enriched.OTXTags = result.Tags
	})

	wg.Wait()
	return enriched
}

// records runs one DNS sub-lookup, degrading failures to an empty set.
func (e *Enricher) records(ctx context.Context, name string, lookup func(context.Context, string) ([]string, error)) []string {
	ctx, cancel := context.WithTimeout(ctx, lookupBudget)
	defer cancel()

	out, err := lookup(ctx, name)
	if err != nil {
		e.logger.Debug("dns lookup failed", slog.String("domain", name), slog.String("error", err.Error()))
		return nil
	}
	return out
}
