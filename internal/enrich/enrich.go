// Package enrich resolves the classifier inputs (zoning, year built) for an
// authoritative sale. Lookups fail soft: an unresolved attribute is nil.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Enricher resolves the enrichment snapshot for one sale.
type Enricher interface {
	Enrich(ctx context.Context, sale model.AuthoritativeSale) (model.Enrichment, error)
}

// Prefetcher is implemented by enrichers that can warm lookups for a batch.
type Prefetcher interface {
	Prefetch(ctx context.Context, sales []model.AuthoritativeSale) error
}

// StoredEnricher reads the enrichment columns already on the sale row.
type StoredEnricher struct{}

func (StoredEnricher) Enrich(_ context.Context, sale model.AuthoritativeSale) (model.Enrichment, error) {
	var e model.Enrichment
	if sale.ZoneCode != nil {
		if z := strings.ToUpper(strings.TrimSpace(*sale.ZoneCode)); z != "" {
			e.Zoning = &z
		}
	}
	if sale.YearBuilt != nil && *sale.YearBuilt > 0 {
		y := *sale.YearBuilt
		e.YearBuilt = &y
	}
	return e, nil
}

// ZoningLookup is the planning portal contract.
type ZoningLookup interface {
	Zoning(ctx context.Context, address string) (string, error)
}

// PlanningEnricher fills missing zoning from the planning portal on top of a
// base enricher. Results are cached per address for the life of the value.
type PlanningEnricher struct {
	base        Enricher
	lookup      ZoningLookup
	state       string
	concurrency int
	log         *zap.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewPlanningEnricher wraps base. state is appended to lookup addresses.
func NewPlanningEnricher(base Enricher, lookup ZoningLookup, state string, concurrency int) *PlanningEnricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PlanningEnricher{
		base:        base,
		lookup:      lookup,
		state:       state,
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "enrich.planning")),
		cache:       make(map[string]string),
	}
}

// Prefetch resolves zoning for every sale that lacks it, once per address.
// A failed lookup is cached as unknown so Enrich does not retry it; Prefetch
// only fails when ctx does.
func (p *PlanningEnricher) Prefetch(ctx context.Context, sales []model.AuthoritativeSale) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	queued := make(map[string]bool, len(sales))
	for _, sale := range sales {
		if sale.ZoneCode != nil && *sale.ZoneCode != "" {
			continue
		}
		addr := p.fullAddress(sale.Address)
		if _, ok := p.cached(addr); ok || queued[addr] {
			continue
		}
		queued[addr] = true
		g.Go(func() error {
			p.resolve(gctx, addr)
			return gctx.Err()
		})
	}
	return g.Wait()
}

func (p *PlanningEnricher) Enrich(ctx context.Context, sale model.AuthoritativeSale) (model.Enrichment, error) {
	e, err := p.base.Enrich(ctx, sale)
	if err != nil {
		return e, err
	}
	if e.Zoning != nil {
		return e, nil
	}

	addr := p.fullAddress(sale.Address)
	zone, ok := p.cached(addr)
	if !ok {
		zone = p.resolve(ctx, addr)
	}
	if zone != "" {
		e.Zoning = &zone
	}
	return e, nil
}

// resolve looks addr up and caches the answer. Failures cache "" (unknown)
// unless ctx was cancelled.
func (p *PlanningEnricher) resolve(ctx context.Context, addr string) string {
	zone, err := p.lookup.Zoning(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		p.log.Warn("zoning lookup failed", zap.String("address", addr), zap.Error(err))
		zone = ""
	}
	p.mu.Lock()
	p.cache[addr] = zone
	p.mu.Unlock()
	return zone
}

func (p *PlanningEnricher) cached(addr string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	z, ok := p.cache[addr]
	return z, ok
}

func (p *PlanningEnricher) fullAddress(a model.Address) string {
	return lookupAddress(a, p.state)
}

// lookupAddress renders "15 Smith St, Revesby NSW 2212".
func lookupAddress(a model.Address, state string) string {
	return strings.TrimSpace(fmt.Sprintf("%s, %s %s %s",
		a.StreetAddress(), strings.TrimSpace(a.Suburb), state, strings.TrimSpace(a.Postcode)))
}
