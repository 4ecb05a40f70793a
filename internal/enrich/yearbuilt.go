package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-tracker/internal/model"
)

// YearBuiltLookup is the property API contract. A zero year means unknown.
type YearBuiltLookup interface {
	YearBuilt(ctx context.Context, address string) (int, error)
}

// YearBuiltEnricher fills a missing construction year on top of a base
// enricher, caching answers per address.
type YearBuiltEnricher struct {
	base        Enricher
	lookup      YearBuiltLookup
	state       string
	concurrency int
	log         *zap.Logger

	mu    sync.Mutex
	cache map[string]int
}

func NewYearBuiltEnricher(base Enricher, lookup YearBuiltLookup, state string, concurrency int) *YearBuiltEnricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &YearBuiltEnricher{
		base:        base,
		lookup:      lookup,
		state:       state,
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "enrich.year_built")),
		cache:       make(map[string]int),
	}
}

// Prefetch warms the base enricher first, then looks up every distinct
// address whose sale lacks a year.
func (y *YearBuiltEnricher) Prefetch(ctx context.Context, sales []model.AuthoritativeSale) error {
	if pf, ok := y.base.(Prefetcher); ok {
		if err := pf.Prefetch(ctx, sales); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.concurrency)
	queued := make(map[string]bool, len(sales))
	for _, sale := range sales {
		if sale.YearBuilt != nil && *sale.YearBuilt > 0 {
			continue
		}
		addr := y.address(sale.Address)
		if _, ok := y.cached(addr); ok || queued[addr] {
			continue
		}
		queued[addr] = true
		g.Go(func() error {
			y.resolve(gctx, addr)
			return gctx.Err()
		})
	}
	return g.Wait()
}

func (y *YearBuiltEnricher) Enrich(ctx context.Context, sale model.AuthoritativeSale) (model.Enrichment, error) {
	e, err := y.base.Enrich(ctx, sale)
	if err != nil || e.YearBuilt != nil {
		return e, err
	}

	addr := y.address(sale.Address)
	year, ok := y.cached(addr)
	if !ok {
		year = y.resolve(ctx, addr)
	}
	if year > 0 {
		e.YearBuilt = &year
	}
	return e, nil
}

func (y *YearBuiltEnricher) resolve(ctx context.Context, addr string) int {
	year, err := y.lookup.YearBuilt(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		y.log.Warn("year built lookup failed", zap.String("address", addr), zap.Error(err))
		year = 0
	}
	y.mu.Lock()
	y.cache[addr] = year
	y.mu.Unlock()
	return year
}

func (y *YearBuiltEnricher) cached(addr string) (int, bool) {
	y.mu.Lock()
	defer y.mu.Unlock()
	v, ok := y.cache[addr]
	return v, ok
}

func (y *YearBuiltEnricher) address(a model.Address) string {
	return lookupAddress(a, y.state)
}
