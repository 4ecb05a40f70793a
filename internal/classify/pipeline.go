package classify

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/enrich"
	"github.com/sells-group/sales-tracker/internal/model"
)

// Store is the persistence the pipeline needs.
type Store interface {
	UnclassifiedSales(ctx context.Context, filter model.SaleFilter, limit int) ([]model.AuthoritativeSale, error)
	InsertClassification(ctx context.Context, c model.SaleClassification) (bool, error)
}

// Recorder receives per-sale outcomes. A nil Recorder is allowed.
type Recorder interface {
	RecordClassification(kind model.OutcomeKind)
}

// Result summarises one pipeline run.
type Result struct {
	Considered int `json:"considered"`
	Pending    int `json:"pending"`
	Excluded   int `json:"excluded"`
	Existing   int `json:"existing"`
	Failed     int `json:"failed"`
}

// Pipeline enriches, classifies and records unclassified sales.
type Pipeline struct {
	store    Store
	enricher enrich.Enricher
	rules    Rules
	recorder Recorder
	log      *zap.Logger
}

// NewPipeline creates a Pipeline. recorder may be nil.
func NewPipeline(store Store, enricher enrich.Enricher, rules Rules, recorder Recorder) *Pipeline {
	return &Pipeline{
		store:    store,
		enricher: enricher,
		rules:    rules,
		recorder: recorder,
		log:      zap.L().With(zap.String("component", "classify")),
	}
}

// ClassifyUnclassified processes up to limit sales matching filter that have
// no classification yet. An enrichment failure skips that sale; a store
// failure aborts the run.
func (p *Pipeline) ClassifyUnclassified(ctx context.Context, filter model.SaleFilter, limit int) (Result, error) {
	var res Result

	sales, err := p.store.UnclassifiedSales(ctx, filter, limit)
	if err != nil {
		return res, eris.Wrap(err, "classify: list unclassified")
	}
	if pf, ok := p.enricher.(enrich.Prefetcher); ok && len(sales) > 0 {
		if err := pf.Prefetch(ctx, sales); err != nil {
			return res, eris.Wrap(err, "classify: prefetch enrichment")
		}
	}

	for _, sale := range sales {
		res.Considered++

		e, err := p.enricher.Enrich(ctx, sale)
		if err != nil {
			p.log.Warn("enrichment failed, skipping sale", zap.String("sale_id", sale.ID), zap.Error(err))
			res.Failed++
			continue
		}
		if sale.Description != nil {
			e.HasKeywords = e.HasKeywords || p.rules.ScanKeywords(*sale.Description)
		}

		outcome := p.rules.Classify(e)
		created, err := p.store.InsertClassification(ctx, model.SaleClassification{
			SaleID:     sale.ID,
			Address:    sale.Address.String(),
			Enrichment: e,
			Outcome:    outcome,
			ListingURL: sale.ListingURL,
		})
		if err != nil {
			return res, eris.Wrapf(err, "classify: record %s", sale.ID)
		}
		if !created {
			res.Existing++
			continue
		}

		switch outcome.Kind() {
		case model.OutcomeExcluded:
			res.Excluded++
		default:
			res.Pending++
		}
		if p.recorder != nil {
			p.recorder.RecordClassification(outcome.Kind())
		}
		p.log.Debug("classified sale",
			zap.String("sale_id", sale.ID),
			zap.Stringer("outcome", outcome.Kind()),
			zap.String("reason", outcome.Reason()),
		)
	}

	p.log.Info("classification run complete",
		zap.Int("considered", res.Considered),
		zap.Int("pending", res.Pending),
		zap.Int("excluded", res.Excluded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
