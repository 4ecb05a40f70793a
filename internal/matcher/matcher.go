// Package matcher links unconfirmed provisional sales to authoritative sales
// with the same normalised address inside a contract-date window.
package matcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/address"
	"github.com/sells-group/sales-tracker/internal/model"
)

// DefaultWindowDays is the symmetric contract-date tolerance.
const DefaultWindowDays = 14

// Store is the persistence the matcher needs.
type Store interface {
	UnconfirmedProvisionalSales(ctx context.Context, filter model.ProvisionalFilter) ([]model.ProvisionalSale, error)
	MatchCandidates(ctx context.Context, suburb string, propertyType model.PropertyType, from, to time.Time) ([]model.AuthoritativeSale, error)
	// ConfirmProvisionalSale atomically sets status=confirmed and the link.
	// It reports false when the sale was no longer unconfirmed.
	ConfirmProvisionalSale(ctx context.Context, provisionalID, authoritativeID string) (bool, error)
}

// Recorder receives per-run counters. A nil Recorder is allowed.
type Recorder interface {
	RecordMatchRun(res Result)
}

// Result summarises one batch run.
type Result struct {
	Considered int `json:"considered"`
	Linked     int `json:"linked"`
	Ties       int `json:"ties"`
	Skipped    int `json:"skipped"`
	NoMatch    int `json:"no_match"`
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWindowDays overrides the ±day window.
func WithWindowDays(days int) Option {
	return func(m *Matcher) {
		if days >= 0 {
			m.windowDays = days
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Matcher) {
		m.recorder = r
	}
}

// Matcher runs the full-batch provisional→authoritative link.
type Matcher struct {
	store      Store
	windowDays int
	recorder   Recorder
}

// New creates a Matcher.
func New(store Store, opts ...Option) *Matcher {
	m := &Matcher{store: store, windowDays: DefaultWindowDays}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run matches every unconfirmed provisional sale. Ambiguous and unmatched
// sales stay unconfirmed. Store errors abort the run; everything else is
// handled per sale.
func (m *Matcher) Run(ctx context.Context) (Result, error) {
	log := zap.L().With(zap.String("component", "matcher"))

	sales, err := m.store.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{})
	if err != nil {
		return Result{}, eris.Wrap(err, "matcher: list unconfirmed")
	}

	var res Result
	for _, sale := range sales {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "matcher: cancelled")
		}
		res.Considered++

		if sale.SoldDate == nil || sale.AddressKey == nil || *sale.AddressKey == "" {
			res.Skipped++
			continue
		}

		soldOn := model.CivilDate(*sale.SoldDate)
		window := time.Duration(m.windowDays) * 24 * time.Hour
		candidates, err := m.store.MatchCandidates(ctx, sale.Address.Suburb, sale.PropertyType, soldOn.Add(-window), soldOn.Add(window))
		if err != nil {
			return res, eris.Wrapf(err, "matcher: candidates for %s", sale.ID)
		}

		best, tied := m.pick(address.Key(*sale.AddressKey), soldOn, candidates)
		switch {
		case tied != nil:
			res.Ties++
			log.Info("ambiguous match, leaving unconfirmed",
				zap.String("provisional_id", sale.ID),
				zap.Strings("candidates", tied),
			)
			continue
		case best == nil:
			res.NoMatch++
			continue
		}

		ok, err := m.store.ConfirmProvisionalSale(ctx, sale.ID, best.ID)
		if err != nil {
			return res, eris.Wrapf(err, "matcher: confirm %s", sale.ID)
		}
		if !ok {
			continue
		}
		res.Linked++
		log.Info("matched provisional sale",
			zap.String("provisional_id", sale.ID),
			zap.String("sale_id", best.ID),
		)
	}

	log.Info("match run complete",
		zap.Int("considered", res.Considered),
		zap.Int("linked", res.Linked),
		zap.Int("ties", res.Ties),
		zap.Int("skipped", res.Skipped),
	)
	if m.recorder != nil {
		m.recorder.RecordMatchRun(res)
	}
	return res, nil
}

// pick returns the unique closest-dated candidate whose key equals key. When
// two or more share the smallest distance it returns their ids instead.
func (m *Matcher) pick(key address.Key, soldOn time.Time, candidates []model.AuthoritativeSale) (*model.AuthoritativeSale, []string) {
	var (
		best     *model.AuthoritativeSale
		bestDays = -1
		tied     []string
	)
	for i := range candidates {
		c := &candidates[i]
		if c.ContractDate.IsZero() {
			zap.L().Debug("matcher: candidate without contract date", zap.String("sale_id", c.ID))
			continue
		}
		days := model.DaysBetween(soldOn, c.ContractDate)
		if days > m.windowDays {
			continue
		}
		if address.Normalise(c.Address) != key {
			continue
		}
		switch {
		case bestDays < 0 || days < bestDays:
			best, bestDays, tied = c, days, nil
		case days == bestDays:
			if tied == nil {
				tied = []string{best.ID}
			}
			tied = append(tied, c.ID)
		}
	}
	if tied != nil {
		return nil, tied
	}
	return best, nil
}
