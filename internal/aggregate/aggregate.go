// Package aggregate computes segment price statistics. Prices come only from
// authoritative sales; segments that opted into review only see sales a
// human marked comparable.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Default minimum sample sizes per period.
const (
	DefaultMinSampleMonthly   = 3
	DefaultMinSampleQuarterly = 5
	DefaultMinSample6Month    = 8
)

// Period is the window a result was computed over.
type Period string

const (
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	Period6Month    Period = "6month"
)

// Thresholds are the minimum sample sizes before falling back to a longer
// period.
type Thresholds struct {
	Monthly   int `yaml:"min_sample_monthly" mapstructure:"min_sample_monthly"`
	Quarterly int `yaml:"min_sample_quarterly" mapstructure:"min_sample_quarterly"`
	SixMonth  int `yaml:"min_sample_6month" mapstructure:"min_sample_6month"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Monthly:   DefaultMinSampleMonthly,
		Quarterly: DefaultMinSampleQuarterly,
		SixMonth:  DefaultMinSample6Month,
	}
}

// PriceSource reads segment prices. Implemented by store.Store.
type PriceSource interface {
	SalePrices(ctx context.Context, filter model.SaleFilter, mode model.PriceMode) ([]model.SalePrice, error)
}

// Result is the metric set for one segment at a reference date.
type Result struct {
	Segment           string    `json:"segment"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	Period            Period    `json:"period_type"`
	Median            *int64    `json:"median_price,omitempty"`
	SampleSize        int       `json:"sample_size"`
	YoYPct            *float64  `json:"yoy_pct,omitempty"`
	RollingMedian3m   *int64    `json:"rolling_median_3m,omitempty"`
	RollingSample3m   int       `json:"rolling_sample_3m"`
	Suppressed        bool      `json:"is_suppressed"`
	SuppressionReason string    `json:"suppression_reason,omitempty"`
}

// Calculator computes segment metrics.
type Calculator struct {
	src        PriceSource
	thresholds Thresholds
	log        *zap.Logger
}

// NewCalculator creates a calculator. Zero thresholds take the defaults.
func NewCalculator(src PriceSource, t Thresholds) *Calculator {
	d := DefaultThresholds()
	if t.Monthly <= 0 {
		t.Monthly = d.Monthly
	}
	if t.Quarterly <= 0 {
		t.Quarterly = d.Quarterly
	}
	if t.SixMonth <= 0 {
		t.SixMonth = d.SixMonth
	}
	return &Calculator{
		src:        src,
		thresholds: t,
		log:        zap.L().With(zap.String("component", "aggregate")),
	}
}

type window struct {
	period     Period
	start, end time.Time
	min        int
}

// Segment computes metrics for seg ending at ref. It tries the current
// month, then the quarter, then six months, and suppresses the result when
// none has enough sales.
func (c *Calculator) Segment(ctx context.Context, seg model.Segment, ref time.Time) (Result, error) {
	ref = model.CivilDate(ref)
	monthStart := firstOfMonth(ref)
	quarterStart := firstOfMonth(ref.AddDate(0, 0, -90))
	sixStart := firstOfMonth(ref.AddDate(0, 0, -180))

	// One read covers every window and its prior-year counterpart.
	prices, err := c.src.SalePrices(ctx, seg.Filter(sixStart.AddDate(-1, 0, 0), ref), model.ModeFor(seg))
	if err != nil {
		return Result{}, eris.Wrapf(err, "aggregate: prices for %s", seg.Code)
	}

	windows := []window{
		{PeriodMonthly, monthStart, ref, c.thresholds.Monthly},
		{PeriodQuarterly, quarterStart, ref, c.thresholds.Quarterly},
		{Period6Month, sixStart, ref, c.thresholds.SixMonth},
	}

	var sample []int64
	for _, w := range windows {
		sample = between(prices, w.start, w.end)
		if len(sample) < w.min {
			continue
		}

		res := Result{
			Segment:     seg.Code,
			PeriodStart: w.start,
			PeriodEnd:   w.end,
			Period:      w.period,
			SampleSize:  len(sample),
		}
		res.Median = medianPtr(sample)
		prior := medianPtr(between(prices, w.start.AddDate(-1, 0, 0), w.end.AddDate(-1, 0, 0)))
		res.YoYPct = YoYChange(res.Median, prior)

		rolling := between(prices, quarterStart, ref)
		res.RollingMedian3m = medianPtr(rolling)
		res.RollingSample3m = len(rolling)

		c.log.Debug("segment metrics",
			zap.String("segment", seg.Code),
			zap.String("period", string(w.period)),
			zap.Int("sample", res.SampleSize),
		)
		return res, nil
	}

	reason := fmt.Sprintf("insufficient sample size: %d < %d", len(sample), c.thresholds.SixMonth)
	c.log.Info("segment suppressed", zap.String("segment", seg.Code), zap.String("reason", reason))
	return Result{
		Segment:           seg.Code,
		PeriodStart:       monthStart,
		PeriodEnd:         ref,
		Period:            PeriodMonthly,
		SampleSize:        len(sample),
		Suppressed:        true,
		SuppressionReason: reason,
	}, nil
}

// All computes metrics for every segment concurrently. Results keep the
// order of segs.
func (c *Calculator) All(ctx context.Context, segs []model.Segment, ref time.Time) ([]Result, error) {
	out := make([]Result, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, seg := range segs {
		g.Go(func() error {
			r, err := c.Segment(gctx, seg, ref)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// between returns positive prices with contract dates in [from, to].
func between(prices []model.SalePrice, from, to time.Time) []int64 {
	var out []int64
	for _, p := range prices {
		if p.Price <= 0 || p.ContractDate.Before(from) || p.ContractDate.After(to) {
			continue
		}
		out = append(out, p.Price)
	}
	return out
}

func medianPtr(prices []int64) *int64 {
	m, ok := Median(prices)
	if !ok {
		return nil
	}
	return &m
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
