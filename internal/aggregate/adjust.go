package aggregate

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/model"
)

// recencyDecay halves a sale's weight after ten months.
const recencyDecay = 0.1

// Growth holds the annual growth assumptions used to bring older sales
// forward to the reference month.
type Growth struct {
	Base         float64 `yaml:"base" mapstructure:"base"`
	Conservative float64 `yaml:"conservative" mapstructure:"conservative"`
	Optimistic   float64 `yaml:"optimistic" mapstructure:"optimistic"`
}

// DefaultGrowth returns 7% base with a 5% to 10% range.
func DefaultGrowth() Growth {
	return Growth{Base: 0.07, Conservative: 0.05, Optimistic: 0.10}
}

// AdjustedSale is one sale carried forward to the reference month.
type AdjustedSale struct {
	SaleID        string    `json:"sale_id"`
	ContractDate  time.Time `json:"contract_date"`
	Price         int64     `json:"price"`
	Adjusted      int64     `json:"adjusted_price"`
	MonthsAgo     int       `json:"months_ago"`
	AdjustmentPct float64   `json:"adjustment_pct"`
	Weight        float64   `json:"recency_weight"`
}

// TimeAdjusted is the time-adjusted view of a segment's recent sales.
type TimeAdjusted struct {
	Segment      string         `json:"segment"`
	Reference    time.Time      `json:"reference_date"`
	SampleSize   int            `json:"sample_size"`
	GrowthRate   float64        `json:"growth_rate_annual"`
	Naive        *int64         `json:"naive_median,omitempty"`
	Adjusted     *int64         `json:"adjusted_median,omitempty"`
	Weighted     *int64         `json:"weighted_median,omitempty"`
	Conservative *int64         `json:"conservative_median,omitempty"`
	Optimistic   *int64         `json:"optimistic_median,omitempty"`
	Oldest       *time.Time     `json:"oldest_sale_date,omitempty"`
	Newest       *time.Time     `json:"newest_sale_date,omitempty"`
	SalesByMonth map[string]int `json:"sales_by_month"`
	Sales        []AdjustedSale `json:"sales,omitempty"`
}

// MonthsBetween counts calendar months from sale to ref, ignoring the day.
func MonthsBetween(sale, ref time.Time) int {
	return (ref.Year()-sale.Year())*12 + int(ref.Month()) - int(sale.Month())
}

// AdjustPrice compounds price monthly at annual/12 for months and returns
// the adjusted price (truncated) and the adjustment in percent.
func AdjustPrice(price int64, months int, annual float64) (int64, float64) {
	factor := math.Pow(1+annual/12, float64(months))
	return int64(float64(price) * factor), (factor - 1) * 100
}

// RecencyWeight is 1 for the reference month and decays hyperbolically.
func RecencyWeight(months int) float64 {
	return 1 / (1 + float64(months)*recencyDecay)
}

// Weighted pairs a value with its weight.
type Weighted struct {
	Value  int64
	Weight float64
}

// WeightedMedian returns the smallest value at which the cumulative weight
// reaches half the total. ok is false for an empty slice.
func WeightedMedian(vals []Weighted) (int64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := slices.Clone(vals)
	slices.SortStableFunc(sorted, func(a, b Weighted) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})

	var total float64
	for _, v := range sorted {
		total += v.Weight
	}
	var cum float64
	for _, v := range sorted {
		cum += v.Weight
		if cum >= total/2 {
			return v.Value, true
		}
	}
	return sorted[len(sorted)-1].Value, true
}

// AdjustSales carries every positive price forward to ref at rate.
func AdjustSales(prices []model.SalePrice, ref time.Time, rate float64) []AdjustedSale {
	out := make([]AdjustedSale, 0, len(prices))
	for _, p := range prices {
		if p.Price <= 0 {
			continue
		}
		months := MonthsBetween(p.ContractDate, ref)
		adj, pct := AdjustPrice(p.Price, months, rate)
		out = append(out, AdjustedSale{
			SaleID:        p.SaleID,
			ContractDate:  p.ContractDate,
			Price:         p.Price,
			Adjusted:      adj,
			MonthsAgo:     months,
			AdjustmentPct: pct,
			Weight:        RecencyWeight(months),
		})
	}
	slices.SortStableFunc(out, func(a, b AdjustedSale) int {
		return a.ContractDate.Compare(b.ContractDate)
	})
	return out
}

// TimeAdjust computes naive, adjusted and recency-weighted medians for
// prices at ref, plus the weighted median under the conservative and
// optimistic growth rates.
func TimeAdjust(segment string, prices []model.SalePrice, ref time.Time, g Growth) TimeAdjusted {
	ref = model.CivilDate(ref)
	sales := AdjustSales(prices, ref, g.Base)
	res := TimeAdjusted{
		Segment:      segment,
		Reference:    ref,
		SampleSize:   len(sales),
		GrowthRate:   g.Base,
		SalesByMonth: make(map[string]int),
		Sales:        sales,
	}
	if len(sales) == 0 {
		return res
	}

	oldest, newest := sales[0].ContractDate, sales[len(sales)-1].ContractDate
	res.Oldest, res.Newest = &oldest, &newest

	raw := make([]int64, len(sales))
	adjusted := make([]int64, len(sales))
	base := make([]Weighted, len(sales))
	for i, s := range sales {
		res.SalesByMonth[s.ContractDate.Format("2006-01")]++
		raw[i] = s.Price
		adjusted[i] = s.Adjusted
		base[i] = Weighted{s.Adjusted, s.Weight}
	}
	res.Naive = medianPtr(raw)
	res.Adjusted = medianPtr(adjusted)
	res.Weighted = weightedPtr(base)
	res.Conservative = weightedPtr(reweigh(sales, g.Conservative))
	res.Optimistic = weightedPtr(reweigh(sales, g.Optimistic))
	return res
}

func reweigh(sales []AdjustedSale, rate float64) []Weighted {
	out := make([]Weighted, len(sales))
	for i, s := range sales {
		adj, _ := AdjustPrice(s.Price, s.MonthsAgo, rate)
		out[i] = Weighted{adj, s.Weight}
	}
	return out
}

func weightedPtr(vals []Weighted) *int64 {
	m, ok := WeightedMedian(vals)
	if !ok {
		return nil
	}
	return &m
}

// TimeAdjusted computes the time-adjusted medians for seg over the twelve
// months ending at ref.
func (c *Calculator) TimeAdjusted(ctx context.Context, seg model.Segment, ref time.Time, g Growth) (TimeAdjusted, error) {
	ref = model.CivilDate(ref)
	from := firstOfMonth(ref).AddDate(-1, 0, 0)
	prices, err := c.src.SalePrices(ctx, seg.Filter(from, ref), model.ModeFor(seg))
	if err != nil {
		return TimeAdjusted{}, eris.Wrapf(err, "aggregate: prices for %s", seg.Code)
	}
	res := TimeAdjust(seg.Code, prices, ref, g)
	c.log.Debug("time adjusted metrics",
		zap.String("segment", seg.Code),
		zap.Int("sample", res.SampleSize),
	)
	return res, nil
}
