package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-tracker/internal/model"
)

// strongGap is the yearly dollar gap treated as significant.
const strongGap = 50_000

// GapEntry is one segment's contribution to a gap calculation.
type GapEntry struct {
	Segment    string   `json:"segment"`
	Median     *int64   `json:"median_price,omitempty"`
	YoYPct     *float64 `json:"yoy_pct,omitempty"`
	Change     *int64   `json:"change,omitempty"`
	SampleSize int      `json:"sample_size"`
	Suppressed bool     `json:"is_suppressed"`
}

// Gap reports whether a set of proxy segments, taken together, is gaining
// on a target segment in dollar terms.
type Gap struct {
	Proxies     []GapEntry `json:"proxies"`
	ProxyChange *int64     `json:"proxy_total_change,omitempty"`
	Target      GapEntry   `json:"target"`
	NetPosition *int64     `json:"net_position,omitempty"`
	CatchingUp  *bool      `json:"is_catching_up,omitempty"`
	Notes       []string   `json:"notes,omitempty"`
	Verdict     string     `json:"verdict"`
}

// TrackGap sums the yearly dollar change of each usable proxy and compares
// it with the target's. Suppressed segments and segments without a YoY
// figure are noted and left out of the sum.
func TrackGap(proxies []Result, target Result) Gap {
	var g Gap
	var total int64
	usable := false
	for _, p := range proxies {
		e, note := gapEntry(p)
		if note != "" {
			g.Notes = append(g.Notes, note)
		} else {
			total += *e.Change
			usable = true
		}
		g.Proxies = append(g.Proxies, e)
	}

	t, note := gapEntry(target)
	if note != "" {
		g.Notes = append(g.Notes, "target "+note)
	}
	g.Target = t

	if usable {
		g.ProxyChange = &total
	}
	if usable && t.Change != nil {
		net := total - *t.Change
		ahead := net > 0
		g.NetPosition, g.CatchingUp = &net, &ahead
	}
	g.Verdict = gapVerdict(g)
	return g
}

func gapEntry(r Result) (GapEntry, string) {
	e := GapEntry{
		Segment:    r.Segment,
		Median:     r.Median,
		YoYPct:     r.YoYPct,
		SampleSize: r.SampleSize,
		Suppressed: r.Suppressed,
	}
	if r.Suppressed {
		return e, fmt.Sprintf("%s: suppressed (%s)", r.Segment, r.SuppressionReason)
	}
	e.Change = dollarChange(r)
	if e.Change == nil {
		return e, r.Segment + ": missing YoY data"
	}
	return e, ""
}

// dollarChange approximates a segment's yearly change from its median and
// YoY percentage.
func dollarChange(r Result) *int64 {
	if r.Median == nil || r.YoYPct == nil {
		return nil
	}
	c := int64(float64(*r.Median) * (*r.YoYPct / 100))
	return &c
}

func gapVerdict(g Gap) string {
	if g.NetPosition == nil {
		return "insufficient data to calculate gap trend"
	}
	net := *g.NetPosition
	switch {
	case net > strongGap:
		return "strong progress: proxies are significantly outpacing the target"
	case net > 0:
		return "positive trend: proxies are growing faster than the target"
	case net < -strongGap:
		return "gap widening: target is growing significantly faster than the proxies"
	default:
		return "slight negative trend: target is growing faster than the proxies"
	}
}

// Samples counts the usable sales for one segment in each fallback window.
type Samples struct {
	Segment   string `json:"segment"`
	Monthly   int    `json:"monthly"`
	Quarterly int    `json:"quarterly"`
	SixMonth  int    `json:"six_month"`
	// Period is the first window that meets its threshold, or empty when
	// the segment would be suppressed.
	Period Period `json:"period,omitempty"`
}

// Samples reports sample counts for seg at ref without computing medians.
func (c *Calculator) Samples(ctx context.Context, seg model.Segment, ref time.Time) (Samples, error) {
	ref = model.CivilDate(ref)
	monthStart := firstOfMonth(ref)
	quarterStart := firstOfMonth(ref.AddDate(0, 0, -90))
	sixStart := firstOfMonth(ref.AddDate(0, 0, -180))

	prices, err := c.src.SalePrices(ctx, seg.Filter(sixStart, ref), model.ModeFor(seg))
	if err != nil {
		return Samples{}, eris.Wrapf(err, "aggregate: prices for %s", seg.Code)
	}
	s := Samples{
		Segment:   seg.Code,
		Monthly:   len(between(prices, monthStart, ref)),
		Quarterly: len(between(prices, quarterStart, ref)),
		SixMonth:  len(between(prices, sixStart, ref)),
	}
	switch {
	case s.Monthly >= c.thresholds.Monthly:
		s.Period = PeriodMonthly
	case s.Quarterly >= c.thresholds.Quarterly:
		s.Period = PeriodQuarterly
	case s.SixMonth >= c.thresholds.SixMonth:
		s.Period = Period6Month
	}
	return s, nil
}
