package aggregate

import (
	"math"
	"slices"
)

// Median returns the median of prices. Even counts average the middle two,
// truncated toward zero. ok is false for an empty slice.
func Median(prices []int64) (median int64, ok bool) {
	if len(prices) == 0 {
		return 0, false
	}
	sorted := slices.Clone(prices)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// YoYChange returns the percentage change from prior to current rounded to
// one decimal place, or nil when either side is missing or prior is zero.
func YoYChange(current, prior *int64) *float64 {
	if current == nil || prior == nil || *prior == 0 {
		return nil
	}
	pct := float64(*current-*prior) / float64(*prior) * 100
	pct = round1(pct)
	return &pct
}

// Outpacing compares the growth of a proxy segment against a target segment.
type Outpacing struct {
	ProxySegment  string   `json:"proxy_segment"`
	TargetSegment string   `json:"target_segment"`
	ProxyYoY      *float64 `json:"proxy_yoy,omitempty"`
	TargetYoY     *float64 `json:"target_yoy,omitempty"`
	PctSpread     *float64 `json:"pct_spread,omitempty"`
	DollarSpread  *int64   `json:"dollar_spread,omitempty"`
	IsOutpacing   *bool    `json:"is_outpacing,omitempty"`
}

// Compare computes the spread between proxy and target results. The dollar
// spread approximates each segment's change from its median and YoY.
func Compare(proxy, target Result) Outpacing {
	out := Outpacing{
		ProxySegment:  proxy.Segment,
		TargetSegment: target.Segment,
		ProxyYoY:      proxy.YoYPct,
		TargetYoY:     target.YoYPct,
	}
	if proxy.YoYPct == nil || target.YoYPct == nil {
		return out
	}

	spread := round1(*proxy.YoYPct - *target.YoYPct)
	outpacing := spread > 0
	out.PctSpread = &spread
	out.IsOutpacing = &outpacing

	if pc, tc := dollarChange(proxy), dollarChange(target); pc != nil && tc != nil {
		d := *pc - *tc
		out.DollarSpread = &d
	}
	return out
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
