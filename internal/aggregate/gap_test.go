package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metric(seg string, median int64, yoy float64) Result {
	return Result{Segment: seg, Median: ptr(median), YoYPct: ptr(yoy), SampleSize: 10}
}

func TestTrackGap_CatchingUp(t *testing.T) {
	suppressed := Result{Segment: "padstow_units", Suppressed: true, SuppressionReason: "insufficient sample size: 2 < 8"}

	g := TrackGap([]Result{
		metric("revesby_houses", 1_000_000, 10),
		metric("wollstonecraft_units", 800_000, 5),
		suppressed,
	}, metric("lane_cove_houses", 2_000_000, 4))

	require.Len(t, g.Proxies, 3)
	assert.Equal(t, int64(100_000), *g.Proxies[0].Change)
	assert.Equal(t, int64(40_000), *g.Proxies[1].Change)
	assert.Nil(t, g.Proxies[2].Change)
	assert.True(t, g.Proxies[2].Suppressed)

	require.NotNil(t, g.ProxyChange)
	assert.Equal(t, int64(140_000), *g.ProxyChange)
	assert.Equal(t, int64(80_000), *g.Target.Change)
	require.NotNil(t, g.NetPosition)
	assert.Equal(t, int64(60_000), *g.NetPosition)
	assert.True(t, *g.CatchingUp)
	assert.Equal(t, []string{"padstow_units: suppressed (insufficient sample size: 2 < 8)"}, g.Notes)
	assert.Contains(t, g.Verdict, "strong progress")
}

func TestTrackGap_FallingBehind(t *testing.T) {
	g := TrackGap([]Result{metric("revesby_houses", 1_000_000, 10)}, metric("lane_cove_houses", 2_000_000, 10))

	assert.Equal(t, int64(-100_000), *g.NetPosition)
	assert.False(t, *g.CatchingUp)
	assert.Contains(t, g.Verdict, "gap widening")

	g = TrackGap([]Result{metric("revesby_houses", 1_000_000, 10)}, metric("lane_cove_houses", 2_000_000, 6))
	assert.Equal(t, int64(-20_000), *g.NetPosition)
	assert.Contains(t, g.Verdict, "slight negative")
}

func TestTrackGap_TargetUnusable(t *testing.T) {
	target := Result{Segment: "lane_cove_houses", Suppressed: true, SuppressionReason: "insufficient sample size: 1 < 8"}
	g := TrackGap([]Result{metric("revesby_houses", 1_000_000, 10)}, target)

	require.NotNil(t, g.ProxyChange)
	assert.Nil(t, g.NetPosition)
	assert.Nil(t, g.CatchingUp)
	assert.Equal(t, []string{"target lane_cove_houses: suppressed (insufficient sample size: 1 < 8)"}, g.Notes)
	assert.Equal(t, "insufficient data to calculate gap trend", g.Verdict)
}

func TestTrackGap_NoUsableProxy(t *testing.T) {
	noYoY := Result{Segment: "revesby_houses", Median: ptr[int64](1_000_000)}
	g := TrackGap([]Result{noYoY}, metric("lane_cove_houses", 2_000_000, 4))

	assert.Nil(t, g.ProxyChange)
	assert.Nil(t, g.NetPosition)
	assert.Equal(t, []string{"revesby_houses: missing YoY data"}, g.Notes)
}

func TestCalculator_Samples(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2026, 3, 5), 1_000_000, 1_100_000)
	src.add(day(2026, 1, 5), 1_200_000, 1_300_000, 1_400_000)
	src.add(day(2025, 10, 5), 900_000)

	s, err := NewCalculator(src, Thresholds{}).Samples(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)
	assert.Equal(t, Samples{
		Segment:   "revesby_houses",
		Monthly:   2,
		Quarterly: 5,
		SixMonth:  6,
		Period:    PeriodQuarterly,
	}, s)
	assert.Equal(t, day(2025, 9, 1), src.filters[0].From)
}

func TestCalculator_Samples_WouldSuppress(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2026, 3, 5), 1_000_000)

	s, err := NewCalculator(src, Thresholds{}).Samples(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SixMonth)
	assert.Empty(t, s.Period)
}
