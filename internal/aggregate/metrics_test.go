package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		prices []int64
		want   int64
		ok     bool
	}{
		{"odd", []int64{100, 200, 300}, 200, true},
		{"even averages middle two", []int64{100, 200, 300, 400}, 250, true},
		{"even truncates", []int64{100, 201}, 150, true},
		{"single", []int64{500_000}, 500_000, true},
		{"unsorted", []int64{300, 100, 200}, 200, true},
		{"empty", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.prices)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []int64{3, 1, 2}
	_, _ = Median(in)
	assert.Equal(t, []int64{3, 1, 2}, in)
}

func TestYoYChange(t *testing.T) {
	tests := []struct {
		name           string
		current, prior *int64
		want           *float64
	}{
		{"positive", ptr[int64](1100), ptr[int64](1000), ptr(10.0)},
		{"negative", ptr[int64](900), ptr[int64](1000), ptr(-10.0)},
		{"flat", ptr[int64](1000), ptr[int64](1000), ptr(0.0)},
		{"rounds to one decimal", ptr[int64](1033), ptr[int64](1000), ptr(3.3)},
		{"no current", nil, ptr[int64](1000), nil},
		{"no prior", ptr[int64](1000), nil, nil},
		{"zero prior", ptr[int64](1000), ptr[int64](0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := YoYChange(tt.current, tt.prior)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestCompare(t *testing.T) {
	proxy := Result{Segment: "revesby_houses", Median: ptr[int64](1_500_000), YoYPct: ptr(8.0)}
	target := Result{Segment: "lane_cove_houses", Median: ptr[int64](3_000_000), YoYPct: ptr(5.0)}

	got := Compare(proxy, target)
	require.NotNil(t, got.PctSpread)
	assert.InDelta(t, 3.0, *got.PctSpread, 1e-9)
	require.NotNil(t, got.IsOutpacing)
	assert.True(t, *got.IsOutpacing)
	require.NotNil(t, got.DollarSpread)
	assert.Equal(t, int64(120_000-150_000), *got.DollarSpread)
}

func TestCompare_MissingYoY(t *testing.T) {
	got := Compare(Result{Segment: "a", YoYPct: ptr(1.0)}, Result{Segment: "b"})
	assert.Equal(t, "a", got.ProxySegment)
	assert.Nil(t, got.PctSpread)
	assert.Nil(t, got.IsOutpacing)
	assert.Nil(t, got.DollarSpread)
}
