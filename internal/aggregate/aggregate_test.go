package aggregate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/store"
)

var (
	ref           = time.Date(2026, 3, 20, 15, 30, 0, 0, time.UTC)
	revesbyHouses = model.Segment{Code: "revesby_houses", Suburbs: []string{"Revesby"}, PropertyType: model.PropertyHouse}
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeSource struct {
	mu      sync.Mutex
	prices  []model.SalePrice
	filters []model.SaleFilter
	modes   []model.PriceMode
	err     error
}

func (f *fakeSource) add(date time.Time, prices ...int64) {
	for _, p := range prices {
		f.prices = append(f.prices, model.SalePrice{
			SaleID:       fmt.Sprintf("S%d", len(f.prices)+1),
			ContractDate: date,
			Price:        p,
		})
	}
}

func (f *fakeSource) SalePrices(_ context.Context, filter model.SaleFilter, mode model.PriceMode) ([]model.SalePrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SalePrice
	for _, p := range f.prices {
		if p.ContractDate.Before(filter.From) || p.ContractDate.After(filter.To) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func TestCalculator_Monthly(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2026, 3, 2), 1_000_000, 1_200_000)
	src.add(day(2026, 3, 18), 1_100_000)
	src.add(day(2026, 1, 15), 2_000_000)
	src.add(day(2025, 3, 10), 1_000_000)
	// Outside the prior-year window.
	src.add(day(2025, 3, 25), 9_000_000)

	res, err := NewCalculator(src, Thresholds{}).Segment(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)

	assert.False(t, res.Suppressed)
	assert.Equal(t, PeriodMonthly, res.Period)
	assert.Equal(t, day(2026, 3, 1), res.PeriodStart)
	assert.Equal(t, day(2026, 3, 20), res.PeriodEnd)
	assert.Equal(t, 3, res.SampleSize)
	require.NotNil(t, res.Median)
	assert.Equal(t, int64(1_100_000), *res.Median)
	require.NotNil(t, res.YoYPct)
	assert.InDelta(t, 10.0, *res.YoYPct, 1e-9)
	require.NotNil(t, res.RollingMedian3m)
	assert.Equal(t, int64(1_150_000), *res.RollingMedian3m)
	assert.Equal(t, 4, res.RollingSample3m)

	require.Len(t, src.filters, 1)
	assert.Equal(t, day(2024, 9, 1), src.filters[0].From)
	assert.Equal(t, []string{"revesby"}, src.filters[0].Suburbs)
	assert.Equal(t, model.PriceModeAll, src.modes[0])
}

func TestCalculator_FallsBackToQuarterly(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2026, 3, 5), 1_000_000, 1_100_000)
	src.add(day(2026, 1, 5), 1_200_000, 1_300_000, 1_400_000)

	res, err := NewCalculator(src, Thresholds{}).Segment(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)

	assert.Equal(t, PeriodQuarterly, res.Period)
	assert.Equal(t, day(2025, 12, 1), res.PeriodStart)
	assert.Equal(t, 5, res.SampleSize)
	assert.Equal(t, int64(1_200_000), *res.Median)
	assert.Nil(t, res.YoYPct)
}

func TestCalculator_FallsBackToSixMonths(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2025, 10, 5), 900_000, 950_000, 1_000_000, 1_050_000)
	src.add(day(2026, 1, 5), 1_100_000, 1_150_000)
	src.add(day(2026, 3, 5), 1_200_000, 1_250_000)

	res, err := NewCalculator(src, Thresholds{}).Segment(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)

	assert.Equal(t, Period6Month, res.Period)
	assert.Equal(t, day(2025, 9, 1), res.PeriodStart)
	assert.Equal(t, 8, res.SampleSize)
	assert.Equal(t, int64(1_075_000), *res.Median)
	assert.Equal(t, 4, res.RollingSample3m)
}

func TestCalculator_Suppressed(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2025, 10, 5), 900_000, 950_000, 1_000_000)
	src.add(day(2026, 1, 5), 1_100_000, 1_150_000)
	src.add(day(2026, 3, 5), 1_200_000, 1_250_000)
	src.add(day(2026, 3, 6), 0)

	res, err := NewCalculator(src, Thresholds{}).Segment(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)

	assert.True(t, res.Suppressed)
	assert.Equal(t, "insufficient sample size: 7 < 8", res.SuppressionReason)
	assert.Equal(t, PeriodMonthly, res.Period)
	assert.Equal(t, 7, res.SampleSize)
	assert.Nil(t, res.Median)
	assert.Nil(t, res.RollingMedian3m)
}

func TestCalculator_CustomThresholds(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2026, 3, 5), 1_000_000)

	res, err := NewCalculator(src, Thresholds{Monthly: 1}).Segment(context.Background(), revesbyHouses, ref)
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, res.Period)
	assert.Equal(t, int64(1_000_000), *res.Median)
}

func TestCalculator_ReviewedSegmentMode(t *testing.T) {
	src := &fakeSource{}
	seg := revesbyHouses
	seg.RequireReview = true

	_, err := NewCalculator(src, Thresholds{}).Segment(context.Background(), seg, ref)
	require.NoError(t, err)
	assert.Equal(t, []model.PriceMode{model.PriceModeReviewed}, src.modes)
}

func TestCalculator_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("disk full")}

	_, err := NewCalculator(src, Thresholds{}).Segment(context.Background(), revesbyHouses, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate: prices for revesby_houses")
}

func TestCalculator_All(t *testing.T) {
	src := &fakeSource{}
	src.add(day(2026, 3, 5), 1_000_000, 1_100_000, 1_200_000)
	segs := []model.Segment{
		revesbyHouses,
		{Code: "lane_cove_houses", Suburbs: []string{"Lane Cove"}, PropertyType: model.PropertyHouse},
	}

	res, err := NewCalculator(src, Thresholds{}).All(context.Background(), segs, ref)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "revesby_houses", res[0].Segment)
	assert.Equal(t, "lane_cove_houses", res[1].Segment)
}

func TestCalculator_All_Error(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	_, err := NewCalculator(src, Thresholds{}).All(context.Background(), []model.Segment{revesbyHouses}, ref)
	require.Error(t, err)
}

func TestCalculator_SQLite_OnlyComparableSalesCount(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	prices := []int64{1_000_000, 1_200_000, 5_000_000}
	sales := make([]model.AuthoritativeSale, len(prices))
	for i, p := range prices {
		sales[i] = model.AuthoritativeSale{
			ID:           fmt.Sprintf("A%d", i+1),
			Address:      model.Address{HouseNumber: fmt.Sprint(i + 1), StreetName: "Alliance Ave", Suburb: "Revesby", Postcode: "2212"},
			PropertyType: model.PropertyHouse,
			ContractDate: day(2026, 3, 2+i),
			Price:        p,
		}
	}
	_, err = st.InsertAuthoritativeSales(ctx, sales)
	require.NoError(t, err)
	for _, s := range sales {
		_, err := st.InsertClassification(ctx, model.SaleClassification{SaleID: s.ID, Address: s.Address.String(), Outcome: model.Pending()})
		require.NoError(t, err)
	}
	now := time.Now()
	require.NoError(t, st.ApplyVerdict(ctx, "A1", model.VerdictComparable, "", now))
	require.NoError(t, st.ApplyVerdict(ctx, "A2", model.VerdictComparable, "", now))
	require.NoError(t, st.ApplyVerdict(ctx, "A3", model.VerdictNotComparable, "", now))

	// A provisional record at a silly price must never move the median.
	_, err = st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{{
		ExternalID:   "P1",
		SourceTag:    "domain",
		Address:      model.Address{HouseNumber: "9", StreetName: "Alliance Ave", Suburb: "Revesby"},
		PropertyType: model.PropertyHouse,
		Price:        ptr[int64](99_000_000),
		SoldDate:     ptr(day(2026, 3, 10)),
	}})
	require.NoError(t, err)

	calc := NewCalculator(st, Thresholds{Monthly: 1})

	reviewed := revesbyHouses
	reviewed.RequireReview = true
	res, err := calc.Segment(ctx, reviewed, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SampleSize)
	assert.Equal(t, int64(1_100_000), *res.Median)

	res, err = calc.Segment(ctx, revesbyHouses, ref)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SampleSize)
	assert.Equal(t, int64(1_200_000), *res.Median)
}
