package review

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedSales inserts authoritative sales in Revesby and classifies each as
// pending, except ids listed in excluded.
func seedSales(t *testing.T, st *store.SQLiteStore, ids []string, excluded ...string) {
	t.Helper()
	ctx := context.Background()
	skip := map[string]bool{}
	for _, id := range excluded {
		skip[id] = true
	}

	sales := make([]model.AuthoritativeSale, len(ids))
	for i, id := range ids {
		area := 550.0
		sales[i] = model.AuthoritativeSale{
			ID:           id,
			Address:      model.Address{HouseNumber: string(rune('1' + i)), StreetName: "Alliance Ave", Suburb: "Revesby", Postcode: "2212"},
			PropertyType: model.PropertyHouse,
			ContractDate: time.Date(2026, 1, 10+i, 0, 0, 0, 0, time.UTC),
			Price:        1_400_000 + int64(i)*10_000,
			AreaSqm:      &area,
		}
	}
	_, err := st.InsertAuthoritativeSales(ctx, sales)
	require.NoError(t, err)

	for _, s := range sales {
		outcome := model.Pending()
		if skip[s.ID] {
			outcome = model.Excluded("modern build (2019)")
		}
		_, err := st.InsertClassification(ctx, model.SaleClassification{SaleID: s.ID, Address: s.Address.String(), Outcome: outcome})
		require.NoError(t, err)
	}
}

type countingRecorder struct {
	applied, rejected int
	parsed, failed    int
}

func (r *countingRecorder) RecordVerdict(_ model.Verdict, applied bool) {
	if applied {
		r.applied++
	} else {
		r.rejected++
	}
}

func (r *countingRecorder) RecordReply(parsed bool) {
	if parsed {
		r.parsed++
	} else {
		r.failed++
	}
}

func TestLedger_ApplyVerdict_Idempotent(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1"})
	ctx := context.Background()

	l := NewLedger(st, nil)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return first }
	require.NoError(t, l.ApplyVerdict(ctx, Decision{SaleID: "S1", Verdict: model.VerdictComparable}))
	once, err := st.GetClassification(ctx, "S1")
	require.NoError(t, err)

	l.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, l.ApplyVerdict(ctx, Decision{SaleID: "S1", Verdict: model.VerdictComparable}))
	twice, err := st.GetClassification(ctx, "S1")
	require.NoError(t, err)

	assert.True(t, twice.UseInMedian())
	at1, _ := once.Outcome.ReviewedAt()
	at2, _ := twice.Outcome.ReviewedAt()
	assert.True(t, at1.Equal(at2))
}

func TestLedger_ApplyVerdict_Overwrite(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1"})
	ctx := context.Background()
	l := NewLedger(st, nil)

	require.NoError(t, l.ApplyVerdict(ctx, Decision{SaleID: "S1", Verdict: model.VerdictComparable}))
	require.NoError(t, l.ApplyVerdict(ctx, Decision{SaleID: "S1", Verdict: model.VerdictNotComparable, Note: "granny flat"}))

	c, err := st.GetClassification(ctx, "S1")
	require.NoError(t, err)
	v, ok := c.Outcome.Verdict()
	require.True(t, ok)
	assert.Equal(t, model.VerdictNotComparable, v)
	assert.False(t, c.UseInMedian())
}

func TestLedger_ApplyVerdict_Invalid(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1"})

	err := NewLedger(st, nil).ApplyVerdict(context.Background(), Decision{SaleID: "S1", Verdict: "pending"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidVerdict))
	assert.Contains(t, err.Error(), "invalid verdict")
}

func TestLedger_ApplyVerdictBatch_SkipsInvalidVerdict(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2", "S3"})

	n, err := NewLedger(st, nil).ApplyVerdictBatch(context.Background(), []Decision{
		{SaleID: "S1", Verdict: model.VerdictComparable},
		{SaleID: "S2", Verdict: "bogus"},
		{SaleID: "S3", Verdict: model.VerdictComparable},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, err := st.GetClassification(context.Background(), "S3")
	require.NoError(t, err)
	v, ok := c.Outcome.Verdict()
	require.True(t, ok)
	assert.Equal(t, model.VerdictComparable, v)

	c, err = st.GetClassification(context.Background(), "S2")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePending, c.Outcome.Kind())
}

func TestLedger_ApplyVerdictBatch_IsolatesMissing(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2", "S3"}, "S3")
	rec := &countingRecorder{}

	n, err := NewLedger(st, rec).ApplyVerdictBatch(context.Background(), []Decision{
		{SaleID: "S1", Verdict: model.VerdictComparable},
		{SaleID: "gone", Verdict: model.VerdictComparable},
		{SaleID: "S3", Verdict: model.VerdictComparable},
		{SaleID: "S2", Verdict: model.VerdictNotComparable},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, rec.applied)
	assert.Equal(t, 2, rec.rejected)

	c, err := st.GetClassification(context.Background(), "S3")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExcluded, c.Outcome.Kind())
}

func TestLedger_ApplyAll(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2"})

	n, err := NewLedger(st, nil).ApplyAll(context.Background(), []string{"S1", "S2"}, model.VerdictComparable, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	prices, err := st.SalePrices(context.Background(), model.SaleFilter{}, model.PriceModeReviewed)
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}

type failingStore struct{ calls int }

func (f *failingStore) ApplyVerdict(context.Context, string, model.Verdict, string, time.Time) error {
	f.calls++
	return errors.New("database is locked")
}

func TestLedger_ApplyVerdictBatch_PersistenceFailureStops(t *testing.T) {
	fs := &failingStore{}
	n, err := NewLedger(fs, nil).ApplyAll(context.Background(), []string{"a", "b"}, model.VerdictComparable, "")
	require.Error(t, err)
	assert.False(t, eris.Is(err, store.ErrNotFound))
	assert.Zero(t, n)
	assert.Equal(t, 1, fs.calls)
}
