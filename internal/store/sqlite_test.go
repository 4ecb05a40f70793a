package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-tracker/internal/db"
	"github.com/sells-group/sales-tracker/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func ptr[T any](v T) *T { return &v }

func authSale(t *testing.T, id, house, street, suburb, contract string, price int64) model.AuthoritativeSale {
	t.Helper()
	return model.AuthoritativeSale{
		ID:           id,
		Address:      model.Address{HouseNumber: house, StreetName: street, Suburb: suburb, Postcode: "2212"},
		PropertyType: model.PropertyHouse,
		ContractDate: day(t, contract),
		Price:        price,
		AreaSqm:      ptr(556.0),
	}
}

func seedAuthoritative(t *testing.T, st Store, sales ...model.AuthoritativeSale) {
	t.Helper()
	n, err := st.InsertAuthoritativeSales(context.Background(), sales)
	require.NoError(t, err)
	require.Equal(t, len(sales), n)
}

func seedPending(t *testing.T, st Store, saleIDs ...string) {
	t.Helper()
	for _, id := range saleIDs {
		ok, err := st.InsertClassification(context.Background(), model.SaleClassification{
			SaleID:  id,
			Address: "addr " + id,
			Outcome: model.Pending(),
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// --- Provisional sales ---

func TestSQLite_InsertProvisional_IdempotentOnExternalID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sold := day(t, "2026-02-03")
	rec := model.ProvisionalRecord{
		ExternalID:   "2019876543",
		SourceTag:    "domain",
		Address:      model.Address{HouseNumber: "27", StreetName: "Morton St", Suburb: "Wollstonecraft", Postcode: "2065"},
		PropertyType: model.PropertyHouse,
		Price:        ptr(int64(2_150_000)),
		SoldDate:     &sold,
		RawPayload:   json.RawMessage(`{"snippet":"Sold by auction"}`),
	}

	n, err := st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	corrected := rec
	corrected.Price = ptr(int64(9_999_999))
	n, err = st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{corrected})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := st.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2_150_000), *got[0].Price)
	assert.Equal(t, "|27|morton st|wollstonecraft|2065", *got[0].AddressKey)
	assert.True(t, got[0].SoldDate.Equal(sold))
	assert.JSONEq(t, `{"snippet":"Sold by auction"}`, string(got[0].RawPayload))
}

func TestSQLite_InsertProvisional_SameIDDifferentSource(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	recs := []model.ProvisionalRecord{
		{ExternalID: "1", SourceTag: "domain", Address: model.Address{Suburb: "Revesby"}, PropertyType: model.PropertyHouse},
		{ExternalID: "1", SourceTag: "google", Address: model.Address{Suburb: "Revesby"}, PropertyType: model.PropertyHouse},
		{ExternalID: "", SourceTag: "google", PropertyType: model.PropertyHouse},
	}
	n, err := st.InsertProvisionalSales(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_InsertProvisional_NoKeyWithoutStreet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{{
		ExternalID:   "x1",
		SourceTag:    "google",
		Address:      model.Address{Suburb: "Revesby"},
		PropertyType: model.PropertyHouse,
	}})
	require.NoError(t, err)

	got, err := st.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].AddressKey)
	assert.Nil(t, got[0].SoldDate)
	assert.True(t, got[0].PriceWithheld())
}

func TestSQLite_UnconfirmedProvisional_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	mk := func(id, suburb string, pt model.PropertyType, price *int64) model.ProvisionalRecord {
		return model.ProvisionalRecord{
			ExternalID: id, SourceTag: "domain", PropertyType: pt, Price: price,
			Address: model.Address{HouseNumber: "1", StreetName: "Test St", Suburb: suburb},
		}
	}
	_, err := st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{
		mk("a", "Revesby", model.PropertyHouse, ptr(int64(1_400_000))),
		mk("b", "REVESBY", model.PropertyHouse, ptr(int64(1_900_000))),
		mk("c", "Revesby", model.PropertyUnit, ptr(int64(700_000))),
		mk("d", "Padstow", model.PropertyHouse, ptr(int64(1_500_000))),
		mk("e", "Revesby", model.PropertyHouse, nil),
	})
	require.NoError(t, err)

	got, err := st.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{
		Suburb:       "revesby",
		PropertyType: model.PropertyHouse,
		PriceMin:     ptr(int64(1_000_000)),
		PriceMax:     ptr(int64(1_500_000)),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Revesby", got[0].Address.Suburb)
	assert.Equal(t, int64(1_400_000), *got[0].Price)

	all, err := st.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{Suburb: "Revesby"})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLite_ConfirmProvisional_OneWay(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st, authSale(t, "AU1", "27", "Morton Street", "Wollstonecraft", "2026-02-10", 2_150_000))

	_, err := st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{{
		ExternalID: "p1", SourceTag: "domain", PropertyType: model.PropertyHouse,
		Address: model.Address{HouseNumber: "27", StreetName: "Morton St", Suburb: "Wollstonecraft"},
	}})
	require.NoError(t, err)
	list, err := st.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	pid := list[0].ID

	ok, err := st.ConfirmProvisionalSale(ctx, pid, "AU1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.ConfirmProvisionalSale(ctx, pid, "AU1")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err = st.UnconfirmedProvisionalSales(ctx, model.ProvisionalFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Provisional[model.ProvisionalConfirmed])
}

// --- Authoritative sales ---

func TestSQLite_InsertAuthoritative_NeverOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedAuthoritative(t, st, authSale(t, "AU1", "11", "Alliance Avenue", "Revesby", "2026-01-15", 1_500_000))
	n, err := st.InsertAuthoritativeSales(ctx, []model.AuthoritativeSale{
		authSale(t, "AU1", "11", "Alliance Avenue", "Revesby", "2026-01-15", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	prices, err := st.SalePrices(ctx, model.SaleFilter{}, model.PriceModeAll)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, int64(1_500_000), prices[0].Price)
}

func TestSQLite_MatchCandidates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	unit := authSale(t, "AU-unit", "27", "Morton Street", "Wollstonecraft", "2026-02-10", 900_000)
	unit.PropertyType = model.PropertyUnit
	seedAuthoritative(t, st,
		authSale(t, "AU-in", "27", "Morton Street", "WOLLSTONECRAFT", "2026-02-17", 2_000_000),
		authSale(t, "AU-out", "27", "Morton Street", "Wollstonecraft", "2026-02-18", 2_000_000),
		authSale(t, "AU-other", "27", "Morton Street", "Waverton", "2026-02-10", 2_000_000),
		unit,
	)

	sold := day(t, "2026-02-03")
	got, err := st.MatchCandidates(ctx, "wollstonecraft", model.PropertyHouse,
		sold.AddDate(0, 0, -14), sold.AddDate(0, 0, 14))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AU-in", got[0].ID)
	assert.True(t, got[0].ContractDate.Equal(day(t, "2026-02-17")))
	require.NotNil(t, got[0].AreaSqm)
	assert.InDelta(t, 556.0, *got[0].AreaSqm, 0.001)
}

func TestSQLite_UnclassifiedSales(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedAuthoritative(t, st,
		authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-01", 1),
		authSale(t, "AU2", "2", "B St", "Revesby", "2026-01-02", 1),
		authSale(t, "AU3", "3", "C St", "Padstow", "2026-01-03", 1),
	)
	seedPending(t, st, "AU1")

	got, err := st.UnclassifiedSales(ctx, model.SaleFilter{Suburbs: []string{"Revesby"}}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AU2", got[0].ID)

	got, err = st.UnclassifiedSales(ctx, model.SaleFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AU3", got[0].ID)
}

// --- Classifications and the review ledger ---

func TestSQLite_InsertClassification_AtMostOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st, authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-01", 1))

	ok, err := st.InsertClassification(ctx, model.SaleClassification{
		SaleID:     "AU1",
		Address:    "1 A St, Revesby",
		Enrichment: model.Enrichment{Zoning: ptr("R2")},
		Outcome:    model.Pending(),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.InsertClassification(ctx, model.SaleClassification{
		SaleID:  "AU1",
		Address: "1 A St, Revesby",
		Outcome: model.Excluded("non-R2 zoning (B1)"),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := st.GetClassification(ctx, "AU1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePending, c.Outcome.Kind())
	assert.Equal(t, "R2", *c.Enrichment.Zoning)
	assert.False(t, c.UseInMedian())
}

func TestSQLite_InsertClassification_RejectsVerdict(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedAuthoritative(t, st, authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-01", 1))

	_, err := st.InsertClassification(context.Background(), model.SaleClassification{
		SaleID:  "AU1",
		Address: "x",
		Outcome: model.Decided(model.VerdictComparable, time.Now()),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not carry a verdict")
}

func TestSQLite_ApplyVerdict_MedianGateFollowsStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st, authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-01", 1_450_000))
	seedPending(t, st, "AU1")

	reviewed := func() int {
		prices, err := st.SalePrices(ctx, model.SaleFilter{}, model.PriceModeReviewed)
		require.NoError(t, err)
		return len(prices)
	}
	assert.Equal(t, 0, reviewed())

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.ApplyVerdict(ctx, "AU1", model.VerdictComparable, "", first))
	c, err := st.GetClassification(ctx, "AU1")
	require.NoError(t, err)
	assert.True(t, c.UseInMedian())
	at, ok := c.Outcome.ReviewedAt()
	require.True(t, ok)
	assert.True(t, at.Equal(first))
	assert.Equal(t, 1, reviewed())

	second := first.Add(time.Hour)
	require.NoError(t, st.ApplyVerdict(ctx, "AU1", model.VerdictNotComparable, "granny flat", second))
	c, err = st.GetClassification(ctx, "AU1")
	require.NoError(t, err)
	assert.False(t, c.UseInMedian())
	at, _ = c.Outcome.ReviewedAt()
	assert.True(t, at.Equal(second))
	require.NotNil(t, c.ReviewNotes)
	assert.Equal(t, "granny flat", *c.ReviewNotes)
	assert.Equal(t, 0, reviewed())

	var mismatched int
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sale_classifications WHERE use_in_median <> (review_status = 'comparable')`,
	).Scan(&mismatched))
	assert.Zero(t, mismatched)
}

func TestSQLite_ApplyVerdict_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st, authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-01", 1))
	seedPending(t, st, "AU1")

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.ApplyVerdict(ctx, "AU1", model.VerdictComparable, "", first))
	once, err := st.GetClassification(ctx, "AU1")
	require.NoError(t, err)

	require.NoError(t, st.ApplyVerdict(ctx, "AU1", model.VerdictComparable, "", first.Add(48*time.Hour)))
	twice, err := st.GetClassification(ctx, "AU1")
	require.NoError(t, err)

	onceAt, _ := once.Outcome.ReviewedAt()
	twiceAt, _ := twice.Outcome.ReviewedAt()
	assert.True(t, onceAt.Equal(twiceAt))
	assert.True(t, once.UpdatedAt.Equal(twice.UpdatedAt))
	assert.Equal(t, once.Outcome.Status(), twice.Outcome.Status())
	assert.Equal(t, once.UseInMedian(), twice.UseInMedian())
}

func TestSQLite_ApplyVerdict_MissingAndExcluded(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st, authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-01", 1))
	_, err := st.InsertClassification(ctx, model.SaleClassification{
		SaleID: "AU1", Address: "x", Outcome: model.Excluded("modern build (2018)"),
	})
	require.NoError(t, err)

	err = st.ApplyVerdict(ctx, "nope", model.VerdictComparable, "", time.Now())
	assert.True(t, eris.Is(err, ErrNotFound))

	err = st.ApplyVerdict(ctx, "AU1", model.VerdictComparable, "", time.Now())
	assert.True(t, eris.Is(err, ErrExcluded))

	c, err := st.GetClassification(ctx, "AU1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExcluded, c.Outcome.Kind())
	assert.Equal(t, "modern build (2018)", c.Outcome.Reason())
	assert.False(t, c.UseInMedian())
}

func TestSQLite_PendingReviews(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	withURL := authSale(t, "AU2", "2", "B St", "Revesby", "2026-01-20", 1_600_000)
	withURL.ListingURL = ptr("https://www.domain.com.au/2-b-st-revesby")
	seedAuthoritative(t, st,
		authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-10", 1_500_000),
		withURL,
		authSale(t, "AU3", "3", "C St", "Revesby", "2026-01-30", 1_700_000),
		authSale(t, "AU4", "4", "D St", "Revesby", "2026-02-05", 1_800_000),
	)
	seedPending(t, st, "AU1", "AU2", "AU3")
	_, err := st.InsertClassification(ctx, model.SaleClassification{SaleID: "AU4", Address: "x", Outcome: model.Excluded("existing duplex")})
	require.NoError(t, err)
	require.NoError(t, st.ApplyVerdict(ctx, "AU3", model.VerdictComparable, "", time.Now()))

	got, err := st.PendingReviews(ctx, model.SaleFilter{Suburbs: []string{"revesby"}, PropertyType: model.PropertyHouse}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AU2", got[0].SaleID)
	assert.Equal(t, "AU1", got[1].SaleID)
	require.NotNil(t, got[0].ListingURL)
	assert.Equal(t, "https://www.domain.com.au/2-b-st-revesby", *got[0].ListingURL)
	assert.Nil(t, got[1].ListingURL)
	assert.True(t, got[0].ContractDate.Equal(day(t, "2026-01-20")))
}

// --- Aggregation read path ---

func TestSQLite_SalePrices_Modes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	small := authSale(t, "AU-small", "5", "E St", "Revesby", "2026-01-05", 1_000_000)
	small.AreaSqm = ptr(300.0)
	seedAuthoritative(t, st,
		authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-10", 1_500_000),
		authSale(t, "AU2", "2", "B St", "Revesby", "2026-01-20", 1_600_000),
		authSale(t, "AU3", "3", "C St", "Padstow", "2026-01-25", 1_700_000),
		small,
	)
	seedPending(t, st, "AU1", "AU2")
	require.NoError(t, st.ApplyVerdict(ctx, "AU2", model.VerdictComparable, "", time.Now()))

	// Provisional rows carry prices too but never surface here.
	_, err := st.InsertProvisionalSales(ctx, []model.ProvisionalRecord{{
		ExternalID: "p", SourceTag: "domain", PropertyType: model.PropertyHouse, Price: ptr(int64(5_000_000)),
		Address: model.Address{HouseNumber: "9", StreetName: "Z St", Suburb: "Revesby"},
	}})
	require.NoError(t, err)

	filter := model.SaleFilter{
		Suburbs:      []string{"Revesby"},
		PropertyType: model.PropertyHouse,
		AreaMin:      ptr(500.0),
		AreaMax:      ptr(600.0),
		From:         day(t, "2026-01-01"),
		To:           day(t, "2026-01-31"),
	}

	all, err := st.SalePrices(ctx, filter, model.PriceModeAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []int64{1_500_000, 1_600_000}, []int64{all[0].Price, all[1].Price})

	reviewed, err := st.SalePrices(ctx, filter, model.PriceModeReviewed)
	require.NoError(t, err)
	require.Len(t, reviewed, 1)
	assert.Equal(t, "AU2", reviewed[0].SaleID)
	assert.True(t, reviewed[0].ContractDate.Equal(day(t, "2026-01-20")))
}

// --- Digests ---

func TestSQLite_Digest_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st,
		authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-10", 1),
		authSale(t, "AU2", "2", "B St", "Revesby", "2026-01-20", 1),
	)
	seedPending(t, st, "AU1", "AU2")

	sentAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	d, err := st.CreateDigest(ctx, "revesby_houses", []string{"AU2", "AU1"}, sentAt)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)

	got, err := st.GetDigest(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"AU2", "AU1"}, got.SaleIDs)
	assert.Equal(t, "revesby_houses", got.Segment)

	c, err := st.GetClassification(ctx, "AU1")
	require.NoError(t, err)
	require.NotNil(t, c.ReviewSentAt)
	assert.True(t, c.ReviewSentAt.Equal(sentAt))

	_, err = st.GetDigest(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

// --- Operations ---

func TestSQLite_Counts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAuthoritative(t, st,
		authSale(t, "AU1", "1", "A St", "Revesby", "2026-01-10", 1),
		authSale(t, "AU2", "2", "B St", "Revesby", "2026-01-20", 1),
		authSale(t, "AU3", "3", "C St", "Revesby", "2026-01-25", 1),
		authSale(t, "AU4", "4", "D St", "Revesby", "2026-01-26", 1),
	)
	seedPending(t, st, "AU1", "AU2")
	_, err := st.InsertClassification(ctx, model.SaleClassification{SaleID: "AU3", Address: "x", Outcome: model.Excluded("existing duplex")})
	require.NoError(t, err)
	require.NoError(t, st.ApplyVerdict(ctx, "AU2", model.VerdictNotComparable, "", time.Now()))

	c, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, c.AuthoritativeSales)
	assert.Equal(t, 1, c.Unclassified)
	assert.Equal(t, 1, c.Pending)
	assert.Equal(t, 0, c.Comparable)
	assert.Equal(t, 1, c.NotComparable)
	assert.Equal(t, 1, c.Excluded)
}

func TestSQLite_JobLock(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	release, err := st.AcquireJobLock(ctx, "match")
	require.NoError(t, err)

	_, err = st.AcquireJobLock(ctx, "match")
	require.Error(t, err)
	assert.True(t, eris.Is(err, db.ErrLocked))

	other, err := st.AcquireJobLock(ctx, "classify")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := st.AcquireJobLock(ctx, "match")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestSQLite_JobLock_StaleHolderIsReplaced(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO job_locks (name, holder, acquired_at) VALUES ('match', 'crashed', ?)`,
		time.Now().Add(-2*staleLockAfter).Unix(),
	)
	require.NoError(t, err)

	release, err := st.AcquireJobLock(ctx, "match")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestSQLite_Migrate_EmbeddedSchemaIsRerunnable(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Migrate(ctx))

	var tables []string
	rows, err := st.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{
		"authoritative_sales", "job_locks", "provisional_sales",
		"review_digests", "sale_classifications",
	}, tables)
}
