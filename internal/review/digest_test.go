package review

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/store"
)

var revesbyHouses = model.Segment{
	Code:          "revesby_houses",
	Suburbs:       []string{"Revesby"},
	PropertyType:  model.PropertyHouse,
	RequireReview: true,
}

func newTestService(t *testing.T, st *store.SQLiteStore, rec Recorder) *Service {
	t.Helper()
	return NewService(st, NewLedger(st, rec), ListingLinks{}, 0)
}

func TestService_CreateDigest(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2", "S3"}, "S2")

	d, err := newTestService(t, st, nil).CreateDigest(context.Background(), revesbyHouses)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, []string{"S3", "S1"}, d.SaleIDs)
	require.Len(t, d.Items, 2)
	assert.Equal(t, 1, d.Items[0].Position)
	assert.Equal(t, model.ZoningUnverified, d.Items[0].Zoning)
	assert.Equal(t, model.YearUnknown, d.Items[0].Year)
	assert.Equal(t, "https://www.domain.com.au/3-alliance-ave-revesby-nsw", d.Items[0].ListingURL)

	var buf bytes.Buffer
	require.NoError(t, WriteDigest(&buf, d))
	assert.Contains(t, buf.String(), "1. 3 Alliance Ave, Revesby - $1420000 (550sqm)")
	assert.Contains(t, buf.String(), "Reply:")
}

func TestService_CreateDigest_NothingPending(t *testing.T) {
	st := newTestStore(t)

	d, err := newTestService(t, st, nil).CreateDigest(context.Background(), revesbyHouses)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestService_ApplyReply(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2", "S3"})
	ctx := context.Background()
	rec := &countingRecorder{}
	svc := newTestService(t, st, rec)

	d, err := svc.CreateDigest(ctx, revesbyHouses)
	require.NoError(t, err)
	require.Equal(t, []string{"S3", "S2", "S1"}, d.SaleIDs)

	res, err := svc.ApplyReply(ctx, d.ID, "1✅ 2❌ 3✅")
	require.NoError(t, err)
	assert.Equal(t, ReplyResult{DigestID: d.ID, Requested: 3, Applied: 3}, res)

	for id, want := range map[string]bool{"S3": true, "S2": false, "S1": true} {
		c, err := st.GetClassification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, c.UseInMedian(), id)
	}

	// A duplicated delivery of the same reply changes nothing.
	again, err := svc.ApplyReply(ctx, d.ID, "1✅ 2❌ 3✅")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Applied)
	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Comparable)
	assert.Equal(t, 1, counts.NotComparable)
	assert.Equal(t, 2, rec.parsed)
}

func TestService_ApplyReply_PartialIsRejected(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2", "S3"})
	ctx := context.Background()
	rec := &countingRecorder{}
	svc := newTestService(t, st, rec)

	d, err := svc.CreateDigest(ctx, revesbyHouses)
	require.NoError(t, err)

	_, err = svc.ApplyReply(ctx, d.ID, "✅✅")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnparseable))
	assert.Equal(t, 1, rec.failed)

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Pending)
}

func TestService_ApplyReply_Skip(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1"})
	ctx := context.Background()
	svc := newTestService(t, st, nil)

	d, err := svc.CreateDigest(ctx, revesbyHouses)
	require.NoError(t, err)

	res, err := svc.ApplyReply(ctx, d.ID, "skip")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Applied)
}

func TestService_ApplyReply_UnknownDigest(t *testing.T) {
	st := newTestStore(t)

	_, err := newTestService(t, st, nil).ApplyReply(context.Background(), "nope", "all✅")
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestService_CheckReply(t *testing.T) {
	st := newTestStore(t)
	seedSales(t, st, []string{"S1", "S2"})
	ctx := context.Background()
	rec := &countingRecorder{}
	svc := newTestService(t, st, rec)

	d, err := svc.CreateDigest(ctx, revesbyHouses)
	require.NoError(t, err)

	require.NoError(t, svc.CheckReply(ctx, d.ID, "1y 2n"))
	assert.True(t, eris.Is(svc.CheckReply(ctx, d.ID, "maybe"), ErrUnparseable))
	assert.True(t, eris.Is(svc.CheckReply(ctx, "nope", "skip"), store.ErrNotFound))
	assert.Equal(t, 1, rec.failed)
	assert.Zero(t, rec.parsed)

	pending, err := st.PendingReviews(ctx, revesbyHouses.Filter(time.Time{}, time.Time{}), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "checking a reply applies nothing")
}

func TestListingLinks_URL(t *testing.T) {
	stored := "https://www.domain.com.au/15-smith-st-revesby-nsw-2212-123"
	a := model.Address{HouseNumber: "15", StreetName: "Smith  St", Suburb: "Revesby"}

	assert.Equal(t, stored, ListingLinks{}.URL(&stored, a))
	assert.Equal(t, "https://www.domain.com.au/15-smith-st-revesby-nsw", ListingLinks{}.URL(nil, a))

	blank := " "
	assert.Equal(t, "https://example.test/15-smith-st-revesby-vic",
		ListingLinks{BaseURL: "https://example.test/", State: "VIC"}.URL(&blank, a))

	unit := model.Address{Unit: "3", HouseNumber: "15", StreetName: "O'Connell St", Suburb: "Revesby"}
	assert.Equal(t, "https://www.domain.com.au/3/15-o%27connell-st-revesby-nsw", ListingLinks{}.URL(nil, unit))
}
