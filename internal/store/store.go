package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-tracker/internal/address"
	"github.com/sells-group/sales-tracker/internal/model"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrExcluded is returned when a verdict targets an auto-excluded sale.
	ErrExcluded = eris.New("store: sale is auto-excluded")
)

// staleLockAfter is how long a SQLite job lock survives a crashed holder.
const staleLockAfter = 6 * time.Hour

// Counts summarises row counts for the status command.
type Counts struct {
	AuthoritativeSales int                             `json:"authoritative_sales"`
	Provisional        map[model.ProvisionalStatus]int `json:"provisional"`
	Unclassified       int                             `json:"unclassified"`
	Pending            int                             `json:"pending"`
	Comparable         int                             `json:"comparable"`
	NotComparable      int                             `json:"not_comparable"`
	Excluded           int                             `json:"excluded"`
}

// Store defines the persistence interface for the sales tracker.
type Store interface {
	// Provisional sales
	InsertProvisionalSales(ctx context.Context, recs []model.ProvisionalRecord) (int, error)
	UnconfirmedProvisionalSales(ctx context.Context, filter model.ProvisionalFilter) ([]model.ProvisionalSale, error)
	ConfirmProvisionalSale(ctx context.Context, provisionalID, authoritativeID string) (bool, error)

	// Authoritative sales
	InsertAuthoritativeSales(ctx context.Context, sales []model.AuthoritativeSale) (int, error)
	MatchCandidates(ctx context.Context, suburb string, propertyType model.PropertyType, from, to time.Time) ([]model.AuthoritativeSale, error)
	UnclassifiedSales(ctx context.Context, filter model.SaleFilter, limit int) ([]model.AuthoritativeSale, error)
	SalePrices(ctx context.Context, filter model.SaleFilter, mode model.PriceMode) ([]model.SalePrice, error)

	// Classifications
	InsertClassification(ctx context.Context, c model.SaleClassification) (bool, error)
	GetClassification(ctx context.Context, saleID string) (*model.SaleClassification, error)
	ApplyVerdict(ctx context.Context, saleID string, v model.Verdict, note string, at time.Time) error
	PendingReviews(ctx context.Context, filter model.SaleFilter, limit int) ([]model.PendingReview, error)

	// Review digests
	CreateDigest(ctx context.Context, segment string, saleIDs []string, at time.Time) (*model.ReviewDigest, error)
	GetDigest(ctx context.Context, id string) (*model.ReviewDigest, error)

	// Operations
	Counts(ctx context.Context) (*Counts, error)
	AcquireJobLock(ctx context.Context, name string) (func(context.Context) error, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// provisionalKey returns the stored normalised key for an address, or nil
// when the address cannot identify a lot.
func provisionalKey(a model.Address) *string {
	if !a.Locatable() {
		return nil
	}
	k := string(address.Normalise(a))
	return &k
}

// checkInsertable guards the classification write path: only the classifier
// creates rows, and it never decides a review.
func checkInsertable(c model.SaleClassification) error {
	if c.SaleID == "" {
		return eris.New("store: classification without sale id")
	}
	if c.Outcome.Kind() == model.OutcomeDecided {
		return eris.Errorf("store: classification for %s must not carry a verdict", c.SaleID)
	}
	return nil
}

func dateString(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(model.DateLayout)
	return &s
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := model.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func noteOrNil(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}
