package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/store"
)

// Snapshot is a point-in-time view of the tracker's queues.
type Snapshot struct {
	AuthoritativeSales int `json:"authoritative_sales"`
	Unconfirmed        int `json:"unconfirmed"`
	Confirmed          int `json:"confirmed"`
	Unclassified       int `json:"unclassified"`
	PendingReview      int `json:"pending_review"`
	Comparable         int `json:"comparable"`
	NotComparable      int `json:"not_comparable"`
	Excluded           int `json:"excluded"`

	CollectedAt time.Time `json:"collected_at"`
}

// CountSource is the store method the collector reads.
type CountSource interface {
	Counts(ctx context.Context) (*store.Counts, error)
}

// Collector gathers snapshots from the store.
type Collector struct {
	store CountSource
	now   func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(st CountSource) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect takes a snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.store.Counts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: counts")
	}
	return &Snapshot{
		AuthoritativeSales: counts.AuthoritativeSales,
		Unconfirmed:        counts.Provisional[model.ProvisionalUnconfirmed],
		Confirmed:          counts.Provisional[model.ProvisionalConfirmed],
		Unclassified:       counts.Unclassified,
		PendingReview:      counts.Pending,
		Comparable:         counts.Comparable,
		NotComparable:      counts.NotComparable,
		Excluded:           counts.Excluded,
		CollectedAt:        c.now().UTC(),
	}, nil
}
