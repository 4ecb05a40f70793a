// Package review owns the human review lifecycle: applying verdicts, building
// digests of pending sales, and reconciling replies that arrive late, out of
// order or more than once.
package review

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/store"
)

// VerdictStore is the single write path for review fields.
type VerdictStore interface {
	ApplyVerdict(ctx context.Context, saleID string, v model.Verdict, note string, at time.Time) error
}

// Recorder receives ledger counters. A nil Recorder is allowed.
type Recorder interface {
	RecordVerdict(v model.Verdict, applied bool)
	RecordReply(parsed bool)
}

// Decision is one verdict for one sale.
type Decision struct {
	SaleID  string        `json:"sale_id"`
	Verdict model.Verdict `json:"verdict"`
	Note    string        `json:"note,omitempty"`
}

// Ledger applies verdicts. Applying the same verdict twice is a no-op.
type Ledger struct {
	store    VerdictStore
	recorder Recorder
	now      func() time.Time
	log      *zap.Logger
}

// NewLedger creates a Ledger. recorder may be nil.
func NewLedger(st VerdictStore, recorder Recorder) *Ledger {
	return &Ledger{
		store:    st,
		recorder: recorder,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "review.ledger")),
	}
}

// ErrInvalidVerdict is returned for a decision whose verdict is neither
// comparable nor not_comparable.
var ErrInvalidVerdict = eris.New("review: invalid verdict")

// ApplyVerdict records one verdict. It returns ErrInvalidVerdict,
// store.ErrNotFound or store.ErrExcluded (wrapped) when the sale cannot take
// the verdict.
func (l *Ledger) ApplyVerdict(ctx context.Context, d Decision) error {
	if _, ok := model.ParseVerdict(string(d.Verdict)); !ok {
		return eris.Wrapf(ErrInvalidVerdict, "review: verdict %q for %s", d.Verdict, d.SaleID)
	}
	err := l.store.ApplyVerdict(ctx, d.SaleID, d.Verdict, d.Note, l.now().UTC())
	if l.recorder != nil {
		l.recorder.RecordVerdict(d.Verdict, err == nil)
	}
	if err != nil {
		return eris.Wrapf(err, "review: apply verdict %s", d.SaleID)
	}
	return nil
}

// ApplyVerdictBatch applies each decision independently and returns how many
// were applied. Invalid verdicts and missing or auto-excluded sales are
// logged and skipped; any other error is a persistence failure and stops the
// batch.
func (l *Ledger) ApplyVerdictBatch(ctx context.Context, decisions []Decision) (int, error) {
	applied := 0
	for _, d := range decisions {
		err := l.ApplyVerdict(ctx, d)
		switch {
		case err == nil:
			applied++
		case eris.Is(err, ErrInvalidVerdict):
			l.log.Warn("invalid verdict", zap.String("sale_id", d.SaleID), zap.String("verdict", string(d.Verdict)))
		case eris.Is(err, store.ErrNotFound):
			l.log.Warn("verdict for unknown sale", zap.String("sale_id", d.SaleID))
		case eris.Is(err, store.ErrExcluded):
			l.log.Warn("verdict for auto-excluded sale", zap.String("sale_id", d.SaleID))
		default:
			return applied, err
		}
	}
	return applied, nil
}

// ApplyAll applies one verdict to every sale id.
func (l *Ledger) ApplyAll(ctx context.Context, saleIDs []string, v model.Verdict, note string) (int, error) {
	decisions := make([]Decision, len(saleIDs))
	for i, id := range saleIDs {
		decisions[i] = Decision{SaleID: id, Verdict: v, Note: note}
	}
	return l.ApplyVerdictBatch(ctx, decisions)
}
