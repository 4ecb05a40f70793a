package review

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/model"
)

// DefaultDigestLimit caps how many sales one digest asks about.
const DefaultDigestLimit = 50

// DigestStore is the persistence the digest service needs.
type DigestStore interface {
	PendingReviews(ctx context.Context, filter model.SaleFilter, limit int) ([]model.PendingReview, error)
	CreateDigest(ctx context.Context, segment string, saleIDs []string, at time.Time) (*model.ReviewDigest, error)
	GetDigest(ctx context.Context, id string) (*model.ReviewDigest, error)
}

// Item is one numbered line of a digest.
type Item struct {
	Position     int      `json:"position"`
	SaleID       string   `json:"sale_id"`
	Address      string   `json:"address"`
	Price        int64    `json:"price"`
	AreaSqm      *float64 `json:"area_sqm,omitempty"`
	ContractDate string   `json:"contract_date"`
	Zoning       string   `json:"zoning"`
	Year         string   `json:"year"`
	ListingURL   string   `json:"listing_url"`
}

// Digest is a persisted digest plus its display items.
type Digest struct {
	model.ReviewDigest
	Items []Item `json:"items"`
}

// ReplyResult reports what a reply did.
type ReplyResult struct {
	DigestID  string `json:"digest_id"`
	Skipped   bool   `json:"skipped"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
}

// Service builds digests and reconciles replies against them.
type Service struct {
	store  DigestStore
	ledger *Ledger
	links  ListingLinks
	limit  int
	now    func() time.Time
	log    *zap.Logger
}

// NewService creates a digest Service.
func NewService(st DigestStore, ledger *Ledger, links ListingLinks, limit int) *Service {
	if limit <= 0 {
		limit = DefaultDigestLimit
	}
	return &Service{
		store:  st,
		ledger: ledger,
		links:  links,
		limit:  limit,
		now:    time.Now,
		log:    zap.L().With(zap.String("component", "review.digest")),
	}
}

// Ledger returns the ledger replies are applied through.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Pending lists pending sales for a segment with display fields resolved.
func (s *Service) Pending(ctx context.Context, seg model.Segment, limit int) ([]Item, error) {
	rows, err := s.store.PendingReviews(ctx, seg.Filter(time.Time{}, time.Time{}), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "review: pending for %s", seg.Code)
	}
	items := make([]Item, len(rows))
	for i, p := range rows {
		items[i] = Item{
			Position:     i + 1,
			SaleID:       p.SaleID,
			Address:      p.Address.String(),
			Price:        p.Price,
			AreaSqm:      p.AreaSqm,
			ContractDate: p.ContractDate.Format(model.DateLayout),
			Zoning:       p.Enrichment.ZoningLabel(),
			Year:         p.Enrichment.YearLabel(),
			ListingURL:   s.links.URL(p.ListingURL, p.Address),
		}
	}
	return items, nil
}

// CreateDigest snapshots the segment's pending sales into a numbered digest.
// It returns nil when nothing is pending.
func (s *Service) CreateDigest(ctx context.Context, seg model.Segment) (*Digest, error) {
	items, err := s.Pending(ctx, seg, s.limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.SaleID
	}
	d, err := s.store.CreateDigest(ctx, seg.Code, ids, s.now())
	if err != nil {
		return nil, eris.Wrapf(err, "review: create digest for %s", seg.Code)
	}
	s.log.Info("digest created", zap.String("digest_id", d.ID), zap.String("segment", seg.Code), zap.Int("sales", len(ids)))
	return &Digest{ReviewDigest: *d, Items: items}, nil
}

// CheckReply loads the digest and parses text against it without applying
// anything. Callers that defer the apply (the verdict queue) use it to reject
// an unparseable reply while the sender is still waiting on the answer.
func (s *Service) CheckReply(ctx context.Context, digestID, text string) error {
	_, _, err := s.parseReply(ctx, digestID, text)
	if eris.Is(err, ErrUnparseable) && s.ledger.recorder != nil {
		s.ledger.recorder.RecordReply(false)
	}
	return err
}

func (s *Service) parseReply(ctx context.Context, digestID, text string) (*model.ReviewDigest, Reply, error) {
	d, err := s.store.GetDigest(ctx, digestID)
	if err != nil {
		return nil, Reply{}, eris.Wrapf(err, "review: load digest %s", digestID)
	}
	reply, err := ParseReply(text, len(d.SaleIDs))
	return d, reply, err
}

// ApplyReply parses text against the digest and applies the verdicts. A parse
// failure returns ErrUnparseable and applies nothing.
func (s *Service) ApplyReply(ctx context.Context, digestID, text string) (ReplyResult, error) {
	res := ReplyResult{DigestID: digestID}

	d, reply, err := s.parseReply(ctx, digestID, text)
	if d == nil {
		return res, err
	}
	if s.ledger.recorder != nil {
		s.ledger.recorder.RecordReply(err == nil)
	}
	if err != nil {
		return res, err
	}
	if reply.Skip {
		res.Skipped = true
		return res, nil
	}

	decisions := make([]Decision, len(d.SaleIDs))
	for i, id := range d.SaleIDs {
		decisions[i] = Decision{SaleID: id, Verdict: reply.Verdicts[i]}
	}
	res.Requested = len(decisions)
	res.Applied, err = s.ledger.ApplyVerdictBatch(ctx, decisions)
	if err != nil {
		return res, err
	}
	s.log.Info("reply applied", zap.String("digest_id", digestID),
		zap.Int("requested", res.Requested), zap.Int("applied", res.Applied))
	return res, nil
}

// WriteDigest renders a plain-text digest with reply instructions.
func WriteDigest(w io.Writer, d *Digest) error {
	if _, err := fmt.Fprintf(w, "Digest %s (%s): %d sale(s) need review\n\n", d.ID, d.Segment, len(d.Items)); err != nil {
		return eris.Wrap(err, "review: write digest")
	}
	for _, it := range d.Items {
		area := "area unknown"
		if it.AreaSqm != nil {
			area = fmt.Sprintf("%.0fsqm", *it.AreaSqm)
		}
		if _, err := fmt.Fprintf(w, "%d. %s - $%d (%s) %s\n   %s | %s\n   %s\n\n",
			it.Position, it.Address, it.Price, area, it.ContractDate, it.Zoning, it.Year, it.ListingURL); err != nil {
			return eris.Wrap(err, "review: write digest")
		}
	}
	_, err := fmt.Fprintln(w, "Reply: 1✅ 2✅ 3❌  (or ✅✅❌, all✅, skip)")
	return eris.Wrap(err, "review: write digest")
}
