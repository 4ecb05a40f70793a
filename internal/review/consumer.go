package review

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/store"
)

// VerdictMessage is one inbound human decision. It carries either a digest
// reply (DigestID + Reply) or a single verdict (SaleID + Verdict).
type VerdictMessage struct {
	DigestID string        `json:"digest_id,omitempty"`
	Reply    string        `json:"reply,omitempty"`
	SaleID   string        `json:"sale_id,omitempty"`
	Verdict  model.Verdict `json:"verdict,omitempty"`
	Note     string        `json:"note,omitempty"`
}

// Validate checks the message carries exactly one kind of decision.
func (m VerdictMessage) Validate() error {
	reply := m.DigestID != "" || m.Reply != ""
	single := m.SaleID != "" || m.Verdict != ""
	switch {
	case reply && single:
		return eris.New("review: message mixes a digest reply and a single verdict")
	case reply:
		if m.DigestID == "" || m.Reply == "" {
			return eris.New("review: digest reply needs digest_id and reply")
		}
	case single:
		if m.SaleID == "" {
			return eris.New("review: verdict needs sale_id")
		}
		if _, ok := model.ParseVerdict(string(m.Verdict)); !ok {
			return eris.Errorf("review: invalid verdict %q", m.Verdict)
		}
	default:
		return eris.New("review: empty verdict message")
	}
	return nil
}

// Delivery is one message handed out by a Source. The same message may be
// delivered more than once.
type Delivery struct {
	ID   string
	Body []byte
}

// Source is an at-least-once message source.
type Source interface {
	// Fetch returns the next deliveries, blocking for a bounded time. An
	// empty result is not an error.
	Fetch(ctx context.Context) ([]Delivery, error)
	// Ack marks deliveries as handled so they are not redelivered.
	Ack(ctx context.Context, ids ...string) error
}

// Consumer applies verdict messages from a Source. Messages are acked once
// applied or once they are known to be unprocessable; persistence failures
// leave them unacked for redelivery.
type Consumer struct {
	source  Source
	service *Service
	backoff time.Duration
	log     *zap.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(source Source, service *Service) *Consumer {
	return &Consumer{
		source:  source,
		service: service,
		backoff: 2 * time.Second,
		log:     zap.L().With(zap.String("component", "review.consumer")),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := c.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		if n > 0 {
			c.log.Debug("poll handled deliveries", zap.Int("count", n))
		}
	}
}

// Poll fetches one batch and handles it. It returns the number of
// deliveries acked.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	deliveries, err := c.source.Fetch(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "review: fetch deliveries")
	}

	var ack []string
	for _, d := range deliveries {
		if err := c.handle(ctx, d); err != nil {
			if permanent(err) {
				c.log.Warn("dropping unprocessable verdict message", zap.String("delivery_id", d.ID), zap.Error(err))
				ack = append(ack, d.ID)
				continue
			}
			c.log.Error("verdict message failed, leaving for redelivery", zap.String("delivery_id", d.ID), zap.Error(err))
			continue
		}
		ack = append(ack, d.ID)
	}
	if len(ack) == 0 {
		return 0, nil
	}
	if err := c.source.Ack(ctx, ack...); err != nil {
		return 0, eris.Wrap(err, "review: ack deliveries")
	}
	return len(ack), nil
}

func (c *Consumer) handle(ctx context.Context, d Delivery) error {
	var msg VerdictMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return &permanentError{eris.Wrap(err, "review: decode verdict message")}
	}
	if err := msg.Validate(); err != nil {
		return &permanentError{err}
	}

	if msg.DigestID != "" {
		res, err := c.service.ApplyReply(ctx, msg.DigestID, msg.Reply)
		if err != nil {
			return err
		}
		c.log.Info("digest reply handled", zap.String("digest_id", res.DigestID),
			zap.Bool("skipped", res.Skipped), zap.Int("applied", res.Applied))
		return nil
	}
	return c.service.Ledger().ApplyVerdict(ctx, Decision{SaleID: msg.SaleID, Verdict: msg.Verdict, Note: msg.Note})
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent reports whether redelivering the message could never succeed.
func permanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) ||
		eris.Is(err, ErrUnparseable) ||
		eris.Is(err, ErrInvalidVerdict) ||
		eris.Is(err, store.ErrNotFound) ||
		eris.Is(err, store.ErrExcluded)
}
