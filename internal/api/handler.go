// Package api serves the tracker's HTTP surface: the verdict webhook, read-only
// listings for dashboards, and the Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/aggregate"
	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/review"
	"github.com/sells-group/sales-tracker/internal/store"
)

// Segments resolves configured segments.
type Segments interface {
	Segment(code string) (model.Segment, error)
	SegmentList() []model.Segment
}

// Reads is the store surface behind the listing endpoints.
type Reads interface {
	UnconfirmedProvisionalSales(ctx context.Context, filter model.ProvisionalFilter) ([]model.ProvisionalSale, error)
	Counts(ctx context.Context) (*store.Counts, error)
}

// Reviews is the review surface behind the webhook and pending listing.
type Reviews interface {
	Pending(ctx context.Context, seg model.Segment, limit int) ([]review.Item, error)
	ApplyReply(ctx context.Context, digestID, text string) (review.ReplyResult, error)
	CheckReply(ctx context.Context, digestID, text string) error
	Ledger() *review.Ledger
}

// Medians computes segment aggregates.
type Medians interface {
	Segment(ctx context.Context, seg model.Segment, ref time.Time) (aggregate.Result, error)
}

// Publisher queues verdict messages for the ledger consumer.
type Publisher interface {
	Publish(ctx context.Context, msg review.VerdictMessage) (string, error)
}

// Handler wires HTTP endpoints to the tracker services.
type Handler struct {
	segments  Segments
	reads     Reads
	reviews   Reviews
	medians   Medians
	publisher Publisher
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPublisher queues verdicts instead of applying them inline.
func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

// New constructs a Handler.
func New(segments Segments, reads Reads, reviews Reviews, medians Medians, opts ...Option) *Handler {
	h := &Handler{
		segments: segments,
		reads:    reads,
		reviews:  reviews,
		medians:  medians,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "api")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the tracker endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhook/verdicts", h.HandleVerdict)
	r.Get("/status", h.HandleStatus)
	r.Get("/provisional", h.HandleProvisional)
	r.Get("/segments", h.HandleSegments)
	r.Get("/segments/{code}/median", h.HandleMedian)
	r.Get("/segments/{code}/pending", h.HandlePending)
}

// NewRouter builds the full server router: middleware, health, metrics and
// the handler's endpoints.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	h.Register(r)
	return r
}

// HandleVerdict accepts a digest reply or a single verdict. With a publisher
// configured the message is queued and 202 returned; otherwise it is applied
// immediately. Digest replies are parsed up front in both modes so an
// unparseable reply is always answered with 422.
func (h *Handler) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	var msg review.VerdictMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()

	if h.publisher != nil {
		if msg.DigestID != "" {
			if err := h.reviews.CheckReply(ctx, msg.DigestID, msg.Reply); err != nil {
				h.writeDomainError(w, err)
				return
			}
		}
		id, err := h.publisher.Publish(ctx, msg)
		if err != nil {
			h.log.Error("queue verdict failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "verdict queue unavailable")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "message_id": id})
		return
	}

	if msg.DigestID != "" {
		res, err := h.reviews.ApplyReply(ctx, msg.DigestID, msg.Reply)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	err := h.reviews.Ledger().ApplyVerdict(ctx, review.Decision{SaleID: msg.SaleID, Verdict: msg.Verdict, Note: msg.Note})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale_id": msg.SaleID, "verdict": msg.Verdict, "applied": 1})
}

// HandleStatus returns pipeline counts.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reads.Counts(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleProvisional lists unconfirmed provisional sales. Query parameters:
// suburb, type, price_min, price_max.
func (h *Handler) HandleProvisional(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ProvisionalFilter{
		Suburb:       strings.TrimSpace(q.Get("suburb")),
		PropertyType: model.PropertyType(q.Get("type")),
	}
	if filter.PropertyType != "" && !filter.PropertyType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}
	var err error
	if filter.PriceMin, err = queryInt(q.Get("price_min")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid price_min")
		return
	}
	if filter.PriceMax, err = queryInt(q.Get("price_max")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid price_max")
		return
	}

	sales, err := h.reads.UnconfirmedProvisionalSales(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if sales == nil {
		sales = []model.ProvisionalSale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

// HandleSegments lists configured segments.
func (h *Handler) HandleSegments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.segments.SegmentList())
}

// HandleMedian returns a segment's median. ref defaults to today.
func (h *Handler) HandleMedian(w http.ResponseWriter, r *http.Request) {
	seg, ok := h.segment(w, r)
	if !ok {
		return
	}
	ref := h.now().UTC()
	if s := r.URL.Query().Get("ref"); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ref date")
			return
		}
		ref = d
	}

	res, err := h.medians.Segment(r.Context(), seg, ref)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePending lists a segment's sales awaiting review.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	seg, ok := h.segment(w, r)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	items, err := h.reviews.Pending(r.Context(), seg, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if items == nil {
		items = []review.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) segment(w http.ResponseWriter, r *http.Request) (model.Segment, bool) {
	seg, err := h.segments.Segment(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown segment")
		return model.Segment{}, false
	}
	return seg, true
}

// writeDomainError maps tracker errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrUnparseable):
		writeError(w, http.StatusUnprocessableEntity, "reply could not be parsed")
	case errors.Is(err, review.ErrInvalidVerdict):
		writeError(w, http.StatusBadRequest, "invalid verdict")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrExcluded):
		writeError(w, http.StatusConflict, "sale is auto-excluded from review")
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "api: parse %q", s)
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
