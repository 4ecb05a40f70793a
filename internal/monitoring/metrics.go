// Package monitoring exposes Prometheus metrics for the matcher, classifier
// and review ledger, and alerts when work piles up.
package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/sales-tracker/internal/matcher"
	"github.com/sells-group/sales-tracker/internal/model"
)

// Metrics holds the tracker's collectors. A nil *Metrics records nothing.
type Metrics struct {
	MatchRuns       prometheus.Counter
	MatchOutcomes   *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	Verdicts        *prometheus.CounterVec
	Replies         *prometheus.CounterVec
	Backlog         *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "sales_tracker_match_runs_total",
			Help: "Completed matcher runs",
		}),
		MatchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_tracker_match_outcomes_total",
			Help: "Provisional sales considered by the matcher by outcome",
		}, []string{"outcome"}), // linked, tie, skipped, no_match

		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_tracker_classifications_total",
			Help: "Classification rows written by outcome",
		}, []string{"outcome"}),

		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_tracker_verdicts_total",
			Help: "Human verdicts received by verdict and whether they were applied",
		}, []string{"verdict", "applied"}),

		Replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_tracker_review_replies_total",
			Help: "Digest replies by parse result",
		}, []string{"result"}),

		Backlog: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sales_tracker_backlog",
			Help: "Rows waiting on a later stage",
		}, []string{"stage"}), // pending_review, unconfirmed, unclassified
	}
}

// RecordMatchRun implements matcher.Recorder.
func (m *Metrics) RecordMatchRun(res matcher.Result) {
	if m == nil {
		return
	}
	m.MatchRuns.Inc()
	m.MatchOutcomes.WithLabelValues("linked").Add(float64(res.Linked))
	m.MatchOutcomes.WithLabelValues("tie").Add(float64(res.Ties))
	m.MatchOutcomes.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.MatchOutcomes.WithLabelValues("no_match").Add(float64(res.NoMatch))
}

// RecordClassification implements classify.Recorder.
func (m *Metrics) RecordClassification(kind model.OutcomeKind) {
	if m != nil {
		m.Classifications.WithLabelValues(kind.String()).Inc()
	}
}

// RecordVerdict implements review.Recorder.
func (m *Metrics) RecordVerdict(v model.Verdict, applied bool) {
	if m != nil {
		m.Verdicts.WithLabelValues(string(v), strconv.FormatBool(applied)).Inc()
	}
}

// RecordReply implements review.Recorder.
func (m *Metrics) RecordReply(parsed bool) {
	if m == nil {
		return
	}
	result := "parsed"
	if !parsed {
		result = "unparseable"
	}
	m.Replies.WithLabelValues(result).Inc()
}

// SetBacklog publishes a snapshot's backlog gauges.
func (m *Metrics) SetBacklog(snap *Snapshot) {
	if m == nil || snap == nil {
		return
	}
	m.Backlog.WithLabelValues("pending_review").Set(float64(snap.PendingReview))
	m.Backlog.WithLabelValues("unconfirmed").Set(float64(snap.Unconfirmed))
	m.Backlog.WithLabelValues("unclassified").Set(float64(snap.Unclassified))
}
