package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/config"
	"github.com/sells-group/sales-tracker/internal/resilience"
)

// AlertType names the backlog that breached its threshold.
type AlertType string

const (
	AlertReviewBacklog       AlertType = "review_backlog"
	AlertUnconfirmedBacklog  AlertType = "unconfirmed_backlog"
	AlertUnclassifiedBacklog AlertType = "unclassified_backlog"
)

// Alert is one threshold breach.
type Alert struct {
	Type      AlertType `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Notice is the webhook body: every alert from one check.
type Notice struct {
	Alerts []Alert   `json:"alerts"`
	SentAt time.Time `json:"sent_at"`
}

type backlogRule struct {
	kind      AlertType
	severity  string
	noun      string
	count     func(*Snapshot) int
	threshold func(config.MonitoringConfig) int
}

// Ordered by severity. Pending reviews block medians for review-gated segments.
var backlogRules = []backlogRule{
	{
		kind: AlertReviewBacklog, severity: "high", noun: "sales awaiting review",
		count:     func(s *Snapshot) int { return s.PendingReview },
		threshold: func(c config.MonitoringConfig) int { return c.PendingReviewThreshold },
	},
	{
		kind: AlertUnclassifiedBacklog, severity: "medium", noun: "authoritative sales not yet classified",
		count:     func(s *Snapshot) int { return s.Unclassified },
		threshold: func(c config.MonitoringConfig) int { return c.UnclassifiedThreshold },
	},
	{
		kind: AlertUnconfirmedBacklog, severity: "low", noun: "provisional sales still unconfirmed",
		count:     func(s *Snapshot) int { return s.Unconfirmed },
		threshold: func(c config.MonitoringConfig) int { return c.UnconfirmedThreshold },
	},
}

// Alerter turns snapshots into alerts and delivers them to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewAlerter creates an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("monitoring", "webhook")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns an alert for every backlog strictly over its threshold.
// A zero threshold disables the check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	at := a.now()
	var alerts []Alert
	for _, r := range backlogRules {
		n, limit := r.count(snap), r.threshold(a.cfg)
		if limit <= 0 || n <= limit {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      r.kind,
			Severity:  r.severity,
			Message:   fmt.Sprintf("%d %s (threshold %d)", n, r.noun, limit),
			Count:     n,
			Threshold: limit,
			Timestamp: at,
		})
	}
	return alerts
}

// Notify posts alerts to the webhook as a single Notice. It is a no-op
// without a webhook or without alerts.
func (a *Alerter) Notify(ctx context.Context, alerts []Alert) error {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(Notice{Alerts: alerts, SentAt: a.now()})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal notice")
	}

	err = resilience.Do(ctx, a.retry, func(ctx context.Context) error {
		return a.post(ctx, body)
	})
	if err != nil {
		return eris.Wrap(err, "monitoring: notify")
	}
	zap.L().Info("monitoring: alerts delivered", zap.Int("alerts", len(alerts)))
	return nil
}

func (a *Alerter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("monitoring: webhook status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode >= 400:
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
