package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker refreshes the backlog gauges and raises alerts on a fixed
// interval while `serve` is running.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	metrics   *Metrics
	interval  time.Duration
	log       *zap.Logger
}

// NewChecker wires a checker. metrics may be nil.
func NewChecker(collector *Collector, alerter *Alerter, metrics *Metrics, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		metrics:   metrics,
		interval:  interval,
		log:       zap.L().With(zap.String("component", "monitoring")),
	}
}

// Run checks immediately, then once per interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("backlog checker started", zap.Duration("interval", c.interval))
	defer c.log.Info("backlog checker stopped")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check performs one collect, gauge update and alert pass. Failures are
// logged; the next tick tries again.
func (c *Checker) Check(ctx context.Context) {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		c.log.Error("collect backlog snapshot", zap.Error(err))
		return
	}
	c.metrics.SetBacklog(snap)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}
	if err := c.alerter.Notify(ctx, alerts); err != nil {
		c.log.Error("deliver backlog alerts", zap.Int("alerts", len(alerts)), zap.Error(err))
	}
}
