package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/config"
	"github.com/sells-group/sales-tracker/internal/monitoring"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sales-tracker",
	Short: "Suburb property sales tracker",
	Long:  "Ingests provisional and authoritative property sales, links them, classifies comparables for human review, and reports segment medians.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

var (
	metricsOnce sync.Once
	metrics     *monitoring.Metrics
)

// appMetrics registers the process metrics with the default registry once.
func appMetrics() *monitoring.Metrics {
	metricsOnce.Do(func() {
		metrics = monitoring.NewMetrics(prometheus.DefaultRegisterer)
	})
	return metrics
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
