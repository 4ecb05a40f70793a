package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-tracker/internal/classify"
	"github.com/sells-group/sales-tracker/internal/config"
	"github.com/sells-group/sales-tracker/internal/enrich"
	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/resilience"
	"github.com/sells-group/sales-tracker/pkg/planning"
	"github.com/sells-group/sales-tracker/pkg/property"
)

var (
	classifySegment string
	classifyLimit   int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Enrich and auto-classify unclassified authoritative sales",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		var filter model.SaleFilter
		if classifySegment != "" {
			seg, err := cfg.Segment(classifySegment)
			if err != nil {
				return err
			}
			filter = seg.Filter(time.Time{}, time.Time{})
		}
		limit := classifyLimit
		if limit <= 0 {
			limit = cfg.Classifier.BatchLimit
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := classify.NewPipeline(st, buildEnricher(cfg), buildRules(cfg.Classifier), appMetrics())

		var res classify.Result
		err = withLock(ctx, st, "classify", func() error {
			res, err = p.ClassifyUnclassified(ctx, filter, limit)
			return err
		})
		if err != nil {
			return eris.Wrap(err, "classify")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// buildRules overlays configured rules on the defaults.
func buildRules(c config.ClassifierConfig) classify.Rules {
	rules := classify.DefaultRules()
	if len(c.AllowedZonings) > 0 {
		rules.AllowedZonings = c.AllowedZonings
	}
	if c.YearBuiltCutoff > 0 {
		rules.YearBuiltCutoff = c.YearBuiltCutoff
	}
	if len(c.ExcludeKeywords) > 0 {
		rules.ExcludeKeywords = c.ExcludeKeywords
	}
	return rules
}

// buildEnricher reads stored attributes, then layers planning portal zoning
// and property API year built lookups when enabled.
func buildEnricher(c *config.Config) enrich.Enricher {
	var e enrich.Enricher = enrich.StoredEnricher{}
	if c.Planning.Enabled {
		policy := resilience.Policy{
			Attempts:    c.Planning.MaxAttempts,
			BreakAfter:  c.Planning.BreakerThreshold,
			CoolOffSecs: c.Planning.BreakerResetSecs,
		}
		client := planning.NewClient(
			planning.WithBaseURL(c.Planning.BaseURL),
			planning.WithRateLimit(c.Planning.RatePerSec),
			planning.WithRetry(policy.Retry("planning")),
			planning.WithBreaker(policy.Breaker()),
		)
		e = enrich.NewPlanningEnricher(e, client, c.Planning.State, c.Planning.Concurrency)
	}
	if c.Property.Enabled {
		policy := resilience.Policy{
			Attempts:    c.Property.MaxAttempts,
			BreakAfter:  c.Property.BreakerThreshold,
			CoolOffSecs: c.Property.BreakerResetSecs,
		}
		client := property.NewClient(c.Property.APIKey,
			property.WithBaseURL(c.Property.BaseURL),
			property.WithRateLimit(c.Property.RatePerSec),
			property.WithRetry(policy.Retry("property")),
			property.WithBreaker(policy.Breaker()),
		)
		e = enrich.NewYearBuiltEnricher(e, client, c.Planning.State, c.Property.Concurrency)
	}
	return e
}

func init() {
	classifyCmd.Flags().StringVar(&classifySegment, "segment", "", "only classify sales in this segment")
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 0, "max sales to classify (default classifier.batch_limit)")
	rootCmd.AddCommand(classifyCmd)
}
