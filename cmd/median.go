package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-tracker/internal/aggregate"
	"github.com/sells-group/sales-tracker/internal/config"
	"github.com/sells-group/sales-tracker/internal/model"
)

var (
	medianSegment  string
	medianRef      string
	medianProxy    string
	medianTarget   string
	medianAdjusted bool
)

var medianCmd = &cobra.Command{
	Use:   "median",
	Short: "Report segment median prices with period fallback and YoY change",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ref, err := refDate(medianRef)
		if err != nil {
			return err
		}
		if (medianProxy == "") != (medianTarget == "") {
			return eris.New("--proxy and --target must be given together")
		}
		if medianAdjusted && medianProxy != "" {
			return eris.New("--adjusted cannot be combined with --proxy")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		calc := aggregate.NewCalculator(st, thresholds(cfg.Metrics))

		if medianProxy != "" {
			proxy, err := cfg.Segment(medianProxy)
			if err != nil {
				return err
			}
			target, err := cfg.Segment(medianTarget)
			if err != nil {
				return err
			}
			results, err := calc.All(ctx, []model.Segment{proxy, target}, ref)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), aggregate.Compare(results[0], results[1]))
		}

		if medianAdjusted {
			return printAdjusted(cmd, calc, ref)
		}

		if medianSegment != "" {
			seg, err := cfg.Segment(medianSegment)
			if err != nil {
				return err
			}
			res, err := calc.Segment(ctx, seg, ref)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}

		results, err := calc.All(ctx, cfg.SegmentList(), ref)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), results)
	},
}

// printAdjusted reports time-adjusted medians for --segment, or for every
// segment when none is given.
func printAdjusted(cmd *cobra.Command, calc *aggregate.Calculator, ref time.Time) error {
	segs := cfg.SegmentList()
	if medianSegment != "" {
		seg, err := cfg.Segment(medianSegment)
		if err != nil {
			return err
		}
		segs = []model.Segment{seg}
	}
	out := make([]aggregate.TimeAdjusted, 0, len(segs))
	for _, seg := range segs {
		res, err := calc.TimeAdjusted(cmd.Context(), seg, ref, growth(cfg.Metrics))
		if err != nil {
			return err
		}
		out = append(out, res)
	}
	if medianSegment != "" {
		return printJSON(cmd.OutOrStdout(), out[0])
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// refDate parses a --ref flag, defaulting to today.
func refDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --ref %q", s)
	}
	return d, nil
}

func growth(c config.MetricsConfig) aggregate.Growth {
	g := aggregate.DefaultGrowth()
	if c.GrowthBase > 0 {
		g.Base = c.GrowthBase
	}
	if c.GrowthConservative > 0 {
		g.Conservative = c.GrowthConservative
	}
	if c.GrowthOptimistic > 0 {
		g.Optimistic = c.GrowthOptimistic
	}
	return g
}

func thresholds(c config.MetricsConfig) aggregate.Thresholds {
	return aggregate.Thresholds{
		Monthly:   c.MinSampleMonthly,
		Quarterly: c.MinSampleQuarterly,
		SixMonth:  c.MinSample6Month,
	}
}

func init() {
	medianCmd.Flags().StringVar(&medianSegment, "segment", "", "segment code (default all segments)")
	medianCmd.Flags().StringVar(&medianRef, "ref", "", "reference date YYYY-MM-DD (default today)")
	medianCmd.Flags().StringVar(&medianProxy, "proxy", "", "proxy segment for an outpacing comparison")
	medianCmd.Flags().StringVar(&medianTarget, "target", "", "target segment for an outpacing comparison")
	medianCmd.Flags().BoolVar(&medianAdjusted, "adjusted", false, "report time-adjusted medians over the last twelve months")
	rootCmd.AddCommand(medianCmd)
}
