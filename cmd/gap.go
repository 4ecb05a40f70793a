package main

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-tracker/internal/aggregate"
	"github.com/sells-group/sales-tracker/internal/model"
)

var (
	gapProxies []string
	gapTarget  string
	gapRef     string
	samplesRef string
)

var gapCmd = &cobra.Command{
	Use:   "gap",
	Short: "Report whether the combined proxy segments are gaining on a target segment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if len(gapProxies) == 0 || gapTarget == "" {
			return eris.New("--proxy and --target are required")
		}
		ref, err := refDate(gapRef)
		if err != nil {
			return err
		}

		segs := make([]model.Segment, 0, len(gapProxies)+1)
		for _, code := range append(slices.Clone(gapProxies), gapTarget) {
			seg, err := cfg.Segment(code)
			if err != nil {
				return err
			}
			segs = append(segs, seg)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := aggregate.NewCalculator(st, thresholds(cfg.Metrics)).All(ctx, segs, ref)
		if err != nil {
			return err
		}
		last := len(results) - 1
		return printJSON(cmd.OutOrStdout(), aggregate.TrackGap(results[:last], results[last]))
	},
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Show per-segment sample counts for each aggregation window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		ref, err := refDate(samplesRef)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		calc := aggregate.NewCalculator(st, thresholds(cfg.Metrics))
		segs := cfg.SegmentList()
		out := make([]aggregate.Samples, 0, len(segs))
		for _, seg := range segs {
			s, err := calc.Samples(ctx, seg, ref)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	gapCmd.Flags().StringSliceVar(&gapProxies, "proxy", nil, "proxy segment codes (repeatable)")
	gapCmd.Flags().StringVar(&gapTarget, "target", "", "target segment code")
	gapCmd.Flags().StringVar(&gapRef, "ref", "", "reference date YYYY-MM-DD (default today)")
	samplesCmd.Flags().StringVar(&samplesRef, "ref", "", "reference date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(gapCmd, samplesCmd)
}
