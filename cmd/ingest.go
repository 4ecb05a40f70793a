package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/ingest"
)

var (
	ingestFile   string
	ingestSource string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load sale feeds into the store",
}

var ingestProvisionalCmd = &cobra.Command{
	Use:   "provisional",
	Short: "Load provisional sale observations from a JSON or CSV feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, format, err := ingest.NewOpener().Open(ctx, ingestFile)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		recs, rep, err := ingest.Provisional(f, format, ingestSource)
		if err != nil {
			return err
		}
		logReport(rep)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		inserted, err := st.InsertProvisionalSales(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "ingest provisional")
		}
		zap.L().Info("provisional ingest complete",
			zap.String("file", ingestFile),
			zap.String("source", ingestSource),
			zap.Int("read", len(recs)),
			zap.Int("inserted", inserted),
			zap.Int("skipped", len(rep.Skipped)),
			zap.Int("warnings", len(rep.Warnings)),
		)
		return nil
	},
}

var ingestAuthoritativeCmd = &cobra.Command{
	Use:   "authoritative",
	Short: "Load settled sales from a JSON or CSV feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, format, err := ingest.NewOpener().Open(ctx, ingestFile)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		sales, rep, err := ingest.Authoritative(f, format)
		if err != nil {
			return err
		}
		logReport(rep)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		inserted, err := st.InsertAuthoritativeSales(ctx, sales)
		if err != nil {
			return eris.Wrap(err, "ingest authoritative")
		}
		zap.L().Info("authoritative ingest complete",
			zap.String("file", ingestFile),
			zap.Int("read", len(sales)),
			zap.Int("inserted", inserted),
			zap.Int("skipped", len(rep.Skipped)),
			zap.Int("warnings", len(rep.Warnings)),
		)
		return nil
	},
}

func logReport(rep ingest.Report) {
	for _, e := range rep.Skipped {
		zap.L().Warn("skipping feed row", zap.Int("row", e.Row), zap.Error(e.Err))
	}
	for _, e := range rep.Warnings {
		zap.L().Warn("feed row kept with field cleared", zap.Int("row", e.Row), zap.Error(e.Err))
	}
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestFile, "file", "", "path or http(s) URL of a .json or .csv feed (required)")
	_ = ingestCmd.MarkPersistentFlagRequired("file")
	ingestProvisionalCmd.Flags().StringVar(&ingestSource, "source", "", "source tag, e.g. domain (required)")
	_ = ingestProvisionalCmd.MarkFlagRequired("source")

	ingestCmd.AddCommand(ingestProvisionalCmd, ingestAuthoritativeCmd)
	rootCmd.AddCommand(ingestCmd)
}
