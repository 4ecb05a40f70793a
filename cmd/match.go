package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-tracker/internal/matcher"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Link unconfirmed provisional sales to authoritative records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := matcher.New(st,
			matcher.WithWindowDays(cfg.Matcher.WindowDays),
			matcher.WithRecorder(appMetrics()),
		)

		var res matcher.Result
		err = withLock(ctx, st, "match", func() error {
			res, err = m.Run(ctx)
			return err
		})
		if err != nil {
			return eris.Wrap(err, "match")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
