package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-tracker/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provisional, classification and review counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx)
		if err != nil {
			return err
		}

		out := struct {
			*monitoring.Snapshot
			Alerts []monitoring.Alert `json:"alerts,omitempty"`
		}{
			Snapshot: snap,
			Alerts:   monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap),
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
