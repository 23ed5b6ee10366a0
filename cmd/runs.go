package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List proof-run audit records",
	Long:  "Lists recorded proof runs, newest first. Runs hold public outputs only, never the submitted metrics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mode, _ := cmd.Flags().GetString("mode")
		status, _ := cmd.Flags().GetString("status")
		sessionID, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		runs, err := st.ListProofRuns(ctx, store.RunFilter{
			SessionID: sessionID,
			Mode:      model.Mode(mode),
			Status:    model.RunStatus(status),
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		out := cmd.OutOrStdout()
		switch format {
		case "csv":
			return writeRunsCSV(out, runs)
		case "json":
			return writeJSON(out, runs)
		case "table", "":
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
				return nil
			}
			formatRunsList(out, runs)
			return nil
		default:
			return eris.Errorf("unknown format %q (want table, csv or json)", format)
		}
	},
}

func init() {
	runsCmd.Flags().String("mode", "", "filter by mode (manual, connected)")
	runsCmd.Flags().String("status", "", "filter by status (complete, failed)")
	runsCmd.Flags().String("session", "", "filter by session id")
	runsCmd.Flags().Int("limit", store.DefaultRunLimit, "max number of runs to display")
	runsCmd.Flags().String("format", "table", "output format: table, csv or json")
	rootCmd.AddCommand(runsCmd)
}
