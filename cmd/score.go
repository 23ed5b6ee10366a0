package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/zkcredit/internal/intake"
	"github.com/sells-group/zkcredit/internal/pipeline"
	"github.com/sells-group/zkcredit/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score metrics in process without producing a proof",
	Long: `Evaluates the lending criteria with the built-in evaluator. Nothing is
executed, stored, or sent anywhere; use it to check metrics before proving.

Examples:
  zkcredit score --input metrics.yaml
  zkcredit score --set total_invoices=40,paid_invoices=39,threshold_percent=95 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		overrides, _ := cmd.Flags().GetStringToString("set")
		asJSON, _ := cmd.Flags().GetBool("json")

		if err := scorer.ValidateConfig(cfg.Lender); err != nil {
			return err
		}
		raw, err := collectValues(input, overrides)
		if err != nil {
			return err
		}
		sub, err := intake.ParseManual(raw, cfg.Lender)
		if err != nil {
			return err
		}
		resp := pipeline.EvaluateSubmission(sub)

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, resp)
		}
		formatInputs(out, sub.Inputs, sub.Active)
		_, _ = fmt.Fprintln(out)
		formatScorecard(out, resp)
		return nil
	},
}

func init() {
	scoreCmd.Flags().String("input", "", "metrics file (.yaml, .yml, .json or .toml)")
	scoreCmd.Flags().StringToString("set", nil, "field=value overrides")
	scoreCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(scoreCmd)
}
