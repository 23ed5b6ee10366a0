package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zkcredit/internal/model"
)

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Prove the lending criteria for a set of metrics",
	Long: `Runs the lending-criteria circuit and prints the scorecard.

Metrics come from --input (YAML, JSON or TOML) and --set overrides. With
--session the actuals are read from that session's connected QuickBooks
ledger and only thresholds may be supplied.

Examples:
  # Reliability and debt-to-income only
  zkcredit prove --set total_invoices=100,paid_invoices=90,threshold_percent=90,total_debt=40000,total_income=100000

  # All six criteria from a file, in process
  zkcredit prove --input metrics.yaml --backend local

  # Connected ledger with a custom revenue bound
  zkcredit prove --session 6f1c... --set revenue_threshold=250000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		overrides, _ := cmd.Flags().GetStringToString("set")
		backend, _ := cmd.Flags().GetString("backend")
		sessionID, _ := cmd.Flags().GetString("session")
		asJSON, _ := cmd.Flags().GetBool("json")
		reliability, _ := cmd.Flags().GetBool("reliability")

		if backend != "" {
			cfg.Prover.Backend = backend
		}
		scope := "prove"
		if sessionID != "" {
			scope = "connected"
		}
		if err := cfg.Validate(scope); err != nil {
			return err
		}

		raw, err := collectValues(input, overrides)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var resp *model.ProofResponse
		switch {
		case sessionID != "":
			sess, serr := env.Store.GetSession(ctx, sessionID)
			if serr != nil {
				return eris.Wrapf(serr, "load session %s", sessionID)
			}
			resp, err = env.Pipeline.Connected(ctx, sess, raw)
		case reliability:
			resp, err = env.Pipeline.Reliability(ctx, "", raw)
		default:
			resp, err = env.Pipeline.Manual(ctx, "", raw)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, resp)
		}
		formatScorecard(out, resp)
		return nil
	},
}

func init() {
	proveCmd.Flags().String("input", "", "metrics file (.yaml, .yml, .json or .toml)")
	proveCmd.Flags().StringToString("set", nil, "field=value overrides, e.g. --set dso=44,dso_threshold=45")
	proveCmd.Flags().String("backend", "", "proof backend: nargo or local (default from config)")
	proveCmd.Flags().String("session", "", "prove from this session's connected QuickBooks ledger")
	proveCmd.Flags().Bool("reliability", false, "prove invoice payment reliability only")
	proveCmd.Flags().Bool("json", false, "print the full response as JSON")
	rootCmd.AddCommand(proveCmd)
}
