package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zkcredit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zkcredit",
	Short: "Zero-knowledge lending criteria scorer",
	Long: "Scores a business against six lending criteria and proves the result with a zero-knowledge circuit, " +
		"from manually supplied metrics or a connected QuickBooks ledger.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
