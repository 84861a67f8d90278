package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	analyzeCategory    string
	analyzeStopOnQuota bool
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "Garment category for the prompt (overrides config).")
	analyzeCmd.Flags().BoolVar(&analyzeStopOnQuota, "stop-on-quota", false, "Stop the run at the first quota error.")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [--category <name>] [--stop-on-quota]",
	Short: "Analyzes every image not yet in the result store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd.Context())
		cfg := a.Config
		if analyzeCategory != "" {
			cfg.Tagger.Category = analyzeCategory
		}
		if cmd.Flags().Changed("stop-on-quota") {
			cfg.Tagger.StopOnQuota = analyzeStopOnQuota
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, cl, err := buildProcessor(ctx, cfg, a.Logger)
		if err != nil {
			return err
		}
		defer cl.Close()

		sum, err := p.Run(ctx)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}
