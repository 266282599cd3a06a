package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"onboard/internal/platform/config"
	"onboard/internal/platform/logger"
)

// cli holds what every subcommand shares once the root pre-run has loaded it.
type cli struct {
	rulesFile string
	cfg       *config.Config
}

func (c *cli) newLogger() *slog.Logger {
	return logger.New(c.cfg.Log.Format, c.cfg.Log.Level)
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "onboard",
		Short:         "Onboarding provisioning reconciliation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithRules(c.rulesFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.rulesFile, "rules", "", "routing rules file (overrides ONBOARD_RULES_FILE)")

	root.AddCommand(serveCommand(c))
	root.AddCommand(checkCommand(c))
	root.AddCommand(digestCommand(c))
	root.AddCommand(tokenCommand(c))
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.New("text", "error").Error("onboard failed", "error", err)
		os.Exit(1)
	}
}
