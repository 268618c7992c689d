package main

import (
	"github.com/spf13/cobra"

	"energycalc/internal/cli"
	"energycalc/internal/config"
	"energycalc/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "energycalc",
	Short: "Estimate daily energy use and cost of household devices",
	Long: `energycalc serves a single-page calculator that aggregates device entries
per category into kWh and cost and renders them as pie and bar charts.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

// bootstrap loads the validated configuration and the application logger.
func bootstrap() (*config.Config, *log.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
