package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagEnvFile      string
)

var rootCmd = &cobra.Command{
	Use:   "mangacrawl",
	Short: "Crawl manga sites in a real browser and download chapters as CBZ",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv(flagEnvFile)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "load environment variables from this file (default .env when present)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
