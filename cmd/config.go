package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the mangacrawl config profiles; without a subcommand, print the merged config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		fmt.Printf("Loaded config from:\n  %s\n\n", used)
		cfg.Print()
		return nil
	},
}

// confirm asks a yes/no question. Ctrl-C and "n" both answer no.
func confirm(label string) (bool, error) {
	p := promptui.Prompt{Label: label, IsConfirm: true}

	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrInterrupt):
		return false, nil
	default:
		return false, err
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
}
