package cmd

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
)

var configRenameCmd = &cobra.Command{
	Use:   "rename <label> [new_label]",
	Short: "Rename a config; asks for the new label when it is omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldLabel := strings.TrimSpace(args[0])
		if _, err := config.ConfigPathByLabel(oldLabel); err != nil {
			return err
		}

		var newLabel string
		if len(args) == 2 {
			newLabel = args[1]
		} else {
			prompt := promptui.Prompt{
				Label:    fmt.Sprintf("New label for %q", oldLabel),
				Validate: validRenameLabel(oldLabel),
			}

			var err error
			if newLabel, err = prompt.Run(); err != nil {
				return fmt.Errorf("prompt cancelled")
			}
		}

		newLabel = strings.TrimSpace(newLabel)
		if err := validRenameLabel(oldLabel)(newLabel); err != nil {
			return err
		}

		if err := config.RenameConfig(oldLabel, newLabel); err != nil {
			return err
		}
		fmt.Printf("Renamed config %q to %q\n", oldLabel, newLabel)

		return nil
	},
}

// validRenameLabel rejects blank labels and a rename onto the same label.
func validRenameLabel(oldLabel string) func(string) error {
	return func(s string) error {
		switch s = strings.TrimSpace(s); {
		case s == "":
			return fmt.Errorf("label cannot be empty")
		case s == oldLabel:
			return fmt.Errorf("config is already called %q", oldLabel)
		}
		return nil
	}
}

func init() {
	configCmd.AddCommand(configRenameCmd)
}
