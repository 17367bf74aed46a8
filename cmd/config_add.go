package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
)

var configAddFrom string

var configAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Create a new config with default values, or copied from --from",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			prompt := promptui.Prompt{
				Label: "Label for the new config",
				Validate: func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("label cannot be empty")
					}
					return nil
				},
			}

			var err error
			if label, err = prompt.Run(); err != nil {
				return fmt.Errorf("prompt cancelled")
			}
		}
		label = strings.TrimSpace(label)

		if configAddFrom != "" {
			if err := config.AddConfig(label, configAddFrom); err != nil {
				return err
			}
			fmt.Printf("Created config %q from %s\n", label, configAddFrom)
			return nil
		}

		path, err := config.CreateEmptyConfig(label)
		if err != nil {
			return err
		}

		fmt.Printf("Created new config: %s\n", path)
		return nil
	},
}

func init() {
	configAddCmd.Flags().StringVar(&configAddFrom, "from", "", "copy an existing YAML file instead of the defaults")
	configCmd.AddCommand(configAddCmd)
}
