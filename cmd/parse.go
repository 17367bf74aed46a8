package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/chapters"
	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

var (
	parseSite string
	parseURL  string
	parseJSON bool
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Run a site profile over a saved listing page, for writing and debugging profiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		prof, err := findProfile(cfg, parseSite)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		listing, err := generic.ParseListing(prof, parseURL, string(raw))
		if err != nil {
			return err
		}

		if parseJSON {
			return printJSON(listing)
		}

		cat := chapters.Reconcile(listing.Chapters, listing.DeclaredTotal)

		fmt.Printf("Title:       %s\n", orDash(listing.Title))
		fmt.Printf("Cover:       %s\n", orDash(listing.Cover))
		fmt.Printf("Declared:    %d\n", listing.DeclaredTotal)
		fmt.Printf("Links:       %d (%d unique numbers)\n", len(listing.Chapters), cat.Unique)
		fmt.Printf("Next page:   %s\n\n", orDash(listing.NextPage))

		printChapters(cat.Chapters)
		for _, d := range cat.Duplicates {
			fmt.Printf("\nchapter %s has %d uploads\n", providers.FormatNumber(d.Number), len(d.Versions))
		}

		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseSite, "site", "", "profile name (see `mangacrawl sites`)")
	parseCmd.Flags().StringVar(&parseURL, "url", "", "URL the page was saved from, used to resolve relative links")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print the raw listing as JSON")
	_ = parseCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(parseCmd)
}
