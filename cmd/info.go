package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/util"
)

var (
	infoURL     string
	infoJSON    bool
	infoBrowser browserFlags
)

func init() {
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Crawl a series page and list every chapter, duplicates included",
		RunE:  runInfo,
	}

	infoCmd.Flags().StringVar(&infoURL, "url", "", "manga series page URL (default: default_url from config)")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print the result as JSON")
	infoBrowser.register(infoCmd)

	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	opts := config.Options{DefaultURL: infoURL}
	infoBrowser.apply(&opts)

	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := util.InterruptContext(cmd.Context(), "")
	defer stop()

	a, err := sess.adapterFor(cfg.DefaultURL)
	if err != nil {
		return err
	}

	info, err := a.GetMangaInfo(ctx, cfg.DefaultURL)
	if err != nil {
		return err
	}

	if infoJSON {
		return printJSON(info)
	}

	fmt.Printf("%s (%s)\n", info.Title, info.Website)
	if info.Description != "" {
		fmt.Println(strings.TrimSpace(info.Description))
	}
	fmt.Printf("\nChapters: %d listed, %d unique numbers, %d reported by the site\n\n",
		len(info.Chapters), info.UniqueChapters, info.TotalChapters)

	printChapters(info.Chapters)

	if len(info.DuplicateChapters) > 0 {
		fmt.Println("\nDuplicated numbers:")
		for _, g := range info.DuplicateChapters {
			groups := make([]string, len(g.Versions))
			for i, v := range g.Versions {
				groups[i] = fmt.Sprintf("%s %s", v.Label(), orDash(v.ReleaseGroup))
			}
			fmt.Printf("  %s: %s\n", providers.FormatNumber(g.Number), strings.Join(groups, ", "))
		}
	}

	return nil
}
