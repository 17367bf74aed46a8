package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/util"
)

var (
	imagesURL     string
	imagesSite    string
	imagesJSON    bool
	imagesBrowser browserFlags
)

func init() {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Render a chapter reader and list its page images in order",
		RunE:  runImages,
	}

	imagesCmd.Flags().StringVar(&imagesURL, "url", "", "chapter reader URL")
	imagesCmd.Flags().StringVar(&imagesSite, "site", "", "adapter name, for reader URLs no series pattern matches (see `mangacrawl sites`)")
	imagesCmd.Flags().BoolVar(&imagesJSON, "json", false, "print the result as JSON")
	_ = imagesCmd.MarkFlagRequired("url")
	imagesBrowser.register(imagesCmd)

	rootCmd.AddCommand(imagesCmd)
}

func runImages(cmd *cobra.Command, _ []string) error {
	var opts config.Options
	imagesBrowser.apply(&opts)

	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	a, err := sess.adapterNamed(imagesSite, imagesURL)
	if err != nil {
		return err
	}

	ctx, stop := util.InterruptContext(cmd.Context(), "")
	defer stop()

	images, err := a.GetChapterImages(ctx, imagesURL)
	if err != nil {
		return err
	}

	if imagesJSON {
		return printJSON(images)
	}
	if len(images) == 0 {
		return fmt.Errorf("%s: %w", imagesURL, providers.ErrNoImages)
	}

	w := newTable(os.Stdout)
	_, _ = fmt.Fprintln(w, "#\tURL")
	for _, img := range images {
		_, _ = fmt.Fprintf(w, "%d\t%s\n", img.Index, img.URL)
	}
	flushTable(w)

	return nil
}
