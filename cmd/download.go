package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/mangacrawl/internal/chapters"
	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/downloader"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/ui"
	"github.com/brogergvhs/mangacrawl/internal/util"
)

var (
	// selection
	flagURL          string
	flagChapter      string
	flagRange        string
	flagList         string
	flagExcludeRange string
	flagExcludeList  string
	flagAllowExt     string
	flagPick         bool
	flagVersion      int

	// runtime
	flagOutput         string
	flagImageWorkers   int
	flagChapterWorkers int
	flagKeepFolders    bool
	flagDryRun         bool
	flagSkipBroken     bool
	flagOverwrite      bool

	// headers/auth
	flagCookie     string
	flagCookieFile string

	downloadBrowser browserFlags
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download manga chapters and produce CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "manga series page URL")
	downloadCmd.Flags().StringVar(&flagChapter, "chapter", "", "download single chapter by index or label (e.g. 5, 28.5 or 28.5v2)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of chapters by index (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter indices (e.g. 1,3,5)")
	downloadCmd.Flags().StringVar(&flagExcludeRange, "exclude-range", "", "skip a range of chapter indices (e.g. 1-4)")
	downloadCmd.Flags().StringVar(&flagExcludeList, "exclude-list", "", "skip specific chapter indices (e.g. 2,7)")
	downloadCmd.Flags().StringVar(&flagAllowExt, "allow-ext", "", "Allowed image extensions (e.g. \"webp|jpg|png\")")
	downloadCmd.Flags().BoolVar(&flagPick, "pick", false, "choose one upload for every duplicated chapter number")
	downloadCmd.Flags().IntVar(&flagVersion, "version", 0, "keep only the Nth upload of every duplicated chapter number")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for CBZ files")
	downloadCmd.Flags().IntVar(&flagImageWorkers, "image-workers", 5, "parallel image downloads per chapter")
	downloadCmd.Flags().IntVar(&flagChapterWorkers, "chapter-workers", 2, "parallel chapter downloads")
	downloadCmd.Flags().BoolVar(&flagKeepFolders, "keep-folders", false, "keep temporary folders")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don't download")
	downloadCmd.Flags().BoolVar(&flagSkipBroken, "skip-broken", false, "skip failed images instead of failing the whole chapter")
	downloadCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "download chapters whose CBZ already exists")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string for image requests, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadBrowser.register(downloadCmd)

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	opts := config.Options{
		Output:              flagOutput,
		KeepFolders:         flagKeepFolders,
		DefaultURL:          flagURL,
		DefaultRange:        flagRange,
		DefaultList:         flagList,
		DefaultExcludeRange: flagExcludeRange,
		DefaultExcludeList:  flagExcludeList,
		Cookie:              flagCookie,
		CookieFile:          flagCookieFile,
		SkipBroken:          flagSkipBroken,
	}
	downloadBrowser.apply(&opts)

	cfg, usedPath, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("image-workers") {
		cfg.ImageWorkers = flagImageWorkers
	}
	if cmd.Flags().Changed("chapter-workers") {
		cfg.ChapterWorkers = flagChapterWorkers
	}
	if flagAllowExt != "" {
		cfg.AllowExt = splitExt(flagAllowExt)
	}
	if flagPick && flagVersion > 0 {
		return errors.New("--pick and --version cannot be combined")
	}

	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	fmt.Println("Full config:")
	cfg.Print()
	fmt.Println()

	if cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	a, err := sess.adapterFor(cfg.DefaultURL)
	if err != nil {
		return err
	}

	ctx, stop := util.InterruptContext(cmd.Context(), cfg.Output)
	defer stop()

	info, err := a.GetMangaInfo(ctx, cfg.DefaultURL)
	if err != nil {
		return err
	}

	all := chapters.Wrap(info.Chapters)
	if flagChapter == "" && cfg.DefaultRange == "" && cfg.DefaultList == "" {
		fmt.Printf("Found %d chapters on the site (%d unique numbers).\n\n", len(all), info.UniqueChapters)
	}

	selected, err := selectChapters(all, flagChapter, cfg)
	if err != nil {
		return err
	}

	if len(info.DuplicateChapters) > 0 {
		switch {
		case flagVersion > 0:
			selected = chapters.KeepVersion(selected, flagVersion)
		case flagPick:
			chosen, err := pickVersions(selected)
			if err != nil {
				return err
			}
			selected = chapters.KeepChosen(selected, chosen)
		}
	}

	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Printf("Dry-run: %d chapters selected.\n\n", len(selected))
		for i, ch := range selected {
			fmt.Printf("%3d) %s  [%s]\n    %s\n", i+1, ch.Title, ch.Label(), ch.URL)
		}
		return nil
	}

	hc := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     time.Minute,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		DebugLogger: sess.log,
	})

	dlOpts := downloader.DefaultOptions()
	dlOpts.SkipBroken = cfg.SkipBroken
	dlOpts.AllowExt = cfg.AllowExt

	job := &downloadJob{
		cfg:     cfg,
		info:    info,
		adapter: a,
		dl:      downloader.New(hc, dlOpts, sess.log),
		log:     sess.log,
		pm:      ui.NewProgressManager(),
		stats:   &ui.Stats{},
	}

	start := time.Now()
	err = job.run(ctx, selected)
	job.pm.Close()

	job.stats.WriteSummary(os.Stdout, time.Since(start))

	if err != nil {
		return err
	}
	fmt.Println("\nAll done.")

	return nil
}

// selectChapters applies the chapter label or index, or the range/list
// selection, then the exclusions. Exclusion indices refer to all.
func selectChapters(all []chapters.Chapter, chapter string, cfg *config.Config) ([]chapters.Chapter, error) {
	selected := chapters.Filter(all, strings.TrimSpace(chapter), cfg.DefaultRange, cfg.DefaultList)
	if chapter != "" && len(selected) == 0 {
		return nil, fmt.Errorf("chapter '%s' not found", chapter)
	}

	excluded := chapters.Exclude(all, cfg.DefaultExcludeRange, cfg.DefaultExcludeList)
	keep := lo.SliceToMap(excluded, func(ch chapters.Chapter) (string, bool) { return ch.URL, true })

	return lo.Filter(selected, func(ch chapters.Chapter, _ int) bool { return keep[ch.URL] }), nil
}

// pickVersions asks for one upload per duplicated number among selected.
func pickVersions(selected []chapters.Chapter) (map[float64]string, error) {
	groups := lo.GroupBy(lo.Filter(selected, func(ch chapters.Chapter, _ int) bool {
		return ch.Versioned()
	}), func(ch chapters.Chapter) float64 { return ch.Number })

	numbers := lo.Uniq(lo.FilterMap(selected, func(ch chapters.Chapter, _ int) (float64, bool) {
		return ch.Number, ch.Versioned()
	}))

	chosen := make(map[float64]string, len(numbers))
	for _, n := range numbers {
		versions := groups[n]
		items := lo.Map(versions, func(v chapters.Chapter, _ int) string {
			parts := []string{v.Label(), v.Title}
			if v.ReleaseGroup != "" {
				parts = append(parts, "by "+v.ReleaseGroup)
			}
			if v.UploadedAt != "" {
				parts = append(parts, v.UploadedAt)
			}
			return strings.Join(parts, "  ")
		})

		prompt := promptui.Select{
			Label: fmt.Sprintf("Chapter %s has %d uploads", providers.FormatNumber(n), len(versions)),
			Items: items,
		}

		idx, _, err := prompt.Run()
		if err != nil {
			return nil, fmt.Errorf("selection cancelled")
		}
		chosen[n] = versions[idx].URL
	}

	return chosen, nil
}

type downloadJob struct {
	cfg     *config.Config
	info    *providers.MangaInfo
	adapter providers.Adapter
	dl      *downloader.Downloader
	log     *ui.Logger
	pm      *ui.MPBProgressManager
	stats   *ui.Stats
}

// run downloads the chapters with at most ChapterWorkers in flight. A
// failing chapter is logged and counted; only cancellation stops the rest.
func (j *downloadJob) run(ctx context.Context, selected []chapters.Chapter) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, j.cfg.ChapterWorkers))

	delay := j.cfg.EngineOptions().Delay
	started := 0

	for _, ch := range selected {
		if gctx.Err() != nil {
			break
		}

		cbzOut := ch.OutputCBZPath(j.cfg.Output)
		if _, err := os.Stat(cbzOut); err == nil && !flagOverwrite {
			j.log.Infof("Ch.%s already downloaded: %s", ch.Label(), filepath.Base(cbzOut))
			continue
		}

		// spread reader loads out; the first chapter starts right away
		if started > 0 {
			if err := delay.Wait(gctx); err != nil {
				break
			}
		}
		started++

		g.Go(func() error {
			if err := j.chapter(gctx, ch, cbzOut); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				j.stats.Fail()
				j.log.Errorf("Chapter %s failed: %v", ch.Label(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

func (j *downloadJob) chapter(ctx context.Context, ch chapters.Chapter, cbzOut string) error {
	handle := j.pm.Register("Ch." + ch.Label())

	images, err := j.adapter.GetChapterImages(ctx, ch.URL)
	if err != nil {
		handle.Abort()
		return err
	}
	if len(images) == 0 {
		handle.Abort()
		return providers.ErrNoImages
	}
	handle.SetTotal(len(images))

	tmpFolder := filepath.Join(j.cfg.Output, ch.FolderName())

	files, bytes, err := j.dl.DownloadImagesConcurrently(ctx, images, tmpFolder, ch.URL, max(1, j.cfg.ImageWorkers), handle)
	if err != nil {
		handle.Abort()
		_ = os.RemoveAll(tmpFolder)
		return err
	}

	info := &util.ComicInfo{
		Title:      ch.Title,
		Series:     j.info.Title,
		Number:     ch.Label(),
		Count:      j.info.TotalChapters,
		Summary:    j.info.Description,
		Web:        ch.URL,
		Translator: ch.ReleaseGroup,
	}
	if err := util.CreateCBZ(files, cbzOut, info); err != nil {
		_ = os.RemoveAll(tmpFolder)
		_ = os.Remove(cbzOut)
		return fmt.Errorf("CBZ: %w", err)
	}

	if !j.cfg.KeepFolders {
		util.CleanupFolder(tmpFolder)
	}

	j.stats.Done(len(files), bytes)

	return nil
}

func splitExt(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})

	out := []string{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}
