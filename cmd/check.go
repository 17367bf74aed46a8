package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/notify"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/state"
	"github.com/brogergvhs/mangacrawl/internal/util"
)

var (
	checkURL       string
	checkKnownFile string
	checkState     bool
	checkReset     bool
	checkStatePath string
	checkNotify    bool
	checkWatch     time.Duration
	checkJSON      bool
	checkBrowser   browserFlags
)

func init() {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Look at the first listing page only and report chapters not seen before",
		RunE:  runCheck,
	}

	checkCmd.Flags().StringVar(&checkURL, "url", "", "manga series page URL (default: default_url from config)")
	checkCmd.Flags().StringVar(&checkKnownFile, "known", "", "file with known chapter URLs, one per line")
	checkCmd.Flags().BoolVar(&checkState, "state", false, "read and remember known chapter URLs in the state store")
	checkCmd.Flags().BoolVar(&checkReset, "reset-state", false, "forget the stored chapters of this listing before checking (implies --state)")
	checkCmd.Flags().StringVar(&checkStatePath, "state-path", "", "state store file (default: state_path from config)")
	checkCmd.Flags().BoolVar(&checkNotify, "notify", false, "send an ntfy notification when there are new chapters")
	checkCmd.Flags().DurationVar(&checkWatch, "watch", 0, "repeat the check on this interval until interrupted (e.g. 30m)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the result as JSON")
	checkBrowser.register(checkCmd)

	rootCmd.AddCommand(checkCmd)
}

type checker struct {
	qc       providers.QuickChecker
	listURL  string
	fromFile []string
	store    *state.Store
	notifier *notify.Publisher
}

func runCheck(cmd *cobra.Command, _ []string) error {
	opts := config.Options{DefaultURL: checkURL, StatePath: checkStatePath}
	checkBrowser.apply(&opts)

	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	c := &checker{listURL: cfg.DefaultURL}

	if checkKnownFile != "" {
		if c.fromFile, err = readLines(checkKnownFile); err != nil {
			return fmt.Errorf("known chapters: %w", err)
		}
	}

	if checkState || checkReset {
		if c.store, err = state.Open(cfg.StatePath); err != nil {
			return err
		}
		defer c.store.Close()

		if checkReset {
			if err := c.store.Forget(c.listURL); err != nil {
				return err
			}
		}
	}

	if checkNotify {
		hc := util.NewHTTPClient(util.HTTPClientOptions{
			Timeout:   30 * time.Second,
			UserAgent: util.PickUserAgent(cfg.UserAgent),
		})
		c.notifier, err = notify.New(notify.Options{
			Address: cfg.Notify.Address,
			Topic:   cfg.Notify.Topic,
			Token:   cfg.Notify.Token,
		}, hc)
		if err != nil {
			return fmt.Errorf("--notify: %w (set %s and %s)", err, config.EnvNtfyAddress, config.EnvNtfyTopic)
		}
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	a, err := sess.adapterFor(c.listURL)
	if err != nil {
		return err
	}
	qc, ok := a.(providers.QuickChecker)
	if !ok {
		return fmt.Errorf("%s: %w", a.Name(), providers.ErrQuickCheckUnsupported)
	}
	c.qc = qc

	ctx, stop := util.InterruptContext(cmd.Context(), "")
	defer stop()

	if checkWatch <= 0 {
		return c.run(ctx)
	}

	t := time.NewTicker(checkWatch)
	defer t.Stop()

	for {
		if err := c.run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sess.log.Errorf("check failed: %v", err)
		}

		sess.log.Infof("next check at %s", time.Now().Add(checkWatch).Format(time.TimeOnly))
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (c *checker) run(ctx context.Context) error {
	known := c.fromFile
	if c.store != nil {
		stored, err := c.store.Known(c.listURL)
		if err != nil {
			return err
		}
		known = lo.Uniq(append(append([]string{}, known...), stored...))
	}

	res, err := c.qc.QuickCheckUpdates(ctx, c.listURL, known)
	if err != nil {
		return err
	}

	if checkJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printCheck(res)
	}

	if c.notifier != nil && res.HasUpdates {
		if err := c.notifier.NotifyUpdates(ctx, "", c.listURL, res); err != nil {
			return err
		}
	}

	if c.store != nil {
		if _, err := c.store.Remember(c.listURL, res, time.Now()); err != nil {
			return err
		}
	}

	return nil
}

func printCheck(res *providers.QuickCheckResult) {
	latest := "-"
	if res.LatestChapter != nil {
		latest = providers.FormatNumber(*res.LatestChapter)
	}

	if !res.HasUpdates {
		fmt.Printf("No new chapters (latest on first page: %s)\n", latest)
		return
	}

	fmt.Printf("%d new chapter(s), latest: %s\n\n", len(res.NewChapters), latest)
	printRaw(res.NewChapters)
}

// readLines returns the non-empty lines of path, skipping # comments.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}

	return out, sc.Err()
}
