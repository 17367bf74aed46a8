package generic

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/brogergvhs/mangacrawl/internal/browser"
	"github.com/brogergvhs/mangacrawl/internal/chapters"
	"github.com/brogergvhs/mangacrawl/internal/providers"
)

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Sessions hands out scoped browser pages. *browser.Manager implements it.
type Sessions interface {
	WithPage(ctx context.Context, fn func(ctx context.Context, h *browser.Handle) error) error
	WithCleanPage(ctx context.Context, fn func(ctx context.Context, h *browser.Handle) error) error
}

// Scraper is a providers.Adapter driven by a Profile.
type Scraper struct {
	prof     *compiledProfile
	sessions Sessions
	opts     Options
	log      Logger
}

// QuickScraper is a Scraper whose profile supports first-page update checks.
type QuickScraper struct {
	*Scraper
}

var (
	_ providers.Adapter      = (*Scraper)(nil)
	_ providers.QuickChecker = QuickScraper{}
)

func NewScraper(p Profile, sessions Sessions, opts Options, log Logger) (*Scraper, error) {
	c, err := p.compile()
	if err != nil {
		return nil, err
	}

	return &Scraper{
		prof:     c,
		sessions: sessions,
		opts:     opts.withDefaults(),
		log:      log,
	}, nil
}

// NewAdapter builds the adapter for p, exposing QuickCheckUpdates only when
// the profile enables it.
func NewAdapter(p Profile, sessions Sessions, opts Options, log Logger) (providers.Adapter, error) {
	s, err := NewScraper(p, sessions, opts, log)
	if err != nil {
		return nil, err
	}
	if p.QuickCheck {
		return QuickScraper{Scraper: s}, nil
	}

	return s, nil
}

func (s *Scraper) Name() string {
	return s.prof.Name
}

func (s *Scraper) Patterns() []*regexp.Regexp {
	return s.prof.patterns
}

// GetMangaInfo crawls every listing page and reconciles the chapters. An
// empty listing is a valid result with no chapters.
func (s *Scraper) GetMangaInfo(ctx context.Context, mangaURL string) (*providers.MangaInfo, error) {
	var res *crawlResult
	err := s.sessions.WithPage(ctx, func(ctx context.Context, h *browser.Handle) error {
		var err error
		res, err = s.crawl(ctx, h, mangaURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: manga info: %w", s.prof.Name, err)
	}

	cat := chapters.Reconcile(res.Records, res.Meta.DeclaredTotal)
	s.log.Infof("%s: %d chapters (%d unique, %d duplicated numbers) from %d page(s)",
		s.prof.Name, len(cat.Chapters), cat.Unique, len(cat.Duplicates), res.Pages)

	return &providers.MangaInfo{
		URL:               mangaURL,
		Website:           s.prof.Name,
		Title:             res.Meta.Title,
		TotalChapters:     cat.Total,
		UniqueChapters:    cat.Unique,
		Chapters:          cat.Chapters,
		DuplicateChapters: cat.Duplicates,
		Cover:             res.Meta.Cover,
		Description:       res.Meta.Description,
	}, nil
}

// GetChapterImages renders a chapter reader and returns its page images in
// reading order. Nothing usable yields an empty slice.
func (s *Scraper) GetChapterImages(ctx context.Context, chapterURL string) ([]providers.Image, error) {
	var images []providers.Image

	run := func(ctx context.Context, h *browser.Handle) error {
		var err error
		images, err = s.collectImages(ctx, h, chapterURL)
		return err
	}

	var err error
	if s.prof.cleanImages {
		err = s.sessions.WithCleanPage(ctx, run)
	} else {
		err = s.sessions.WithPage(ctx, run)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: chapter images: %w", s.prof.Name, err)
	}

	return images, nil
}

func (s *Scraper) collectImages(ctx context.Context, page browser.Page, chapterURL string) ([]providers.Image, error) {
	if err := page.Navigate(ctx, chapterURL, s.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	outcome, steps := scrollToConvergence(ctx, page, s.opts.Scroll)
	s.log.Debugf("%s: scroll %s after %d steps", s.prof.Name, outcome, steps)
	if outcome == ScrollCanceled {
		return nil, ctx.Err()
	}

	if err := sleep(ctx, s.opts.SettlePause); err != nil {
		return nil, err
	}
	if r := page.WaitForPredicate(ctx, readyExpression(s.prof.Images), s.opts.ReadyTimeout); !r.Found() {
		s.log.Debugf("%s: images not all decoded (%s), using what rendered", s.prof.Name, r)
	}

	selectors := s.prof.imageSelectors()

	var snap imageSnapshot
	if err := page.Evaluate(ctx, collectScript(selectors), &snap); err != nil {
		s.log.Warnf("%s: live image query failed, reading the document: %v", s.prof.Name, err)

		html, herr := page.HTML(ctx)
		if herr != nil {
			return nil, fmt.Errorf("read chapter page: %w", herr)
		}
		doc, perr := parseDocument(html)
		if perr != nil {
			return nil, fmt.Errorf("parse chapter page: %w", perr)
		}
		snap = imageSnapshot{Items: candidatesFromDocument(doc, selectors)}
	}

	base := parseBase(snap.URL, chapterURL)
	col := newImageCollector(s.prof, base, s.log)
	for _, c := range snap.Items {
		col.add(c)
	}

	images := col.Finalize()
	s.log.Debugf("%s: %d images kept of %d candidates", s.prof.Name, len(images), len(snap.Items))

	return images, nil
}

// parseBase picks the first parseable absolute URL of the candidates.
func parseBase(candidates ...string) *url.URL {
	for _, c := range candidates {
		if u, err := url.Parse(c); err == nil && u.IsAbs() {
			return u
		}
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
