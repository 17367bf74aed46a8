package generic

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/brogergvhs/mangacrawl/internal/browser"
	"github.com/brogergvhs/mangacrawl/internal/providers"
)

// QuickCheckUpdates loads only the first listing page and reports the
// chapters whose URLs are not in known.
func (q QuickScraper) QuickCheckUpdates(ctx context.Context, mangaURL string, known []string) (*providers.QuickCheckResult, error) {
	var recs []providers.RawChapter
	err := q.sessions.WithPage(ctx, func(ctx context.Context, h *browser.Handle) error {
		var err error
		recs, err = q.firstPage(ctx, h, mangaURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: quick check: %w", q.prof.Name, err)
	}

	res := diffFirstPage(recs, known)
	q.log.Debugf("%s: quick check: %d on first page, %d new", q.prof.Name, len(recs), len(res.NewChapters))

	return res, nil
}

func (q QuickScraper) firstPage(ctx context.Context, page browser.Page, mangaURL string) ([]providers.RawChapter, error) {
	if err := page.Navigate(ctx, mangaURL, q.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	// a listing without chapters yet is not an error
	if r := page.WaitForSelector(ctx, q.prof.ChapterLinks, q.opts.SelectorTimeout); !r.Found() {
		q.log.Debugf("%s: quick check: chapter links %s", q.prof.Name, r)
	}

	doc, current, err := q.snapshot(ctx, page, mangaURL)
	if err != nil {
		return nil, fmt.Errorf("read listing page: %w", err)
	}

	return extractChapters(doc, parseBase(current, mangaURL), q.prof), nil
}

// diffFirstPage compares first-page records with the known URLs.
func diffFirstPage(recs []providers.RawChapter, known []string) *providers.QuickCheckResult {
	knownSet := lo.Associate(known, func(u string) (string, struct{}) {
		return u, struct{}{}
	})

	fresh := lo.UniqBy(lo.Filter(recs, func(r providers.RawChapter, _ int) bool {
		_, ok := knownSet[r.URL]
		return !ok
	}), func(r providers.RawChapter) string {
		return r.URL
	})

	res := &providers.QuickCheckResult{
		HasUpdates:        len(fresh) > 0,
		NewChapters:       fresh,
		FirstPageChapters: recs,
	}
	if res.FirstPageChapters == nil {
		res.FirstPageChapters = []providers.RawChapter{}
	}

	if len(recs) > 0 {
		latest := lo.MaxBy(recs, func(a, b providers.RawChapter) bool {
			return a.Number > b.Number
		}).Number
		res.LatestChapter = &latest
	}

	return res
}
