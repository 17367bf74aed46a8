package chapters

import (
	"sort"

	"github.com/samber/lo"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

// Catalog is the reconciled form of a crawl.
type Catalog struct {
	Chapters   []providers.Chapter
	Duplicates []providers.DuplicateGroup
	Unique     int
	Total      int
}

// Raw strips the version tags so the catalog can be fed back to Reconcile.
func (c Catalog) Raw() []providers.RawChapter {
	return lo.Map(c.Chapters, func(ch providers.Chapter, _ int) providers.RawChapter {
		return ch.RawChapter
	})
}

type numberGroup struct {
	number  float64
	records []providers.RawChapter
	urls    map[string]struct{}
}

// Reconcile groups raw records by chapter number, collapses records sharing
// a URL within a number (first occurrence wins) and tags numbers with
// several distinct URLs as versions. Output is sorted by number; equal
// numbers keep first-seen order. declaredTotal, when positive, is the count
// the site reports and becomes Catalog.Total.
func Reconcile(raw []providers.RawChapter, declaredTotal int) Catalog {
	var groups []*numberGroup
	index := map[float64]*numberGroup{}

	for _, r := range raw {
		g, ok := index[r.Number]
		if !ok {
			g = &numberGroup{number: r.Number, urls: map[string]struct{}{}}
			index[r.Number] = g
			groups = append(groups, g)
		}
		if _, dup := g.urls[r.URL]; dup {
			continue
		}
		g.urls[r.URL] = struct{}{}
		g.records = append(g.records, r)
	}

	out := Catalog{
		Chapters:   make([]providers.Chapter, 0, len(raw)),
		Duplicates: []providers.DuplicateGroup{},
		Unique:     len(groups),
	}

	for _, g := range groups {
		if len(g.records) == 1 {
			out.Chapters = append(out.Chapters, providers.Chapter{RawChapter: g.records[0]})
			continue
		}

		versions := make([]providers.Chapter, len(g.records))
		for i, r := range g.records {
			versions[i] = providers.Chapter{
				RawChapter:     r,
				Version:        i + 1,
				TotalVersions:  len(g.records),
				OriginalNumber: g.number,
			}
		}

		out.Chapters = append(out.Chapters, versions...)
		out.Duplicates = append(out.Duplicates, providers.DuplicateGroup{
			Number:   g.number,
			Versions: versions,
		})
	}

	sort.SliceStable(out.Chapters, func(i, j int) bool {
		return out.Chapters[i].Number < out.Chapters[j].Number
	})
	sort.SliceStable(out.Duplicates, func(i, j int) bool {
		return out.Duplicates[i].Number < out.Duplicates[j].Number
	})

	out.Total = len(out.Chapters)
	if declaredTotal > 0 {
		out.Total = declaredTotal
	}

	return out
}
