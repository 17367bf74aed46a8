// Package asura is the adapter for Asura Scans.
package asura

import (
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

const Name = "Asura"

// Profile describes the series and reader pages of asuracomic.net. Series
// pages list every chapter at once; each entry is an anchor wrapping the
// chapter label and its date.
func Profile() generic.Profile {
	return generic.Profile{
		Name: Name,
		Patterns: []string{
			`^https?://(?:www\.)?asura(?:comic|scans|toon)\.(?:net|com|gg)/series/`,
		},
		QuickCheck: true,

		ChapterLinks:  `div.scrollbar-thumb-themecolor a[href*="/chapter/"]`,
		ChapterMeta:   "span.meta",
		Title:         "span.text-xl.font-bold",
		Cover:         "img[alt=poster]",
		Description:   "span.font-medium.text-sm p",
		DeclaredTotal: "h3.chapter-count",

		Images: `div.w-full.mx-auto.center img[src*="/storage/media/"]`,
		FallbackImages: []string{
			`img[src*="/storage/media/"]`,
			"div.w-full.mx-auto.center img",
		},
		SkipImages:    []string{`(?i)/(covers?|avatars?|logos?|banners?)/`, `(?i)EndDesign`},
		MinImageWidth: 300,
	}
}

func New(sessions generic.Sessions, opts generic.Options, log generic.Logger) (providers.Adapter, error) {
	return generic.NewAdapter(Profile(), sessions, opts, log)
}
