// Package batoto is the adapter for Bato.to and its mirror domains.
package batoto

import (
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

const Name = "Bato"

// Profile describes bato.to series and reader pages. Uploads by different
// groups share chapter numbers, so duplicate groups are common here.
func Profile() generic.Profile {
	return generic.Profile{
		Name: Name,
		Patterns: []string{
			`^https?://(?:www\.)?(?:bato\.to|batotoo\.com|battwo\.com|wto\.to|mto\.to|dto\.to)/(?:series|title)/`,
		},
		QuickCheck: true,

		ChapterLinks:  "div.episode-list div.main a.chapt",
		ChapterMeta:   "span.extra",
		Title:         "h3.item-title a",
		Cover:         "div.attr-cover img",
		Description:   "div#limit-height-body-summary div.limit-html",
		DeclaredTotal: "div.episode-list div.head h4",

		Pagination: "ul.pagination li a.page-link",
		ActivePage: "ul.pagination li.active a.page-link",

		Images:         "div#viewer img.page-img",
		FallbackImages: []string{"div#viewer img", "img.page-img"},
		MinImageWidth:  200,
	}
}

func New(sessions generic.Sessions, opts generic.Options, log generic.Logger) (providers.Adapter, error) {
	return generic.NewAdapter(Profile(), sessions, opts, log)
}
