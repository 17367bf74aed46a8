// Package providers defines the site adapter contract and the records it
// produces. Adapters are looked up through a Registry by URL.
package providers

import (
	"context"
	"errors"
	"regexp"
	"strconv"
)

var (
	ErrUnsupportedURL        = errors.New("no adapter claims this URL")
	ErrQuickCheckUnsupported = errors.New("adapter does not support quick checks")
	ErrNoImages              = errors.New("no usable images found")
	ErrDuplicateAdapterName  = errors.New("adapter name already registered")
)

// RawChapter is one chapter link as found on a listing page, before
// reconciliation.
type RawChapter struct {
	Number       float64 `json:"number"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	ReleaseGroup string  `json:"releaseGroup,omitempty"`
	UploadedAt   string  `json:"uploadedAt,omitempty"`
	PageCount    int     `json:"pageCount,omitempty"`
}

// Chapter is a reconciled chapter. Version, TotalVersions and
// OriginalNumber are only set when the number has several distinct uploads.
type Chapter struct {
	RawChapter
	Version        int     `json:"version,omitempty"`
	TotalVersions  int     `json:"totalVersions,omitempty"`
	OriginalNumber float64 `json:"originalNumber,omitempty"`
}

func (c Chapter) Versioned() bool {
	return c.TotalVersions > 1
}

// Label renders the number, suffixed with the version when versioned:
// "12", "12.5", "12.5v2".
func (c Chapter) Label() string {
	lbl := FormatNumber(c.Number)
	if c.Versioned() {
		lbl += "v" + strconv.Itoa(c.Version)
	}

	return lbl
}

type DuplicateGroup struct {
	Number   float64   `json:"number"`
	Versions []Chapter `json:"versions"`
}

type MangaInfo struct {
	URL               string           `json:"url"`
	Website           string           `json:"website"`
	Title             string           `json:"title"`
	TotalChapters     int              `json:"totalChapters"`
	UniqueChapters    int              `json:"uniqueChapters"`
	Chapters          []Chapter        `json:"chapters"`
	DuplicateChapters []DuplicateGroup `json:"duplicateChapters"`
	Cover             string           `json:"cover,omitempty"`
	Description       string           `json:"description"`
}

type QuickCheckResult struct {
	HasUpdates        bool         `json:"hasUpdates"`
	LatestChapter     *float64     `json:"latestChapter,omitempty"`
	NewChapters       []RawChapter `json:"newChapters"`
	FirstPageChapters []RawChapter `json:"firstPageChapters"`
}

type Image struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// Adapter scrapes one website. Implementations hold no state between calls
// apart from the page session used during a call.
type Adapter interface {
	Name() string
	Patterns() []*regexp.Regexp
	GetMangaInfo(ctx context.Context, url string) (*MangaInfo, error)
	GetChapterImages(ctx context.Context, chapterURL string) ([]Image, error)
}

// QuickChecker is implemented by adapters that can probe the first listing
// page for new chapters without a full crawl.
type QuickChecker interface {
	QuickCheckUpdates(ctx context.Context, url string, known []string) (*QuickCheckResult, error)
}

// FormatNumber renders a chapter number without trailing zeros.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
