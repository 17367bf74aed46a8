package generic

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidProfile = errors.New("invalid site profile")

const defaultNextLabel = `(?i)^\s*(next(\s+page)?\s*[›»>]*|[›»>]{1,2})\s*$`

// defaultMinImageWidth drops icons, avatars and ad pixels rendered inside
// the reader.
const defaultMinImageWidth = 100

var (
	defaultPlaceholders = []string{"loading", "placeholder", "lazy.gif", "blank.gif", "spinner"}
	defaultSkipImages   = []string{`(?i)/(covers?|avatars?|logos?|banners?|profiles?)/`}
	defaultFallbacks    = []string{"main img", "article img", "img"}
)

// Profile describes one website in selectors. Profiles ship with the
// built-in adapters and can be added from the config file.
type Profile struct {
	Name       string   `yaml:"name"`
	Patterns   []string `yaml:"patterns"`
	QuickCheck bool     `yaml:"quick_check"`

	// ChapterLinks selects the chapter anchors of a listing page.
	ChapterLinks string `yaml:"chapter_links"`
	// ChapterMeta filters the siblings following a chapter anchor. The
	// first matching sibling is the page count, the second the upload
	// time, the third the release group. Empty means any element sibling.
	ChapterMeta   string `yaml:"chapter_meta,omitempty"`
	Title         string `yaml:"title,omitempty"`
	Cover         string `yaml:"cover,omitempty"`
	Description   string `yaml:"description,omitempty"`
	DeclaredTotal string `yaml:"declared_total,omitempty"`

	Pagination string `yaml:"pagination,omitempty"`
	ActivePage string `yaml:"active_page,omitempty"`
	NextLabel  string `yaml:"next_label,omitempty"`

	Images         string   `yaml:"images"`
	FallbackImages []string `yaml:"fallback_images,omitempty"`
	SkipImages     []string `yaml:"skip_images,omitempty"`
	// Placeholders are matched against the last path segment of an image
	// URL.
	Placeholders []string `yaml:"placeholders,omitempty"`
	// MinImageWidth drops rendered images narrower than this many pixels.
	// Zero means 100; a negative value keeps every width.
	MinImageWidth int `yaml:"min_image_width,omitempty"`
	// CleanImagePage opens reader pages without request interception.
	// Defaults to true.
	CleanImagePage *bool `yaml:"clean_image_page,omitempty"`
}

// Validate reports the first problem that would stop the profile from
// compiling.
func (p Profile) Validate() error {
	_, err := p.compile()
	return err
}

type compiledProfile struct {
	Profile

	patterns     []*regexp.Regexp
	nextLabel    *regexp.Regexp
	skip         []*regexp.Regexp
	placeholders []string
	fallbacks    []string
	minWidth     int
	cleanImages  bool
}

func (p Profile) compile() (*compiledProfile, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}
	if len(p.Patterns) == 0 {
		return nil, fmt.Errorf("%w: %s: no url patterns", ErrInvalidProfile, p.Name)
	}
	if p.ChapterLinks == "" {
		return nil, fmt.Errorf("%w: %s: chapter_links is required", ErrInvalidProfile, p.Name)
	}
	if p.Images == "" {
		return nil, fmt.Errorf("%w: %s: images is required", ErrInvalidProfile, p.Name)
	}

	c := &compiledProfile{
		Profile:      p,
		placeholders: p.Placeholders,
		fallbacks:    p.FallbackImages,
		minWidth:     max(p.MinImageWidth, 0),
		cleanImages:  p.CleanImagePage == nil || *p.CleanImagePage,
	}
	if p.MinImageWidth == 0 {
		c.minWidth = defaultMinImageWidth
	}

	for _, raw := range p.Patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: pattern %q: %w", ErrInvalidProfile, p.Name, raw, err)
		}
		c.patterns = append(c.patterns, re)
	}

	label := p.NextLabel
	if label == "" {
		label = defaultNextLabel
	}
	re, err := regexp.Compile(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: next_label: %w", ErrInvalidProfile, p.Name, err)
	}
	c.nextLabel = re

	skip := p.SkipImages
	if skip == nil {
		skip = defaultSkipImages
	}
	for _, raw := range skip {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: skip_images %q: %w", ErrInvalidProfile, p.Name, raw, err)
		}
		c.skip = append(c.skip, re)
	}

	if c.placeholders == nil {
		c.placeholders = defaultPlaceholders
	}
	if c.fallbacks == nil {
		c.fallbacks = defaultFallbacks
	}

	return c, nil
}

// imageSelectors is the primary selector followed by the fallbacks.
func (c *compiledProfile) imageSelectors() []string {
	out := make([]string, 0, len(c.fallbacks)+1)
	out = append(out, c.Images)
	for _, sel := range c.fallbacks {
		if sel != "" && sel != c.Images {
			out = append(out, sel)
		}
	}

	return out
}
