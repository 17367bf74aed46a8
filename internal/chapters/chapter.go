// Package chapters turns raw chapter links into a reconciled catalog and
// provides the selection and naming helpers used when downloading.
package chapters

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

type Chapter struct {
	providers.Chapter
}

// Wrap converts reconciled chapters into download chapters.
func Wrap(all []providers.Chapter) []Chapter {
	out := make([]Chapter, len(all))
	for i, c := range all {
		out[i] = Chapter{Chapter: c}
	}

	return out
}

var reUnderscore = regexp.MustCompile(`_+`)

func sanitize(s string) string {
	s = strings.ToLower(s)

	repl := strings.NewReplacer(
		"•", "_",
		"-", "_",
		"—", "_",
		"–", "_",
		"/", "_",
		"\\", "_",
		".", "_",
		" ", "_",
		"(", "",
		")", "",
	)
	s = repl.Replace(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, s)

	s = reUnderscore.ReplaceAllString(s, "_")

	return strings.Trim(s, "_")
}

// paddedNumber keeps file managers sorting chapters numerically:
// 7 -> "0007", 12.5 -> "0012_5".
func paddedNumber(n float64) string {
	whole, frac, _ := strings.Cut(providers.FormatNumber(n), ".")
	if len(whole) < 4 {
		whole = strings.Repeat("0", 4-len(whole)) + whole
	}
	if frac == "" {
		return whole
	}

	return whole + "_" + frac
}

func (c Chapter) baseName() string {
	lbl := "ch_" + paddedNumber(c.Number)
	if c.Versioned() {
		lbl += fmt.Sprintf("_v%d", c.Version)
	}

	title := sanitize(c.Title)
	if title != "" && !c.genericTitle(title) {
		return lbl + "_" + title
	}

	return lbl
}

// genericTitle reports whether a sanitized title only repeats the number,
// as in "12", "Chapter 12" or "Ch. 12".
func (c Chapter) genericTitle(title string) bool {
	num := sanitize(providers.FormatNumber(c.Number))
	for _, t := range []string{num, "chapter_" + num, "ch_" + num, sanitize(c.Label())} {
		if title == t {
			return true
		}
	}
	return false
}

func (c Chapter) FolderName() string {
	return c.baseName() + "_tmp"
}

func (c Chapter) OutputCBZ() string {
	return c.baseName() + ".cbz"
}

func (c Chapter) OutputCBZPath(out string) string {
	return filepath.Join(out, c.OutputCBZ())
}
