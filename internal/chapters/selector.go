package chapters

import (
	"strconv"
	"strings"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

// Filter selects chapters by label, by 1-based index range or by index list.
// A chapter argument is first matched against labels ("12", "12.5v2"); a
// plain label also matches every version of that number.
func Filter(all []Chapter, chapter string, rng string, list string) []Chapter {
	if chapter != "" {
		byLabel := FilterChaptersByLabel(all, chapter)
		if len(byLabel) > 0 {
			return byLabel
		}
		if idx, err := atoi(chapter); err == nil {
			if idx > 0 && idx <= len(all) {
				return []Chapter{all[idx-1]}
			}
		}
		return []Chapter{}
	}
	if rng != "" {
		return FilterChapterRange(all, rng)
	}
	if list != "" {
		return FilterChapterList(all, list)
	}
	return all
}

func FilterChaptersByLabel(all []Chapter, label string) []Chapter {
	label = strings.TrimSpace(label)

	var out []Chapter
	for _, ch := range all {
		if ch.Label() == label || providers.FormatNumber(ch.Number) == label {
			out = append(out, ch)
		}
	}
	return out
}

func FilterChapterRange(all []Chapter, rng string) []Chapter {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}
	start, err1 := atoi(parts[0])
	end, err2 := atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	if start <= 0 || end <= 0 || start > end || end > len(all) {
		return nil
	}
	return all[start-1 : end]
}

func FilterChapterList(all []Chapter, list string) []Chapter {
	out := []Chapter{}
	for n := range strings.SplitSeq(list, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		idx, err := atoi(n)
		if err != nil {
			continue
		}
		if idx > 0 && idx <= len(all) {
			out = append(out, all[idx-1])
		}
	}
	return out
}

// Exclude removes the chapters a range or list picks out of all. Both use
// the same 1-based indices as Filter and may be combined.
func Exclude(all []Chapter, rng string, list string) []Chapter {
	if rng == "" && list == "" {
		return all
	}

	drop := map[string]bool{}
	if rng != "" {
		for _, ch := range FilterChapterRange(all, rng) {
			drop[ch.URL] = true
		}
	}
	if list != "" {
		for _, ch := range FilterChapterList(all, list) {
			drop[ch.URL] = true
		}
	}

	out := make([]Chapter, 0, len(all))
	for _, ch := range all {
		if !drop[ch.URL] {
			out = append(out, ch)
		}
	}
	return out
}

// KeepVersion drops every version of a duplicated number except the nth.
// Numbers with fewer than n versions keep their last version.
func KeepVersion(all []Chapter, n int) []Chapter {
	out := make([]Chapter, 0, len(all))
	for _, ch := range all {
		if !ch.Versioned() {
			out = append(out, ch)
			continue
		}

		want := min(max(n, 1), ch.TotalVersions)
		if ch.Version == want {
			out = append(out, ch)
		}
	}
	return out
}

// KeepChosen keeps unversioned chapters plus, for each duplicated number,
// only the URL present in chosen.
func KeepChosen(all []Chapter, chosen map[float64]string) []Chapter {
	out := make([]Chapter, 0, len(all))
	for _, ch := range all {
		if !ch.Versioned() {
			out = append(out, ch)
			continue
		}
		if u, ok := chosen[ch.Number]; !ok || u == ch.URL {
			out = append(out, ch)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
