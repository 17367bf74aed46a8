package asura

import (
	"os"
	"testing"

	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

const seriesURL = "https://asuracomic.net/series/solo-leveling-5e7f1a2b"

func TestProfile(t *testing.T) {
	if err := Profile().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	a, err := New(nil, generic.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Name() != Name {
		t.Fatalf("Name = %q", a.Name())
	}

	matches := func(u string) bool {
		for _, p := range a.Patterns() {
			if p.MatchString(u) {
				return true
			}
		}
		return false
	}
	if !matches(seriesURL) || !matches("https://asurascans.com/series/x") {
		t.Fatalf("series URLs should match")
	}
	if matches("https://asuracomic.net/") {
		t.Fatalf("home page should not match")
	}
}

func TestParseSeriesPage(t *testing.T) {
	html, err := os.ReadFile("testdata/series.html")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	l, err := generic.ParseListing(Profile(), seriesURL, string(html))
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}

	if l.Title != "Solo Leveling" || l.DeclaredTotal != 201 || l.NextPage != "" {
		t.Fatalf("unexpected meta: %+v", l)
	}

	tests := []struct {
		number float64
		title  string
		url    string
		pages  int
		date   string
	}{
		{201, "Chapter 201", seriesURL + "/chapter/201", 58, "June 1st 2024"},
		{200, "Chapter 200 Finale", seriesURL + "/chapter/200", 64, "May 25th 2024"},
		{199.5, "Chapter 199.5", seriesURL + "/chapter/199.5", 0, ""},
	}

	if len(l.Chapters) != len(tests) {
		t.Fatalf("got %d chapters, want %d", len(l.Chapters), len(tests))
	}
	for i, tt := range tests {
		ch := l.Chapters[i]
		if ch.Number != tt.number || ch.Title != tt.title || ch.URL != tt.url || ch.PageCount != tt.pages || ch.UploadedAt != tt.date {
			t.Fatalf("chapter %d = %+v", i, ch)
		}
	}
}
