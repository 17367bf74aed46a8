package cmd

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/brogergvhs/mangacrawl/internal/chapters"
	"github.com/brogergvhs/mangacrawl/internal/config"
	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/providers/generic"
)

func testChapters() []chapters.Chapter {
	raw := []providers.RawChapter{
		{Number: 1, URL: "https://example.com/c/1"},
		{Number: 2, URL: "https://example.com/c/2"},
		{Number: 2, URL: "https://example.com/c/2-alt"},
		{Number: 3, URL: "https://example.com/c/3"},
		{Number: 4, URL: "https://example.com/c/4"},
	}

	return chapters.Wrap(chapters.Reconcile(raw, 0).Chapters)
}

func labels(chs []chapters.Chapter) []string {
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = ch.Label()
	}
	return out
}

func TestSelectChapters(t *testing.T) {
	all := testChapters()

	tests := []struct {
		name    string
		chapter string
		cfg     config.Config
		want    []string
		wantErr bool
	}{
		{name: "everything", want: []string{"1", "2v1", "2v2", "3", "4"}},
		{name: "label matches all versions", chapter: "2", want: []string{"2v1", "2v2"}},
		{name: "versioned label", chapter: "2v2", want: []string{"2v2"}},
		{name: "index", chapter: "5", want: []string{"4"}},
		{name: "unknown", chapter: "9", wantErr: true},
		{name: "range", cfg: config.Config{DefaultRange: "2-4"}, want: []string{"2v1", "2v2", "3"}},
		{name: "list minus exclusion", cfg: config.Config{DefaultList: "1,3,5", DefaultExcludeList: "3"}, want: []string{"1", "4"}},
		{name: "exclude range", cfg: config.Config{DefaultExcludeRange: "1-3"}, want: []string{"3", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectChapters(all, tt.chapter, &tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %v", labels(got))
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(labels(got), tt.want) {
				t.Fatalf("got %v, want %v", labels(got), tt.want)
			}
		})
	}
}

func TestSplitExt(t *testing.T) {
	got := splitExt(" WEBP|jpg, png ||")
	if !slices.Equal(got, []string{"webp", "jpg", "png"}) {
		t.Fatalf("splitExt = %v", got)
	}
	if got := splitExt(""); len(got) != 0 {
		t.Fatalf("splitExt(\"\") = %v", got)
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.txt")
	body := "# seen\nhttps://example.com/c/1\n\n  https://example.com/c/2  \n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := readLines(path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"https://example.com/c/1", "https://example.com/c/2"}) {
		t.Fatalf("readLines = %v", got)
	}

	missing, err := readLines(filepath.Join(t.TempDir(), "none.txt"))
	if err != nil || missing != nil {
		t.Fatalf("missing file: %v, %v", missing, err)
	}
}

func TestFindProfile(t *testing.T) {
	cfg := &config.Config{Sites: []generic.Profile{{Name: "Custom"}}}

	for _, name := range []string{"bato", "ASURA", "custom"} {
		if _, err := findProfile(cfg, name); err != nil {
			t.Errorf("findProfile(%q): %v", name, err)
		}
	}
	if _, err := findProfile(cfg, "nope"); err == nil {
		t.Fatal("expected an error for an unknown site")
	}
}

func TestValidRenameLabel(t *testing.T) {
	check := validRenameLabel("Work")

	for _, bad := range []string{"", "   ", "Work", " Work "} {
		if err := check(bad); err == nil {
			t.Errorf("validRenameLabel(%q) accepted", bad)
		}
	}
	if err := check("Home"); err != nil {
		t.Errorf("validRenameLabel(Home): %v", err)
	}
}
