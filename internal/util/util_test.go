package util

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHuman(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 << 20, "5.00 MB"},
		{3 << 30, "3.00 GB"},
		{2 << 40, "2.00 TB"},
		{2048 << 40, "2048.00 TB"},
	}

	for _, tt := range tests {
		if got := Human(tt.n); got != tt.want {
			t.Errorf("Human(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestCreateCBZ(t *testing.T) {
	dir := t.TempDir()

	var files []string
	for _, name := range []string{"page_002.jpg", "page_000.png", "page_001.webp"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}

	out := filepath.Join(dir, "ch_0001.cbz")
	info := &ComicInfo{Title: "Chapter 1", Series: "Some Series", Number: "1", Web: "https://example.com/ch/1"}
	if err := CreateCBZ(files, out, info); err != nil {
		t.Fatalf("CreateCBZ: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	want := []string{"page_000.png", "page_001.webp", "page_002.jpg", "ComicInfo.xml"}
	if len(zr.File) != len(want) {
		t.Fatalf("entries = %d, want %d", len(zr.File), len(want))
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, f.Name, want[i])
		}
	}
	if zr.File[0].Method != zip.Store {
		t.Fatalf("images should be stored, method = %d", zr.File[0].Method)
	}

	rc, err := zr.File[3].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}

	var got ComicInfo
	if err := xml.Unmarshal(raw, &got); err != nil {
		t.Fatalf("ComicInfo.xml: %v", err)
	}
	if got.Series != "Some Series" || got.PageCount != 3 || got.Web != info.Web {
		t.Fatalf("ComicInfo = %+v", got)
	}
}

func TestCreateCBZWithoutInfo(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "page_000.jpg")
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.cbz")
	if err := CreateCBZ([]string{p}, out, nil); err != nil {
		t.Fatalf("CreateCBZ: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		t.Fatalf("entries = %d", len(zr.File))
	}
}

func TestJoinCookies(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(file, []byte("\n  cf_clearance=abc  \nignored=1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, inline, file, want string
	}{
		{"inline only", " a=1 ", "", "a=1"},
		{"file only", "", file, "cf_clearance=abc"},
		{"both", "a=1", file, "a=1; cf_clearance=abc"},
		{"missing file", "a=1", filepath.Join(t.TempDir(), "nope"), "a=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinCookies(tt.inline, tt.file); got != tt.want {
				t.Fatalf("joinCookies = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanupUnfinishedTempFolders(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"ch_0001_tmp", "ch_0002_tmp", "keep"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "ch_0003.cbz"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	CleanupUnfinishedTempFolders(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 2 || names[0] != "ch_0003.cbz" || names[1] != "keep" {
		t.Fatalf("left = %v", names)
	}

	empty := filepath.Join(dir, "keep")
	RemoveIfEmpty(empty)
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatalf("empty folder should be gone: %v", err)
	}
}
