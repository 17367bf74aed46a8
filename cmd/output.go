package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func flushTable(w *tabwriter.Writer) {
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to flush table output: %v\n", err)
	}
}

// printChapters renders one row per chapter, numbered from 1 so the index
// column matches --chapter, --range and --list.
func printChapters(chs []providers.Chapter) {
	w := newTable(os.Stdout)
	_, _ = fmt.Fprintln(w, "#\tLABEL\tTITLE\tPAGES\tUPLOADED\tGROUP")
	for i, ch := range chs {
		pages := ""
		if ch.PageCount > 0 {
			pages = fmt.Sprint(ch.PageCount)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, ch.Label(), ch.Title, pages, ch.UploadedAt, ch.ReleaseGroup)
	}
	flushTable(w)
}

func printRaw(chs []providers.RawChapter) {
	w := newTable(os.Stdout)
	_, _ = fmt.Fprintln(w, "NUMBER\tTITLE\tURL")
	for _, ch := range chs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", providers.FormatNumber(ch.Number), ch.Title, ch.URL)
	}
	flushTable(w)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
