package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/mangacrawl/internal/util"
)

// Stats counts finished work across the chapter workers.
type Stats struct {
	chapters atomic.Int64
	failed   atomic.Int64
	images   atomic.Int64
	bytes    atomic.Int64
}

// Done records a chapter that was packed.
func (s *Stats) Done(images int, bytes int64) {
	s.chapters.Add(1)
	s.images.Add(int64(images))
	s.bytes.Add(bytes)
}

func (s *Stats) Fail() { s.failed.Add(1) }

func (s *Stats) Failed() int64 { return s.failed.Load() }

// WriteSummary prints the end of run report. The failed line is left out
// when nothing failed.
func (s *Stats) WriteSummary(w io.Writer, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download Summary:")
	fmt.Fprintf(w, "Chapters: %d\n", s.chapters.Load())
	if failed := s.failed.Load(); failed > 0 {
		fmt.Fprintf(w, "Failed:   %d\n", failed)
	}
	fmt.Fprintf(w, "Images:   %d\n", s.images.Load())
	fmt.Fprintf(w, "Data:     %s\n", util.Human(s.bytes.Load()))
	fmt.Fprintf(w, "Time:     %s\n", elapsed.Round(time.Second))
}
