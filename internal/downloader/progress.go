package downloader

import "io"

// Progress receives per-chapter counters. ui.ProgressHandle implements it.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type nopProgress struct{}

func (nopProgress) Update(int, int, int64) {}
func (nopProgress) MarkDone()              {}

// progressWriter reports the running byte count of everything written
// through it.
type progressWriter struct {
	done int64
	fn   func(done int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	if w.fn != nil {
		w.fn(w.done)
	}
	return len(p), nil
}

// copyWithProgress copies src into dst and calls progress with the running
// total after every chunk.
func copyWithProgress(dst io.Writer, src io.Reader, progress func(done int64)) (int64, error) {
	return io.Copy(io.MultiWriter(dst, &progressWriter{fn: progress}), src)
}
