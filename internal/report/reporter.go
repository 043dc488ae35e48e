// Package report writes operator-facing build output.
//
// Success lines go to the output writer and error lines to the error writer.
// Every line is written under one mutex so that concurrent batch tasks never
// interleave. Write failures are ignored; reporting never fails a build.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter formats build progress for a human operator.
type Reporter struct {
	out   io.Writer
	err   io.Writer
	mutex sync.Mutex
}

// New creates a reporter writing successes to out and failures to errOut.
func New(out, errOut io.Writer) *Reporter {
	return &Reporter{out: out, err: errOut}
}

// Banner announces the start of a watch session.
func (r *Reporter) Banner(dir string) {
	r.println(r.out, "WATCH: watching %s for changes (press Ctrl+C to stop)", dir)
}

// Build reports one completed compile task.
func (r *Reporter) Build(outputPath string, elapsed time.Duration) {
	r.println(r.out, "BUILD: %s (%d ms)", outputPath, Milliseconds(elapsed))
}

// Done reports the end of a batch.
func (r *Reporter) Done(files, failed int, elapsed time.Duration) {
	r.println(r.out, "DONE: %d file(s) in %d ms (%d failed)", files, Milliseconds(elapsed), failed)
}

// Event reports a filesystem change observed while watching.
func (r *Reporter) Event(kind fmt.Stringer, path string) {
	r.println(r.out, "WATCH: %s has been %s", path, kind)
}

// Error reports a failure.
func (r *Reporter) Error(err error) {
	if err == nil {
		return
	}
	r.println(r.err, "ERROR: %v", err)
}

func (r *Reporter) println(w io.Writer, format string, args ...interface{}) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

// Milliseconds rounds d to whole milliseconds.
func Milliseconds(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}
