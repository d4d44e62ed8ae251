// Package progress renders per-file transfer progress on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress for one file transfer at a time.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

// ConsoleReporter draws a byte-level progress bar on stderr.
type ConsoleReporter struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewConsoleReporter creates a reporter writing to stderr.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stderr}
}

// NewConsoleReporterWithWriter creates a reporter with a custom output sink.
func NewConsoleReporterWithWriter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Start begins a new bar for a transfer of total bytes.
func (r *ConsoleReporter) Start(total int64, description string) {
	r.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(r.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to the current byte position.
func (r *ConsoleReporter) Update(current int64) {
	if r.bar != nil {
		_ = r.bar.Set64(current)
	}
}

// Finish completes the current bar.
func (r *ConsoleReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// Error clears the bar and prints the failure beneath it.
func (r *ConsoleReporter) Error(err error) {
	if r.bar != nil {
		_ = r.bar.Clear()
		r.bar = nil
	}
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}

// NoopReporter discards all progress. Used in quiet and dry-run modes.
type NoopReporter struct{}

// NewNoopReporter creates a reporter that does nothing.
func NewNoopReporter() *NoopReporter { return &NoopReporter{} }

func (*NoopReporter) Start(int64, string) {}
func (*NoopReporter) Update(int64)        {}
func (*NoopReporter) Finish()             {}
func (*NoopReporter) Error(error)         {}
