// Package diskspace holds transfers back until the output volume has room
// for the next file plus the configured reserve.
package diskspace

import (
	"context"
	"fmt"
	"time"

	"github.com/zoomarc/zoomarc/internal/config"
)

// FreeFunc reports the bytes available to the process on the volume holding
// path. Replaceable in tests.
type FreeFunc func(path string) (uint64, error)

// WaitTimeoutError is returned when space did not free up within the
// configured bound.
type WaitTimeoutError struct {
	Path   string
	Needed int64
	Free   uint64
	Waited time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("gave up waiting for disk space on %s after %s: need %s, have %s",
		e.Path, e.Waited.Round(time.Second), SizeToString(e.Needed), SizeToString(int64(e.Free)))
}

// Gate blocks until a file of a given size fits on the volume while keeping
// the minimum reserve free.
type Gate struct {
	path     string
	minFree  int64
	interval time.Duration
	maxWait  time.Duration
	free     FreeFunc
	logf     func(format string, args ...interface{})
}

// NewGate builds a gate over the volume holding path. minFree is the byte
// reserve that must remain free after the file lands.
func NewGate(path string, minFree int64, cfg config.DiskConfig) *Gate {
	return &Gate{
		path:     path,
		minFree:  minFree,
		interval: cfg.PollInterval(),
		maxWait:  cfg.MaxWait(),
		free:     Free,
		logf:     func(string, ...interface{}) {},
	}
}

// SetFreeFunc replaces the free space probe.
func (g *Gate) SetFreeFunc(fn FreeFunc) { g.free = fn }

// SetLogf installs the sink for periodic wait status lines.
func (g *Gate) SetLogf(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.logf = fn
	}
}

// Await blocks until fileSize bytes fit alongside the reserve, polling the
// volume between checks. A status line goes out on every third poll. With a
// zero max wait the gate waits indefinitely; otherwise expiry returns a
// WaitTimeoutError. Context cancellation interrupts the wait.
func (g *Gate) Await(ctx context.Context, fileSize int64) error {
	needed := fileSize + g.minFree
	start := time.Now()

	for poll := 0; ; poll++ {
		free, err := g.free(g.path)
		if err != nil {
			return fmt.Errorf("failed to check free space on %s: %w", g.path, err)
		}
		if free >= uint64(needed) {
			return nil
		}

		if poll%3 == 0 {
			g.logf("waiting for disk space on %s: need %s, have %s",
				g.path, SizeToString(needed), SizeToString(int64(free)))
		}

		if g.maxWait > 0 && time.Since(start)+g.interval > g.maxWait {
			return &WaitTimeoutError{
				Path:   g.path,
				Needed: needed,
				Free:   free,
				Waited: time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.interval):
		}
	}
}

// SizeToString renders a byte count in the largest unit that keeps the
// number readable.
func SizeToString(size int64) string {
	switch {
	case size >= config.TB:
		return fmt.Sprintf("%.1fTB", float64(size)/float64(config.TB))
	case size >= config.GB:
		return fmt.Sprintf("%.1fGB", float64(size)/float64(config.GB))
	case size >= config.MB:
		return fmt.Sprintf("%.1fMB", float64(size)/float64(config.MB))
	case size >= config.KB:
		return fmt.Sprintf("%.1fKB", float64(size)/float64(config.KB))
	default:
		return fmt.Sprintf("%dB", size)
	}
}
