// Package transfer moves one recording file from its download URL to its
// final path, with resumable-run semantics: completed targets are skipped,
// corrupt ones are replaced, and files only appear at the final path once
// they verified.
package transfer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// tmpSuffix marks in-flight downloads. A file with this suffix is never
// treated as a completed target.
const tmpSuffix = ".tmp"

// TargetState classifies what already sits at a target path.
type TargetState int

const (
	// TargetAbsent means nothing exists at the path.
	TargetAbsent TargetState = iota
	// TargetComplete means a file of the expected size (within tolerance)
	// exists; the transfer can be skipped.
	TargetComplete
	// TargetCorrupt means a file exists but its size is off; it is a
	// leftover from an interrupted or failed run and must be replaced.
	TargetCorrupt
)

func (s TargetState) String() string {
	switch s {
	case TargetComplete:
		return "complete"
	case TargetCorrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// Downloader streams the body of a download URL into w. Implemented by the
// API client.
type Downloader interface {
	Download(ctx context.Context, downloadURL string, w io.Writer, onProgress func(written int64)) (int64, error)
}

// SizeMismatchError reports a downloaded file whose size fell outside the
// tolerance around the declared size. The temporary file has already been
// removed when this error is returned.
type SizeMismatchError struct {
	Path      string
	Expected  int64
	Actual    int64
	Tolerance int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch for %s: expected %d bytes (tolerance %d), got %d",
		e.Path, e.Expected, e.Tolerance, e.Actual)
}

// Result describes one finished transfer.
type Result struct {
	Skipped bool  // target was already complete
	Bytes   int64 // bytes written, zero when skipped
}

// Manager runs transfers against one filesystem.
type Manager struct {
	fs         afero.Fs
	downloader Downloader
	tolerance  int64
}

// NewManager creates a transfer manager. tolerance is the allowed absolute
// difference between declared and actual size, in bytes.
func NewManager(fs afero.Fs, downloader Downloader, tolerance int64) *Manager {
	return &Manager{
		fs:         fs,
		downloader: downloader,
		tolerance:  tolerance,
	}
}

// CheckTarget classifies the file at path against the expected size.
func (m *Manager) CheckTarget(path string, expectedSize int64) (TargetState, error) {
	info, err := m.fs.Stat(path)
	if os.IsNotExist(err) {
		return TargetAbsent, nil
	}
	if err != nil {
		return TargetAbsent, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return TargetAbsent, fmt.Errorf("target %s is a directory", path)
	}

	if m.withinTolerance(info.Size(), expectedSize) {
		return TargetComplete, nil
	}
	return TargetCorrupt, nil
}

// Transfer downloads downloadURL to path. The body streams into path+".tmp"
// and is renamed into place only after the size verified, so the final path
// never holds a partial file. A complete target short-circuits to a skip; a
// corrupt one is removed first and replaced. Any failure removes the
// temporary file.
func (m *Manager) Transfer(ctx context.Context, downloadURL, path string, expectedSize int64, onProgress func(written int64)) (Result, error) {
	state, err := m.CheckTarget(path, expectedSize)
	if err != nil {
		return Result{}, err
	}
	switch state {
	case TargetComplete:
		return Result{Skipped: true}, nil
	case TargetCorrupt:
		if err := m.fs.Remove(path); err != nil {
			return Result{}, fmt.Errorf("failed to remove corrupt target %s: %w", path, err)
		}
	}

	tmpPath := path + tmpSuffix
	tmp, err := m.fs.Create(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temporary file %s: %w", tmpPath, err)
	}

	written, err := m.downloader.Download(ctx, downloadURL, tmp, onProgress)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close temporary file: %w", cerr)
	}
	if err != nil {
		m.fs.Remove(tmpPath)
		return Result{}, err
	}

	if !m.withinTolerance(written, expectedSize) {
		m.fs.Remove(tmpPath)
		return Result{}, &SizeMismatchError{
			Path:      path,
			Expected:  expectedSize,
			Actual:    written,
			Tolerance: m.tolerance,
		}
	}

	if err := m.fs.Rename(tmpPath, path); err != nil {
		m.fs.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to publish %s: %w", path, err)
	}

	return Result{Bytes: written}, nil
}

func (m *Manager) withinTolerance(actual, expected int64) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= m.tolerance
}
