// Package users decides which account members a run archives, combining the
// configured include and exclude lists with an optional list file that can be
// reloaded on change.
package users

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zoomarc/zoomarc/internal/config"
)

// Selector decides membership for one user email.
type Selector interface {
	Selected(email string) bool
	Stats() Stats
	Reload() error
	Close() error
}

// Stats describes the current selection state.
type Stats struct {
	Included    int       // users on the include list, 0 means everyone
	Excluded    int       // users on the exclude list
	LastUpdated time.Time // when the list file was last loaded
	FilePath    string    // list file path, empty when unused
	IsWatching  bool      // whether the list file is being watched
}

// filter implements Selector. All emails are compared case-insensitively.
type filter struct {
	cfg config.FilterConfig

	mu       sync.RWMutex
	included map[string]bool
	excluded map[string]bool
	updated  time.Time

	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9._-]+\.[a-zA-Z]{2,}$`)

// NewSelector builds a selector from the filter configuration. With neither
// an include list nor a list file, every non-excluded user is selected.
func NewSelector(cfg config.FilterConfig) (Selector, error) {
	f := &filter{
		cfg:       cfg,
		stopWatch: make(chan struct{}),
	}

	if err := f.load(); err != nil {
		return nil, err
	}

	if cfg.UsersFile != "" && cfg.WatchUsersFile {
		if err := f.watch(); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// Selected reports whether the email passes the exclude list and, when an
// include list exists, appears on it.
func (f *filter) Selected(email string) bool {
	key := strings.ToLower(strings.TrimSpace(email))

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.excluded[key] {
		return false
	}
	if len(f.included) == 0 {
		return true
	}
	return f.included[key]
}

// Stats returns the current selection counters.
func (f *filter) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{
		Included:    len(f.included),
		Excluded:    len(f.excluded),
		LastUpdated: f.updated,
		FilePath:    f.cfg.UsersFile,
		IsWatching:  f.watcher != nil,
	}
}

// Reload re-reads the configured lists and list file.
func (f *filter) Reload() error {
	return f.load()
}

// Close stops the list file watcher.
func (f *filter) Close() error {
	if f.watcher != nil {
		close(f.stopWatch)
		return f.watcher.Close()
	}
	return nil
}

// load rebuilds both sets and swaps them in atomically.
func (f *filter) load() error {
	included := make(map[string]bool)
	excluded := make(map[string]bool)

	for _, email := range f.cfg.Users {
		if key, ok := normalizeEmail(email); ok {
			included[key] = true
		}
	}
	for _, email := range f.cfg.ExcludeUsers {
		if key, ok := normalizeEmail(email); ok {
			excluded[key] = true
		}
	}

	if f.cfg.UsersFile != "" {
		if err := readListFile(f.cfg.UsersFile, included); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.included = included
	f.excluded = excluded
	f.updated = time.Now()
	f.mu.Unlock()

	return nil
}

// readListFile adds one email per line into dst, skipping blanks, comments
// and lines that do not look like an address.
func readListFile(path string, dst map[string]bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open users file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, ok := normalizeEmail(line); ok {
			dst[key] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading users file: %w", err)
	}

	return nil
}

// normalizeEmail lowercases and validates one address.
func normalizeEmail(email string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(key) {
		return "", false
	}
	return key, true
}

// watch reloads the selection whenever the list file is rewritten.
func (f *filter) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(f.cfg.UsersFile); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch users file: %w", err)
	}

	f.watcher = watcher
	go f.watchLoop()

	return nil
}

func (f *filter) watchLoop() {
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// Editors often replace the file; give the write a moment
				// to settle before reading it back.
				time.Sleep(10 * time.Millisecond)
				if err := f.load(); err != nil {
					continue
				}
			}
		case _, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
		case <-f.stopWatch:
			return
		}
	}
}
