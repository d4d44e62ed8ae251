// Package naming derives filesystem-safe file names and folder paths from
// recording metadata and the configured grouping and format rules.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/zoomarc/zoomarc/internal/config"
	"github.com/zoomarc/zoomarc/internal/zoom"
)

// defaultTopic stands in when a topic slugifies to nothing.
const defaultTopic = "untitled"

var (
	slugStrip    = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slugify normalizes free text into a lowercase, hyphen-separated,
// filesystem-safe token: NFKC normalize, lowercase, drop everything outside
// letters, digits, whitespace, underscore and hyphen, collapse whitespace
// and hyphen runs to a single hyphen, strip leading and trailing hyphens
// and underscores. Deterministic and idempotent.
func Slugify(value string) string {
	s := norm.NFKC.String(value)
	s = strings.ToLower(s)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}

// UserFolder builds the per-user folder segment: "email__id" when the email
// is known, else the bare user id.
func UserFolder(email, id string) string {
	if email != "" {
		return email + "__" + id
	}
	return id
}

// Target is the resolved destination of one recording file.
type Target struct {
	Folder   string // absolute folder path, created on resolve
	FileName string // file name including extension
}

// Path returns the complete target path.
func (t Target) Path() string {
	return filepath.Join(t.Folder, t.FileName)
}

// Resolver turns recording metadata into target paths according to the
// naming configuration.
type Resolver struct {
	fs   afero.Fs
	root string
	cfg  config.NamingConfig
}

// NewResolver creates a resolver rooted at the output directory.
func NewResolver(fs afero.Fs, root string, cfg config.NamingConfig) *Resolver {
	return &Resolver{
		fs:   fs,
		root: root,
		cfg:  cfg,
	}
}

// Resolve derives the folder and file name for one recording file and
// creates the folder tree. userFolder is the segment produced by UserFolder
// for the owning user.
func (r *Resolver) Resolve(meeting zoom.Meeting, file zoom.RecordingFile, userFolder string) (Target, error) {
	topicSlug := Slugify(meeting.Topic)
	if topicSlug == "" {
		topicSlug = defaultTopic
	}

	folder := r.root
	for _, part := range r.cfg.FolderOrder {
		switch part {
		case "year_month":
			folder = filepath.Join(folder, meeting.StartTime.UTC().Format("2006-01"))
		case "user":
			folder = filepath.Join(folder, userFolder)
		case "topic":
			folder = filepath.Join(folder, topicSlug)
		}
	}
	if r.cfg.RecordingSubfolder {
		folder = filepath.Join(folder, recordingName(topicSlug, file.RecordingStart))
	}

	if err := r.fs.MkdirAll(folder, 0755); err != nil {
		return Target{}, fmt.Errorf("failed to create directory %s: %w", folder, err)
	}

	return Target{
		Folder:   folder,
		FileName: r.fileName(meeting, file, topicSlug),
	}, nil
}

// fileName joins the configured pieces with the configured separator and
// appends the file extension.
func (r *Resolver) fileName(meeting zoom.Meeting, file zoom.RecordingFile, topicSlug string) string {
	pieces := make([]string, 0, len(r.cfg.NamePieces))
	for _, piece := range r.cfg.NamePieces {
		var value string
		switch piece {
		case "start":
			value = Slugify(file.RecordingStart.UTC().Format(time.RFC3339))
		case "topic":
			value = topicSlug
		case "type":
			value = Slugify(file.RecordingType)
		case "id":
			value = strings.ToLower(file.ShortID())
		}
		if value != "" {
			pieces = append(pieces, value)
		}
	}

	name := strings.Join(pieces, r.cfg.Separator)
	if name == "" {
		name = defaultTopic
	}
	return name + "." + extension(file)
}

// extension prefers the declared file extension and falls back to the file
// type, slugified either way so names stay filesystem safe.
func extension(file zoom.RecordingFile) string {
	ext := Slugify(file.FileExtension)
	if ext == "" {
		ext = Slugify(file.FileType)
	}
	if ext == "" {
		ext = "bin"
	}
	return ext
}

// recordingName is the per-recording-instance subfolder segment.
func recordingName(topicSlug string, start time.Time) string {
	return topicSlug + "__" + Slugify(start.UTC().Format(time.RFC3339))
}
