// Package discovery enumerates the recordings a run should archive: it walks
// the date range in API-sized windows, follows pagination, resolves each
// meeting's full file manifest and applies the configured filters.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zoomarc/zoomarc/internal/config"
	"github.com/zoomarc/zoomarc/internal/naming"
	"github.com/zoomarc/zoomarc/internal/zoom"
)

// windowDays keeps each listing request inside the upstream one-month limit.
const windowDays = 29

// Client is the slice of the API client discovery needs.
type Client interface {
	RecordingsPager(userID string, from, to time.Time, pageSize int) *zoom.Pager
	GetMeetingRecordings(ctx context.Context, meetingUUID string) (*zoom.Meeting, error)
}

// Discoverer finds the meetings and files to archive for one user.
type Discoverer struct {
	client   Client
	filter   config.FilterConfig
	pageSize int
}

// NewDiscoverer creates a discoverer with the given filters.
func NewDiscoverer(client Client, filter config.FilterConfig, pageSize int) *Discoverer {
	return &Discoverer{
		client:   client,
		filter:   filter,
		pageSize: pageSize,
	}
}

// Discover returns the meetings with downloadable files for one user within
// [from, to]. Each meeting carries only the recording files that passed the
// filters; meetings left with no files are dropped. Results follow window
// order, so they come back oldest window first.
func (d *Discoverer) Discover(ctx context.Context, userID string, from, to time.Time) ([]zoom.Meeting, error) {
	uuids, err := d.enumerate(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	var meetings []zoom.Meeting
	for _, uuid := range uuids {
		meeting, err := d.client.GetMeetingRecordings(ctx, uuid)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve recordings for meeting %s: %w", uuid, err)
		}
		if !d.matchesTopic(meeting.Topic) {
			continue
		}
		meeting.RecordingFiles = d.filterFiles(meeting.RecordingFiles)
		if len(meeting.RecordingFiles) == 0 {
			continue
		}
		meetings = append(meetings, *meeting)
	}

	return meetings, nil
}

// enumerate lists meeting UUIDs window by window, deduplicating across
// windows since a recording can straddle a boundary.
func (d *Discoverer) enumerate(ctx context.Context, userID string, from, to time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var uuids []string

	for _, w := range windows(from, to) {
		pager := d.client.RecordingsPager(userID, w.from, w.to, d.pageSize)
		for pager.HasNext() {
			page, err := pager.Next(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list recordings for %s: %w", userID, err)
			}

			var result zoom.ListRecordingsResponse
			if err := json.Unmarshal(page.Body, &result); err != nil {
				return nil, fmt.Errorf("failed to decode recordings page: %w", err)
			}

			for _, meeting := range result.Meetings {
				if meeting.UUID == "" || seen[meeting.UUID] {
					continue
				}
				seen[meeting.UUID] = true
				uuids = append(uuids, meeting.UUID)
			}
		}
	}

	return uuids, nil
}

type window struct {
	from time.Time
	to   time.Time
}

// windows splits [from, to] into consecutive spans of at most windowDays
// days, oldest first.
func windows(from, to time.Time) []window {
	var result []window
	for start := from; !start.After(to); start = start.AddDate(0, 0, windowDays+1) {
		end := start.AddDate(0, 0, windowDays)
		if end.After(to) {
			end = to
		}
		result = append(result, window{from: start, to: end})
	}
	return result
}

// matchesTopic applies the topic filter: literal match, slug match, or
// substring-of-slug match when partial matching is on. An empty filter
// accepts everything.
func (d *Discoverer) matchesTopic(topic string) bool {
	if len(d.filter.Topics) == 0 {
		return true
	}

	topicSlug := naming.Slugify(topic)
	for _, want := range d.filter.Topics {
		if topic == want {
			return true
		}
		wantSlug := naming.Slugify(want)
		if topicSlug == wantSlug {
			return true
		}
		if d.filter.TopicPartialMatch && wantSlug != "" && strings.Contains(topicSlug, wantSlug) {
			return true
		}
	}
	return false
}

// filterFiles keeps completed files whose type passes the allow-list.
func (d *Discoverer) filterFiles(files []zoom.RecordingFile) []zoom.RecordingFile {
	var kept []zoom.RecordingFile
	for _, file := range files {
		if file.Status != zoom.RecordingFileStatusCompleted {
			continue
		}
		if file.DownloadURL == "" {
			continue
		}
		if !d.matchesFileType(file.FileType) {
			continue
		}
		kept = append(kept, file)
	}
	return kept
}

func (d *Discoverer) matchesFileType(fileType string) bool {
	if len(d.filter.FileTypes) == 0 {
		return true
	}
	for _, want := range d.filter.FileTypes {
		if strings.EqualFold(fileType, want) {
			return true
		}
	}
	return false
}
