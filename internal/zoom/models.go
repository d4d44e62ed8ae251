// Package zoom defines data structures for Zoom Cloud Recording API
package zoom

import (
	"time"
)

// User represents one account member as returned by the user listing endpoint
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Status    string `json:"status"`
}

// DisplayName returns "email (first last)" or whichever parts are known
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	if u.Email == "" {
		return name
	}
	return u.Email + " (" + name + ")"
}

// ListUsersResponse represents one page of the user listing endpoint
type ListUsersResponse struct {
	PageCount     int    `json:"page_count"`
	PageSize      int    `json:"page_size"`
	TotalRecords  int    `json:"total_records"`
	NextPageToken string `json:"next_page_token,omitempty"`
	Users         []User `json:"users"`
}

// RecordingFileStatusCompleted is the only status worth downloading.
const RecordingFileStatusCompleted = "completed"

// RecordingFile represents a single recording artifact within a meeting:
// video, audio, transcript, chat log, poll data or summary.
type RecordingFile struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meeting_id"`
	RecordingStart time.Time `json:"recording_start"`
	RecordingEnd   time.Time `json:"recording_end"`
	FileType       string    `json:"file_type"`
	FileExtension  string    `json:"file_extension,omitempty"`
	FileSize       int64     `json:"file_size"`
	DownloadURL    string    `json:"download_url"`
	PlayURL        string    `json:"play_url,omitempty"`
	Status         string    `json:"status"`
	RecordingType  string    `json:"recording_type,omitempty"`
}

// ShortID returns the trailing eight characters of the file id, the piece
// used in generated file names.
func (f RecordingFile) ShortID() string {
	if len(f.ID) <= 8 {
		return f.ID
	}
	return f.ID[len(f.ID)-8:]
}

// Meeting represents a recorded meeting or webinar with all associated files
type Meeting struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	AccountID      string          `json:"account_id"`
	HostID         string          `json:"host_id"`
	Topic          string          `json:"topic"`
	Type           int             `json:"type"`
	StartTime      time.Time       `json:"start_time"`
	Duration       int             `json:"duration"`
	TotalSize      int64           `json:"total_size"`
	RecordingCount int             `json:"recording_count"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// ListRecordingsResponse represents one page of the list recordings endpoint
type ListRecordingsResponse struct {
	From          string    `json:"from"`
	To            string    `json:"to"`
	PageCount     int       `json:"page_count"`
	PageSize      int       `json:"page_size"`
	TotalRecords  int       `json:"total_records"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	Meetings      []Meeting `json:"meetings"`
}
