// Package zoom provides API client for Zoom Cloud Recording endpoints
package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// downloadChunkSize determines the rate at which download progress is
// reported.
const downloadChunkSize = 1 << 20

// Client defines the interface for Zoom Cloud Recording API operations
type Client interface {
	ListUsers(ctx context.Context, status string) ([]User, error)
	RecordingsPager(userID string, from, to time.Time, pageSize int) *Pager
	GetMeetingRecordings(ctx context.Context, meetingUUID string) (*Meeting, error)
	Download(ctx context.Context, downloadURL string, w io.Writer, onProgress func(written int64)) (int64, error)
}

// ZoomClient implements the Client interface
type ZoomClient struct {
	httpClient  *AuthenticatedClient
	retryClient *RetryHTTPClient
	auth        TokenManager
	baseURL     string
}

// NewZoomClient creates a new Zoom API client
func NewZoomClient(retryClient *RetryHTTPClient, auth TokenManager, baseURL string) *ZoomClient {
	return &ZoomClient{
		httpClient:  NewAuthenticatedClient(retryClient, auth),
		retryClient: retryClient,
		auth:        auth,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

// ListUsers enumerates account users with the given status, following
// pagination to the end.
func (c *ZoomClient) ListUsers(ctx context.Context, status string) ([]User, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}

	pager := NewPager(c.httpClient, c.baseURL+"/users", query, 300)

	var users []User
	for pager.HasNext() {
		page, err := pager.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}

		var result ListUsersResponse
		if err := json.Unmarshal(page.Body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode users page: %w", err)
		}
		users = append(users, result.Users...)
	}

	return users, nil
}

// RecordingsPager returns a pager over one user's recordings within the
// given window. The window must fit the upstream limit; see discovery for
// the windowing logic.
func (c *ZoomClient) RecordingsPager(userID string, from, to time.Time, pageSize int) *Pager {
	endpoint := fmt.Sprintf("%s/users/%s/recordings", c.baseURL, url.PathEscape(userID))

	query := url.Values{}
	query.Set("from", from.Format("2006-01-02"))
	query.Set("to", to.Format("2006-01-02"))

	return NewPager(c.httpClient, endpoint, query, pageSize)
}

// DoubleEscape percent-encodes a meeting UUID twice. UUIDs can contain "/"
// and the API only accepts them double-encoded in path position.
func DoubleEscape(s string) string {
	return url.QueryEscape(url.QueryEscape(s))
}

// GetMeetingRecordings retrieves the complete recording manifest for one
// meeting. The windowed listing does not always carry full file metadata,
// so discovery resolves every meeting through this endpoint.
func (c *ZoomClient) GetMeetingRecordings(ctx context.Context, meetingUUID string) (*Meeting, error) {
	endpoint := fmt.Sprintf("%s/meetings/%s/recordings", c.baseURL, DoubleEscape(meetingUUID))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result Meeting
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Download streams a recording file to w, reporting cumulative bytes via
// onProgress. The bearer token rides as an access_token query credential;
// an unauthorized response triggers the one-refresh-one-retry policy before
// failing with AuthExpiredError.
func (c *ZoomClient) Download(ctx context.Context, downloadURL string, w io.Writer, onProgress func(written int64)) (int64, error) {
	resp, err := c.openDownload(ctx, downloadURL)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		c.auth.Invalidate()
		resp, err = c.openDownload(ctx, downloadURL)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return 0, &AuthExpiredError{URL: downloadURL}
		}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, err
	}

	return copyWithProgress(ctx, w, resp.Body, onProgress)
}

// openDownload issues the tokenized GET for a download URL.
func (c *ZoomClient) openDownload(ctx context.Context, downloadURL string) (*http.Response, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(downloadURL)
	if err != nil {
		return nil, fmt.Errorf("invalid download URL: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token.Value)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	return c.retryClient.Do(req)
}

// copyWithProgress copies r to w in fixed chunks, honoring cancellation and
// invoking onProgress with the running total.
func copyWithProgress(ctx context.Context, w io.Writer, r io.Reader, onProgress func(written int64)) (int64, error) {
	buf := make([]byte, downloadChunkSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, fmt.Errorf("failed to write file content: %w", werr)
			}
			if onProgress != nil {
				onProgress(total)
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("failed to read file content: %w", err)
		}
	}
}
