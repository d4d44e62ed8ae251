// Package zoom provides HTTP client with retry logic for Zoom API interactions
package zoom

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/zoomarc/zoomarc/internal/config"
)

// Doer executes one HTTP request. Satisfied by RetryHTTPClient and
// AuthenticatedClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClientConfig holds configuration for the retry HTTP client
type HTTPClientConfig struct {
	Timeout         time.Duration // Request timeout
	MaxRetries      int           // Maximum number of retries
	RetryWaitMin    time.Duration // Minimum wait time between retries
	RetryWaitMax    time.Duration // Maximum wait time between retries
	RetryableStatus []int         // HTTP status codes that should trigger retries
	MaxRedirects    int           // Maximum number of redirects to follow
}

// HTTPClientConfigFromDownloadConfig creates HTTPClientConfig from DownloadConfig
func HTTPClientConfigFromDownloadConfig(cfg config.DownloadConfig) HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:         cfg.TimeoutDuration(),
		MaxRetries:      cfg.RetryAttempts,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		RetryableStatus: []int{429, 500, 502, 503, 504},
		MaxRedirects:    10,
	}
}

// APIError represents a non-2xx response from the remote API, other than
// the unauthorized case which is handled by the token refresh policy.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote error %d", e.StatusCode)
}

// RetryHTTPClient is an HTTP client with retry logic and exponential backoff.
// It retries transient statuses and network errors; all other responses,
// including 401 and other client errors, are returned to the caller intact
// so the authentication policy can inspect them.
type RetryHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewRetryHTTPClient creates a new HTTP client with retry logic
func NewRetryHTTPClient(config HTTPClientConfig) *RetryHTTPClient {
	if config.RetryWaitMin == 0 {
		config.RetryWaitMin = 500 * time.Millisecond
	}
	if config.RetryWaitMax == 0 {
		config.RetryWaitMax = 5 * time.Second
	}
	if len(config.RetryableStatus) == 0 {
		config.RetryableStatus = []int{429, 500, 502, 503, 504}
	}
	if config.MaxRedirects == 0 {
		config.MaxRedirects = 10
	}

	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("too many redirects: %d", len(via))
			}
			return nil
		},
	}

	return &RetryHTTPClient{
		client: client,
		config: config,
	}
}

// Do executes an HTTP request, retrying transient failures
func (c *RetryHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		reqClone, cloneErr := cloneRequest(req)
		if cloneErr != nil {
			return nil, cloneErr
		}

		resp, err = c.client.Do(reqClone)
		if err != nil {
			// Network errors are retryable
			if attempt < c.config.MaxRetries {
				c.waitForRetry(attempt, 0)
				continue
			}
			return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
		}

		if c.shouldRetry(resp.StatusCode) && attempt < c.config.MaxRetries {
			retryAfter := parseRetryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.waitForRetry(attempt, retryAfter)
			continue
		}

		return resp, nil
	}

	return resp, err
}

// cloneRequest creates a copy of the HTTP request for retries
func cloneRequest(req *http.Request) (*http.Request, error) {
	reqClone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		reqClone.Body = body
	}
	return reqClone, nil
}

// shouldRetry determines if a request should be retried based on status code
func (c *RetryHTTPClient) shouldRetry(statusCode int) bool {
	for _, retryableStatus := range c.config.RetryableStatus {
		if statusCode == retryableStatus {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header and returns the wait duration
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}

// waitForRetry implements exponential backoff with jitter
func (c *RetryHTTPClient) waitForRetry(attempt int, retryAfter time.Duration) {
	var waitTime time.Duration

	if retryAfter > 0 {
		waitTime = retryAfter
	} else {
		// Exponential backoff: 2^attempt * base +- 25% jitter
		base := float64(c.config.RetryWaitMin)
		exponential := base * math.Pow(2, float64(attempt))
		jitter := exponential * 0.25 * (rand.Float64()*2 - 1)
		waitTime = time.Duration(exponential + jitter)
	}

	if waitTime > c.config.RetryWaitMax {
		waitTime = c.config.RetryWaitMax
	}
	if waitTime < c.config.RetryWaitMin {
		waitTime = c.config.RetryWaitMin
	}

	time.Sleep(waitTime)
}

// Client returns the underlying HTTP client
func (c *RetryHTTPClient) Client() *http.Client {
	return c.client
}

// AuthenticatedClient combines the retry client with the token manager. It
// attaches the current bearer token to every request and applies the
// refresh-and-retry-once policy when a request comes back unauthorized.
type AuthenticatedClient struct {
	retryClient *RetryHTTPClient
	auth        TokenManager
}

// NewAuthenticatedClient creates a client with both retry logic and authentication
func NewAuthenticatedClient(retryClient *RetryHTTPClient, auth TokenManager) *AuthenticatedClient {
	return &AuthenticatedClient{
		retryClient: retryClient,
		auth:        auth,
	}
}

// Do executes an HTTP request with authentication and retry logic. A 401
// response invalidates the cached token, fetches exactly one replacement and
// retries the request once; a second 401 surfaces as AuthExpiredError.
func (c *AuthenticatedClient) Do(req *http.Request) (*http.Response, error) {
	token, err := c.auth.Token(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token.TokenType+" "+token.Value)

	resp, err := c.retryClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	c.auth.Invalidate()
	token, err = c.auth.Token(req.Context())
	if err != nil {
		return nil, err
	}

	retryReq, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	retryReq.Header.Set("Authorization", token.TokenType+" "+token.Value)

	resp, err = c.retryClient.Do(retryReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &AuthExpiredError{URL: req.URL.String()}
	}

	return resp, nil
}

// checkStatus converts a non-2xx response into an APIError, consuming the
// body for the error details.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	decodeAPIError(body, apiErr)
	return apiErr
}

func decodeAPIError(body []byte, apiErr *APIError) {
	if len(body) == 0 {
		return
	}
	// Error bodies look like {"code": 124, "message": "..."}; anything else
	// is left as a bare status error.
	type wire struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	var w wire
	if err := json.Unmarshal(body, &w); err == nil {
		apiErr.Code = w.Code
		apiErr.Message = w.Message
	}
}
