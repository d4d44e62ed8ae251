package zoom

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int) HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:      5 * time.Second,
		MaxRetries:   maxRetries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

// fixedAuth hands out tokens from a list, one per fetch after an invalidate.
type fixedAuth struct {
	tokens      []string
	index       int32
	invalidated int32
}

func (a *fixedAuth) Token(ctx context.Context) (*AccessToken, error) {
	i := atomic.LoadInt32(&a.index)
	if int(i) >= len(a.tokens) {
		i = int32(len(a.tokens) - 1)
	}
	return &AccessToken{
		Value:     a.tokens[i],
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (a *fixedAuth) Invalidate() {
	atomic.AddInt32(&a.invalidated, 1)
	atomic.AddInt32(&a.index, 1)
}

func TestRetryTransientStatus(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewRetryHTTPClient(fastRetryConfig(3))
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&requests) != 3 {
		t.Errorf("server hit %d times, expected 2 retries then success", requests)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewRetryHTTPClient(fastRetryConfig(3))
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, expected 404 returned intact", resp.StatusCode)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Errorf("server hit %d times, client errors must not retry", requests)
	}
}

func TestUnauthorizedReturnedIntact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewRetryHTTPClient(fastRetryConfig(3))
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401 passed through for the auth policy", resp.StatusCode)
	}
}

func TestAuthenticatedClientAttachesToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	auth := &fixedAuth{tokens: []string{"tok-1"}}
	client := NewAuthenticatedClient(NewRetryHTTPClient(fastRetryConfig(0)), auth)
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestRefreshRetryOnceOnUnauthorized(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	auth := &fixedAuth{tokens: []string{"stale", "fresh"}}
	client := NewAuthenticatedClient(NewRetryHTTPClient(fastRetryConfig(0)), auth)
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d after refresh", resp.StatusCode)
	}
	if atomic.LoadInt32(&auth.invalidated) != 1 {
		t.Errorf("invalidated %d times, expected exactly one refresh", auth.invalidated)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("server hit %d times, expected original plus one retry", requests)
	}
}

func TestSecondUnauthorizedIsFatal(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	auth := &fixedAuth{tokens: []string{"stale", "also-stale"}}
	client := NewAuthenticatedClient(NewRetryHTTPClient(fastRetryConfig(0)), auth)
	req, _ := http.NewRequest("GET", server.URL, nil)

	_, err := client.Do(req)
	var authErr *AuthExpiredError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthExpiredError, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("server hit %d times, expected exactly one retry before giving up", requests)
	}
}

func TestCheckStatusDecodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":3301,"message":"This recording does not exist."}`))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	checkErr := checkStatus(resp)
	var apiErr *APIError
	if !errors.As(checkErr, &apiErr) {
		t.Fatalf("expected APIError, got %v", checkErr)
	}
	if apiErr.StatusCode != 404 || apiErr.Code != 3301 {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Message != "This recording does not exist." {
		t.Errorf("message = %q", apiErr.Message)
	}
}
