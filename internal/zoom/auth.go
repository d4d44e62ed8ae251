// Package zoom provides Zoom API authentication and client functionality
package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zoomarc/zoomarc/internal/config"
)

// AccessToken represents a bearer token with metadata. Tokens are immutable;
// a refreshed token is a new value, never a mutation of the old one.
type AccessToken struct {
	Value     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"-"`
}

// IsExpired returns true if the token is expired or will expire within the buffer time
func (t *AccessToken) IsExpired(buffer time.Duration) bool {
	return time.Now().Add(buffer).After(t.ExpiresAt)
}

// tokenResponse represents the response from the OAuth token endpoint
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// CredentialError is returned when the credential exchange itself is
// rejected. It is fatal: no amount of retrying will mint a token.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	msg := "unable to fetch access token"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%v) - verify your credentials", msg, e.Err)
	}
	return msg + " - verify your credentials"
}

func (e *CredentialError) Unwrap() error { return e.Err }

// AuthExpiredError is returned when a call came back unauthorized even after
// the one allowed token refresh.
type AuthExpiredError struct {
	URL string
}

func (e *AuthExpiredError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("authorization rejected after token refresh: %s", e.URL)
	}
	return "authorization rejected after token refresh"
}

// TokenManager owns the single-slot bearer token cache. Every authenticated
// call asks for the cached token first; a call that observes a 401 calls
// Invalidate and asks again, at most once.
type TokenManager interface {
	Token(ctx context.Context) (*AccessToken, error)
	Invalidate()
}

// tokenManager implements TokenManager for both Server-to-Server OAuth and
// the legacy self-signed JWT method. Access is serialized so concurrent
// callers cannot trigger redundant refreshes.
type tokenManager struct {
	cfg    config.ZoomConfig
	client *http.Client

	mu     sync.Mutex
	cached *AccessToken
}

// NewTokenManager creates a token manager for the configured auth method
func NewTokenManager(cfg config.ZoomConfig) TokenManager {
	return &tokenManager{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Token returns the cached token, fetching a fresh one on first use or after
// expiry or invalidation.
func (m *tokenManager) Token(ctx context.Context) (*AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && !m.cached.IsExpired(5*time.Minute) {
		return m.cached, nil
	}

	var token *AccessToken
	var err error
	if m.cfg.AuthMethod == config.AuthMethodJWT {
		token, err = m.signJWT()
	} else {
		token, err = m.exchangeToken(ctx)
	}
	if err != nil {
		return nil, err
	}

	m.cached = token
	return token, nil
}

// Invalidate drops the cached token so the next Token call fetches a
// replacement.
func (m *tokenManager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

// exchangeToken performs the account-credentials grant against the OAuth
// endpoint using basic auth of the client id and secret.
func (m *tokenManager) exchangeToken(ctx context.Context) (*AccessToken, error) {
	data := url.Values{}
	data.Set("grant_type", "account_credentials")
	data.Set("account_id", m.cfg.AccountID)

	req, err := http.NewRequestWithContext(ctx, "POST", m.cfg.OAuthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &CredentialError{Reason: "failed to create token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &CredentialError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &CredentialError{Reason: "failed to parse token response", Err: err}
	}

	if tr.AccessToken == "" {
		reason := tr.Reason
		if reason == "" {
			reason = tr.Error
		}
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, &CredentialError{Reason: reason}
	}

	return &AccessToken{
		Value:     tr.AccessToken,
		TokenType: nonEmpty(tr.TokenType, "Bearer"),
		ExpiresIn: tr.ExpiresIn,
		ExpiresAt: time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// signJWT mints a short-lived HS256 token locally from the client id and
// secret, the way retired JWT-type Zoom apps authenticated.
func (m *tokenManager) signJWT() (*AccessToken, error) {
	now := time.Now()
	exp := now.Add(time.Hour)
	claims := jwt.MapClaims{
		"iss":      m.cfg.ClientID,
		"appKey":   m.cfg.ClientID,
		"aud":      "zoom",
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"tokenExp": exp.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.ClientSecret))
	if err != nil {
		return nil, &CredentialError{Reason: "failed to sign JWT", Err: err}
	}

	return &AccessToken{
		Value:     signed,
		TokenType: "Bearer",
		ExpiresIn: int(time.Until(exp).Seconds()),
		ExpiresAt: exp,
	}, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
