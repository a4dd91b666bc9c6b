package databricks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrCredentialUnavailable is returned when a token refresh fails and no
// fallback applies.
var ErrCredentialUnavailable = errors.New("databricks: credential unavailable")

// defaultTokenTTL is used when the token endpoint omits expires_in and the
// access token carries no readable exp claim.
const defaultTokenTTL = 3600 * time.Second

// TokenProvider performs one blocking credential acquisition. A zero TTL means
// the provider could not determine one.
type TokenProvider func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenSource caches a bearer token and refreshes it lazily once the cached
// token is within the safety margin of its expiry. It is shared by all
// concurrent requests; the mutex guards the cached state and incidentally
// serializes refreshes, though redundant refreshes would be harmless.
type TokenSource struct {
	provider      TokenProvider
	margin        time.Duration
	now           func() time.Time
	staleFallback bool

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type TokenSourceOption func(*TokenSource)

// WithClock replaces the time source, for deterministic expiry tests.
func WithClock(now func() time.Time) TokenSourceOption {
	return func(s *TokenSource) {
		s.now = now
	}
}

// WithStaleFallback controls whether a failed refresh may serve the previous
// token past its expiry instead of failing the request.
func WithStaleFallback(enabled bool) TokenSourceOption {
	return func(s *TokenSource) {
		s.staleFallback = enabled
	}
}

func NewTokenSource(provider TokenProvider, margin time.Duration, opts ...TokenSourceOption) *TokenSource {
	s := &TokenSource{
		provider: provider,
		margin:   margin,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the cached token while it has at least the safety margin of
// lifetime left, refreshing it otherwise.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expiry.Add(-s.margin)) {
		return s.token, nil
	}

	token, ttl, err := s.provider(ctx)
	if err != nil {
		if s.staleFallback && s.token != "" {
			log.Printf("WARN [TokenSource] Refresh failed, serving stale token: %v", err)
			return s.token, nil
		}
		return "", fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	s.token = token
	s.expiry = now.Add(ttl)
	return token, nil
}

// oidcTokenResponse is the shape returned by the workspace token endpoint.
type oidcTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ClientCredentialsProvider returns a TokenProvider that performs the OAuth
// client-credentials exchange against the workspace's /oidc/v1/token endpoint.
func ClientCredentialsProvider(httpClient *http.Client, workspaceURL, clientID, clientSecret, scope string) TokenProvider {
	workspaceURL = strings.TrimRight(workspaceURL, "/")
	return func(ctx context.Context) (string, time.Duration, error) {
		if clientID == "" || clientSecret == "" || workspaceURL == "" {
			return "", 0, errors.New("service principal credentials not configured")
		}

		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"scope":         {scope},
		}

		token, expiresIn, err := requestOIDCToken(ctx, httpClient, workspaceURL+"/oidc/v1/token", form)
		if err != nil {
			return "", 0, err
		}

		ttl := time.Duration(expiresIn) * time.Second
		if ttl <= 0 {
			ttl = ttlFromAccessToken(token, time.Now())
		}
		return token, ttl, nil
	}
}

// requestOIDCToken posts a form to a token endpoint and decodes the response.
func requestOIDCToken(ctx context.Context, httpClient *http.Client, endpoint string, form url.Values) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", 0, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	var payload oidcTokenResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, errors.New("token response missing access_token")
	}
	return payload.AccessToken, payload.ExpiresIn, nil
}

// ttlFromAccessToken derives a TTL from the token's exp claim. OIDC access
// tokens from the workspace are JWTs; the signature is not verified here, the
// claim only schedules the next refresh. Returns 0 when unreadable.
func ttlFromAccessToken(raw string, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Time.Sub(now)
}
