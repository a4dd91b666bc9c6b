package databricks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// externalViewerID tags embed-token requests for the published dashboard.
const externalViewerID = "demo_viewer"

// EmbedTokenInfo carries the scope material the published-dashboard tokeninfo
// endpoint hands back for the scoped token exchange.
type EmbedTokenInfo struct {
	Scope                string          `json:"scope"`
	CustomClaim          string          `json:"custom_claim"`
	AuthorizationDetails json.RawMessage `json:"authorization_details"`
}

// DashboardClient performs the published-dashboard embed-token steps.
type DashboardClient struct {
	baseURL      string
	dashboardID  string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

type DashboardOption func(*DashboardClient)

func WithDashboardHTTPClient(httpClient *http.Client) DashboardOption {
	return func(c *DashboardClient) {
		c.httpClient = httpClient
	}
}

func NewDashboardClient(workspaceURL, dashboardID, clientID, clientSecret string, opts ...DashboardOption) *DashboardClient {
	c := &DashboardClient{
		baseURL:      strings.TrimRight(workspaceURL, "/"),
		dashboardID:  dashboardID,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TokenInfo fetches the scope, custom claim, and authorization details needed
// to mint a scoped embed token, authenticated with a workspace (all-apis) token.
func (c *DashboardClient) TokenInfo(ctx context.Context, workspaceToken string) (*EmbedTokenInfo, error) {
	endpoint := fmt.Sprintf("%s/api/2.0/lakeview/dashboards/%s/published/tokeninfo?external_viewer_id=%s",
		c.baseURL, c.dashboardID, externalViewerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dashboard: create tokeninfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+workspaceToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dashboard: tokeninfo request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	var info EmbedTokenInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("dashboard: decode tokeninfo: %w", err)
	}
	return &info, nil
}

// ExchangeScopedToken trades the tokeninfo material for a scoped embed token.
func (c *DashboardClient) ExchangeScopedToken(ctx context.Context, info *EmbedTokenInfo) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_id":             {c.clientID},
		"client_secret":         {c.clientSecret},
		"scope":                 {info.Scope},
		"custom_claim":          {info.CustomClaim},
		"authorization_details": {string(info.AuthorizationDetails)},
	}

	token, expiresIn, err := requestOIDCToken(ctx, c.httpClient, c.baseURL+"/oidc/v1/token", form)
	if err != nil {
		return "", 0, fmt.Errorf("dashboard: scoped token exchange: %w", err)
	}
	return token, time.Duration(expiresIn) * time.Second, nil
}

// EmbedTokenProvider chains the three embed-token steps behind a TokenProvider
// so the scoped token can sit in its own TokenSource cache. The workspace
// token is itself pulled from its cache, not re-minted per call.
func EmbedTokenProvider(workspace *TokenSource, client *DashboardClient) TokenProvider {
	return func(ctx context.Context) (string, time.Duration, error) {
		if client.clientID == "" || client.clientSecret == "" || client.baseURL == "" {
			return "", 0, errors.New("service principal credentials not configured")
		}

		workspaceToken, err := workspace.Token(ctx)
		if err != nil {
			return "", 0, err
		}

		info, err := client.TokenInfo(ctx, workspaceToken)
		if err != nil {
			return "", 0, err
		}

		return client.ExchangeScopedToken(ctx, info)
	}
}
