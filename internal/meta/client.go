// Package meta is the client for the Meta (Facebook) Marketing API.
//
// The session layer only ever sees the domain error taxonomy: a Graph error
// that means "this token is no good" comes back wrapping
// apperror.ErrTokenRejected, everything else (network trouble, timeouts,
// 5xx, malformed bodies) wraps apperror.ErrTransient. That translation is
// what lets the credential lifecycle react uniformly without knowing HTTP.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
)

// DefaultGraphVersion is the Graph API version used when none is configured.
const DefaultGraphVersion = "v21.0"

// requestTimeout is the single fixed upper bound on any Graph call.
// Exceeding it is treated as a transient failure; there is no retry here.
const requestTimeout = 20 * time.Second

// listPageLimit is how many ad accounts we ask for per page while following
// the paging cursor.
const listPageLimit = 100

// maxListPages bounds the cursor-following loop so a misbehaving paging
// response can never spin forever.
const maxListPages = 50

// AdAccount is one entry of the /me/adaccounts listing. Name and Currency
// may be empty; the caller normalizes them before persisting.
type AdAccount struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
}

// Action is one conversion entry of an insights row, e.g.
// {action_type: "lead", value: "12"}.
type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// InsightsRow is the account-level insights payload. Every numeric field
// arrives as a decimal string; an absent field stays "".
type InsightsRow struct {
	Spend        string   `json:"spend"`
	Reach        string   `json:"reach"`
	Impressions  string   `json:"impressions"`
	Frequency    string   `json:"frequency"`
	Clicks       string   `json:"clicks"`
	CTR          string   `json:"ctr"`
	CPC          string   `json:"cpc"`
	Actions      []Action `json:"actions"`
	ActionValues []Action `json:"action_values"`
}

type adAccountsResponse struct {
	Data   []AdAccount `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type insightsResponse struct {
	Data []InsightsRow `json:"data"`
}

// graphError is the error envelope Graph returns on non-2xx responses.
type graphError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the Meta Graph API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given Graph API version (e.g. "v21.0").
func NewClient(apiVersion string, logger *slog.Logger) *Client {
	if apiVersion == "" {
		apiVersion = DefaultGraphVersion
	}
	return &Client{
		baseURL:    "https://graph.facebook.com/" + apiVersion,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// newClientWithBaseURL is used by the tests in this package to point the
// client at an httptest server.
func newClientWithBaseURL(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// ListAdAccounts returns every ad account the token can see, following the
// paging cursor until the API stops returning one. Success of this call is
// what validates a freshly submitted token; there is no separate
// "validate" endpoint.
func (c *Client) ListAdAccounts(ctx context.Context, token string) ([]AdAccount, error) {
	params := url.Values{}
	params.Set("fields", "id,account_id,name,currency")
	params.Set("limit", fmt.Sprintf("%d", listPageLimit))
	params.Set("access_token", token)

	next := c.baseURL + "/me/adaccounts?" + params.Encode()

	var accounts []AdAccount
	for page := 0; next != "" && page < maxListPages; page++ {
		var payload adAccountsResponse
		if err := c.getJSON(ctx, next, &payload); err != nil {
			return nil, err
		}

		accounts = append(accounts, payload.Data...)
		next = payload.Paging.Next
	}

	return accounts, nil
}

// AccountInsights fetches the account-level insights row for one ad account
// over a closed date range. A period with no delivery comes back as a zero
// row rather than an error.
func (c *Client) AccountInsights(ctx context.Context, token, accountID, since, until string) (InsightsRow, error) {
	// The insights edge wants the "act_"-prefixed form; the listing returns
	// the bare numeric ID separately, so normalize here.
	if !strings.HasPrefix(accountID, "act_") {
		accountID = "act_" + accountID
	}

	timeRange, err := json.Marshal(map[string]string{"since": since, "until": until})
	if err != nil {
		return InsightsRow{}, fmt.Errorf("meta: encoding time range: %w", err)
	}

	params := url.Values{}
	params.Set("fields", "spend,reach,impressions,frequency,clicks,ctr,cpc,actions,action_values")
	params.Set("level", "account")
	params.Set("limit", "1")
	params.Set("time_range", string(timeRange))
	params.Set("access_token", token)

	var payload insightsResponse
	if err := c.getJSON(ctx, c.baseURL+"/"+accountID+"/insights?"+params.Encode(), &payload); err != nil {
		return InsightsRow{}, err
	}

	if len(payload.Data) == 0 {
		return InsightsRow{}, nil
	}
	return payload.Data[0], nil
}

// getJSON performs one GET and decodes the body, translating every failure
// into the domain taxonomy.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("meta: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, DNS failures, refused connections: all retryable.
		c.logger.Warn("meta request failed", slog.String("error", err.Error()))
		return fmt.Errorf("meta: request failed: %w", apperror.ErrTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("meta: reading response: %w", apperror.ErrTransient)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.translateError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("meta returned malformed body", slog.Int("status", resp.StatusCode))
		return fmt.Errorf("meta: decoding response: %w", apperror.ErrTransient)
	}

	return nil
}

// translateError maps a non-2xx Graph response onto the domain taxonomy.
// OAuth error code 190 (and plain 401s) mean the token is no good; anything
// else is worth retrying later.
func (c *Client) translateError(status int, body []byte) error {
	var ge graphError
	_ = json.Unmarshal(body, &ge) // best effort; a blank envelope is fine

	message := ge.Error.Message
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}

	if ge.Error.Code == 190 || status == http.StatusUnauthorized {
		c.logger.Info("meta rejected token",
			slog.Int("status", status),
			slog.Int("code", ge.Error.Code),
		)
		return fmt.Errorf("meta: %s: %w", message, apperror.ErrTokenRejected)
	}

	c.logger.Warn("meta request errored",
		slog.Int("status", status),
		slog.Int("code", ge.Error.Code),
		slog.String("message", message),
	)
	return fmt.Errorf("meta: %s: %w", message, apperror.ErrTransient)
}
