// Package carrier implements the REST client for the external message
// carrier. The carrier exposes a form-encoded send API authenticated with
// account SID + auth token, and posts delivery callbacks and inbound
// messages to our webhook endpoint.
package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds carrier credentials and endpoint settings.
type Config struct {
	BaseURL    string `json:"base_url"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	// SendRPS throttles outbound carrier calls per client (0 = unlimited).
	SendRPS float64 `json:"send_rps"`
}

// MessageResource is the carrier's representation of a created message.
type MessageResource struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Error is a carrier-side send rejection.
type Error struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("carrier error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("carrier request failed with status %d", e.HTTPStatus)
}

// Client performs carrier API calls. Safe for concurrent use.
type Client struct {
	cfg     Config
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewClient creates a carrier client. A zero SendRPS disables throttling.
func NewClient(cfg Config) *Client {
	var lim *rate.Limiter
	if cfg.SendRPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.SendRPS), 1)
	}
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		limiter: lim,
	}
}

// CreateMessage performs one POST to the carrier's message endpoint.
// This is the single network call behind every sender invocation.
func (c *Client) CreateMessage(ctx context.Context, params url.Values) (*MessageResource, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build carrier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read carrier response: %w", err)
	}

	var res MessageResource
	if jsonErr := json.Unmarshal(body, &res); jsonErr != nil && resp.StatusCode < 300 {
		return nil, fmt.Errorf("decode carrier response: %w", jsonErr)
	}

	if resp.StatusCode >= 300 {
		return nil, &Error{HTTPStatus: resp.StatusCode, Code: res.ErrorCode, Message: res.ErrorMessage}
	}
	return &res, nil
}
