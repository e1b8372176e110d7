// Package hyperliquid provides a read-only client for the public info API.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAPIURL is the Hyperliquid mainnet REST endpoint
	DefaultAPIURL = "https://api.hyperliquid.xyz"

	// Public info requests are weight-limited upstream; stay well under.
	requestsPerSecond = 10
	requestBurst      = 5
)

// Client issues POST info requests against the Hyperliquid public API.
// All calls are unauthenticated and read-only.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Client. An empty baseURL selects mainnet.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// UserFillsByTime fetches fills for one address inside [startMs, endMs].
// When aggregateByTime is set, the exchange merges partial fills that
// executed at the same timestamp against the same crossing order.
// Results come back in upstream order; no retries are attempted.
func (c *Client) UserFillsByTime(ctx context.Context, user string, startMs, endMs int64, aggregateByTime bool) ([]Fill, error) {
	body := map[string]any{
		"type":            "userFillsByTime",
		"user":            user,
		"startTime":       startMs,
		"endTime":         endMs,
		"aggregateByTime": aggregateByTime,
	}

	var fills []Fill
	if err := c.postInfo(ctx, body, &fills); err != nil {
		return nil, fmt.Errorf("userFillsByTime for %s: %w", user, err)
	}
	return fills, nil
}

// ClearinghouseState fetches the margin/position snapshot for one address.
func (c *Client) ClearinghouseState(ctx context.Context, user string) (ClearinghouseState, error) {
	body := map[string]any{
		"type": "clearinghouseState",
		"user": user,
	}

	var state ClearinghouseState
	if err := c.postInfo(ctx, body, &state); err != nil {
		return ClearinghouseState{}, fmt.Errorf("clearinghouseState for %s: %w", user, err)
	}
	return state, nil
}

// postInfo performs one rate-limited POST against the /info endpoint and
// decodes the response into result.
func (c *Client) postInfo(ctx context.Context, body map[string]any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	return nil
}
