// Package sdk provides typed access to the achievekit HTTP + WebSocket API.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"achievekit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client talks to an achievekit server.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// ReportProgress increments a counter for a save and returns the new value.
func (c *Client) ReportProgress(ctx context.Context, saveID, key string, delta int64) (int64, error) {
	if strings.TrimSpace(saveID) == "" {
		return 0, ErrEmptySaveID
	}
	u, err := url.Parse(fmt.Sprintf("%s/saves/%s/progress", c.baseURL, url.PathEscape(saveID)))
	if err != nil {
		return 0, err
	}
	q := u.Query()
	q.Set("key", key)
	q.Set("delta", fmt.Sprintf("%d", delta))
	u.RawQuery = q.Encode()

	var body struct {
		Value int64 `json:"value"`
	}
	if err := c.do(ctx, http.MethodPost, u.String(), &body); err != nil {
		return 0, err
	}
	return body.Value, nil
}

// SetProgress sets a counter to an absolute value and returns the previous one.
func (c *Client) SetProgress(ctx context.Context, saveID, key string, value int64) (int64, error) {
	if strings.TrimSpace(saveID) == "" {
		return 0, ErrEmptySaveID
	}
	u, err := url.Parse(fmt.Sprintf("%s/saves/%s/progress", c.baseURL, url.PathEscape(saveID)))
	if err != nil {
		return 0, err
	}
	q := u.Query()
	q.Set("key", key)
	q.Set("value", fmt.Sprintf("%d", value))
	u.RawQuery = q.Encode()

	var body struct {
		Previous int64 `json:"previous"`
	}
	if err := c.do(ctx, http.MethodPut, u.String(), &body); err != nil {
		return 0, err
	}
	return body.Previous, nil
}

// ClaimAchievement requests the reward for an unlocked achievement.
func (c *Client) ClaimAchievement(ctx context.Context, saveID, achievementID string) error {
	if strings.TrimSpace(saveID) == "" {
		return ErrEmptySaveID
	}
	u := fmt.Sprintf("%s/saves/%s/achievements/%s/claim",
		c.baseURL, url.PathEscape(saveID), url.PathEscape(achievementID))
	var body struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodPost, u, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("claim not accepted")
	}
	return nil
}

// CollectItem marks a collection item as collected.
func (c *Client) CollectItem(ctx context.Context, saveID, collectionID, itemID string) error {
	if strings.TrimSpace(saveID) == "" {
		return ErrEmptySaveID
	}
	u := fmt.Sprintf("%s/saves/%s/collections/%s/items/%s/collect",
		c.baseURL, url.PathEscape(saveID), url.PathEscape(collectionID), url.PathEscape(itemID))
	var body struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodPost, u, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("collect not accepted")
	}
	return nil
}

// GetSave fetches the full achievement state for a save slot.
func (c *Client) GetSave(ctx context.Context, saveID string) (SaveState, error) {
	if strings.TrimSpace(saveID) == "" {
		return SaveState{}, ErrEmptySaveID
	}
	u := fmt.Sprintf("%s/saves/%s", c.baseURL, url.PathEscape(saveID))
	var st SaveState
	if err := c.do(ctx, http.MethodGet, u, &st); err != nil {
		return SaveState{}, err
	}
	return st, nil
}

// Achievements lists the achievements for a save in display order.
func (c *Client) Achievements(ctx context.Context, saveID string) ([]AchievementView, error) {
	if strings.TrimSpace(saveID) == "" {
		return nil, ErrEmptySaveID
	}
	u := fmt.Sprintf("%s/saves/%s/achievements", c.baseURL, url.PathEscape(saveID))
	var body struct {
		Achievements []AchievementView `json:"achievements"`
	}
	if err := c.do(ctx, http.MethodGet, u, &body); err != nil {
		return nil, err
	}
	return body.Achievements, nil
}

// Collections lists the collections for a save.
func (c *Client) Collections(ctx context.Context, saveID string) ([]CollectionView, error) {
	if strings.TrimSpace(saveID) == "" {
		return nil, ErrEmptySaveID
	}
	u := fmt.Sprintf("%s/saves/%s/collections", c.baseURL, url.PathEscape(saveID))
	var body struct {
		Collections []CollectionView `json:"collections"`
	}
	if err := c.do(ctx, http.MethodGet, u, &body); err != nil {
		return nil, err
	}
	return body.Collections, nil
}

// Leaderboard fetches the top n saves by achievement score.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	u := fmt.Sprintf("%s/leaderboard?n=%d", c.baseURL, n)
	var body struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, u, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

// Health probes /healthz.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event
// values. saveID narrows the stream to one save slot; pass "" for all saves.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, saveID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	wsURL := c.wsURL
	if saveID != "" {
		wsURL += "?save=" + url.QueryEscape(saveID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
