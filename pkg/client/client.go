// Package client is the Go client for the SeqRelay admin API.
//
// # Quick start
//
//	c := client.New("http://127.0.0.1:8090")
//
//	h, err := c.Health(ctx)
//	peers, err := c.Peers(ctx)
//	evs, err := c.Events(ctx, client.KindMessageNotInLog, 50)
//
// # Error handling
//
// All methods return an *APIError when the server responds with a non-2xx
// status code. Check errors.As(err, &client.APIError{}) to inspect the HTTP
// status and server message.
//
// # Connection reuse
//
// Client is safe for concurrent use. It shares a single http.Client internally
// so connections are reused across goroutines.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Event kinds accepted by Events.
const (
	KindMessageNotInLog = "requested_message_not_in_log"
	KindKeyConflict     = "sent_key_conflict"
)

// ─── Error type ───────────────────────────────────────────────────────────────

// APIError is returned when the admin server responds with a non-2xx status.
type APIError struct {
	StatusCode int    // HTTP status code
	Message    string // "error" field from the JSON response body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("seqrelay: server returned %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is a 429 from the server.
func IsRateLimited(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusTooManyRequests
}

// ─── Client options ───────────────────────────────────────────────────────────

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
// The default is 10 seconds.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// ─── Client ───────────────────────────────────────────────────────────────────

// Client is the admin API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the admin server at baseURL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ─── Public types ─────────────────────────────────────────────────────────────

// HealthInfo is the decoded /health response.
type HealthInfo struct {
	Status   string
	PeerID   uint32
	Instance string
	Peers    int
	Resent   uint64
	Uptime   time.Duration
}

// PeerInfo is one entry of /peers.
type PeerInfo struct {
	ID              uint32
	JoinedAt        time.Time
	Quality         float64
	MissingMessages uint64
	Requests        uint64
	LastLossAt      time.Time
}

// Event is one recorded event.
type Event struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
	Peer   uint32    `json:"peer"`
	MsgID  uint64    `json:"msg_id"`
	Detail string    `json:"detail,omitempty"`
}

// EventPage is the decoded /events response.
type EventPage struct {
	Events []Event `json:"events"`
	Total  uint64  `json:"total"`
}

// LogStats is the occupancy of one message log.
type LogStats struct {
	Name          string
	Received      int
	Sent          int
	Indexed       int
	ReceivedLimit int
	SentLimit     int
	SentMapLimit  int
}

// ─── Endpoints ────────────────────────────────────────────────────────────────

// Health checks the server's /health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var resp struct {
		Status   string `json:"status"`
		PeerID   uint32 `json:"peer_id"`
		Instance string `json:"instance"`
		Peers    int    `json:"peers"`
		Resent   uint64 `json:"resent"`
		UptimeMs int64  `json:"uptime_ms"`
	}
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &HealthInfo{
		Status:   resp.Status,
		PeerID:   resp.PeerID,
		Instance: resp.Instance,
		Peers:    resp.Peers,
		Resent:   resp.Resent,
		Uptime:   time.Duration(resp.UptimeMs) * time.Millisecond,
	}, nil
}

// Peers returns every known peer with its link quality, sorted by id.
func (c *Client) Peers(ctx context.Context) ([]*PeerInfo, error) {
	var resp []wirePeer
	if err := c.get(ctx, "/peers", &resp); err != nil {
		return nil, err
	}
	out := make([]*PeerInfo, len(resp))
	for i, p := range resp {
		out[i] = &PeerInfo{
			ID:              p.ID,
			JoinedAt:        time.UnixMilli(p.JoinedAt).UTC(),
			Quality:         p.Quality.Quality,
			MissingMessages: p.Quality.MissingMessages,
			Requests:        p.Quality.Requests,
			LastLossAt:      p.Quality.LastLossAt,
		}
	}
	return out, nil
}

// Events returns up to limit of the newest retained events of kind. An empty
// kind matches every event; limit <= 0 uses the server default.
func (c *Client) Events(ctx context.Context, kind string, limit int) (*EventPage, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page EventPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Logs returns the occupancy of every message log the server exposes.
func (c *Client) Logs(ctx context.Context) ([]*LogStats, error) {
	var resp struct {
		Logs []struct {
			Name  string `json:"name"`
			Stats struct {
				Received      int `json:"received"`
				Sent          int `json:"sent"`
				Indexed       int `json:"indexed"`
				ReceivedLimit int `json:"received_limit"`
				SentLimit     int `json:"sent_limit"`
				SentMapLimit  int `json:"sent_map_limit"`
			} `json:"stats"`
		} `json:"logs"`
	}
	if err := c.get(ctx, "/log", &resp); err != nil {
		return nil, err
	}
	out := make([]*LogStats, len(resp.Logs))
	for i, l := range resp.Logs {
		out[i] = &LogStats{
			Name:          l.Name,
			Received:      l.Stats.Received,
			Sent:          l.Stats.Sent,
			Indexed:       l.Stats.Indexed,
			ReceivedLimit: l.Stats.ReceivedLimit,
			SentLimit:     l.Stats.SentLimit,
			SentMapLimit:  l.Stats.SentMapLimit,
		}
	}
	return out, nil
}

// ─── HTTP transport ───────────────────────────────────────────────────────────

// get performs a single GET request and decodes the JSON response into resp.
func (c *Client) get(ctx context.Context, path string, resp any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("seqrelay: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("seqrelay: request GET %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("seqrelay: read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = http.StatusText(httpResp.StatusCode)
		}
		return &APIError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	if resp != nil && len(body) > 0 {
		if err := json.Unmarshal(body, resp); err != nil {
			return fmt.Errorf("seqrelay: decode response: %w", err)
		}
	}
	return nil
}

// ─── Internal wire types ──────────────────────────────────────────────────────

type wirePeer struct {
	ID       uint32 `json:"id"`
	JoinedAt int64  `json:"joined_at"`
	Quality  struct {
		Quality         float64   `json:"quality"`
		MissingMessages uint64    `json:"missing_messages"`
		Requests        uint64    `json:"requests"`
		LastLossAt      time.Time `json:"last_loss_at"`
	} `json:"quality"`
}
