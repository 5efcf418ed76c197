// Package websocket pushes recorded events to operators as they happen.
//
// Clients open a WebSocket connection to:
//
//	GET /events/ws[?after=<event id>]
//
// The server polls the in-memory event log every 200 ms and pushes every
// event newer than the last one sent. Event ids are ULIDs, so "newer" is a
// plain string comparison. A client that reconnects with ?after=<last id>
// resumes without gaps as long as the events are still retained.
//
// Server → client frame:
//
//	{"type":"event","event":{"id":"<ULID>","kind":"requested_message_not_in_log","at":"...","peer":2,"msg_id":7,"detail":"..."}}
//
// The server ignores anything the client sends; reads only detect closure.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
)

const (
	defaultInterval = 200 * time.Millisecond
	writeWait       = 5 * time.Second
)

var upgrader = gorillaws.Upgrader{
	// CheckOrigin rejects cross-origin upgrade requests. A request is
	// same-origin when its Origin host matches the Host header. Requests
	// without an Origin header (native clients, curl) are always allowed.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host, err := parseHost(origin)
		if err != nil {
			return false
		}
		return host == r.Host
	},
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
}

// parseHost returns the host:port (or just host) portion of a URL string.
func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", rawURL)
	}
	return u.Host, nil
}

// Handler serves the event stream.
type Handler struct {
	Events *eventlog.Memory
	// Interval between polls; zero means 200 ms.
	Interval time.Duration
}

// Frame is the JSON structure the server sends to the client.
type Frame struct {
	Type  string         `json:"type"` // "event"
	Event eventlog.Event `json:"event"`
}

// ServeHTTP upgrades the connection and starts the push loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("after")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Reader goroutine: its only job is to notice when the client goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := h.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Push first so a client connecting with a cursor gets the backlog
		// without waiting for the first tick.
		for _, e := range h.Events.Since(cursor) {
			data, err := json.Marshal(Frame{Type: "event", Event: e})
			if err != nil {
				slog.Error("ws encode event failed", "id", e.ID, "err", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(gorillaws.TextMessage, data); err != nil {
				return
			}
			cursor = e.ID
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
