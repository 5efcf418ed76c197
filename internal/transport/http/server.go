// Package http provides the admin HTTP surface of SeqRelay.
//
// Routes (Go 1.22+ method-qualified patterns):
//
//	GET /health
//	GET /metrics
//	GET /peers
//	GET /events?kind=&limit=
//	GET /log
//	GET /events/ws
//
// Every route is read-only. The surface exists for operators; peers never
// talk to it.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/snehjoshi/seqrelay/internal/config"
	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/metrics"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/node"
	"github.com/snehjoshi/seqrelay/internal/peer"
	transportws "github.com/snehjoshi/seqrelay/internal/transport/websocket"
)

// Deps are the read-only views the admin surface serves. Metrics, Peers and
// Events are required; Node and Logs may be nil.
type Deps struct {
	Node    *node.Node
	Metrics *metrics.Registry
	Peers   *peer.Table
	Events  *eventlog.Memory
	// Logs maps a session name to its message log.
	Logs  map[string]*msglog.Log
	Clock clock.Clock
}

// Server wraps the stdlib HTTP server with SeqRelay route wiring.
type Server struct {
	inner *http.Server
}

// New builds a Server. The caller is responsible for calling
// ListenAndServe / Shutdown.
func New(cfg config.AdminConfig, d Deps) *Server {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	h := &Handler{deps: d, started: d.Clock.Now()}
	ws := &transportws.Handler{Events: d.Events}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", d.Metrics.Handler())
	mux.HandleFunc("GET /peers", h.listPeers)
	mux.HandleFunc("GET /events", h.listEvents)
	mux.HandleFunc("GET /log", h.logStats)
	mux.Handle("GET /events/ws", ws)

	// Build middleware chain: logging → rate-limit
	mw := []func(http.Handler) http.Handler{LoggingMiddleware(d.Metrics)}
	if cfg.RateLimitRPS > 0 {
		mw = append(mw, RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	return &Server{
		inner: &http.Server{
			Handler:     chain(mux, mw...),
			ReadTimeout: 15 * time.Second,
			// No WriteTimeout: /events/ws connections are long lived.
			IdleTimeout: 120 * time.Second,
		},
	}
}

// Handler returns the composed http.Handler (useful for testing).
func (s *Server) Handler() http.Handler { return s.inner.Handler }

// ListenAndServe starts the server on the given address (e.g. ":8090").
// It returns when the server stops or encounters an error.
func (s *Server) ListenAndServe(addr string) error {
	s.inner.Addr = addr
	return s.inner.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
