package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehjoshi/seqrelay/internal/config"
	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/metrics"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/node"
	"github.com/snehjoshi/seqrelay/internal/peer"
	"github.com/snehjoshi/seqrelay/internal/quality"
	transphttp "github.com/snehjoshi/seqrelay/internal/transport/http"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

type fixture struct {
	handler http.Handler
	metrics *metrics.Registry
	peers   *peer.Table
	events  *eventlog.Memory
	log     *msglog.Log
	clock   *clock.Mock
}

func newFixture(t *testing.T, admin config.AdminConfig) *fixture {
	t.Helper()
	n, err := node.New(t.TempDir(), 1, "auto")
	require.NoError(t, err)
	l, err := msglog.New(msglog.DefaultConfig())
	require.NoError(t, err)

	f := &fixture{
		metrics: metrics.New(),
		peers:   peer.NewTable(quality.Config{PenaltyPerMessage: 0.1}),
		events:  eventlog.NewMemory(32),
		log:     l,
		clock:   clock.NewMock(),
	}
	srv := transphttp.New(admin, transphttp.Deps{
		Node:    n,
		Metrics: f.metrics,
		Peers:   f.peers,
		Events:  f.events,
		Logs:    map[string]*msglog.Log{"1": l},
		Clock:   f.clock,
	})
	f.handler = srv.Handler()
	return f
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResp(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v), "body: %s", rr.Body.String())
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHTTP_Health(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})
	f.peers.Ensure(2)
	f.metrics.IncResent(2)
	f.clock.Add(90 * time.Second)

	rr := doGet(t, f.handler, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	decodeResp(t, rr, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(1), resp["peer_id"])
	assert.Len(t, resp["instance"], 26)
	assert.Equal(t, float64(1), resp["peers"])
	assert.Equal(t, float64(1), resp["resent"])
	assert.Equal(t, float64(90_000), resp["uptime_ms"])
}

// ─── Peers ────────────────────────────────────────────────────────────────────

func TestHTTP_Peers(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})
	f.peers.Ensure(3).Quality.RequestedMissingMessages(2, f.clock.Now())
	f.peers.Ensure(2)

	rr := doGet(t, f.handler, "/peers")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp []struct {
		ID      types.PeerID     `json:"id"`
		Quality quality.Snapshot `json:"quality"`
	}
	decodeResp(t, rr, &resp)
	require.Len(t, resp, 2)
	assert.Equal(t, types.PeerID(2), resp[0].ID)
	assert.Equal(t, 1.0, resp[0].Quality.Quality)
	assert.Equal(t, types.PeerID(3), resp[1].ID)
	assert.InDelta(t, 0.8, resp[1].Quality.Quality, 1e-9)
	assert.Equal(t, uint64(2), resp[1].Quality.MissingMessages)
}

// ─── Events ───────────────────────────────────────────────────────────────────

func TestHTTP_Events(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})
	for i := 0; i < 5; i++ {
		f.events.Add(eventlog.New(eventlog.KindMessageNotInLog, 2, uint64(i), "", f.clock.Now()))
	}
	f.events.Add(eventlog.New(eventlog.KindKeyConflict, 2, 9, "", f.clock.Now()))

	var resp struct {
		Events []eventlog.Event `json:"events"`
		Total  uint64           `json:"total"`
	}

	rr := doGet(t, f.handler, "/events")
	require.Equal(t, http.StatusOK, rr.Code)
	decodeResp(t, rr, &resp)
	assert.Len(t, resp.Events, 6)
	assert.Equal(t, uint64(6), resp.Total)

	rr = doGet(t, f.handler, "/events?kind=requested_message_not_in_log&limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	decodeResp(t, rr, &resp)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, uint64(4), resp.Events[1].MsgID, "newest events are returned")
	assert.Equal(t, uint64(5), resp.Total)
}

func TestHTTP_Events_BadQuery(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})

	for _, path := range []string{"/events?kind=bogus", "/events?limit=0", "/events?limit=abc"} {
		rr := doGet(t, f.handler, path)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

// ─── Message logs ─────────────────────────────────────────────────────────────

func TestHTTP_LogStats(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})
	require.NoError(t, f.log.AddSent(&types.Message{MsgID: 1, ReceiverID: 2, Mode: types.SequenceNumber}))

	rr := doGet(t, f.handler, "/log")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Logs []struct {
			Name  string       `json:"name"`
			Stats msglog.Stats `json:"stats"`
		} `json:"logs"`
	}
	decodeResp(t, rr, &resp)
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "1", resp.Logs[0].Name)
	assert.Equal(t, 1, resp.Logs[0].Stats.Sent)
	assert.Equal(t, 1_000, resp.Logs[0].Stats.SentMapLimit)
}

// ─── Metrics ──────────────────────────────────────────────────────────────────

func TestHTTP_MetricsIncludeAdminRequests(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})
	doGet(t, f.handler, "/peers")

	rr := doGet(t, f.handler, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "seqrelay_http_requests_total")
}

func TestHTTP_UnknownRoute(t *testing.T) {
	f := newFixture(t, config.AdminConfig{})
	rr := doGet(t, f.handler, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ─── Rate limiting ────────────────────────────────────────────────────────────

func TestHTTP_RateLimit(t *testing.T) {
	f := newFixture(t, config.AdminConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, doGet(t, f.handler, "/health").Code)
	assert.Equal(t, http.StatusOK, doGet(t, f.handler, "/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(t, f.handler, "/health").Code)
}

func TestHTTP_RateLimitPerClientIP(t *testing.T) {
	f := newFixture(t, config.AdminConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, doGet(t, f.handler, "/health").Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-For", "192.0.2.7, 10.0.0.1")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "a different client has its own bucket")
}
