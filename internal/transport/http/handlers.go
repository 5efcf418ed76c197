package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/quality"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// maxEventsLimit caps ?limit= on /events.
const maxEventsLimit = 1_000

// Handler groups the admin request handlers.
type Handler struct {
	deps    Deps
	started time.Time
}

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type healthResp struct {
	Status   string `json:"status"`
	PeerID   uint32 `json:"peer_id,omitempty"`
	Instance string `json:"instance,omitempty"`
	Peers    int    `json:"peers"`
	Resent   uint64 `json:"resent"`
	Uptime   string `json:"uptime"`
	UptimeMs int64  `json:"uptime_ms"`
}

type peerResp struct {
	ID       types.PeerID     `json:"id"`
	JoinedAt int64            `json:"joined_at"`
	Quality  quality.Snapshot `json:"quality"`
}

type eventsResp struct {
	Events []eventlog.Event `json:"events"`
	Total  uint64           `json:"total"` // lifetime count for the kind, including evicted events
}

type logEntry struct {
	Name  string       `json:"name"`
	Stats msglog.Stats `json:"stats"`
}

type logResp struct {
	Logs []logEntry `json:"logs"`
}

// ─── Health ───────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	elapsed := h.deps.Clock.Since(h.started)
	resp := healthResp{
		Status:   "ok",
		Peers:    h.deps.Peers.Len(),
		Resent:   h.deps.Metrics.ResentMessages(),
		Uptime:   elapsed.Round(time.Second).String(),
		UptimeMs: elapsed.Milliseconds(),
	}
	if n := h.deps.Node; n != nil {
		resp.PeerID = uint32(n.PeerID())
		resp.Instance = n.Instance().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Peers ────────────────────────────────────────────────────────────────────

func (h *Handler) listPeers(w http.ResponseWriter, _ *http.Request) {
	now := h.deps.Clock.Now()
	states := h.deps.Peers.List()
	out := make([]peerResp, 0, len(states))
	for _, st := range states {
		out = append(out, peerResp{
			ID:       st.ID,
			JoinedAt: st.JoinedAt,
			Quality:  st.Quality.Snapshot(now),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := eventlog.Kind(q.Get("kind"))
	switch kind {
	case "", eventlog.KindMessageNotInLog, eventlog.KindKeyConflict:
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown event kind"))
		return
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxEventsLimit)
	}

	writeJSON(w, http.StatusOK, eventsResp{
		Events: h.deps.Events.List(kind, limit),
		Total:  h.deps.Events.Count(kind),
	})
}

// ─── Message logs ─────────────────────────────────────────────────────────────

func (h *Handler) logStats(w http.ResponseWriter, _ *http.Request) {
	out := logResp{Logs: make([]logEntry, 0, len(h.deps.Logs))}
	for name, l := range h.deps.Logs {
		out.Logs = append(out.Logs, logEntry{Name: name, Stats: l.Stats()})
	}
	sort.Slice(out.Logs, func(i, j int) bool { return out.Logs[i].Name < out.Logs[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
