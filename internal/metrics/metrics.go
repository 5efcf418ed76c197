// Package metrics exposes SeqRelay counters in the Prometheus format.
//
// # Metric families
//
//	seqrelay_resent_messages_total{peer}          messages retransmitted on request
//	seqrelay_requested_not_found_total{peer}      requested ids no longer in the sent log
//	seqrelay_recovery_requests_total{peer}        RequestSeqIds messages handled
//	seqrelay_missing_ids_requested_total{peer}    ids named by those requests
//	seqrelay_sent_key_conflicts_total             outbound messages rejected by a strict log
//	seqrelay_http_requests_total{method,path,status}
//	seqrelay_http_request_duration_seconds{method,path}
//
// Every Registry owns its own prometheus.Registry so tests and multiple
// sessions in one process never collide on global state.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snehjoshi/seqrelay/internal/types"
)

const namespace = "seqrelay"

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry holds all SeqRelay application metrics.
type Registry struct {
	reg *prometheus.Registry

	resent       *prometheus.CounterVec
	notFound     *prometheus.CounterVec
	requests     *prometheus.CounterVec
	missingIDs   *prometheus.CounterVec
	keyConflicts prometheus.Counter

	httpReqs *prometheus.CounterVec
	httpDur  *prometheus.HistogramVec

	// resentTotal mirrors the sum of resent so callers can read the
	// process-wide resend count without gathering.
	resentTotal atomic.Uint64
}

// New returns a Registry with every family registered, plus the Go runtime
// and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		resent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resent_messages_total",
			Help:      "Messages retransmitted in answer to a gap-recovery request.",
		}, []string{"peer"}),
		notFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requested_not_found_total",
			Help:      "Requested message ids that were not in the sent log.",
		}, []string{"peer"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_requests_total",
			Help:      "Gap-recovery requests handled.",
		}, []string{"peer"}),
		missingIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_ids_requested_total",
			Help:      "Message ids named by gap-recovery requests.",
		}, []string{"peer"}),
		keyConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_key_conflicts_total",
			Help:      "Outbound messages rejected because their key was bound to a different payload.",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	r.reg.MustRegister(
		r.resent, r.notFound, r.requests, r.missingIDs, r.keyConflicts,
		r.httpReqs, r.httpDur,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ─── recovery counters ────────────────────────────────────────────────────────

// IncResent counts one message retransmitted to peer.
func (r *Registry) IncResent(peer types.PeerID) {
	r.resent.WithLabelValues(peer.String()).Inc()
	r.resentTotal.Add(1)
}

// ResentMessages returns the total number of retransmitted messages.
func (r *Registry) ResentMessages() uint64 { return r.resentTotal.Load() }

// IncNotFound counts one requested id that could not be served.
func (r *Registry) IncNotFound(peer types.PeerID) {
	r.notFound.WithLabelValues(peer.String()).Inc()
}

// IncRequest counts one gap-recovery request from peer naming n ids.
func (r *Registry) IncRequest(peer types.PeerID, n int) {
	p := peer.String()
	r.requests.WithLabelValues(p).Inc()
	if n > 0 {
		r.missingIDs.WithLabelValues(p).Add(float64(n))
	}
}

// IncKeyConflict counts one outbound message rejected by a strict log.
func (r *Registry) IncKeyConflict() { r.keyConflicts.Inc() }

// ─── HTTP ─────────────────────────────────────────────────────────────────────

// ObserveHTTP records one admin request.
func (r *Registry) ObserveHTTP(method, path string, status int, d time.Duration) {
	r.httpReqs.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDur.WithLabelValues(method, path).Observe(d.Seconds())
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
