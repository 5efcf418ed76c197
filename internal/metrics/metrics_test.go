package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehjoshi/seqrelay/internal/metrics"
)

func TestRegistry_RecoveryCounters(t *testing.T) {
	reg := metrics.New()

	reg.IncResent(2)
	reg.IncResent(2)
	reg.IncResent(3)
	reg.IncNotFound(2)
	reg.IncRequest(2, 4)
	reg.IncRequest(2, 0)
	reg.IncKeyConflict()

	assert.Equal(t, uint64(3), reg.ResentMessages())

	expected := `
# HELP seqrelay_resent_messages_total Messages retransmitted in answer to a gap-recovery request.
# TYPE seqrelay_resent_messages_total counter
seqrelay_resent_messages_total{peer="2"} 2
seqrelay_resent_messages_total{peer="3"} 1
# HELP seqrelay_recovery_requests_total Gap-recovery requests handled.
# TYPE seqrelay_recovery_requests_total counter
seqrelay_recovery_requests_total{peer="2"} 2
# HELP seqrelay_missing_ids_requested_total Message ids named by gap-recovery requests.
# TYPE seqrelay_missing_ids_requested_total counter
seqrelay_missing_ids_requested_total{peer="2"} 4
# HELP seqrelay_requested_not_found_total Requested message ids that were not in the sent log.
# TYPE seqrelay_requested_not_found_total counter
seqrelay_requested_not_found_total{peer="2"} 1
# HELP seqrelay_sent_key_conflicts_total Outbound messages rejected because their key was bound to a different payload.
# TYPE seqrelay_sent_key_conflicts_total counter
seqrelay_sent_key_conflicts_total 1
`
	err := testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected),
		"seqrelay_resent_messages_total",
		"seqrelay_recovery_requests_total",
		"seqrelay_missing_ids_requested_total",
		"seqrelay_requested_not_found_total",
		"seqrelay_sent_key_conflicts_total",
	)
	require.NoError(t, err)
}

func TestRegistry_RegistriesAreIsolated(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	a.IncResent(1)

	assert.Equal(t, uint64(1), a.ResentMessages())
	assert.Zero(t, b.ResentMessages())
}

func TestRegistry_Handler(t *testing.T) {
	reg := metrics.New()
	reg.IncResent(7)
	reg.ObserveHTTP(http.MethodGet, "/peers", http.StatusOK, 3*time.Millisecond)

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `seqrelay_resent_messages_total{peer="7"} 1`)
	assert.Contains(t, text, `seqrelay_http_requests_total{method="GET",path="/peers",status="200"} 1`)
	assert.Contains(t, text, "seqrelay_http_request_duration_seconds_count")
	assert.Contains(t, text, "go_goroutines")
}
