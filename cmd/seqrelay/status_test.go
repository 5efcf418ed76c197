package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

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
)

func TestRunStatus(t *testing.T) {
	n, err := node.New(t.TempDir(), 1, "auto")
	require.NoError(t, err)
	l, err := msglog.New(msglog.DefaultConfig())
	require.NoError(t, err)

	peers := peer.NewTable(quality.DefaultConfig())
	peers.Ensure(2).Quality.RequestedMissingMessages(3, time.Now())
	events := eventlog.NewMemory(8)
	events.Add(eventlog.New(eventlog.KindMessageNotInLog, 2, 41, "", time.Now()))

	srv := transphttp.New(config.AdminConfig{}, transphttp.Deps{
		Node:    n,
		Metrics: metrics.New(),
		Peers:   peers,
		Events:  events,
		Logs:    map[string]*msglog.Log{"1": l},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var out bytes.Buffer
	require.NoError(t, runStatus(context.Background(), []string{"--addr", ts.URL}, &out))

	s := out.String()
	assert.Contains(t, s, "peer 1 (instance "+n.Instance().String()+") ok")
	assert.Contains(t, s, "1 requested messages were not in the log")
	assert.Contains(t, s, "msg=41")
	assert.Contains(t, s, "0/1000")
}

func TestRunStatus_Unreachable(t *testing.T) {
	var out bytes.Buffer
	err := runStatus(context.Background(), []string{"--addr", "http://127.0.0.1:1", "--timeout", "50ms"}, &out)
	assert.Error(t, err)
}
