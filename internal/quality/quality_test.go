package quality_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehjoshi/seqrelay/internal/quality"
)

func TestEstimator_StartsAtFullQuality(t *testing.T) {
	e := quality.New(quality.DefaultConfig())
	assert.Equal(t, 1.0, e.Quality(time.Now()))

	snap := e.Snapshot(time.Now())
	assert.Zero(t, snap.Requests)
	assert.Zero(t, snap.MissingMessages)
	assert.True(t, snap.LastLossAt.IsZero())
}

func TestEstimator_DegradesPerMissingMessage(t *testing.T) {
	clk := clock.NewMock()
	e := quality.New(quality.Config{PenaltyPerMessage: 0.1, RecoveryPerSecond: 0, Floor: 0})

	e.RequestedMissingMessages(3, clk.Now())

	assert.InDelta(t, 0.7, e.Quality(clk.Now()), 1e-9)
	snap := e.Snapshot(clk.Now())
	assert.Equal(t, uint64(1), snap.Requests)
	assert.Equal(t, uint64(3), snap.MissingMessages)
	assert.Equal(t, clk.Now(), snap.LastLossAt)
}

func TestEstimator_RespectsFloor(t *testing.T) {
	clk := clock.NewMock()
	e := quality.New(quality.Config{PenaltyPerMessage: 0.5, Floor: 0.2})

	e.RequestedMissingMessages(100, clk.Now())
	assert.InDelta(t, 0.2, e.Quality(clk.Now()), 1e-9)
}

func TestEstimator_RecoversOverTime(t *testing.T) {
	clk := clock.NewMock()
	e := quality.New(quality.Config{PenaltyPerMessage: 0.1, RecoveryPerSecond: 0.1, Floor: 0})

	e.RequestedMissingMessages(5, clk.Now())
	require.InDelta(t, 0.5, e.Quality(clk.Now()), 1e-9)

	clk.Add(2 * time.Second)
	assert.InDelta(t, 0.7, e.Quality(clk.Now()), 1e-9)

	clk.Add(time.Minute)
	assert.Equal(t, 1.0, e.Quality(clk.Now()), "recovery is capped at 1")
}

func TestEstimator_ZeroCountStillCountsRequest(t *testing.T) {
	clk := clock.NewMock()
	e := quality.New(quality.DefaultConfig())

	e.RequestedMissingMessages(0, clk.Now())

	snap := e.Snapshot(clk.Now())
	assert.Equal(t, uint64(1), snap.Requests)
	assert.Equal(t, 1.0, snap.Quality)
	assert.True(t, snap.LastLossAt.IsZero())
}

func TestEstimator_ConcurrentReports(t *testing.T) {
	clk := clock.NewMock()
	e := quality.New(quality.Config{PenaltyPerMessage: 0.0001, Floor: 0})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.RequestedMissingMessages(1, clk.Now())
			}
		}()
	}
	wg.Wait()

	snap := e.Snapshot(clk.Now())
	assert.Equal(t, uint64(800), snap.Requests)
	assert.Equal(t, uint64(800), snap.MissingMessages)
	assert.InDelta(t, 0.92, snap.Quality, 1e-6)
}
