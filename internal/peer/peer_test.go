package peer_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehjoshi/seqrelay/internal/peer"
	"github.com/snehjoshi/seqrelay/internal/quality"
	"github.com/snehjoshi/seqrelay/internal/types"
)

func newTable() *peer.Table {
	return peer.NewTable(quality.Config{PenaltyPerMessage: 0.1, Floor: 0})
}

func TestTable_EnsureIsIdempotent(t *testing.T) {
	tbl := newTable()

	a := tbl.Ensure(3)
	b := tbl.Ensure(3)
	assert.Same(t, a, b)
	assert.Equal(t, 1, tbl.Len())
	assert.NotNil(t, a.Quality)
	assert.NotZero(t, a.JoinedAt)
}

func TestTable_GetByID_Unknown(t *testing.T) {
	tbl := newTable()
	st, ok := tbl.GetByID(42)
	assert.False(t, ok)
	assert.Nil(t, st)
	assert.Zero(t, tbl.Len(), "lookups never create peers")
}

func TestTable_EstimatorsArePerPeer(t *testing.T) {
	tbl := newTable()
	a := tbl.Ensure(1)
	b := tbl.Ensure(2)

	now := time.Now()
	a.Quality.RequestedMissingMessages(5, now)

	assert.InDelta(t, 0.5, a.Quality.Quality(now), 1e-9)
	assert.Equal(t, 1.0, b.Quality.Quality(now))
}

func TestTable_Remove(t *testing.T) {
	tbl := newTable()
	tbl.Ensure(1)

	require.NoError(t, tbl.Remove(1))
	_, ok := tbl.GetByID(1)
	assert.False(t, ok)

	err := tbl.Remove(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, peer.ErrNotFound))
}

func TestTable_ListSortedByID(t *testing.T) {
	tbl := newTable()
	for _, id := range []types.PeerID{9, 2, 5} {
		tbl.Ensure(id)
	}

	list := tbl.List()
	require.Len(t, list, 3)
	assert.Equal(t, types.PeerID(2), list[0].ID)
	assert.Equal(t, types.PeerID(5), list[1].ID)
	assert.Equal(t, types.PeerID(9), list[2].ID)
}

func TestTable_ConcurrentEnsure(t *testing.T) {
	tbl := newTable()

	var wg sync.WaitGroup
	states := make([]*peer.State, 16)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = tbl.Ensure(7)
		}(i)
	}
	wg.Wait()

	for _, st := range states {
		assert.Same(t, states[0], st)
	}
	assert.Equal(t, 1, tbl.Len())
}
