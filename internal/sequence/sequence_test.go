package sequence_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehjoshi/seqrelay/internal/sequence"
)

func TestProvider_Global(t *testing.T) {
	p, err := sequence.NewProvider(sequence.Global)
	require.NoError(t, err)

	assert.False(t, p.ResolveEveryClientMessage())
	assert.Equal(t, uint64(1), p.Next(2))
	assert.Equal(t, uint64(2), p.Next(3))
	assert.Equal(t, uint64(3), p.Next(2))
}

func TestProvider_PerPeer(t *testing.T) {
	p, err := sequence.NewProvider(sequence.PerPeer)
	require.NoError(t, err)

	assert.True(t, p.ResolveEveryClientMessage())
	assert.Equal(t, uint64(1), p.Next(2))
	assert.Equal(t, uint64(1), p.Next(3))
	assert.Equal(t, uint64(2), p.Next(2))
}

func TestProvider_UnknownNumbering(t *testing.T) {
	_, err := sequence.NewProvider("sometimes")
	assert.Error(t, err)
}

func TestProvider_ConcurrentNextIsUnique(t *testing.T) {
	p, err := sequence.NewProvider(sequence.Global)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := p.Next(1)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestTracker_GapsAndDuplicates(t *testing.T) {
	tr := sequence.NewTracker()

	for _, id := range []uint64{1, 2, 4, 7} {
		assert.False(t, tr.Observe(9, id))
	}
	assert.True(t, tr.Observe(9, 4), "second arrival is a duplicate")
	assert.True(t, tr.Observe(9, 0), "id 0 is never valid")

	assert.Equal(t, []uint64{3, 5, 6}, tr.Missing(9))
	assert.Equal(t, 4, tr.Delivered(9))

	tr.Observe(9, 5)
	assert.Equal(t, []uint64{3, 6}, tr.Missing(9))
}

func TestTracker_ExpectExposesTrailingLoss(t *testing.T) {
	tr := sequence.NewTracker()
	tr.Observe(1, 1)
	assert.Empty(t, tr.Missing(1))

	tr.Expect(1, 3)
	assert.Equal(t, []uint64{2, 3}, tr.Missing(1))

	tr.Expect(1, 2)
	assert.Equal(t, []uint64{2, 3}, tr.Missing(1), "expect never lowers the horizon")
}

func TestTracker_SendersAreIndependent(t *testing.T) {
	tr := sequence.NewTracker()
	tr.Observe(1, 2)
	tr.Observe(2, 1)

	assert.Equal(t, []uint64{1}, tr.Missing(1))
	assert.Empty(t, tr.Missing(2))
	assert.Nil(t, tr.Missing(3))
	assert.Zero(t, tr.Delivered(3))
}
