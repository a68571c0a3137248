package dedup

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryReserveOnce(t *testing.T) {
	tr := NewTracker()

	require.True(t, tr.TryReserve("sig-a", "mint-x"))
	require.False(t, tr.TryReserve("sig-a", "mint-x"))
	require.True(t, tr.TryReserve("sig-b", "mint-x"))
}

func TestTryReserveDistinguishesMintWithinSameSignature(t *testing.T) {
	tr := NewTracker()

	// Same signature paired with a different mint is a distinct
	// fingerprint; the pair is what's deduplicated, not the bare
	// signature.
	require.True(t, tr.TryReserve("sig-a", "mint-x"))
	require.True(t, tr.TryReserve("sig-a", "mint-y"))
}

func TestOrderedSetEvictsOldestHalf(t *testing.T) {
	s := newOrderedSet(10)
	for i := 0; i < 10; i++ {
		s.insert(strconv.Itoa(i))
	}
	require.Equal(t, 10, s.len())

	s.insert("overflow")
	require.Equal(t, 6, s.len())

	for i := 0; i < 5; i++ {
		require.False(t, s.contains(strconv.Itoa(i)), "oldest entries should have been evicted")
	}
	for i := 5; i < 10; i++ {
		require.True(t, s.contains(strconv.Itoa(i)), "newer entries should survive eviction")
	}
	require.True(t, s.contains("overflow"))
}

func TestProcessedCount(t *testing.T) {
	tr := NewTracker()
	tr.TryReserve("sig-1", "mint-a")
	tr.TryReserve("sig-2", "mint-b")

	require.Equal(t, 2, tr.ProcessedCount())
}
