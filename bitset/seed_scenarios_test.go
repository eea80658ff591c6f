package bitset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// These tests pin down the seed scenarios from the design notes (S1-S7):
// concrete, literal sequences every implementation of this structure must
// get right regardless of how its internals are organized.

func rangeUint64(lo, hi uint64) []uint64 {
	out := make([]uint64, 0, hi-lo+1)
	for x := lo; x <= hi; x++ {
		out = append(out, x)
	}
	return out
}

// S1. INSERT k 1 5 10 -> 3; COUNT k -> 3; GET k 5 -> 1; GET k 7 -> 0.
func TestS1BasicInsertAndGet(t *testing.T) {
	h := New()
	n, err := h.InsertMany([]uint64{1, 5, 10})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, h.Count())

	ok, err := h.Contains(5)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Contains(7)
	assert.NoError(t, err)
	assert.False(t, ok)
}

// S2. INSERT k 1 2 3 4; REMOVE k 2 5 -> 1; COUNT k -> 3; GET k 2 -> 0.
func TestS2RemoveOnlyCountsActualHits(t *testing.T) {
	h := New()
	_, err := h.InsertMany([]uint64{1, 2, 3, 4})
	assert.NoError(t, err)

	n, err := h.RemoveMany([]uint64{2, 5})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, h.Count())

	ok, err := h.Contains(2)
	assert.NoError(t, err)
	assert.False(t, ok)
}

// S3. Node16 compaction: filling one whole cluster (256 contiguous values)
// while the global min/max sit in other clusters collapses that cluster
// into a single "filled" bit -- total_clusters drops to 0. Removing one
// element from inside the filled range brings it back out as a single
// resident (partial) cluster.
func TestS3Node16ClusterCompaction(t *testing.T) {
	h := New()
	_, err := h.Insert(0) // global min, cluster 0
	assert.NoError(t, err)
	_, err = h.InsertMany(rangeUint64(256, 511)) // all of cluster 1
	assert.NoError(t, err)
	_, err = h.Insert(600) // global max, cluster 2
	assert.NoError(t, err)

	assert.Equal(t, VariantNode16, h.Variant())
	assert.Equal(t, 0, h.Info().TotalClusters)

	removed, err := h.Remove(261)
	assert.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, 1, h.Info().TotalClusters)
	ok, err := h.Contains(261)
	assert.NoError(t, err)
	assert.False(t, ok)
}

// S4. Node32 analogous: filling an entire node16-wide cluster (65536
// contiguous values) with the global min in a lower cluster and the global
// max in a higher one also drives total_clusters to 0.
func TestS4Node32ClusterCompaction(t *testing.T) {
	if testing.Short() {
		t.Skip("fills a full 65536-element cluster; skipped in -short")
	}
	h := New()
	_, err := h.Insert(0)
	assert.NoError(t, err)
	_, err = h.InsertMany(rangeUint64(3<<16, 4<<16-1))
	assert.NoError(t, err)
	_, err = h.Insert(5 << 16)
	assert.NoError(t, err)

	assert.Equal(t, VariantNode32, h.Variant())
	assert.Equal(t, 0, h.Info().TotalClusters)
}

// S5. Set algebra over small operands.
func TestS5SetAlgebraSmallOperands(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{1, 2, 3, 4})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{3, 4, 5, 6})
	assert.NoError(t, err)

	u := New()
	size := MergeInto(u, OpOR, []*Handle{s1, s2})
	assert.Equal(t, uint64(1), size)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, u.ToArray())

	i := New()
	MergeInto(i, OpAND, []*Handle{s1, s2})
	assert.Equal(t, []uint64{3, 4}, i.ToArray())

	d := New()
	MergeInto(d, OpXOR, []*Handle{s1, s2})
	assert.Equal(t, []uint64{1, 2, 5, 6}, d.ToArray())
}

// S6. Large values exercise the node64 root directly.
func TestS6LargeValueSuccessorPredecessor(t *testing.T) {
	h := New()
	n, err := h.InsertMany([]uint64{1<<31 - 1, 1 << 31, 1<<32 - 1, 1 << 32, MaxElement})
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	succ, ok, err := h.Successor(1 << 32)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, MaxElement, succ)

	pred, ok, err := h.Predecessor(1 << 32)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1<<32-1), pred)
}

// S7. Persistence round-trip.
func TestS7SerializeReloadRoundTrip(t *testing.T) {
	h := New()
	_, err := h.InsertMany(rangeUint64(0, 19999))
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, h.Serialize(&buf))

	reloaded, err := Deserialize(&buf)
	assert.NoError(t, err)

	ok, err := reloaded.Contains(42)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20000, reloaded.Count())
}
