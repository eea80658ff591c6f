package bitset

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sortedKeys returns the keys of a reference set in ascending order.
func sortedKeys(ref map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(ref))
	for k, present := range ref {
		if present {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil // ToArray reports the empty set as nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// assertMatchesReference fully re-derives the bitset's contents and checks
// them against the reference map, element for element.
func assertMatchesReference(t *testing.T, h *Handle, ref map[uint64]bool) {
	t.Helper()
	want := sortedKeys(ref)
	assert.Equal(t, want, h.ToArray())
	assert.Equal(t, len(want), h.Count())
}

// TestPropertyRandomizedAgainstReferenceSet drives a bitset and a plain Go
// map through the same random sequence of insert/remove/get/count/
// successor/predecessor calls and requires the two to agree at every step.
// The universe mixes small, 16-bit, 32-bit and near-2^63 values so the walk
// crosses every width promotion the structure has.
func TestPropertyRandomizedAgainstReferenceSet(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	universes := []uint64{1 << 8, 1 << 16, 1 << 20, 1 << 33, MaxElement}

	h := New()
	ref := make(map[uint64]bool)

	randomValue := func() uint64 {
		u := universes[rng.Intn(len(universes))]
		return uint64(rng.Int63n(int64(u)))
	}

	const iterations = 4000
	for i := 0; i < iterations; i++ {
		switch rng.Intn(5) {
		case 0, 1: // insert, weighted to grow the set
			x := randomValue()
			wantChanged := !ref[x]
			changed, err := h.Insert(x)
			assert.NoError(t, err)
			assert.Equal(t, wantChanged, changed)
			ref[x] = true
		case 2: // remove
			x := randomValue()
			wantChanged := ref[x]
			changed, err := h.Remove(x)
			assert.NoError(t, err)
			assert.Equal(t, wantChanged, changed)
			delete(ref, x)
		case 3: // contains
			x := randomValue()
			ok, err := h.Contains(x)
			assert.NoError(t, err)
			assert.Equal(t, ref[x], ok)
		case 4: // successor/predecessor against a brute-force scan of ref
			x := randomValue()
			wantSucc, wantSuccOk := bruteSuccessor(ref, x)
			gotSucc, gotSuccOk, err := h.Successor(x)
			assert.NoError(t, err)
			assert.Equal(t, wantSuccOk, gotSuccOk)
			if wantSuccOk {
				assert.Equal(t, wantSucc, gotSucc)
			}

			wantPred, wantPredOk := brutePredecessor(ref, x)
			gotPred, gotPredOk, err := h.Predecessor(x)
			assert.NoError(t, err)
			assert.Equal(t, wantPredOk, gotPredOk)
			if wantPredOk {
				assert.Equal(t, wantPred, gotPred)
			}
		}

		if i%200 == 0 {
			assertMatchesReference(t, h, ref)
		}
	}
	assertMatchesReference(t, h, ref)
}

func bruteSuccessor(ref map[uint64]bool, x uint64) (uint64, bool) {
	best, found := uint64(0), false
	for k, present := range ref {
		if !present || k <= x {
			continue
		}
		if !found || k < best {
			best, found = k, true
		}
	}
	return best, found
}

func brutePredecessor(ref map[uint64]bool, x uint64) (uint64, bool) {
	best, found := uint64(0), false
	for k, present := range ref {
		if !present || k >= x {
			continue
		}
		if !found || k > best {
			best, found = k, true
		}
	}
	return best, found
}

// TestPropertySetAlgebraAgainstReferenceSets builds random subsets twice
// over, computes AND/OR/XOR on the bitsets, and checks each against the
// equivalent operation over plain Go maps.
func TestPropertySetAlgebraAgainstReferenceSets(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	universes := []uint64{1 << 8, 1 << 16, 1 << 20, 1 << 33}

	for trial := 0; trial < 40; trial++ {
		universe := universes[rng.Intn(len(universes))]
		refA := make(map[uint64]bool)
		refB := make(map[uint64]bool)
		hA, hB := New(), New()

		for i := 0; i < 200; i++ {
			x := uint64(rng.Int63n(int64(universe)))
			refA[x] = true
			_, err := hA.Insert(x)
			assert.NoError(t, err)
		}
		for i := 0; i < 200; i++ {
			x := uint64(rng.Int63n(int64(universe)))
			refB[x] = true
			_, err := hB.Insert(x)
			assert.NoError(t, err)
		}

		orRef := unionRef(refA, refB)
		andRef := intersectRef(refA, refB)
		xorRef := symDiffRef(refA, refB)

		orH, andH, xorH := New(), New(), New()
		MergeInto(orH, OpOR, []*Handle{hA, hB})
		MergeInto(andH, OpAND, []*Handle{hA, hB})
		MergeInto(xorH, OpXOR, []*Handle{hA, hB})

		assert.Equal(t, sortedKeys(orRef), orH.ToArray())
		assert.Equal(t, sortedKeys(andRef), andH.ToArray())
		assert.Equal(t, sortedKeys(xorRef), xorH.ToArray())
	}
}

func unionRef(a, b map[uint64]bool) map[uint64]bool {
	out := make(map[uint64]bool)
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func intersectRef(a, b map[uint64]bool) map[uint64]bool {
	out := make(map[uint64]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func symDiffRef(a, b map[uint64]bool) map[uint64]bool {
	out := make(map[uint64]bool)
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	for k := range b {
		if !a[k] {
			out[k] = true
		}
	}
	return out
}
