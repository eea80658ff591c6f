// Package bitset implements a sparse, ordered set of non-negative integers
// in [0, 2^63) as a recursive van Emde Boas-style tree. Memory is
// proportional to the information content of the set, not the universe: a
// node promotes from Empty through Singleton into successively wider
// recursive shapes (Node8, Node16, Node32, Node64) only as values demand it,
// and dense runs compact into single "filled" bits rather than exploding
// into per-element storage.
//
// The package has no locks and no goroutines; a Handle is meant to be
// driven from a single call path per the host's command loop, the same way
// every other value type in this server is.
package bitset

import "fmt"

// Variant identifies the current internal shape of a Handle.
type Variant uint8

const (
	VariantEmpty Variant = iota
	VariantSingleton
	VariantNode8
	VariantNode16
	VariantNode32
	VariantNode64
)

func (v Variant) String() string {
	switch v {
	case VariantEmpty:
		return "empty"
	case VariantSingleton:
		return "singleton"
	case VariantNode8:
		return "node8"
	case VariantNode16:
		return "node16"
	case VariantNode32:
		return "node32"
	case VariantNode64:
		return "node64"
	default:
		return "unknown"
	}
}

// Handle is the opaque per-key object exposed to the host adapter. The zero
// value is a valid empty bitset.
type Handle struct {
	variant Variant
	single  uint64
	n8      *node8
	n16     *node16
	n32     *node32
	n64     *node64
}

// New returns an empty handle.
func New() *Handle {
	return &Handle{}
}

func (h *Handle) Variant() Variant { return h.variant }

func (h *Handle) Count() int {
	switch h.variant {
	case VariantEmpty:
		return 0
	case VariantSingleton:
		return 1
	case VariantNode8:
		return h.n8.count()
	case VariantNode16:
		return h.n16.count
	case VariantNode32:
		return h.n32.count
	case VariantNode64:
		return h.n64.count
	default:
		return 0
	}
}

func (h *Handle) IsEmpty() bool { return h.variant == VariantEmpty }

// Min returns the lowest element, or ok=false on an empty set.
func (h *Handle) Min() (uint64, bool) {
	switch h.variant {
	case VariantEmpty:
		return 0, false
	case VariantSingleton:
		return h.single, true
	case VariantNode8:
		m, ok := h.n8.min()
		return uint64(m), ok
	case VariantNode16:
		return uint64(h.n16.min), true
	case VariantNode32:
		return uint64(h.n32.min), true
	case VariantNode64:
		return h.n64.min, true
	default:
		return 0, false
	}
}

func (h *Handle) Max() (uint64, bool) {
	switch h.variant {
	case VariantEmpty:
		return 0, false
	case VariantSingleton:
		return h.single, true
	case VariantNode8:
		m, ok := h.n8.max()
		return uint64(m), ok
	case VariantNode16:
		return uint64(h.n16.max), true
	case VariantNode32:
		return uint64(h.n32.max), true
	case VariantNode64:
		return h.n64.max, true
	default:
		return 0, false
	}
}

func (h *Handle) Contains(x uint64) (bool, error) {
	if err := validateElement(x); err != nil {
		return false, err
	}
	switch h.variant {
	case VariantEmpty:
		return false, nil
	case VariantSingleton:
		return x == h.single, nil
	case VariantNode8:
		if x >= 1<<8 {
			return false, nil
		}
		return h.n8.contains(uint8(x)), nil
	case VariantNode16:
		if x >= 1<<16 {
			return false, nil
		}
		return h.n16.contains(uint16(x)), nil
	case VariantNode32:
		if x >= 1<<32 {
			return false, nil
		}
		return h.n32.contains(uint32(x)), nil
	case VariantNode64:
		return h.n64.contains(x), nil
	default:
		return false, nil
	}
}

// Insert adds x and reports whether the set changed.
func (h *Handle) Insert(x uint64) (bool, error) {
	if err := validateElement(x); err != nil {
		return false, err
	}
	switch h.variant {
	case VariantEmpty:
		h.variant = VariantSingleton
		h.single = x
		return true, nil
	case VariantSingleton:
		if x == h.single {
			return false, nil
		}
		lo, hi := h.single, x
		if lo > hi {
			lo, hi = hi, lo
		}
		h.promoteFromSingleton(lo, hi)
		return true, nil
	case VariantNode8:
		if x >= 1<<8 {
			h.promote8to16()
			return h.Insert(x)
		}
		return h.n8.insert(uint8(x)), nil
	case VariantNode16:
		if x >= 1<<16 {
			h.promote16to32()
			return h.Insert(x)
		}
		return h.n16.insert(uint16(x)), nil
	case VariantNode32:
		if x >= 1<<32 {
			h.promote32to64()
			return h.Insert(x)
		}
		return h.n32.insert(uint32(x)), nil
	case VariantNode64:
		return h.n64.insert(x), nil
	default:
		return false, nil
	}
}

// InsertMany inserts every element, validating all of them before mutating
// any: a single bad element fails the whole call with no partial effect.
func (h *Handle) InsertMany(xs []uint64) (int, error) {
	for _, x := range xs {
		if err := validateElement(x); err != nil {
			return 0, err
		}
	}
	added := 0
	for _, x := range xs {
		ok, _ := h.Insert(x)
		if ok {
			added++
		}
	}
	return added, nil
}

// Remove deletes x and reports whether the set changed.
func (h *Handle) Remove(x uint64) (bool, error) {
	if err := validateElement(x); err != nil {
		return false, err
	}
	var changed bool
	switch h.variant {
	case VariantEmpty:
		return false, nil
	case VariantSingleton:
		if x != h.single {
			return false, nil
		}
		h.variant = VariantEmpty
		h.single = 0
		return true, nil
	case VariantNode8:
		if x >= 1<<8 {
			return false, nil
		}
		changed = h.n8.remove(uint8(x))
		if changed {
			h.collapseNode8()
		}
	case VariantNode16:
		if x >= 1<<16 {
			return false, nil
		}
		changed = h.n16.remove(uint16(x))
		h.collapseNode16()
	case VariantNode32:
		if x >= 1<<32 {
			return false, nil
		}
		changed = h.n32.remove(uint32(x))
		h.collapseNode32()
	case VariantNode64:
		changed = h.n64.remove(x)
		h.collapseNode64()
	}
	return changed, nil
}

func (h *Handle) RemoveMany(xs []uint64) (int, error) {
	for _, x := range xs {
		if err := validateElement(x); err != nil {
			return 0, err
		}
	}
	removed := 0
	for _, x := range xs {
		ok, _ := h.Remove(x)
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Set assigns the bit at x to v (0 or 1) and returns the previous value.
func (h *Handle) Set(x uint64, v int) (int, error) {
	if v != 0 && v != 1 {
		return 0, ErrInvalidBit
	}
	was, err := h.Contains(x)
	if err != nil {
		return 0, err
	}
	prev := 0
	if was {
		prev = 1
	}
	if v == 1 && !was {
		h.Insert(x)
	} else if v == 0 && was {
		h.Remove(x)
	}
	return prev, nil
}

// Clear resets the handle to the empty set.
func (h *Handle) Clear() {
	*h = Handle{}
}

func (h *Handle) Successor(x uint64) (uint64, bool, error) {
	if err := validateElement(x); err != nil {
		return 0, false, err
	}
	switch h.variant {
	case VariantEmpty:
		return 0, false, nil
	case VariantSingleton:
		if x < h.single {
			return h.single, true, nil
		}
		return 0, false, nil
	case VariantNode8:
		if x >= 1<<8-1 {
			return 0, false, nil
		}
		s, ok := h.n8.successor(uint8(x))
		return uint64(s), ok, nil
	case VariantNode16:
		s, ok := h.n16.successor(clampTo16(x))
		return uint64(s), ok && uint64(s) > x, nil
	case VariantNode32:
		s, ok := h.n32.successor(clampTo32(x))
		return uint64(s), ok && uint64(s) > x, nil
	case VariantNode64:
		s, ok := h.n64.successor(x)
		return s, ok, nil
	default:
		return 0, false, nil
	}
}

func (h *Handle) Predecessor(x uint64) (uint64, bool, error) {
	if err := validateElement(x); err != nil {
		return 0, false, err
	}
	switch h.variant {
	case VariantEmpty:
		return 0, false, nil
	case VariantSingleton:
		if x > h.single {
			return h.single, true, nil
		}
		return 0, false, nil
	case VariantNode8:
		if x == 0 {
			return 0, false, nil
		}
		if x >= 1<<8 {
			m, ok := h.n8.max()
			return uint64(m), ok, nil
		}
		p, ok := h.n8.predecessor(uint8(x))
		return uint64(p), ok, nil
	case VariantNode16:
		if x == 0 {
			return 0, false, nil
		}
		if x >= 1<<16 {
			return uint64(h.n16.max), true, nil
		}
		p, ok := h.n16.predecessor(clampTo16(x))
		return uint64(p), ok && uint64(p) < x, nil
	case VariantNode32:
		if x == 0 {
			return 0, false, nil
		}
		if x >= 1<<32 {
			return uint64(h.n32.max), true, nil
		}
		p, ok := h.n32.predecessor(clampTo32(x))
		return uint64(p), ok && uint64(p) < x, nil
	case VariantNode64:
		if x == 0 {
			return 0, false, nil
		}
		p, ok := h.n64.predecessor(x)
		return p, ok, nil
	default:
		return 0, false, nil
	}
}

// clampTo16/32 saturate an out-of-width query value so successor/predecessor
// on a narrower root still answer correctly for queries above its universe.
func clampTo16(x uint64) uint16 {
	if x >= 1<<16 {
		return 0xFFFF
	}
	return uint16(x)
}

func clampTo32(x uint64) uint32 {
	if x >= 1<<32 {
		return 0xFFFFFFFF
	}
	return uint32(x)
}

// CountRange reports |S ∩ [lo, hi]|.
func (h *Handle) CountRange(lo, hi uint64) (int, error) {
	if err := validateElement(lo); err != nil {
		return 0, err
	}
	if err := validateElement(hi); err != nil {
		return 0, err
	}
	if lo > hi {
		return 0, nil
	}
	switch h.variant {
	case VariantEmpty:
		return 0, nil
	case VariantSingleton:
		if h.single >= lo && h.single <= hi {
			return 1, nil
		}
		return 0, nil
	case VariantNode8:
		if hi >= 1<<8 {
			hi = 1<<8 - 1
		}
		if lo >= 1<<8 {
			return 0, nil
		}
		return h.n8.countRange(uint8(lo), uint8(hi)), nil
	case VariantNode16:
		if hi >= 1<<16 {
			hi = 1<<16 - 1
		}
		if lo >= 1<<16 {
			return 0, nil
		}
		return h.n16.countRange(uint16(lo), uint16(hi)), nil
	case VariantNode32:
		if hi >= 1<<32 {
			hi = 1<<32 - 1
		}
		if lo >= 1<<32 {
			return 0, nil
		}
		return h.n32.countRange(uint32(lo), uint32(hi)), nil
	case VariantNode64:
		return h.n64.countRange(lo, hi), nil
	default:
		return 0, nil
	}
}

// ToArray returns every element in strictly ascending order.
func (h *Handle) ToArray() []uint64 {
	switch h.variant {
	case VariantEmpty:
		return nil
	case VariantSingleton:
		return []uint64{h.single}
	case VariantNode8:
		return h.n8.appendTo(nil, 0)
	case VariantNode16:
		return h.n16.appendTo(nil, 0)
	case VariantNode32:
		return h.n32.appendTo(nil, 0)
	case VariantNode64:
		return h.n64.appendTo(nil, 0)
	default:
		return nil
	}
}

// BitPos finds the first position p in [start, end] with bit(p) == bit,
// where start defaults to 0 and end defaults to "unbounded" (hasEnd=false).
// Negative start/end count back from the element just past the current
// max, per §4.4 of the design notes: -1 is the position of max itself.
func (h *Handle) BitPos(bit int, hasStart bool, start int64, hasEnd bool, end int64) (int64, error) {
	if bit != 0 && bit != 1 {
		return 0, ErrInvalidBit
	}

	max, hasMax := h.Max()
	if !hasMax {
		if bit == 0 {
			return 0, nil
		}
		return -1, nil
	}

	resolve := func(idx int64, defVal uint64) uint64 {
		if idx < 0 {
			ref := int64(max) + 1 + idx
			if ref < 0 {
				return 0
			}
			return uint64(ref)
		}
		return uint64(idx)
	}

	lo := uint64(0)
	if hasStart {
		lo = resolve(start, 0)
	}
	var hi uint64
	var hiBounded bool
	if hasEnd {
		hi = resolve(end, max)
		hiBounded = true
	}
	if hiBounded && lo > hi {
		return -1, nil
	}
	if lo > MaxElement {
		return -1, nil
	}

	if bit == 1 {
		var found uint64
		var ok bool
		if c, _ := h.Contains(lo); c {
			found, ok = lo, true
		} else if lo == 0 {
			found, ok = h.Min()
		} else {
			found, ok, _ = h.Successor(lo - 1)
		}
		if !ok || (hiBounded && found > hi) {
			return -1, nil
		}
		return int64(found), nil
	}

	pos, ok := h.firstUnsetAtOrAfter(lo)
	if !ok || (hiBounded && pos > hi) {
		return -1, nil
	}
	return int64(pos), nil
}

// firstUnsetAtOrAfter finds the smallest y >= start with !contains(y),
// using exponential search plus binary search over the run of set bits
// starting at start so a long filled cluster costs O(log run) Contains
// probes instead of a linear scan.
func (h *Handle) firstUnsetAtOrAfter(start uint64) (uint64, bool) {
	contains := func(y uint64) bool {
		ok, _ := h.Contains(y)
		return ok
	}
	if !contains(start) {
		return start, true
	}
	lo := start
	hi := start
	step := uint64(1)
	for {
		if hi >= MaxElement {
			return 0, false
		}
		next := hi + step
		if next > MaxElement || next < hi {
			next = MaxElement
		}
		if !contains(next) {
			hi = next
			break
		}
		lo = next
		if next == MaxElement {
			return 0, false
		}
		step *= 2
	}
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if contains(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, true
}

// Info summarizes a handle's internal shape for BITS.INFO.
type Info struct {
	Size            int
	UniverseSize    uint64
	AllocatedBytes  int64
	TotalClusters   int
	MaxDepth        int
	HashTableKind   string
	VariantName     string
}

func (h *Handle) Info() Info {
	info := Info{
		Size:          h.Count(),
		VariantName:   h.variant.String(),
		HashTableKind: "open-addressing-unordered",
	}
	switch h.variant {
	case VariantEmpty:
		info.UniverseSize = 0
		info.MaxDepth = 0
	case VariantSingleton:
		info.UniverseSize = 1
		info.MaxDepth = 0
	case VariantNode8:
		info.UniverseSize = 1 << 8
		info.MaxDepth = 1
		info.AllocatedBytes = int64(node8Bytes)
	case VariantNode16:
		info.UniverseSize = 1 << 16
		info.MaxDepth = 2
		info.TotalClusters = h.n16.totalClusters()
		info.AllocatedBytes = node16Bytes(h.n16)
	case VariantNode32:
		info.UniverseSize = 1 << 32
		info.MaxDepth = 3
		info.TotalClusters = h.n32.totalClusters()
		info.AllocatedBytes = node32Bytes(h.n32)
	case VariantNode64:
		info.UniverseSize = MaxElement + 1
		info.MaxDepth = 4
		info.TotalClusters = h.n64.totalClusters()
		info.AllocatedBytes = node64Bytes(h.n64)
	}
	return info
}

func (h *Handle) String() string {
	return fmt.Sprintf("Handle{variant=%s, size=%d}", h.variant, h.Count())
}
