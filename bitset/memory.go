package bitset

// Heuristic byte costs used only for the INFO allocated_bytes field; these
// are not exact (no unsafe.Sizeof, no allocator overhead), just a stable
// approximation that grows with the number of live nodes.
const (
	node8Bytes     = int64(32) // [4]uint64
	node16FixedCost = int64(16) // min, max, count, clusters pointer
	node32FixedCost = int64(24)
	node64FixedCost = int64(32)
	ctSlotOverhead  = int64(24) // key + pointer + state, per resident entry
)

func node16Bytes(n *node16) int64 {
	if n == nil {
		return 0
	}
	total := node16FixedCost + node8Bytes*2 // summary + filled
	if n.clusters != nil {
		n.clusters.each(func(_ uint8, c *node8) {
			total += node8Bytes + ctSlotOverhead
		})
	}
	return total
}

func node32Bytes(n *node32) int64 {
	if n == nil {
		return 0
	}
	total := node32FixedCost + node16Bytes(&n.summary) + node16Bytes(&n.filled)
	if n.clusters != nil {
		n.clusters.each(func(_ uint16, c *node16) {
			total += node16Bytes(c) + ctSlotOverhead
		})
	}
	return total
}

func node64Bytes(n *node64) int64 {
	if n == nil {
		return 0
	}
	total := node64FixedCost + node32Bytes(&n.summary) + node32Bytes(&n.filled)
	if n.clusters != nil {
		n.clusters.each(func(_ uint32, c *node32) {
			total += node32Bytes(c) + ctSlotOverhead
		})
	}
	return total
}
