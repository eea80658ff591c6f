package bitset

// node16 is a recursive node over [0, 2^16), used both as the root shape for
// elements up to 65535 and as the summary/filled/cluster type of node32.
//
// count == 0 means the node represents the empty set. count == 1 means min
// == max and there is no child structure at all -- the aside optimization
// degenerates cleanly to a bare pair of equal sentinels. Only once count
// reaches 2 do summary/filled/clusters start to matter.
type node16 struct {
	min, max uint16
	count    int
	summary  node8
	filled   node8
	clusters *clusterTable[uint8, *node8]
}

func hiLo16(x uint16) (hi, lo uint8) {
	return uint8(x >> 8), uint8(x)
}

func (n *node16) isEmpty() bool { return n.count == 0 }
func (n *node16) isFull() bool  { return n.count == 1<<16 }

func (n *node16) clone() *node16 {
	c := &node16{min: n.min, max: n.max, count: n.count, summary: n.summary, filled: n.filled}
	if n.clusters != nil {
		c.clusters = newClusterTable[uint8, *node8]()
		n.clusters.each(func(k uint8, v *node8) {
			cv := *v
			c.clusters.set(k, &cv)
		})
	}
	return c
}

func (n *node16) contains(x uint16) bool {
	if n.count == 0 {
		return false
	}
	if x == n.min || x == n.max {
		return true
	}
	if n.count < 2 {
		return false
	}
	hi, lo := hiLo16(x)
	if n.filled.contains(hi) {
		return true
	}
	if n.clusters != nil {
		if c, ok := n.clusters.get(hi); ok {
			return c.contains(lo)
		}
	}
	return false
}

func (n *node16) insert(x uint16) bool {
	switch n.count {
	case 0:
		n.min, n.max = x, x
		n.count = 1
		return true
	case 1:
		if x == n.min {
			return false
		}
		if x < n.min {
			n.min = x
		} else {
			n.max = x
		}
		n.count = 2
		return true
	}

	if x == n.min || x == n.max {
		return false
	}
	if x < n.min {
		x, n.min = n.min, x
	} else if x > n.max {
		x, n.max = n.max, x
	}

	hi, lo := hiLo16(x)
	if n.filled.contains(hi) {
		return false
	}
	if n.clusters == nil {
		n.clusters = newClusterTable[uint8, *node8]()
	}
	child, ok := n.clusters.get(hi)
	if !ok {
		child = &node8{}
		n.clusters.set(hi, child)
		n.summary.insert(hi)
	}
	if !child.insert(lo) {
		return false
	}
	n.count++
	if child.isFull() {
		n.clusters.delete(hi)
		n.filled.insert(hi)
	}
	return true
}

func (n *node16) remove(x uint16) bool {
	if n.count == 0 {
		return false
	}
	if n.count == 1 {
		if x == n.min {
			n.count = 0
			return true
		}
		return false
	}

	hasChildren := n.summary.count() > 0

	if x == n.min {
		if !hasChildren {
			n.min = n.max
			n.count--
			return true
		}
		n.min = n.removeMinPromote()
		n.count--
		return true
	}
	if x == n.max {
		if !hasChildren {
			n.max = n.min
			n.count--
			return true
		}
		n.max = n.removeMaxPromote()
		n.count--
		return true
	}

	hi, lo := hiLo16(x)
	if n.filled.contains(hi) {
		c := fullNode8()
		c.remove(lo)
		n.filled.remove(hi)
		if n.clusters == nil {
			n.clusters = newClusterTable[uint8, *node8]()
		}
		n.clusters.set(hi, &c)
		n.count--
		return true
	}
	if n.clusters == nil {
		return false
	}
	child, ok := n.clusters.get(hi)
	if !ok {
		return false
	}
	if !child.remove(lo) {
		return false
	}
	n.count--
	if child.isEmpty() {
		n.clusters.delete(hi)
		n.summary.remove(hi)
	}
	return true
}

// removeMinPromote materializes and returns the new minimum, assuming the
// node has at least one child (resident or filled).
func (n *node16) removeMinPromote() uint16 {
	i, _ := n.summary.min()
	if n.filled.contains(i) {
		c := fullNode8()
		c.remove(0)
		n.filled.remove(i)
		if n.clusters == nil {
			n.clusters = newClusterTable[uint8, *node8]()
		}
		n.clusters.set(i, &c)
		return uint16(i) << 8
	}
	child, _ := n.clusters.get(i)
	lo, _ := child.min()
	child.remove(lo)
	if child.isEmpty() {
		n.clusters.delete(i)
		n.summary.remove(i)
	}
	return uint16(i)<<8 | uint16(lo)
}

func (n *node16) removeMaxPromote() uint16 {
	i, _ := n.summary.max()
	if n.filled.contains(i) {
		c := fullNode8()
		c.remove(0xFF)
		n.filled.remove(i)
		if n.clusters == nil {
			n.clusters = newClusterTable[uint8, *node8]()
		}
		n.clusters.set(i, &c)
		return uint16(i)<<8 | 0xFF
	}
	child, _ := n.clusters.get(i)
	hi, _ := child.max()
	child.remove(hi)
	if child.isEmpty() {
		n.clusters.delete(i)
		n.summary.remove(i)
	}
	return uint16(i)<<8 | uint16(hi)
}

func (n *node16) successor(x uint16) (uint16, bool) {
	if n.count == 0 {
		return 0, false
	}
	if x < n.min {
		return n.min, true
	}
	if x >= n.max {
		return 0, false
	}
	hi, lo := hiLo16(x)
	if n.filled.contains(hi) && lo != 0xFF {
		return uint16(hi)<<8 | uint16(lo+1), true
	}
	if n.clusters != nil {
		if c, ok := n.clusters.get(hi); ok {
			if s, ok2 := c.successor(lo); ok2 {
				return uint16(hi)<<8 | uint16(s), true
			}
		}
	}
	if j, ok := n.summary.successor(hi); ok {
		if n.filled.contains(j) {
			return uint16(j) << 8, true
		}
		c, _ := n.clusters.get(j)
		m, _ := c.min()
		return uint16(j)<<8 | uint16(m), true
	}
	return n.max, true
}

func (n *node16) predecessor(x uint16) (uint16, bool) {
	if n.count == 0 {
		return 0, false
	}
	if x > n.max {
		return n.max, true
	}
	if x <= n.min {
		return 0, false
	}
	hi, lo := hiLo16(x)
	if n.filled.contains(hi) && lo != 0 {
		return uint16(hi)<<8 | uint16(lo-1), true
	}
	if n.clusters != nil {
		if c, ok := n.clusters.get(hi); ok {
			if p, ok2 := c.predecessor(lo); ok2 {
				return uint16(hi)<<8 | uint16(p), true
			}
		}
	}
	if j, ok := n.summary.predecessor(hi); ok {
		if n.filled.contains(j) {
			return uint16(j)<<8 | 0xFF, true
		}
		c, _ := n.clusters.get(j)
		m, _ := c.max()
		return uint16(j)<<8 | uint16(m), true
	}
	return n.min, true
}

func (n *node16) countRange(lo, hi uint16) int {
	if n.count == 0 || lo > hi || hi < n.min || lo > n.max {
		return 0
	}
	total := 0
	if n.min >= lo && n.min <= hi {
		total++
	}
	if n.max != n.min && n.max >= lo && n.max <= hi {
		total++
	}
	if n.count < 2 {
		return total
	}

	startIdx, _ := hiLo16(lo)
	idx, ok := firstClusterAtOrAfter8(&n.summary, startIdx)
	for ok {
		clusterLo := uint16(idx) << 8
		clusterHi := clusterLo | 0xFF
		if clusterLo > hi {
			break
		}
		if n.filled.contains(idx) {
			ovLo, ovHi := clusterLo, clusterHi
			if lo > ovLo {
				ovLo = lo
			}
			if hi < ovHi {
				ovHi = hi
			}
			if ovLo <= ovHi {
				total += int(ovHi-ovLo) + 1
			}
		} else if n.clusters != nil {
			if c, ok2 := n.clusters.get(idx); ok2 {
				subLo, subHi := uint8(0), uint8(0xFF)
				if lo > clusterLo {
					subLo = uint8(lo - clusterLo)
				}
				if hi < clusterHi {
					subHi = uint8(hi - clusterLo)
				}
				total += c.countRange(subLo, subHi)
			}
		}
		idx, ok = n.summary.successor(idx)
	}
	return total
}

// appendTo appends every element in ascending order, shifted by base.
func (n *node16) appendTo(dst []uint64, base uint64) []uint64 {
	if n.count == 0 {
		return dst
	}
	dst = append(dst, base+uint64(n.min))
	if n.count >= 2 {
		idx, ok := n.summary.min()
		for ok {
			clusterBase := base + uint64(idx)<<8
			if n.filled.contains(idx) {
				for i := 0; i < 256; i++ {
					dst = append(dst, clusterBase+uint64(i))
				}
			} else if n.clusters != nil {
				if c, ok2 := n.clusters.get(idx); ok2 {
					dst = c.appendTo(dst, clusterBase)
				}
			}
			idx, ok = n.summary.successor(idx)
		}
	}
	if n.max != n.min {
		dst = append(dst, base+uint64(n.max))
	}
	return dst
}

// firstClusterAtOrAfter8 finds the smallest index >= idx present in s, in
// O(log log U) via a single successor probe instead of a linear scan.
func firstClusterAtOrAfter8(s *node8, idx uint8) (uint8, bool) {
	if s.contains(idx) {
		return idx, true
	}
	if idx == 0 {
		return s.min()
	}
	return s.successor(idx - 1)
}

// totalClusters reports the number of resident (partial) clusters held
// directly by this node -- not recursively, and not counting filled ones.
func (n *node16) totalClusters() int {
	if n.clusters == nil {
		return 0
	}
	return n.clusters.Len()
}

