package bitset

// node64 is the root node for elements in [0, 2^63-1]. It is never used as
// a summary/filled/cluster type itself -- there is no width above it -- so,
// unlike node16/node32, it does not need an isFull/fullNode64 pair: the top
// bit is never validly set (see bitset.MaxElement), so a node64 can never
// represent a fully populated universe and a parent never needs to collapse
// it into a single filled-bit.
type node64 struct {
	min, max uint64
	count    int
	summary  node32
	filled   node32
	clusters *clusterTable[uint32, *node32]
}

func hiLo64(x uint64) (hi, lo uint32) {
	return uint32(x >> 32), uint32(x)
}

func (n *node64) isEmpty() bool { return n.count == 0 }

func (n *node64) clone() *node64 {
	c := &node64{min: n.min, max: n.max, count: n.count, summary: *n.summary.clone(), filled: *n.filled.clone()}
	if n.clusters != nil {
		c.clusters = newClusterTable[uint32, *node32]()
		n.clusters.each(func(k uint32, v *node32) {
			c.clusters.set(k, v.clone())
		})
	}
	return c
}

func (n *node64) contains(x uint64) bool {
	if n.count == 0 {
		return false
	}
	if x == n.min || x == n.max {
		return true
	}
	if n.count < 2 {
		return false
	}
	hi, lo := hiLo64(x)
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

func (n *node64) insert(x uint64) bool {
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

	hi, lo := hiLo64(x)
	if n.filled.contains(hi) {
		return false
	}
	if n.clusters == nil {
		n.clusters = newClusterTable[uint32, *node32]()
	}
	child, ok := n.clusters.get(hi)
	if !ok {
		child = &node32{}
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

func (n *node64) remove(x uint64) bool {
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

	hasChildren := n.summary.count > 0

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

	hi, lo := hiLo64(x)
	if n.filled.contains(hi) {
		c := fullNode32()
		c.remove(lo)
		n.filled.remove(hi)
		if n.clusters == nil {
			n.clusters = newClusterTable[uint32, *node32]()
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

func (n *node64) removeMinPromote() uint64 {
	i, _ := n.summary.min, n.summary.count > 0
	if n.filled.contains(i) {
		c := fullNode32()
		c.remove(0)
		n.filled.remove(i)
		if n.clusters == nil {
			n.clusters = newClusterTable[uint32, *node32]()
		}
		n.clusters.set(i, &c)
		return uint64(i) << 32
	}
	child, _ := n.clusters.get(i)
	loVal := child.min
	child.remove(loVal)
	if child.isEmpty() {
		n.clusters.delete(i)
		n.summary.remove(i)
	}
	return uint64(i)<<32 | uint64(loVal)
}

func (n *node64) removeMaxPromote() uint64 {
	i := n.summary.max
	if n.filled.contains(i) {
		c := fullNode32()
		c.remove(0xFFFFFFFF)
		n.filled.remove(i)
		if n.clusters == nil {
			n.clusters = newClusterTable[uint32, *node32]()
		}
		n.clusters.set(i, &c)
		return uint64(i)<<32 | 0xFFFFFFFF
	}
	child, _ := n.clusters.get(i)
	hiVal := child.max
	child.remove(hiVal)
	if child.isEmpty() {
		n.clusters.delete(i)
		n.summary.remove(i)
	}
	return uint64(i)<<32 | uint64(hiVal)
}

func (n *node64) successor(x uint64) (uint64, bool) {
	if n.count == 0 {
		return 0, false
	}
	if x < n.min {
		return n.min, true
	}
	if x >= n.max {
		return 0, false
	}
	hi, lo := hiLo64(x)
	if n.filled.contains(hi) && lo != 0xFFFFFFFF {
		return uint64(hi)<<32 | uint64(lo+1), true
	}
	if n.clusters != nil {
		if c, ok := n.clusters.get(hi); ok {
			if s, ok2 := c.successor(lo); ok2 {
				return uint64(hi)<<32 | uint64(s), true
			}
		}
	}
	if j, ok := n.summary.successor(hi); ok {
		if n.filled.contains(j) {
			return uint64(j) << 32, true
		}
		c, _ := n.clusters.get(j)
		return uint64(j)<<32 | uint64(c.min), true
	}
	return n.max, true
}

func (n *node64) predecessor(x uint64) (uint64, bool) {
	if n.count == 0 {
		return 0, false
	}
	if x > n.max {
		return n.max, true
	}
	if x <= n.min {
		return 0, false
	}
	hi, lo := hiLo64(x)
	if n.filled.contains(hi) && lo != 0 {
		return uint64(hi)<<32 | uint64(lo-1), true
	}
	if n.clusters != nil {
		if c, ok := n.clusters.get(hi); ok {
			if p, ok2 := c.predecessor(lo); ok2 {
				return uint64(hi)<<32 | uint64(p), true
			}
		}
	}
	if j, ok := n.summary.predecessor(hi); ok {
		if n.filled.contains(j) {
			return uint64(j)<<32 | 0xFFFFFFFF, true
		}
		c, _ := n.clusters.get(j)
		return uint64(j)<<32 | uint64(c.max), true
	}
	return n.min, true
}

func (n *node64) countRange(lo, hi uint64) int {
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

	startIdx, _ := hiLo64(lo)
	idx, ok := firstClusterAtOrAfter32(&n.summary, startIdx)
	for ok {
		clusterLo := uint64(idx) << 32
		clusterHi := clusterLo | 0xFFFFFFFF
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
				subLo, subHi := uint32(0), uint32(0xFFFFFFFF)
				if lo > clusterLo {
					subLo = uint32(lo - clusterLo)
				}
				if hi < clusterHi {
					subHi = uint32(hi - clusterLo)
				}
				total += c.countRange(subLo, subHi)
			}
		}
		idx, ok = n.summary.successor(idx)
	}
	return total
}

func (n *node64) appendTo(dst []uint64, base uint64) []uint64 {
	if n.count == 0 {
		return dst
	}
	dst = append(dst, base+n.min)
	if n.count >= 2 {
		idx, ok := n.summary.min, n.summary.count > 0
		for ok {
			clusterBase := base + uint64(idx)<<32
			if n.filled.contains(idx) {
				// A filled 32-bit cluster holds 2^32 elements; callers that
				// reach this path (ToArray over a densely packed high range)
				// accept the materialization cost of enumerating it.
				c := fullNode32()
				dst = c.appendTo(dst, clusterBase)
			} else if n.clusters != nil {
				if c, ok2 := n.clusters.get(idx); ok2 {
					dst = c.appendTo(dst, clusterBase)
				}
			}
			idx, ok = n.summary.successor(idx)
		}
	}
	if n.max != n.min {
		dst = append(dst, base+n.max)
	}
	return dst
}

// firstClusterAtOrAfter32 finds the smallest index >= idx present in s.
func firstClusterAtOrAfter32(s *node32, idx uint32) (uint32, bool) {
	if s.contains(idx) {
		return idx, true
	}
	if idx == 0 {
		return s.min, s.count > 0
	}
	return s.successor(idx - 1)
}

func (n *node64) totalClusters() int {
	if n.clusters == nil {
		return 0
	}
	return n.clusters.Len()
}

// fullNode32 returns a node32 representing every value in [0, 2^32) as set.
func fullNode32() node32 {
	n := node32{
		min: 0, max: 0xFFFFFFFF, count: 1 << 32,
		summary: fullNode16(),
		filled:  fullNode16(),
	}
	first, last := fullNode16(), fullNode16()
	first.remove(0)
	last.remove(0xFFFF)
	n.filled.remove(0)
	n.filled.remove(0xFFFF)
	n.clusters = newClusterTable[uint16, *node16]()
	n.clusters.set(0, &first)
	n.clusters.set(0xFFFF, &last)
	return n
}
