package bitset

// Op identifies a three-way set-algebra operator.
type Op uint8

const (
	OpAND Op = iota
	OpOR
	OpXOR
)

// MergeInto folds sources left to right under op and stores the result in
// dest, which may alias any source: the whole computation builds a fresh
// tree before dest is ever touched. It returns the host-facing byte-size
// convention: (max(result)/8)+1, or 0 when the result is empty.
func MergeInto(dest *Handle, op Op, sources []*Handle) uint64 {
	if len(sources) == 0 {
		dest.Clear()
		return 0
	}

	width := 8
	for _, s := range sources {
		if w := requiredWidth(s); w > width {
			width = w
		}
	}

	switch width {
	case 8:
		acc := toNode8(sources[0])
		for _, s := range sources[1:] {
			acc = mergeNode8(op, acc, toNode8(s))
			if op == OpAND && acc.isEmpty() {
				break
			}
		}
		dest.n16, dest.n32, dest.n64 = nil, nil, nil
		dest.n8 = acc
		dest.variant = VariantNode8
		dest.collapseNode8()
	case 16:
		acc := toNode16(sources[0])
		for _, s := range sources[1:] {
			acc = mergeNode16(op, acc, toNode16(s))
			if op == OpAND && acc.count == 0 {
				break
			}
		}
		dest.n8, dest.n32, dest.n64 = nil, nil, nil
		dest.n16 = acc
		dest.variant = VariantNode16
		dest.collapseNode16()
	case 32:
		acc := toNode32(sources[0])
		for _, s := range sources[1:] {
			acc = mergeNode32(op, acc, toNode32(s))
			if op == OpAND && acc.count == 0 {
				break
			}
		}
		dest.n8, dest.n16, dest.n64 = nil, nil, nil
		dest.n32 = acc
		dest.variant = VariantNode32
		dest.collapseNode32()
	default:
		acc := toNode64(sources[0])
		for _, s := range sources[1:] {
			acc = mergeNode64(op, acc, toNode64(s))
			if op == OpAND && acc.count == 0 {
				break
			}
		}
		dest.n8, dest.n16, dest.n32 = nil, nil, nil
		dest.n64 = acc
		dest.variant = VariantNode64
		dest.collapseNode64()
	}

	max, ok := dest.Max()
	if !ok {
		return 0
	}
	return max/8 + 1
}

func requiredWidth(h *Handle) int {
	switch h.variant {
	case VariantEmpty:
		return 0
	case VariantSingleton:
		switch {
		case h.single < 1<<8:
			return 8
		case h.single < 1<<16:
			return 16
		case h.single < 1<<32:
			return 32
		default:
			return 64
		}
	case VariantNode8:
		return 8
	case VariantNode16:
		return 16
	case VariantNode32:
		return 32
	default:
		return 64
	}
}

// toNodeW materializes a fresh, independently owned copy of h's set at
// width W, widening through the same reparent-as-cluster-0 step promotion
// uses, so a merge never reads (let alone mutates) a source's real tree.

func toNode8(h *Handle) *node8 {
	switch h.variant {
	case VariantSingleton:
		n := &node8{}
		n.insert(uint8(h.single))
		return n
	case VariantNode8:
		return h.n8.clone()
	default:
		return &node8{}
	}
}

func toNode16(h *Handle) *node16 {
	switch h.variant {
	case VariantSingleton:
		n := &node16{}
		n.insert(uint16(h.single))
		return n
	case VariantNode8:
		return reparentNode8As16(h.n8.clone())
	case VariantNode16:
		return h.n16.clone()
	default:
		return &node16{}
	}
}

func toNode32(h *Handle) *node32 {
	switch h.variant {
	case VariantSingleton:
		n := &node32{}
		n.insert(uint32(h.single))
		return n
	case VariantNode8:
		return reparentNode16As32(reparentNode8As16(h.n8.clone()))
	case VariantNode16:
		return reparentNode16As32(h.n16.clone())
	case VariantNode32:
		return h.n32.clone()
	default:
		return &node32{}
	}
}

func toNode64(h *Handle) *node64 {
	switch h.variant {
	case VariantSingleton:
		n := &node64{}
		n.insert(h.single)
		return n
	case VariantNode8:
		return reparentNode32As64(reparentNode16As32(reparentNode8As16(h.n8.clone())))
	case VariantNode16:
		return reparentNode32As64(reparentNode16As32(h.n16.clone()))
	case VariantNode32:
		return reparentNode32As64(h.n32.clone())
	case VariantNode64:
		return h.n64.clone()
	default:
		return &node64{}
	}
}

func reparentNode8As16(old *node8) *node16 {
	min, ok := old.min()
	if !ok {
		return &node16{}
	}
	max, _ := old.max()
	n := &node16{min: uint16(min), max: uint16(max), count: old.count()}
	old.remove(min)
	if max != min {
		old.remove(max)
	}
	if !old.isEmpty() {
		n.clusters = newClusterTable[uint8, *node8]()
		n.clusters.set(0, old)
		n.summary.insert(0)
	}
	return n
}

func reparentNode16As32(old *node16) *node32 {
	if old.count == 0 {
		return &node32{}
	}
	n := &node32{min: uint32(old.min), max: uint32(old.max), count: old.count}
	removeAsideFromNode16(old)
	if old.count > 0 {
		n.clusters = newClusterTable[uint16, *node16]()
		n.clusters.set(0, old)
		n.summary.insert(0)
	}
	return n
}

func reparentNode32As64(old *node32) *node64 {
	if old.count == 0 {
		return &node64{}
	}
	n := &node64{min: uint64(old.min), max: uint64(old.max), count: old.count}
	removeAsideFromNode32(old)
	if old.count > 0 {
		n.clusters = newClusterTable[uint32, *node32]()
		n.clusters.set(0, old)
		n.summary.insert(0)
	}
	return n
}

// --- node8-level combine: the base case, a flat bitmap with no children ---

func mergeNode8(op Op, a, b *node8) *node8 {
	r := &node8{}
	for w := 0; w < 4; w++ {
		switch op {
		case OpAND:
			r[w] = a[w] & b[w]
		case OpOR:
			r[w] = a[w] | b[w]
		case OpXOR:
			r[w] = a[w] ^ b[w]
		}
	}
	return r
}

func complementNode8(c *node8) *node8 {
	full := fullNode8()
	return mergeNode8(OpXOR, c, &full)
}

func indices8(s *node8) []uint8 {
	var out []uint8
	i, ok := s.min()
	for ok {
		out = append(out, i)
		i, ok = s.successor(i)
	}
	return out
}

// --- node16-level combine: clusters are node8 ---

// combineCluster8 decides the result of combining one cluster index's
// status in two operands, per the full/partial/empty table in §4.5.
// A nil, false return (full=false, partial=nil) means the index contributes
// nothing to the result and should not appear in its summary at all.
func combineCluster8(op Op, af, bf bool, ac, bc *node8) (full bool, partial *node8) {
	switch op {
	case OpOR:
		if af || bf {
			return true, nil
		}
		switch {
		case ac != nil && bc != nil:
			m := mergeNode8(OpOR, ac, bc)
			if m.isFull() {
				return true, nil
			}
			return false, m
		case ac != nil:
			return false, ac.clone()
		case bc != nil:
			return false, bc.clone()
		default:
			return false, nil
		}
	case OpAND:
		switch {
		case af && bf:
			return true, nil
		case af && bc != nil:
			return false, bc.clone()
		case bf && ac != nil:
			return false, ac.clone()
		case ac != nil && bc != nil:
			m := mergeNode8(OpAND, ac, bc)
			if m.isEmpty() {
				return false, nil
			}
			if m.isFull() {
				return true, nil
			}
			return false, m
		default:
			return false, nil
		}
	default: // OpXOR
		switch {
		case af && bf:
			return false, nil
		case af && bc != nil:
			return false, complementNode8(bc)
		case af:
			return true, nil
		case bf && ac != nil:
			return false, complementNode8(ac)
		case bf:
			return true, nil
		case ac != nil && bc != nil:
			m := mergeNode8(OpXOR, ac, bc)
			if m.isEmpty() {
				return false, nil
			}
			if m.isFull() {
				return true, nil
			}
			return false, m
		case ac != nil:
			return false, ac.clone()
		case bc != nil:
			return false, bc.clone()
		default:
			return false, nil
		}
	}
}

// foldAsideIntoClusters16 folds n's own aside min/max into its cluster
// structure, in place, so that summary/filled/clusters alone describe every
// element it holds. Per §3.1 a node's aside min/max never live in a child
// during ordinary insert/remove, but the cluster-wise combinators below read
// only summary/filled/clusters -- called only on a clone, so the node's
// real min/max/count bookkeeping is never disturbed.
func foldAsideIntoClusters16(n *node16) {
	addToClusterView16(n, n.min)
	if n.max != n.min {
		addToClusterView16(n, n.max)
	}
}

func addToClusterView16(n *node16, x uint16) {
	hi, lo := hiLo16(x)
	if n.filled.contains(hi) {
		return
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
	child.insert(lo)
	if child.isFull() {
		n.clusters.delete(hi)
		n.filled.insert(hi)
	}
}

func mergeNode16(op Op, rawA, rawB *node16) *node16 {
	a, b := rawA.clone(), rawB.clone()
	foldAsideIntoClusters16(a)
	foldAsideIntoClusters16(b)

	candOp := OpOR
	if op == OpAND {
		candOp = OpAND
	}
	cand := mergeNode8(candOp, &a.summary, &b.summary)

	r := &node16{}
	childrenCount := 0
	for _, idx := range indices8(cand) {
		af := a.filled.contains(idx)
		bf := b.filled.contains(idx)
		var ac, bc *node8
		if !af && a.clusters != nil {
			ac, _ = a.clusters.get(idx)
		}
		if !bf && b.clusters != nil {
			bc, _ = b.clusters.get(idx)
		}
		rf, rc := combineCluster8(op, af, bf, ac, bc)
		if !rf && rc == nil {
			continue
		}
		r.summary.insert(idx)
		if rf {
			r.filled.insert(idx)
			childrenCount += 1 << 8
		} else {
			if r.clusters == nil {
				r.clusters = newClusterTable[uint8, *node8]()
			}
			r.clusters.set(idx, rc)
			childrenCount += rc.count()
		}
	}
	return finalizeNode16(r, childrenCount)
}

func finalizeNode16(r *node16, childrenCount int) *node16 {
	switch {
	case childrenCount == 0:
		return &node16{}
	case childrenCount == 1:
		idx, _ := r.summary.min()
		var val uint16
		c, _ := r.clusters.get(idx)
		m, _ := c.min()
		val = uint16(idx)<<8 | uint16(m)
		return &node16{min: val, max: val, count: 1}
	default:
		r.count = childrenCount
		newMin := r.removeMinPromote()
		newMax := r.removeMaxPromote()
		r.min, r.max = newMin, newMax
		r.count = childrenCount
		return r
	}
}

func complementNode16(c *node16) *node16 {
	full := fullNode16()
	return mergeNode16(OpXOR, c, &full)
}

func indices16(s *node16) []uint16 {
	if s.count == 0 {
		return nil
	}
	out := []uint16{s.min}
	cur := s.min
	for {
		nxt, ok := s.successor(cur)
		if !ok {
			break
		}
		out = append(out, nxt)
		cur = nxt
	}
	return out
}

// --- node32-level combine: clusters are node16 ---

func combineCluster16(op Op, af, bf bool, ac, bc *node16) (full bool, partial *node16) {
	switch op {
	case OpOR:
		if af || bf {
			return true, nil
		}
		switch {
		case ac != nil && bc != nil:
			m := mergeNode16(OpOR, ac, bc)
			if m.isFull() {
				return true, nil
			}
			return false, m
		case ac != nil:
			return false, ac.clone()
		case bc != nil:
			return false, bc.clone()
		default:
			return false, nil
		}
	case OpAND:
		switch {
		case af && bf:
			return true, nil
		case af && bc != nil:
			return false, bc.clone()
		case bf && ac != nil:
			return false, ac.clone()
		case ac != nil && bc != nil:
			m := mergeNode16(OpAND, ac, bc)
			if m.isEmpty() {
				return false, nil
			}
			if m.isFull() {
				return true, nil
			}
			return false, m
		default:
			return false, nil
		}
	default: // OpXOR
		switch {
		case af && bf:
			return false, nil
		case af && bc != nil:
			return false, complementNode16(bc)
		case af:
			return true, nil
		case bf && ac != nil:
			return false, complementNode16(ac)
		case bf:
			return true, nil
		case ac != nil && bc != nil:
			m := mergeNode16(OpXOR, ac, bc)
			if m.isEmpty() {
				return false, nil
			}
			if m.isFull() {
				return true, nil
			}
			return false, m
		case ac != nil:
			return false, ac.clone()
		case bc != nil:
			return false, bc.clone()
		default:
			return false, nil
		}
	}
}

// foldAsideIntoClusters32 is foldAsideIntoClusters16 one level up: clusters
// here are node16, keyed by the high 16 bits.
func foldAsideIntoClusters32(n *node32) {
	addToClusterView32(n, n.min)
	if n.max != n.min {
		addToClusterView32(n, n.max)
	}
}

func addToClusterView32(n *node32, x uint32) {
	hi, lo := hiLo32(x)
	if n.filled.contains(hi) {
		return
	}
	if n.clusters == nil {
		n.clusters = newClusterTable[uint16, *node16]()
	}
	child, ok := n.clusters.get(hi)
	if !ok {
		child = &node16{}
		n.clusters.set(hi, child)
		n.summary.insert(hi)
	}
	child.insert(lo)
	if child.isFull() {
		n.clusters.delete(hi)
		n.filled.insert(hi)
	}
}

func mergeNode32(op Op, rawA, rawB *node32) *node32 {
	a, b := rawA.clone(), rawB.clone()
	foldAsideIntoClusters32(a)
	foldAsideIntoClusters32(b)

	candOp := OpOR
	if op == OpAND {
		candOp = OpAND
	}
	cand := mergeNode16(candOp, &a.summary, &b.summary)

	r := &node32{}
	childrenCount := 0
	for _, idx := range indices16(cand) {
		af := a.filled.contains(idx)
		bf := b.filled.contains(idx)
		var ac, bc *node16
		if !af && a.clusters != nil {
			ac, _ = a.clusters.get(idx)
		}
		if !bf && b.clusters != nil {
			bc, _ = b.clusters.get(idx)
		}
		rf, rc := combineCluster16(op, af, bf, ac, bc)
		if !rf && rc == nil {
			continue
		}
		r.summary.insert(idx)
		if rf {
			r.filled.insert(idx)
			childrenCount += 1 << 16
		} else {
			if r.clusters == nil {
				r.clusters = newClusterTable[uint16, *node16]()
			}
			r.clusters.set(idx, rc)
			childrenCount += rc.count
		}
	}
	return finalizeNode32(r, childrenCount)
}

func finalizeNode32(r *node32, childrenCount int) *node32 {
	switch {
	case childrenCount == 0:
		return &node32{}
	case childrenCount == 1:
		idx := r.summary.min
		c, _ := r.clusters.get(idx)
		val := uint32(idx)<<16 | uint32(c.min)
		return &node32{min: val, max: val, count: 1}
	default:
		r.count = childrenCount
		newMin := r.removeMinPromote()
		newMax := r.removeMaxPromote()
		r.min, r.max = newMin, newMax
		r.count = childrenCount
		return r
	}
}

func complementNode32(c *node32) *node32 {
	full := fullNode32()
	return mergeNode32(OpXOR, c, &full)
}

func indices32(s *node32) []uint32 {
	if s.count == 0 {
		return nil
	}
	out := []uint32{s.min}
	cur := s.min
	for {
		nxt, ok := s.successor(cur)
		if !ok {
			break
		}
		out = append(out, nxt)
		cur = nxt
	}
	return out
}

// --- node64-level combine: clusters are node32, the root width ---

func combineCluster32(op Op, af, bf bool, ac, bc *node32) (full bool, partial *node32) {
	switch op {
	case OpOR:
		if af || bf {
			return true, nil
		}
		switch {
		case ac != nil && bc != nil:
			m := mergeNode32(OpOR, ac, bc)
			if m.isFull() {
				return true, nil
			}
			return false, m
		case ac != nil:
			return false, ac.clone()
		case bc != nil:
			return false, bc.clone()
		default:
			return false, nil
		}
	case OpAND:
		switch {
		case af && bf:
			return true, nil
		case af && bc != nil:
			return false, bc.clone()
		case bf && ac != nil:
			return false, ac.clone()
		case ac != nil && bc != nil:
			m := mergeNode32(OpAND, ac, bc)
			if m.isEmpty() {
				return false, nil
			}
			if m.isFull() {
				return true, nil
			}
			return false, m
		default:
			return false, nil
		}
	default: // OpXOR
		switch {
		case af && bf:
			return false, nil
		case af && bc != nil:
			return false, complementNode32(bc)
		case af:
			return true, nil
		case bf && ac != nil:
			return false, complementNode32(ac)
		case bf:
			return true, nil
		case ac != nil && bc != nil:
			m := mergeNode32(OpXOR, ac, bc)
			if m.isEmpty() {
				return false, nil
			}
			if m.isFull() {
				return true, nil
			}
			return false, m
		case ac != nil:
			return false, ac.clone()
		case bc != nil:
			return false, bc.clone()
		default:
			return false, nil
		}
	}
}

// foldAsideIntoClusters64 is foldAsideIntoClusters16 two levels up: clusters
// here are node32, keyed by the high 32 bits.
func foldAsideIntoClusters64(n *node64) {
	addToClusterView64(n, n.min)
	if n.max != n.min {
		addToClusterView64(n, n.max)
	}
}

func addToClusterView64(n *node64, x uint64) {
	hi, lo := hiLo64(x)
	if n.filled.contains(hi) {
		return
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
	child.insert(lo)
	if child.isFull() {
		n.clusters.delete(hi)
		n.filled.insert(hi)
	}
}

func mergeNode64(op Op, rawA, rawB *node64) *node64 {
	a, b := rawA.clone(), rawB.clone()
	foldAsideIntoClusters64(a)
	foldAsideIntoClusters64(b)

	candOp := OpOR
	if op == OpAND {
		candOp = OpAND
	}
	cand := mergeNode32(candOp, &a.summary, &b.summary)

	r := &node64{}
	childrenCount := 0
	for _, idx := range indices32(cand) {
		af := a.filled.contains(idx)
		bf := b.filled.contains(idx)
		var ac, bc *node32
		if !af && a.clusters != nil {
			ac, _ = a.clusters.get(idx)
		}
		if !bf && b.clusters != nil {
			bc, _ = b.clusters.get(idx)
		}
		rf, rc := combineCluster32(op, af, bf, ac, bc)
		if !rf && rc == nil {
			continue
		}
		r.summary.insert(idx)
		if rf {
			r.filled.insert(idx)
			childrenCount += 1 << 32
		} else {
			if r.clusters == nil {
				r.clusters = newClusterTable[uint32, *node32]()
			}
			r.clusters.set(idx, rc)
			childrenCount += rc.count
		}
	}
	return finalizeNode64(r, childrenCount)
}

func finalizeNode64(r *node64, childrenCount int) *node64 {
	switch {
	case childrenCount == 0:
		return &node64{}
	case childrenCount == 1:
		idx := r.summary.min
		c, _ := r.clusters.get(idx)
		val := uint64(idx)<<32 | uint64(c.min)
		return &node64{min: val, max: val, count: 1}
	default:
		r.count = childrenCount
		newMin := r.removeMinPromote()
		newMax := r.removeMaxPromote()
		r.min, r.max = newMin, newMax
		r.count = childrenCount
		return r
	}
}
