package bitset

// promoteFromSingleton builds the narrowest node that can hold both lo and
// hi (lo < hi), with no child structure: two elements always fit in the
// aside min/max pair alone, at any width.
func (h *Handle) promoteFromSingleton(lo, hi uint64) {
	switch {
	case hi < 1<<8:
		h.variant = VariantNode8
		h.n8 = &node8{}
		h.n8.insert(uint8(lo))
		h.n8.insert(uint8(hi))
	case hi < 1<<16:
		h.variant = VariantNode16
		h.n16 = &node16{min: uint16(lo), max: uint16(hi), count: 2}
	case hi < 1<<32:
		h.variant = VariantNode32
		h.n32 = &node32{min: uint32(lo), max: uint32(hi), count: 2}
	default:
		h.variant = VariantNode64
		h.n64 = &node64{min: lo, max: hi, count: 2}
	}
	h.single = 0
}

// promote8to16 widens a Node8 root to Node16, reparenting the existing bits
// as cluster 0 of the new root and extracting a fresh aside min/max from it
// (a node's own min/max must never also live in a child, invariant 1). The
// same reparent-as-cluster-0 step is reused, read-only, by set algebra to
// normalize mismatched operand widths (see merge.go's toNodeW helpers).
func (h *Handle) promote8to16() {
	h.n16 = reparentNode8As16(h.n8)
	h.n8 = nil
	h.variant = VariantNode16
}

func (h *Handle) promote16to32() {
	h.n32 = reparentNode16As32(h.n16)
	h.n16 = nil
	h.variant = VariantNode32
}

func (h *Handle) promote32to64() {
	h.n64 = reparentNode32As64(h.n32)
	h.n32 = nil
	h.variant = VariantNode64
}

// removeAsideFromNode16 strips a node16's own min/max out of its set so it
// can be reparented as a resident cluster of a wider root: a node's min/max
// must never also live in a child (invariant 1), and reusing its own
// remove keeps summary/filled/clusters consistent through the edit.
func removeAsideFromNode16(old *node16) {
	oldMin, oldMax := old.min, old.max
	old.remove(oldMin)
	if oldMax != oldMin {
		old.remove(oldMax)
	}
}

func removeAsideFromNode32(old *node32) {
	oldMin, oldMax := old.min, old.max
	old.remove(oldMin)
	if oldMax != oldMin {
		old.remove(oldMax)
	}
}

func (h *Handle) collapseNode8() {
	switch h.n8.count() {
	case 0:
		h.variant = VariantEmpty
		h.n8 = nil
	case 1:
		m, _ := h.n8.min()
		h.variant = VariantSingleton
		h.single = uint64(m)
		h.n8 = nil
	}
}

func (h *Handle) collapseNode16() {
	switch h.n16.count {
	case 0:
		h.variant = VariantEmpty
		h.n16 = nil
	case 1:
		h.variant = VariantSingleton
		h.single = uint64(h.n16.min)
		h.n16 = nil
	}
}

func (h *Handle) collapseNode32() {
	switch h.n32.count {
	case 0:
		h.variant = VariantEmpty
		h.n32 = nil
	case 1:
		h.variant = VariantSingleton
		h.single = uint64(h.n32.min)
		h.n32 = nil
	}
}

func (h *Handle) collapseNode64() {
	switch h.n64.count {
	case 0:
		h.variant = VariantEmpty
		h.n64 = nil
	case 1:
		h.variant = VariantSingleton
		h.single = h.n64.min
		h.n64 = nil
	}
}
