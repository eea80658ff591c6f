package diyredis

import (
	"errors"
	"strconv"
	"strings"

	"github.com/sparsebitd/sparsebitd/bitset"
)

// loadBitset fetches a key's *bitset.Handle. An absent key yields a fresh
// empty handle (per-read semantics), not an error; a string-valued key
// yields ErrWrongType.
func (s *Session) loadBitset(key string) (*bitset.Handle, error) {
	v, ok := s.valueDB.Load(key)
	if !ok {
		return bitset.New(), nil
	}
	h, isHandle := v.(*bitset.Handle)
	if !isHandle {
		return nil, bitset.ErrWrongType
	}
	return h, nil
}

// requireBitset is like loadBitset but reports ErrMissingKey for an absent
// key, the behavior BITS.INFO needs.
func (s *Session) requireBitset(key string) (*bitset.Handle, error) {
	v, ok := s.valueDB.Load(key)
	if !ok {
		return nil, bitset.ErrMissingKey
	}
	h, isHandle := v.(*bitset.Handle)
	if !isHandle {
		return nil, bitset.ErrWrongType
	}
	return h, nil
}

func (s *Session) storeBitset(key string, h *bitset.Handle) {
	s.valueDB.Store(key, h)
}

// writeBitsetErr maps a bitset package error to its RESP error type.
func (s *Session) writeBitsetErr(err error) {
	switch err {
	case bitset.ErrWrongType:
		s.writeError("WRONGTYPE", err.Error())
	case bitset.ErrMissingKey:
		s.writeError("ERR", err.Error())
	case bitset.ErrInvalidBit, bitset.ErrSyntax:
		s.writeError("ERR", err.Error())
	default:
		s.writeError("ERR", err.Error())
	}
}

// parseElement parses a command argument as a set element, using negMsg as
// the error text for a negative value; BITS.GET/CONTAINS word this
// differently ("out of range") than BITS.INSERT/REMOVE ("invalid element").
func parseElement(arg string, negMsg string) (uint64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errors.New(negMsg)
	}
	if n < 0 {
		return 0, errors.New(negMsg)
	}
	if uint64(n) > bitset.MaxElement {
		return 0, errors.New(negMsg)
	}
	return uint64(n), nil
}

func (s *Session) doBitsInsert(cmd []string) {
	if !s.requireArgs(cmd, 3, "bits.insert") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	elems := make([]uint64, 0, len(cmd)-2)
	for _, arg := range cmd[2:] {
		e, err := parseElement(arg, "invalid element")
		if err != nil {
			s.writeError("ERR", err.Error())
			return
		}
		elems = append(elems, e)
	}
	n, err := h.InsertMany(elems)
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	s.storeBitset(cmd[1], h)
	s.enc.WriteInt(int64(n))
	s.flush()
}

func (s *Session) doBitsRemove(cmd []string) {
	if !s.requireArgs(cmd, 3, "bits.remove") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	elems := make([]uint64, 0, len(cmd)-2)
	for _, arg := range cmd[2:] {
		e, err := parseElement(arg, "invalid element")
		if err != nil {
			s.writeError("ERR", err.Error())
			return
		}
		elems = append(elems, e)
	}
	n, err := h.RemoveMany(elems)
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	s.storeBitset(cmd[1], h)
	s.enc.WriteInt(int64(n))
	s.flush()
}

func (s *Session) doBitsGet(cmd []string) {
	if !s.requireArgs(cmd, 3, "bits.get") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	elem, err := parseElement(cmd[2], "out of range")
	if err != nil {
		s.writeError("ERR", err.Error())
		return
	}
	found, err := h.Contains(elem)
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	if found {
		s.enc.WriteInt(1)
	} else {
		s.enc.WriteInt(0)
	}
	s.flush()
}

func (s *Session) doBitsSet(cmd []string) {
	if !s.requireArgs(cmd, 4, "bits.set") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	elem, err := parseElement(cmd[2], "invalid element")
	if err != nil {
		s.writeError("ERR", err.Error())
		return
	}
	bit, err := strconv.Atoi(cmd[3])
	if err != nil {
		s.writeError("ERR", bitset.ErrInvalidBit.Error())
		return
	}
	prev, err := h.Set(elem, bit)
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	s.storeBitset(cmd[1], h)
	s.enc.WriteInt(int64(prev))
	s.flush()
}

func (s *Session) doBitsCount(cmd []string) {
	if !s.requireArgs(cmd, 2, "bits.count") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	if len(cmd) == 2 {
		s.enc.WriteInt(int64(h.Count()))
		s.flush()
		return
	}
	if len(cmd) < 4 {
		s.writeError("ERR", bitset.ErrSyntax.Error())
		return
	}
	start, err := strconv.ParseInt(cmd[2], 10, 64)
	if err != nil {
		s.writeError("ERR", "value is not an integer or out of range")
		return
	}
	end, err := strconv.ParseInt(cmd[3], 10, 64)
	if err != nil {
		s.writeError("ERR", "value is not an integer or out of range")
		return
	}
	unit := "bit"
	if len(cmd) > 4 {
		unit = strings.ToLower(cmd[4])
	}
	switch unit {
	case "bit":
		// unit is already element-granularity; nothing to scale
	case "byte":
		start *= 8
		end = end*8 + 7
	default:
		s.writeError("ERR", bitset.ErrSyntax.Error())
		return
	}
	if start < 0 || end < 0 {
		s.writeError("ERR", "out of range")
		return
	}
	n, err := h.CountRange(uint64(start), uint64(end))
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	s.enc.WriteInt(int64(n))
	s.flush()
}

func (s *Session) doBitsSize(cmd []string) {
	if !s.requireArgs(cmd, 2, "bits.size") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	s.enc.WriteInt(int64(h.Count()))
	s.flush()
}

func (s *Session) doBitsClear(cmd []string) {
	if !s.requireArgs(cmd, 2, "bits.clear") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	h.Clear()
	s.storeBitset(cmd[1], h)
	s.enc.WriteSimpleStr("OK")
	s.flush()
}

func (s *Session) doBitsMinMax(cmd []string, min bool) {
	name := "bits.max"
	if min {
		name = "bits.min"
	}
	if !s.requireArgs(cmd, 2, name) {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	var v uint64
	var ok bool
	if min {
		v, ok = h.Min()
	} else {
		v, ok = h.Max()
	}
	if !ok {
		s.enc.WriteNullBulk()
	} else {
		s.enc.WriteInt(int64(v))
	}
	s.flush()
}

func (s *Session) doBitsNeighbor(cmd []string, successor bool) {
	name := "bits.predecessor"
	if successor {
		name = "bits.successor"
	}
	if !s.requireArgs(cmd, 3, name) {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	elem, err := parseElement(cmd[2], "out of range")
	if err != nil {
		s.writeError("ERR", err.Error())
		return
	}
	var v uint64
	var ok bool
	if successor {
		v, ok, err = h.Successor(elem)
	} else {
		v, ok, err = h.Predecessor(elem)
	}
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	if !ok {
		s.enc.WriteNullBulk()
	} else {
		s.enc.WriteInt(int64(v))
	}
	s.flush()
}

func (s *Session) doBitsToArray(cmd []string) {
	if !s.requireArgs(cmd, 2, "bits.toarray") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	arr := h.ToArray()
	s.enc.WriteArrHeader(len(arr))
	for _, v := range arr {
		s.enc.WriteInt(int64(v))
	}
	s.flush()
}

func (s *Session) doBitsPos(cmd []string) {
	if !s.requireArgs(cmd, 3, "bits.pos") {
		return
	}
	h, err := s.loadBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	bit, err := strconv.Atoi(cmd[2])
	if err != nil || (bit != 0 && bit != 1) {
		s.writeError("ERR", bitset.ErrInvalidBit.Error())
		return
	}
	var hasStart, hasEnd bool
	var start, end int64
	if len(cmd) > 3 {
		hasStart = true
		start, err = strconv.ParseInt(cmd[3], 10, 64)
		if err != nil {
			s.writeError("ERR", "value is not an integer or out of range")
			return
		}
	}
	if len(cmd) > 4 {
		hasEnd = true
		end, err = strconv.ParseInt(cmd[4], 10, 64)
		if err != nil {
			s.writeError("ERR", "value is not an integer or out of range")
			return
		}
	}
	pos, err := h.BitPos(bit, hasStart, start, hasEnd, end)
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	s.enc.WriteInt(pos)
	s.flush()
}

var opNames = map[string]bitset.Op{
	"and": bitset.OpAND,
	"or":  bitset.OpOR,
	"xor": bitset.OpXOR,
}

func (s *Session) doBitsOp(cmd []string) {
	if !s.requireArgs(cmd, 4, "bits.op") {
		return
	}
	op, ok := opNames[strings.ToLower(cmd[1])]
	if !ok {
		s.writeError("ERR", bitset.ErrSyntax.Error())
		return
	}
	destKey := cmd[2]
	sources := make([]*bitset.Handle, 0, len(cmd)-3)
	for _, key := range cmd[3:] {
		h, err := s.loadBitset(key)
		if err != nil {
			s.writeBitsetErr(err)
			return
		}
		sources = append(sources, h)
	}
	dest := bitset.New()
	size := bitset.MergeInto(dest, op, sources)
	s.storeBitset(destKey, dest)
	s.enc.WriteInt(int64(size))
	s.flush()
}

func (s *Session) doBitsInfo(cmd []string) {
	if !s.requireArgs(cmd, 2, "bits.info") {
		return
	}
	h, err := s.requireBitset(cmd[1])
	if err != nil {
		s.writeBitsetErr(err)
		return
	}
	info := h.Info()
	s.enc.WriteMapHeader(6)
	s.enc.WriteBulkStr("size")
	s.enc.WriteInt(int64(info.Size))
	s.enc.WriteBulkStr("universe_size")
	s.enc.WriteInt(int64(info.UniverseSize))
	s.enc.WriteBulkStr("allocated_bytes")
	s.enc.WriteInt(info.AllocatedBytes)
	s.enc.WriteBulkStr("total_clusters")
	s.enc.WriteInt(int64(info.TotalClusters))
	s.enc.WriteBulkStr("max_depth")
	s.enc.WriteInt(int64(info.MaxDepth))
	s.enc.WriteBulkStr("variant")
	s.enc.WriteBulkStr(info.VariantName)
	s.flush()
}
