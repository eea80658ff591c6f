package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Regression coverage for the aside min/max merge defect: mergeNode16/32/64
// folded only an operand's summary/filled/clusters into the result and
// silently dropped whichever elements lived in its own aside min/max. Every
// case below places at least one operand's min or max value >= 256 so the
// merge takes the node16 (or wider) path instead of the flat node8 path.

func TestMergeOrKeepsAsideMinMax(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{1, 2, 300})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{5, 6})
	assert.NoError(t, err)

	u := New()
	MergeInto(u, OpOR, []*Handle{s1, s2})
	assert.Equal(t, []uint64{1, 2, 5, 6, 300}, u.ToArray())
}

func TestMergeAndKeepsAsideMinMax(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{1, 300, 400})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{1, 300, 500})
	assert.NoError(t, err)

	i := New()
	MergeInto(i, OpAND, []*Handle{s1, s2})
	assert.Equal(t, []uint64{1, 300}, i.ToArray())
}

func TestMergeXorKeepsAsideMinMax(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{1, 2, 300})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{2, 300, 301})
	assert.NoError(t, err)

	d := New()
	MergeInto(d, OpXOR, []*Handle{s1, s2})
	assert.Equal(t, []uint64{1, 301}, d.ToArray())
}

// An operand whose entire content is its own min/max (no resident clusters
// at all, i.e. count == 2) must still contribute both values.
func TestMergeOperandWithOnlyAsideValues(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{10, 20000})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{20000, 30000})
	assert.NoError(t, err)

	u := New()
	MergeInto(u, OpOR, []*Handle{s1, s2})
	assert.Equal(t, []uint64{10, 20000, 30000}, u.ToArray())

	i := New()
	MergeInto(i, OpAND, []*Handle{s1, s2})
	assert.Equal(t, []uint64{20000}, i.ToArray())
}

// The same defect at node32 width: operands whose min/max exceed 2^16.
func TestMergeOrKeepsAsideMinMaxNode32(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{1, 2, 1 << 17})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{5, 6})
	assert.NoError(t, err)

	u := New()
	MergeInto(u, OpOR, []*Handle{s1, s2})
	assert.Equal(t, []uint64{1, 2, 5, 6, 1 << 17}, u.ToArray())
}

// And at node64 width: operands whose min/max exceed 2^32.
func TestMergeOrKeepsAsideMinMaxNode64(t *testing.T) {
	s1, s2 := New(), New()
	_, err := s1.InsertMany([]uint64{1, 2, 1 << 33})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{5, 6})
	assert.NoError(t, err)

	u := New()
	MergeInto(u, OpOR, []*Handle{s1, s2})
	assert.Equal(t, []uint64{1, 2, 5, 6, 1 << 33}, u.ToArray())
}

// Merging three sources left-to-right must preserve every intermediate
// accumulator's aside values too, not just the first pair.
func TestMergeThreeWayOrKeepsAsideMinMax(t *testing.T) {
	s1, s2, s3 := New(), New(), New()
	_, err := s1.InsertMany([]uint64{1, 300})
	assert.NoError(t, err)
	_, err = s2.InsertMany([]uint64{2, 400})
	assert.NoError(t, err)
	_, err = s3.InsertMany([]uint64{3, 500})
	assert.NoError(t, err)

	u := New()
	MergeInto(u, OpOR, []*Handle{s1, s2, s3})
	assert.Equal(t, []uint64{1, 2, 3, 300, 400, 500}, u.ToArray())
}
