package tiger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsZero(t *testing.T) {
	var h Hash
	assert.True(t, h.IsZero())
	h[0] = 1
	assert.False(t, h.IsZero())
}

func TestHashStringParseRoundTrip(t *testing.T) {
	h := hashLeaf([]byte("leaf data"))
	s := h.String()

	got, err := ParseHash(s)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestBuildTreeEmptyMatchesHashLeafNil(t *testing.T) {
	tree := BuildTreeBytes(nil)
	assert.Equal(t, hashLeaf(nil), tree.RootHash())
}

func TestEmptyFileTTH(t *testing.T) {
	tree := BuildTreeBytes(nil)
	assert.Equal(t, "LWPNACQDBZRYXW3VHJVCJ64QBZNGHOHHHZWCLNQ", tree.Base32())
}

// Root identifiers for a handful of file sizes around the leaf
// boundary, covering the single-leaf shortcut, an exact two-leaf split,
// a balanced four-leaf tree, and odd-leaf promotion at five leaves.
func TestKnownTreeRoots(t *testing.T) {
	cases := []struct {
		size int
		want string
	}{
		{1, "F33GDTSNFCYLSQSR32XFIH3DIDBSBF4GRLU76VA"},
		{1024, "L66Q4YVNAFWVS23X2HJIRA5ZJ7WXR3F26RSASFA"},
		{1025, "PZMRYHGY6LTBEH63ZWAHDORHSYTLO4LEFUIKHWY"},
		{2048, "FSINHKGFD6E3PHTXSA5EATMEO7IND3ATJDSH45A"},
		{3073, "MNZXBITJXA7FB3IBAR4D7WMLKBHAXE5JNNQ22XA"},
		{5120, "Z65LU3NNBMMGLDBMFEG7S4FFTPUG55IXVNQN3GQ"},
	}
	for _, c := range cases {
		tree := BuildTreeBytes(bytes.Repeat([]byte{'A'}, c.size))
		assert.Equal(t, c.want, tree.Base32(), "size %d", c.size)
	}
}

func TestBuildTreeSingleLeafIsLeafHash(t *testing.T) {
	data := []byte("short, fits in one leaf")
	tree := BuildTreeBytes(data)
	assert.Equal(t, hashLeaf(data), tree.RootHash())
	assert.Len(t, tree.Leaves(), 1)
}

func TestBuildTreeTwoLeavesHashesPair(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, LeafSize+10)
	tree := BuildTreeBytes(data)

	leftHash := hashLeaf(data[:LeafSize])
	rightHash := hashLeaf(data[LeafSize:])
	want := hashNode(leftHash, rightHash)

	assert.Equal(t, want, tree.RootHash())
	assert.Len(t, tree.Leaves(), 2)
}

func TestBuildTreeOddNodePromotion(t *testing.T) {
	// Three leaves: (0,1) combine, leaf 2 is promoted unchanged to pair
	// with the (0,1) node at the next level up.
	data := bytes.Repeat([]byte{0x11}, LeafSize*2+LeafSize/2)
	tree := BuildTreeBytes(data)
	require.Len(t, tree.Leaves(), 3)

	l0 := hashLeaf(data[0:LeafSize])
	l1 := hashLeaf(data[LeafSize : 2*LeafSize])
	l2 := hashLeaf(data[2*LeafSize:])

	pair := hashNode(l0, l1)
	want := hashNode(pair, l2)

	assert.Equal(t, want, tree.RootHash())
}

func TestBuildTreeReaderMatchesInMemory(t *testing.T) {
	data := bytes.Repeat([]byte{0x5A}, LeafSize*5+17)

	fromBytes := BuildTreeBytes(data)
	fromReader, err := BuildTree(bytes.NewReader(data))
	require.NoError(t, err)

	assert.True(t, fromBytes.Equal(fromReader))
	assert.Equal(t, fromBytes.Base32(), fromReader.Base32())
}

func TestBuildTreeExactMultipleOfLeafSize(t *testing.T) {
	data := bytes.Repeat([]byte{0x9}, LeafSize*4)
	tree := BuildTreeBytes(data)
	assert.Len(t, tree.Leaves(), 4)
}

func TestTreeEqualDetectsDifference(t *testing.T) {
	a := BuildTreeBytes([]byte("alpha"))
	b := BuildTreeBytes([]byte("bravo"))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestTreeEqualNilHandling(t *testing.T) {
	var a, b *Tree
	assert.True(t, a.Equal(b))

	c := BuildTreeBytes([]byte("x"))
	assert.False(t, c.Equal(nil))
	assert.False(t, (*Tree)(nil).Equal(c))
}

func TestSerializeDeserializeSingleLeaf(t *testing.T) {
	tree := BuildTreeBytes([]byte("solo leaf"))
	data := tree.Serialize()
	require.Len(t, data, Size)

	got, err := Deserialize(data, 0)
	require.NoError(t, err)
	assert.Equal(t, tree.RootHash(), got.RootHash())
}

func TestSerializeBreadthFirstOrder(t *testing.T) {
	data := bytes.Repeat([]byte{0x3}, LeafSize+1)
	tree := BuildTreeBytes(data)
	ser := tree.Serialize()
	require.Len(t, ser, Size*3) // root + two leaves

	var want []byte
	want = append(want, tree.Root.Hash[:]...)
	want = append(want, tree.Root.Left.Hash[:]...)
	want = append(want, tree.Root.Right.Hash[:]...)
	assert.Equal(t, want, ser)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	for _, leaves := range []int{2, 3, 4, 5, 8, 9} {
		data := bytes.Repeat([]byte{0x7F}, leaves*LeafSize)
		tree := BuildTreeBytes(data)
		require.Len(t, tree.Leaves(), leaves)

		got, err := Deserialize(tree.Serialize(), tree.Depth())
		require.NoError(t, err, "leaves %d", leaves)
		assert.True(t, tree.Equal(got), "leaves %d", leaves)
	}
}

func TestDeserializeRejectsBadLength(t *testing.T) {
	_, err := Deserialize(make([]byte, Size+1), 1)
	assert.ErrorIs(t, err, ErrBadTreeData)
}

func TestDeserializeRejectsWrongDepth(t *testing.T) {
	tree := BuildTreeBytes(bytes.Repeat([]byte{0x7F}, 3*LeafSize))
	_, err := Deserialize(tree.Serialize(), tree.Depth()+1)
	assert.ErrorIs(t, err, ErrBadTreeData)
}

func TestDeserializeRejectsEvenNodeCount(t *testing.T) {
	_, err := Deserialize(make([]byte, 2*Size), 1)
	assert.ErrorIs(t, err, ErrBadTreeData)
}

func TestTreeDepth(t *testing.T) {
	assert.Equal(t, 0, BuildTreeBytes([]byte("one leaf")).Depth())
	assert.Equal(t, 1, BuildTreeBytes(bytes.Repeat([]byte{1}, 2*LeafSize)).Depth())
	assert.Equal(t, 2, BuildTreeBytes(bytes.Repeat([]byte{1}, 3*LeafSize)).Depth())
}

func TestDeserializeEmpty(t *testing.T) {
	tree, err := Deserialize(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, hashLeaf(nil), tree.RootHash())
}

func TestEncodeDecodeBase32RoundTrip(t *testing.T) {
	h := hashLeaf([]byte("round trip me"))
	s := EncodeBase32(h[:])
	assert.NotContains(t, s, "=", "wire form must not carry padding")

	got, err := DecodeBase32(s, Size)
	require.NoError(t, err)
	assert.Equal(t, h[:], got)
}

func TestDecodeBase32RejectsInvalidAlphabet(t *testing.T) {
	_, err := DecodeBase32("not-base32-at-all!!", Size)
	assert.Error(t, err)
}
