package relidx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The split point rules are on-disk contract: two builders inserting the
// same keys must pick the same medians to produce identical files.

func TestLeafSplitPoint_OddCapacity(t *testing.T) {
	t.Parallel()

	aLeaf := NewLeafNode(3)
	aLeaf.Keys[0], aLeaf.Keys[1], aLeaf.Keys[2] = 10, 20, 30
	aLeaf.Used = 3

	// The middle key is the separator regardless of the inserted key.
	for _, key := range []int32{5, 15, 25, 35} {
		m, promoted := leafSplitPoint(aLeaf, key)
		assert.Equal(t, uint32(1), m)
		assert.Equal(t, int32(20), promoted)
	}
}

func TestLeafSplitPoint_EvenCapacity(t *testing.T) {
	t.Parallel()

	aLeaf := NewLeafNode(4)
	aLeaf.Keys[0], aLeaf.Keys[1], aLeaf.Keys[2], aLeaf.Keys[3] = 10, 20, 30, 40
	aLeaf.Used = 4

	t.Run("key below left middle promotes left middle", func(t *testing.T) {
		m, promoted := leafSplitPoint(aLeaf, 5)
		assert.Equal(t, uint32(1), m)
		assert.Equal(t, int32(20), promoted)
	})

	t.Run("key between middles is promoted by value", func(t *testing.T) {
		m, promoted := leafSplitPoint(aLeaf, 25)
		assert.Equal(t, uint32(2), m)
		assert.Equal(t, int32(25), promoted)
	})

	t.Run("key above right middle promotes right middle", func(t *testing.T) {
		m, promoted := leafSplitPoint(aLeaf, 35)
		assert.Equal(t, uint32(2), m)
		assert.Equal(t, int32(30), promoted)
	})
}

func TestNodeSplitPoint_EvenCapacity(t *testing.T) {
	t.Parallel()

	aNode := NewInternalNode(4)
	aNode.Keys[0], aNode.Keys[1], aNode.Keys[2], aNode.Keys[3] = 10, 20, 30, 40
	aNode.Used = 4

	t.Run("key between middles is promoted by value", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 25)
		assert.Equal(t, uint32(1), m)
		assert.Equal(t, int32(25), promoted)
	})

	t.Run("key above right middle promotes right middle", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 35)
		assert.Equal(t, uint32(2), m)
		assert.Equal(t, int32(30), promoted)
	})

	t.Run("key below left middle promotes left middle", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 5)
		assert.Equal(t, uint32(1), m)
		assert.Equal(t, int32(20), promoted)
	})
}

func TestNodeSplitPoint_OddCapacity(t *testing.T) {
	t.Parallel()

	aNode := NewInternalNode(3)
	aNode.Keys[0], aNode.Keys[1], aNode.Keys[2] = 10, 20, 30
	aNode.Used = 3

	t.Run("key in lower middle interval is promoted by value", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 15)
		assert.Equal(t, uint32(0), m)
		assert.Equal(t, int32(15), promoted)
	})

	t.Run("key in upper middle interval is promoted by value", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 25)
		assert.Equal(t, uint32(1), m)
		assert.Equal(t, int32(25), promoted)
	})

	t.Run("key below both middles promotes the left one", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 5)
		assert.Equal(t, uint32(0), m)
		assert.Equal(t, int32(10), promoted)
	})

	t.Run("key above both middles promotes the right one", func(t *testing.T) {
		m, promoted := nodeSplitPoint(aNode, 35)
		assert.Equal(t, uint32(1), m)
		assert.Equal(t, int32(20), promoted)
	})
}
