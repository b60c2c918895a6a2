package relidx

import (
	"context"
	"testing"

	"github.com/dsnet/golib/memfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLogger = zap.NewNop()

// memDBFile adapts an in-memory file to the DBFile interface.
type memDBFile struct {
	*memfile.File
}

func (memDBFile) Close() error { return nil }

func newMemDBFile() DBFile {
	return memDBFile{memfile.New(nil)}
}

const testRecordSize = 28

// testRecord builds a fixed-format record with the int32 id at offset 0.
func testRecord(id int32) []byte {
	record := make([]byte, testRecordSize)
	marshalInt32(record, id, 0)
	return record
}

// newTestIndex creates an empty heap relation backed by an in-memory file
// and an index over it with shrunken node capacities so a handful of keys
// forces splits.
func newTestIndex(t *testing.T, leafCap, nodeCap uint32) (*Index, *HeapFile, *BufferPool) {
	t.Helper()
	ctx := context.Background()

	aPool := NewBufferPool(testLogger, 100)
	aRelation, err := NewHeapFile(testLogger, aPool, newMemDBFile(), "test_relation", testRecordSize)
	require.NoError(t, err)

	anIndex, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Integer,
		WithDirectory(t.TempDir()),
		withOccupancy(leafCap, nodeCap),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, anIndex.Close(ctx))
		require.NoError(t, aRelation.Close(ctx))
	})

	return anIndex, aRelation, aPool
}

// testRID derives a distinctive record ID from a key so scans can be
// checked against the keys that produced them.
func testRID(key int32) RecordID {
	return RecordID{PageNumber: PageIndex(1000 + key), SlotNumber: uint16(key)}
}

func insertKeys(t *testing.T, anIndex *Index, keys ...int32) {
	t.Helper()
	ctx := context.Background()
	for _, key := range keys {
		require.NoError(t, anIndex.InsertEntry(ctx, key, testRID(key)))
	}
}

// collectScan runs a full scan to completion and returns the record IDs in
// cursor order.
func collectScan(t *testing.T, anIndex *Index, lowVal int32, lowOp ScanOp, highVal int32, highOp ScanOp) []RecordID {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, anIndex.StartScan(ctx, lowVal, lowOp, highVal, highOp))
	defer func() {
		require.NoError(t, anIndex.EndScan())
	}()

	var rids []RecordID
	for {
		rid, err := anIndex.ScanNext(ctx)
		if err == ErrIndexScanCompleted {
			return rids
		}
		require.NoError(t, err)
		rids = append(rids, rid)
	}
}

func (idx *Index) readInternalForTest(t *testing.T, pageIdx PageIndex) *InternalNode {
	t.Helper()
	ctx := context.Background()

	aPage, err := idx.pool.ReadPage(ctx, idx.file, pageIdx)
	require.NoError(t, err)
	aNode := NewInternalNode(idx.nodeCapacity)
	require.NoError(t, aNode.Unmarshal(aPage.Data))
	require.NoError(t, idx.pool.UnpinPage(idx.file, pageIdx, false))
	return aNode
}

func (idx *Index) readLeafForTest(t *testing.T, pageIdx PageIndex) *LeafNode {
	t.Helper()
	ctx := context.Background()

	aPage, err := idx.pool.ReadPage(ctx, idx.file, pageIdx)
	require.NoError(t, err)
	aLeaf := NewLeafNode(idx.leafCapacity)
	require.NoError(t, aLeaf.Unmarshal(aPage.Data))
	require.NoError(t, idx.pool.UnpinPage(idx.file, pageIdx, false))
	return aLeaf
}

// checkTreeInvariants walks the whole tree and asserts the structural
// invariants: strictly ascending keys in every node, all leaves at the
// same depth, and a sibling chain that visits every leaf left to right in
// ascending key order. Requires at least one inserted key (until then the
// root has no used separators).
func checkTreeInvariants(t *testing.T, anIndex *Index) {
	t.Helper()

	var (
		leafDepths   []int
		leavesInWalk []PageIndex
	)

	var walk func(pageIdx PageIndex, depth int)
	walk = func(pageIdx PageIndex, depth int) {
		aNode := anIndex.readInternalForTest(t, pageIdx)

		require.GreaterOrEqual(t, aNode.Used, uint32(1), "internal node %d has no keys", pageIdx)
		for i := uint32(1); i < aNode.Used; i++ {
			assert.Less(t, aNode.Keys[i-1], aNode.Keys[i],
				"internal node %d keys not strictly ascending", pageIdx)
		}

		for i := uint32(0); i <= aNode.Used; i++ {
			if aNode.Level == levelAboveLeaves {
				leafDepths = append(leafDepths, depth+1)
				leavesInWalk = append(leavesInWalk, aNode.ChildAt(i))
			} else {
				walk(aNode.ChildAt(i), depth+1)
			}
		}
	}
	walk(anIndex.rootPageIdx, 0)

	for _, depth := range leafDepths {
		assert.Equal(t, leafDepths[0], depth, "leaves at unequal depths")
	}

	// The sibling chain must visit exactly the leaves of the in-order
	// walk, with globally ascending keys.
	var (
		chain   []PageIndex
		allKeys []int32
	)
	for pageIdx := leavesInWalk[0]; pageIdx != NullPage; {
		aLeaf := anIndex.readLeafForTest(t, pageIdx)
		chain = append(chain, pageIdx)
		for i := uint32(0); i < aLeaf.Used; i++ {
			allKeys = append(allKeys, aLeaf.Keys[i])
		}
		pageIdx = aLeaf.RightSibling
	}
	assert.Equal(t, leavesInWalk, chain, "sibling chain does not match tree order")

	for i := 1; i < len(allKeys); i++ {
		assert.Less(t, allKeys[i-1], allKeys[i], "leaf chain keys not strictly ascending")
	}

	// The header page must name the current root.
	ctx := context.Background()
	headerPage, err := anIndex.pool.ReadPage(ctx, anIndex.file, headerPageIdx)
	require.NoError(t, err)
	meta := new(MetaNode)
	_, err = meta.Unmarshal(headerPage.Data)
	require.NoError(t, err)
	require.NoError(t, anIndex.pool.UnpinPage(anIndex.file, headerPageIdx, false))
	assert.Equal(t, anIndex.rootPageIdx, meta.RootPage)
}
