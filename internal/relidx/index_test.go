package relidx

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRelation builds a heap relation with one record per key, id at
// offset 0 and a fake name behind it.
func newTestRelation(t *testing.T, aPool *BufferPool, keys []int32) *HeapFile {
	t.Helper()
	ctx := context.Background()

	aRelation, err := NewHeapFile(testLogger, aPool, newMemDBFile(), "people", testRecordSize)
	require.NoError(t, err)

	faker := gofakeit.New(42)
	for _, key := range keys {
		record := testRecord(key)
		copy(record[4:24], faker.Name())
		_, err := aRelation.InsertRecord(ctx, record)
		require.NoError(t, err)
	}

	return aRelation
}

func TestOpenIndex_BulkBuild(t *testing.T) {
	ctx := context.Background()
	aPool := NewBufferPool(testLogger, 100)

	keys := make([]int32, 0, 200)
	for _, n := range rand.New(rand.NewSource(42)).Perm(200) {
		keys = append(keys, int32(n))
	}
	aRelation := newTestRelation(t, aPool, keys)
	defer aRelation.Close(ctx)

	anIndex, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Integer,
		WithDirectory(t.TempDir()),
		withOccupancy(3, 3),
	)
	require.NoError(t, err)
	defer anIndex.Close(ctx)

	assert.Equal(t, "people.0", anIndex.Name())

	// Every inserted record comes back, in ascending key order.
	rids := collectScan(t, anIndex, 0, ScanGTE, 199, ScanLTE)
	require.Len(t, rids, 200)

	seen := make(map[RecordID]struct{}, len(rids))
	previous := int32(-1)
	for _, rid := range rids {
		record, err := aRelation.GetRecord(ctx, rid)
		require.NoError(t, err)
		key := unmarshalInt32(record, 0)
		assert.Greater(t, key, previous)
		previous = key
		seen[rid] = struct{}{}
	}
	assert.Len(t, seen, 200)

	assert.Equal(t, 0, aPool.PinnedPages(anIndex.file))
	checkTreeInvariants(t, anIndex)
}

func TestOpenIndex_Reopen(t *testing.T) {
	ctx := context.Background()
	aPool := NewBufferPool(testLogger, 100)
	dir := t.TempDir()

	aRelation := newTestRelation(t, aPool, []int32{30, 10, 20, 50, 40})
	defer aRelation.Close(ctx)

	anIndex, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Integer,
		WithDirectory(dir), withOccupancy(2, 2))
	require.NoError(t, err)

	firstScan := collectScan(t, anIndex, 0, ScanGTE, 100, ScanLTE)
	require.Len(t, firstScan, 5)
	require.NoError(t, anIndex.Close(ctx))

	t.Run("same metadata sees the same entries", func(t *testing.T) {
		reopened, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Integer,
			WithDirectory(dir), withOccupancy(2, 2))
		require.NoError(t, err)
		defer reopened.Close(ctx)

		assert.Equal(t, firstScan, collectScan(t, reopened, 0, ScanGTE, 100, ScanLTE))
	})

	t.Run("mismatched attribute type is rejected", func(t *testing.T) {
		_, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Double,
			WithDirectory(dir), withOccupancy(2, 2))
		assert.ErrorIs(t, err, ErrBadIndexInfo)
	})

	t.Run("mismatched attribute offset is rejected", func(t *testing.T) {
		// Plant the existing index file under the name a different offset
		// would resolve to, the header inside still names offset 0.
		existing, err := os.ReadFile(filepath.Join(dir, "people.0"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "people.4"), existing, 0644))

		_, err = OpenIndex(ctx, testLogger, aPool, aRelation, 4, Integer,
			WithDirectory(dir), withOccupancy(2, 2))
		assert.ErrorIs(t, err, ErrBadIndexInfo)
	})
}

func TestOpenIndex_Deterministic(t *testing.T) {
	ctx := context.Background()
	aPool := NewBufferPool(testLogger, 100)

	keys := make([]int32, 0, 100)
	for _, n := range rand.New(rand.NewSource(7)).Perm(100) {
		keys = append(keys, int32(n))
	}
	aRelation := newTestRelation(t, aPool, keys)
	defer aRelation.Close(ctx)

	dirOne, dirTwo := t.TempDir(), t.TempDir()

	buildIndex := func(dir string) {
		anIndex, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Integer,
			WithDirectory(dir), withOccupancy(3, 3))
		require.NoError(t, err)
		require.NoError(t, anIndex.Close(ctx))
	}
	buildIndex(dirOne)
	buildIndex(dirTwo)

	fileOne, err := os.ReadFile(filepath.Join(dirOne, "people.0"))
	require.NoError(t, err)
	fileTwo, err := os.ReadFile(filepath.Join(dirTwo, "people.0"))
	require.NoError(t, err)

	// Same inserts in the same order produce byte identical files.
	assert.Equal(t, fileOne, fileTwo)
}

func TestIndex_CloseEndsActiveScan(t *testing.T) {
	ctx := context.Background()
	aPool := NewBufferPool(testLogger, 100)

	aRelation := newTestRelation(t, aPool, []int32{10, 20, 30})
	defer aRelation.Close(ctx)

	anIndex, err := OpenIndex(ctx, testLogger, aPool, aRelation, 0, Integer,
		WithDirectory(t.TempDir()), withOccupancy(4, 4))
	require.NoError(t, err)

	require.NoError(t, anIndex.StartScan(ctx, 10, ScanGTE, 30, ScanLTE))
	_, err = anIndex.ScanNext(ctx)
	require.NoError(t, err)

	// Close releases the scan's pinned leaf before dropping the file.
	require.NoError(t, anIndex.Close(ctx))
}
