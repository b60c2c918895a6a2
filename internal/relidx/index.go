package relidx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// headerPageIdx is the well known location of the index metadata page.
const headerPageIdx = PageIndex(0)

// Index is a clustered B+ tree over one int32 attribute of a heap
// relation, mapping key values to record IDs. It owns its paged file and
// cooperates with a shared buffer pool; between public calls no page is
// pinned except the leaf held by an active scan.
type Index struct {
	logger *zap.Logger
	pool   *BufferPool
	file   *PagedFile

	indexName      string
	dir            string
	directIO       bool
	relationName   string
	attrByteOffset int32
	attrType       AttrType
	rootPageIdx    PageIndex

	leafCapacity uint32
	nodeCapacity uint32

	// Range scan cursor, at most one active per index.
	scanActive     bool
	currentPage    *Page
	currentPageIdx PageIndex
	nextEntry      int
	lowVal         int32
	highVal        int32
	lowOp          ScanOp
	highOp         ScanOp
}

type IndexOption func(*Index)

// WithDirectory places the index file somewhere other than the current
// directory.
func WithDirectory(dir string) IndexOption {
	return func(idx *Index) {
		idx.dir = dir
	}
}

// WithDirectIO opens the index file bypassing the OS page cache.
func WithDirectIO() IndexOption {
	return func(idx *Index) {
		idx.directIO = true
	}
}

// withOccupancy shrinks node capacities so tests can force splits with a
// handful of keys. Files written with non default occupancy are only
// readable with the same occupancy.
func withOccupancy(leaf, node uint32) IndexOption {
	return func(idx *Index) {
		idx.leafCapacity = leaf
		idx.nodeCapacity = node
	}
}

// OpenIndex opens the index over the given relation and attribute,
// creating and bulk building it from the relation when the index file does
// not exist yet. The file is named "<relation>.<offset>".
func OpenIndex(ctx context.Context, logger *zap.Logger, aPool *BufferPool, aRelation *HeapFile, attrByteOffset int32, attrType AttrType, opts ...IndexOption) (*Index, error) {
	idx := &Index{
		logger:         logger,
		pool:           aPool,
		dir:            ".",
		relationName:   aRelation.Name(),
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		leafCapacity:   DefaultLeafOccupancy,
		nodeCapacity:   DefaultNodeOccupancy,
		currentPageIdx: NullPage,
		nextEntry:      -1,
	}
	for _, opt := range opts {
		opt(idx)
	}

	idx.indexName = fmt.Sprintf("%s.%d", idx.relationName, idx.attrByteOffset)
	path := filepath.Join(idx.dir, idx.indexName)

	_, statErr := os.Stat(path)
	exists := statErr == nil

	file, err := OpenDBFile(path, idx.directIO)
	if err != nil {
		return nil, fmt.Errorf("open index file %s: %w", path, err)
	}
	idx.file, err = NewPagedFile(file, idx.directIO)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if exists {
		if err := idx.openExisting(ctx); err != nil {
			_ = idx.pool.DropFile(ctx, idx.file)
			_ = idx.file.Close()
			return nil, err
		}
		return idx, nil
	}

	if err := idx.create(ctx); err != nil {
		_ = idx.file.Close()
		return nil, err
	}
	if err := idx.bulkBuild(ctx, aRelation); err != nil {
		_ = idx.pool.DropFile(ctx, idx.file)
		_ = idx.file.Close()
		return nil, err
	}
	if err := idx.pool.FlushFile(ctx, idx.file); err != nil {
		_ = idx.file.Close()
		return nil, err
	}

	return idx, nil
}

// Name returns the index file name, "<relation>.<offset>".
func (idx *Index) Name() string {
	return idx.indexName
}

// openExisting validates the header page against the caller supplied
// metadata and caches the root location.
func (idx *Index) openExisting(ctx context.Context) error {
	headerPage, err := idx.pool.ReadPage(ctx, idx.file, headerPageIdx)
	if err != nil {
		return fmt.Errorf("read header page: %w", err)
	}

	meta := new(MetaNode)
	if _, err := meta.Unmarshal(headerPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, headerPage.Index, false)
		return err
	}
	if err := idx.pool.UnpinPage(idx.file, headerPage.Index, false); err != nil {
		return err
	}

	if meta.RelationName != idx.relationName ||
		meta.AttrByteOffset != idx.attrByteOffset ||
		meta.AttrType != idx.attrType {
		return fmt.Errorf("open %s (relation %q, offset %d, type %s): %w",
			idx.indexName, meta.RelationName, meta.AttrByteOffset, meta.AttrType, ErrBadIndexInfo)
	}

	idx.rootPageIdx = meta.RootPage

	idx.logger.Debug("opened existing index",
		zap.String("index", idx.indexName),
		zap.Uint32("root_page", uint32(idx.rootPageIdx)))

	return nil
}

// create lays out a fresh index file: the header page, a root one level
// above the leaves and two empty leaves chained left to right.
func (idx *Index) create(ctx context.Context) error {
	headerPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return fmt.Errorf("alloc header page: %w", err)
	}
	rootPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return fmt.Errorf("alloc root page: %w", err)
	}
	leftLeafPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return fmt.Errorf("alloc leaf page: %w", err)
	}
	rightLeafPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return fmt.Errorf("alloc leaf page: %w", err)
	}

	aRoot := NewInternalNode(idx.nodeCapacity)
	aRoot.Level = levelAboveLeaves
	aRoot.Children[0] = leftLeafPage.Index
	aRoot.Children[1] = rightLeafPage.Index
	if err := aRoot.Marshal(rootPage.Data); err != nil {
		return err
	}

	leftLeaf := NewLeafNode(idx.leafCapacity)
	leftLeaf.RightSibling = rightLeafPage.Index
	if err := leftLeaf.Marshal(leftLeafPage.Data); err != nil {
		return err
	}

	rightLeaf := NewLeafNode(idx.leafCapacity)
	if err := rightLeaf.Marshal(rightLeafPage.Data); err != nil {
		return err
	}

	meta := &MetaNode{
		RelationName:   idx.relationName,
		AttrByteOffset: idx.attrByteOffset,
		AttrType:       idx.attrType,
		RootPage:       rootPage.Index,
	}
	if err := meta.Marshal(headerPage.Data); err != nil {
		return err
	}

	idx.rootPageIdx = rootPage.Index

	return multierr.Combine(
		idx.pool.UnpinPage(idx.file, headerPage.Index, true),
		idx.pool.UnpinPage(idx.file, rootPage.Index, true),
		idx.pool.UnpinPage(idx.file, leftLeafPage.Index, true),
		idx.pool.UnpinPage(idx.file, rightLeafPage.Index, true),
	)
}

// bulkBuild scans the base relation and inserts one entry per record,
// keyed by the int32 at the indexed attribute's byte offset.
func (idx *Index) bulkBuild(ctx context.Context, aRelation *HeapFile) error {
	fs := NewFileScan(aRelation)
	inserted := 0
	for {
		rid, err := fs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("scan relation: %w", err)
		}

		record, err := fs.Record(ctx)
		if err != nil {
			return fmt.Errorf("get record %s: %w", rid, err)
		}

		key := unmarshalInt32(record, uint64(idx.attrByteOffset))
		if err := idx.InsertEntry(ctx, key, rid); err != nil {
			return fmt.Errorf("insert entry %d: %w", key, err)
		}
		inserted += 1
	}

	idx.logger.Info("bulk built index",
		zap.String("index", idx.indexName),
		zap.Int("entries", inserted))

	return nil
}

// Close ends any active scan, flushes the index file and releases it.
// Outstanding pins at close surface as an error from the buffer pool.
func (idx *Index) Close(ctx context.Context) error {
	var errs error
	if idx.scanActive {
		errs = multierr.Append(errs, idx.EndScan())
	}
	errs = multierr.Append(errs, idx.pool.FlushFile(ctx, idx.file))
	errs = multierr.Append(errs, idx.pool.DropFile(ctx, idx.file))
	errs = multierr.Append(errs, idx.file.Close())
	return errs
}
