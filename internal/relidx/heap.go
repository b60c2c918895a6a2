package relidx

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// heapPageHeaderSize is the per page slot count prefix.
const heapPageHeaderSize = 2

// HeapFile is a fixed-format heap relation: every record has the same
// size, records are appended into slotted pages and addressed by
// (page number, slot number). Random record lookups go through a
// read-through cache since heap pages are immutable once written.
type HeapFile struct {
	logger     *zap.Logger
	pool       *BufferPool
	file       *PagedFile
	name       string
	recordSize int
	cache      *ristretto.Cache[uint64, []byte]
}

// NewHeapFile wraps an already open file as a heap relation with the given
// record size.
func NewHeapFile(logger *zap.Logger, aPool *BufferPool, file DBFile, name string, recordSize int) (*HeapFile, error) {
	if recordSize <= 0 || recordSize > PageSize-heapPageHeaderSize {
		return nil, fmt.Errorf("record size %d does not fit a page", recordSize)
	}

	aPagedFile, err := NewPagedFile(file, false)
	if err != nil {
		return nil, fmt.Errorf("open heap file: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: 10000,
		MaxCost:     1 << 22, // 4 MB of cached records
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create record cache: %w", err)
	}

	return &HeapFile{
		logger:     logger,
		pool:       aPool,
		file:       aPagedFile,
		name:       name,
		recordSize: recordSize,
		cache:      cache,
	}, nil
}

// OpenHeapFile opens or creates the heap relation at path. The relation
// name is the file's base name.
func OpenHeapFile(logger *zap.Logger, aPool *BufferPool, path string, recordSize int) (*HeapFile, error) {
	file, err := OpenDBFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewHeapFile(logger, aPool, file, filepath.Base(path), recordSize)
}

func (h *HeapFile) Name() string {
	return h.name
}

func (h *HeapFile) RecordSize() int {
	return h.recordSize
}

func (h *HeapFile) recordsPerPage() int {
	return (PageSize - heapPageHeaderSize) / h.recordSize
}

// InsertRecord appends a record into the last page with room, extending
// the file by a page when needed.
func (h *HeapFile) InsertRecord(ctx context.Context, record []byte) (RecordID, error) {
	if len(record) != h.recordSize {
		return RecordID{}, fmt.Errorf("record is %d bytes, relation records are %d", len(record), h.recordSize)
	}

	var (
		aPage *Page
		err   error
	)
	if h.file.TotalPages() == 0 {
		aPage, err = h.pool.AllocPage(ctx, h.file)
	} else {
		aPage, err = h.pool.ReadPage(ctx, h.file, PageIndex(h.file.TotalPages()-1))
	}
	if err != nil {
		return RecordID{}, fmt.Errorf("get last heap page: %w", err)
	}

	used := int(unmarshalUint16(aPage.Data, 0))
	if used >= h.recordsPerPage() {
		if err := h.pool.UnpinPage(h.file, aPage.Index, false); err != nil {
			return RecordID{}, err
		}
		aPage, err = h.pool.AllocPage(ctx, h.file)
		if err != nil {
			return RecordID{}, fmt.Errorf("alloc heap page: %w", err)
		}
		used = 0
	}

	offset := uint64(heapPageHeaderSize + used*h.recordSize)
	copy(aPage.Data[offset:offset+uint64(h.recordSize)], record)
	marshalUint16(aPage.Data, uint16(used+1), 0)

	rid := RecordID{PageNumber: aPage.Index, SlotNumber: uint16(used)}
	if err := h.pool.UnpinPage(h.file, aPage.Index, true); err != nil {
		return RecordID{}, err
	}

	return rid, nil
}

// GetRecord returns a copy of the record's raw bytes.
func (h *HeapFile) GetRecord(ctx context.Context, rid RecordID) ([]byte, error) {
	cacheKey := uint64(rid.PageNumber)<<16 | uint64(rid.SlotNumber)
	if cached, ok := h.cache.Get(cacheKey); ok {
		record := make([]byte, h.recordSize)
		copy(record, cached)
		return record, nil
	}

	aPage, err := h.pool.ReadPage(ctx, h.file, rid.PageNumber)
	if err != nil {
		return nil, fmt.Errorf("read heap page %d: %w", rid.PageNumber, err)
	}

	used := int(unmarshalUint16(aPage.Data, 0))
	if int(rid.SlotNumber) >= used {
		if err := h.pool.UnpinPage(h.file, aPage.Index, false); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("slot %d of heap page %d is empty", rid.SlotNumber, rid.PageNumber)
	}

	offset := uint64(heapPageHeaderSize + int(rid.SlotNumber)*h.recordSize)
	record := make([]byte, h.recordSize)
	copy(record, aPage.Data[offset:offset+uint64(h.recordSize)])

	if err := h.pool.UnpinPage(h.file, aPage.Index, false); err != nil {
		return nil, err
	}

	cached := append([]byte(nil), record...)
	h.cache.Set(cacheKey, cached, int64(h.recordSize))

	return record, nil
}

// FlushFile writes dirty heap pages back to disk.
func (h *HeapFile) FlushFile(ctx context.Context) error {
	return h.pool.FlushFile(ctx, h.file)
}

func (h *HeapFile) Close(ctx context.Context) error {
	h.cache.Close()
	return multierr.Combine(
		h.pool.DropFile(ctx, h.file),
		h.file.Close(),
	)
}

// FileScan iterates the relation's records in (page, slot) order. No page
// stays pinned between calls.
type FileScan struct {
	heap     *HeapFile
	pageIdx  uint32
	slot     int
	pageUsed int
	rid      RecordID
	valid    bool
}

func NewFileScan(h *HeapFile) *FileScan {
	return &FileScan{
		heap:     h,
		slot:     -1,
		pageUsed: -1,
	}
}

// Next advances to the next record and returns its ID, io.EOF once the
// relation is exhausted.
func (fs *FileScan) Next(ctx context.Context) (RecordID, error) {
	for {
		if fs.pageUsed < 0 {
			if fs.pageIdx >= fs.heap.file.TotalPages() {
				fs.valid = false
				return RecordID{}, io.EOF
			}
			aPage, err := fs.heap.pool.ReadPage(ctx, fs.heap.file, PageIndex(fs.pageIdx))
			if err != nil {
				return RecordID{}, fmt.Errorf("read heap page %d: %w", fs.pageIdx, err)
			}
			fs.pageUsed = int(unmarshalUint16(aPage.Data, 0))
			if err := fs.heap.pool.UnpinPage(fs.heap.file, aPage.Index, false); err != nil {
				return RecordID{}, err
			}
			fs.slot = -1
		}

		fs.slot += 1
		if fs.slot >= fs.pageUsed {
			fs.pageIdx += 1
			fs.pageUsed = -1
			continue
		}

		fs.rid = RecordID{PageNumber: PageIndex(fs.pageIdx), SlotNumber: uint16(fs.slot)}
		fs.valid = true
		return fs.rid, nil
	}
}

// Record returns the raw bytes of the record Next last returned.
func (fs *FileScan) Record(ctx context.Context) ([]byte, error) {
	if !fs.valid {
		return nil, fmt.Errorf("file scan has no current record")
	}
	return fs.heap.GetRecord(ctx, fs.rid)
}
