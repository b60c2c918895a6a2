package relidx

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/relidx/relidx/pkg/lrucache"
)

type frameKey struct {
	fileID  uint64
	pageIdx PageIndex
}

// BufferPool is a pin counted page cache shared by every paged file in the
// process. Pages are pinned while in use, unpinned with a dirty flag, and
// written back when evicted or when their file is flushed. Eviction is LRU
// over unpinned frames only.
type BufferPool struct {
	logger    *zap.Logger
	maxFrames int
	frames    *lrucache.Cache[frameKey, *Page]
	mu        sync.Mutex
}

func NewBufferPool(logger *zap.Logger, maxFrames int) *BufferPool {
	if maxFrames <= 0 {
		maxFrames = 1000 // default limit
	}
	return &BufferPool{
		logger:    logger,
		maxFrames: maxFrames,
		frames:    lrucache.New[frameKey, *Page](),
	}
}

// ReadPage returns the requested page pinned, loading it from the file on
// a cache miss. Every ReadPage must be paired with exactly one UnpinPage.
func (p *BufferPool) ReadPage(ctx context.Context, f *PagedFile, pageIdx PageIndex) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := frameKey{fileID: f.id, pageIdx: pageIdx}
	if aPage, ok := p.frames.Get(key); ok {
		aPage.pins += 1
		return aPage, nil
	}

	if pageIdx >= PageIndex(f.totalPages) {
		return nil, fmt.Errorf("read page %d of %d: %w", pageIdx, f.totalPages, ErrPageNotFound)
	}

	if err := p.evictIfNeeded(); err != nil {
		return nil, err
	}

	buf := f.frame()
	if _, err := f.file.ReadAt(buf, int64(pageIdx)*PageSize); err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageIdx, err)
	}

	aPage := &Page{
		Index: pageIdx,
		Data:  buf,
		file:  f,
		pins:  1,
	}
	p.frames.Put(key, aPage)

	return aPage, nil
}

// AllocPage extends the file by one zeroed page and returns it pinned. The
// caller populates it and unpins it dirty, the flush writes it out.
func (p *BufferPool) AllocPage(ctx context.Context, f *PagedFile) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.evictIfNeeded(); err != nil {
		return nil, err
	}

	pageIdx := PageIndex(f.totalPages)
	f.totalPages += 1

	aPage := &Page{
		Index: pageIdx,
		Data:  f.frame(),
		file:  f,
		pins:  1,
	}
	p.frames.Put(frameKey{fileID: f.id, pageIdx: pageIdx}, aPage)

	return aPage, nil
}

// UnpinPage releases one pin, recording whether the caller modified the
// page.
func (p *BufferPool) UnpinPage(f *PagedFile, pageIdx PageIndex, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	aPage, ok := p.frames.Get(frameKey{fileID: f.id, pageIdx: pageIdx})
	if !ok {
		return fmt.Errorf("unpin page %d: %w", pageIdx, ErrPageNotFound)
	}
	if aPage.pins == 0 {
		return fmt.Errorf("unpin page %d: %w", pageIdx, ErrPageNotPinned)
	}

	aPage.pins -= 1
	if dirty {
		aPage.dirty = true
	}

	return nil
}

// FlushFile writes every dirty frame of the file back to disk.
func (p *BufferPool) FlushFile(ctx context.Context, f *PagedFile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var flushErr error
	p.frames.Each(func(key frameKey, aPage *Page) bool {
		if key.fileID != f.id || !aPage.dirty {
			return true
		}
		if err := p.writePage(aPage); err != nil {
			flushErr = err
			return false
		}
		return true
	})

	return flushErr
}

// DropFile flushes and forgets every frame of the file. Outstanding pins
// are a bug in the caller and fail the drop.
func (p *BufferPool) DropFile(ctx context.Context, f *PagedFile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		keys   = make([]frameKey, 0)
		pinned int
	)
	p.frames.Each(func(key frameKey, aPage *Page) bool {
		if key.fileID != f.id {
			return true
		}
		if aPage.pins > 0 {
			pinned += 1
		}
		keys = append(keys, key)
		return true
	})
	if pinned > 0 {
		return fmt.Errorf("drop file with %d pinned pages: %w", pinned, ErrPagePinned)
	}

	for _, key := range keys {
		aPage, _ := p.frames.Get(key)
		if aPage != nil && aPage.dirty {
			if err := p.writePage(aPage); err != nil {
				return err
			}
		}
		p.frames.Remove(key)
	}

	return nil
}

// PinnedPages reports how many frames of the file hold outstanding pins.
func (p *BufferPool) PinnedPages(f *PagedFile) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pinned := 0
	p.frames.Each(func(key frameKey, aPage *Page) bool {
		if key.fileID == f.id && aPage.pins > 0 {
			pinned += 1
		}
		return true
	})
	return pinned
}

func (p *BufferPool) evictIfNeeded() error {
	if p.frames.Len() < p.maxFrames {
		return nil
	}

	key, aPage, ok := p.frames.EvictIf(func(_ frameKey, aPage *Page) bool {
		return aPage.pins == 0
	})
	if !ok {
		return ErrBufferExceeded
	}

	if aPage.dirty {
		if err := p.writePage(aPage); err != nil {
			// Put the frame back, losing it would lose the write.
			p.frames.Put(key, aPage)
			return err
		}
	}

	p.logger.Debug("evicted page",
		zap.Uint64("file", key.fileID),
		zap.Uint32("page", uint32(key.pageIdx)))

	return nil
}

func (p *BufferPool) writePage(aPage *Page) error {
	if _, err := aPage.file.file.WriteAt(aPage.Data, int64(aPage.Index)*PageSize); err != nil {
		return fmt.Errorf("write page %d: %w", aPage.Index, err)
	}
	aPage.dirty = false
	return nil
}
