package relidx

import (
	"context"
	"fmt"
)

// ScanOp is a range scan comparison operator.
type ScanOp int

const (
	ScanLT ScanOp = iota
	ScanLTE
	ScanGTE
	ScanGT
)

func (op ScanOp) String() string {
	switch op {
	case ScanLT:
		return "<"
	case ScanLTE:
		return "<="
	case ScanGTE:
		return ">="
	case ScanGT:
		return ">"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// StartScan positions the cursor at the first entry satisfying both
// bounds. At most one scan is active per index, starting a new one ends
// the previous scan. While a scan is active the index holds exactly one
// leaf page pinned.
func (idx *Index) StartScan(ctx context.Context, lowVal int32, lowOp ScanOp, highVal int32, highOp ScanOp) error {
	if lowVal > highVal {
		return ErrBadScanRange
	}
	if lowOp != ScanGT && lowOp != ScanGTE {
		return fmt.Errorf("low operator %s: %w", lowOp, ErrBadOpcodes)
	}
	if highOp != ScanLT && highOp != ScanLTE {
		return fmt.Errorf("high operator %s: %w", highOp, ErrBadOpcodes)
	}

	if idx.scanActive {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}

	idx.lowVal, idx.lowOp = lowVal, lowOp
	idx.highVal, idx.highOp = highVal, highOp

	leafPage, err := idx.descendToLeaf(ctx, lowVal)
	if err != nil {
		return err
	}

	// Walk the sibling chain until some entry matches both predicates.
	for {
		aLeaf := NewLeafNode(idx.leafCapacity)
		if err := aLeaf.Unmarshal(leafPage.Data); err != nil {
			_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
			return err
		}

		for entry := uint32(0); entry < aLeaf.Used; entry++ {
			key := aLeaf.Keys[entry]
			if idx.matchesLow(key) && idx.matchesHigh(key) {
				idx.scanActive = true
				idx.currentPage = leafPage
				idx.currentPageIdx = leafPage.Index
				idx.nextEntry = int(entry)
				return nil
			}
		}

		// No match here. Give up unless keys further right can still
		// qualify.
		if maxKey, ok := aLeaf.MaxKey(); ok && maxKey >= idx.highVal {
			_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
			return ErrNoSuchKeyFound
		}
		if aLeaf.RightSibling == NullPage {
			_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
			return ErrNoSuchKeyFound
		}

		siblingPage, err := idx.pool.ReadPage(ctx, idx.file, aLeaf.RightSibling)
		if err != nil {
			_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
			return fmt.Errorf("read leaf page %d: %w", aLeaf.RightSibling, err)
		}
		if err := idx.pool.UnpinPage(idx.file, leafPage.Index, false); err != nil {
			return err
		}
		leafPage = siblingPage
	}
}

// ScanNext returns the record ID of the next matching entry, advancing
// across leaves as needed. Once the high bound is crossed every further
// call fails with ErrIndexScanCompleted until the scan is ended.
func (idx *Index) ScanNext(ctx context.Context) (RecordID, error) {
	if !idx.scanActive {
		return RecordID{}, ErrScanNotInitialized
	}

	aLeaf := NewLeafNode(idx.leafCapacity)
	if err := aLeaf.Unmarshal(idx.currentPage.Data); err != nil {
		return RecordID{}, err
	}

	for idx.nextEntry >= int(aLeaf.Used) {
		if aLeaf.RightSibling == NullPage {
			return RecordID{}, ErrIndexScanCompleted
		}
		siblingPage, err := idx.pool.ReadPage(ctx, idx.file, aLeaf.RightSibling)
		if err != nil {
			return RecordID{}, fmt.Errorf("read leaf page %d: %w", aLeaf.RightSibling, err)
		}
		if err := idx.pool.UnpinPage(idx.file, idx.currentPageIdx, false); err != nil {
			return RecordID{}, err
		}
		idx.currentPage = siblingPage
		idx.currentPageIdx = siblingPage.Index
		idx.nextEntry = 0
		if err := aLeaf.Unmarshal(idx.currentPage.Data); err != nil {
			return RecordID{}, err
		}
	}

	key := aLeaf.Keys[idx.nextEntry]
	if !idx.matchesHigh(key) {
		return RecordID{}, ErrIndexScanCompleted
	}

	rid := aLeaf.Rids[idx.nextEntry]
	idx.nextEntry += 1
	return rid, nil
}

// EndScan releases the leaf the cursor holds and resets the scan state.
func (idx *Index) EndScan() error {
	if !idx.scanActive {
		return ErrScanNotInitialized
	}

	err := idx.pool.UnpinPage(idx.file, idx.currentPageIdx, false)
	idx.scanActive = false
	idx.currentPage = nil
	idx.currentPageIdx = NullPage
	idx.nextEntry = -1
	return err
}

// descendToLeaf walks root to leaf choosing the child that would contain
// the low bound, keeping at most two pages pinned at a time and returning
// the leaf still pinned.
func (idx *Index) descendToLeaf(ctx context.Context, key int32) (*Page, error) {
	aPage, err := idx.pool.ReadPage(ctx, idx.file, idx.rootPageIdx)
	if err != nil {
		return nil, fmt.Errorf("read root page: %w", err)
	}

	for {
		aNode := NewInternalNode(idx.nodeCapacity)
		if err := aNode.Unmarshal(aPage.Data); err != nil {
			_ = idx.pool.UnpinPage(idx.file, aPage.Index, false)
			return nil, err
		}

		childIdx := aNode.ChildAt(findChildSlot(aNode, key))
		childPage, err := idx.pool.ReadPage(ctx, idx.file, childIdx)
		if err != nil {
			_ = idx.pool.UnpinPage(idx.file, aPage.Index, false)
			return nil, fmt.Errorf("read page %d: %w", childIdx, err)
		}
		if err := idx.pool.UnpinPage(idx.file, aPage.Index, false); err != nil {
			_ = idx.pool.UnpinPage(idx.file, childPage.Index, false)
			return nil, err
		}

		if aNode.Level == levelAboveLeaves {
			return childPage, nil
		}
		aPage = childPage
	}
}

func (idx *Index) matchesLow(key int32) bool {
	if idx.lowOp == ScanGT {
		return key > idx.lowVal
	}
	return key >= idx.lowVal
}

func (idx *Index) matchesHigh(key int32) bool {
	if idx.highOp == ScanLT {
		return key < idx.highVal
	}
	return key <= idx.highVal
}
