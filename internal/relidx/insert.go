package relidx

import (
	"context"
	"fmt"
)

// insertResult carries a split upward: the separator the parent must
// store and the page holding everything at or above it.
type insertResult struct {
	split       bool
	promotedKey int32
	newSibling  PageIndex
}

// InsertEntry inserts one (key, record ID) pair. The very first key ever
// inserted seeds the root's only separator, after that the tree grows by
// leaf and internal splits, adding a level at the root when a split
// propagates all the way up.
func (idx *Index) InsertEntry(ctx context.Context, key int32, rid RecordID) error {
	if err := idx.seedRootKey(ctx, key); err != nil {
		return err
	}

	res, err := idx.recurseInsert(ctx, idx.rootPageIdx, key, rid)
	if err != nil {
		return err
	}
	if !res.split {
		return nil
	}

	return idx.growRoot(ctx, res)
}

// seedRootKey writes the first inserted key into the empty root so the
// root always has one more used child than it has keys.
func (idx *Index) seedRootKey(ctx context.Context, key int32) error {
	aPage, err := idx.pool.ReadPage(ctx, idx.file, idx.rootPageIdx)
	if err != nil {
		return fmt.Errorf("read root page: %w", err)
	}

	aRoot := NewInternalNode(idx.nodeCapacity)
	if err := aRoot.Unmarshal(aPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, aPage.Index, false)
		return err
	}

	if aRoot.Used > 0 {
		return idx.pool.UnpinPage(idx.file, aPage.Index, false)
	}

	aRoot.Keys[0] = key
	aRoot.Used = 1
	if err := aRoot.Marshal(aPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, aPage.Index, false)
		return err
	}
	return idx.pool.UnpinPage(idx.file, aPage.Index, true)
}

// recurseInsert walks one internal node frame. Frames whose children are
// leaves do the actual entry insert, frames above them only route and
// absorb splits coming back up. The returned result reports this node's
// own split, if any.
func (idx *Index) recurseInsert(ctx context.Context, pageIdx PageIndex, key int32, rid RecordID) (insertResult, error) {
	aPage, err := idx.pool.ReadPage(ctx, idx.file, pageIdx)
	if err != nil {
		return insertResult{}, fmt.Errorf("read page %d: %w", pageIdx, err)
	}

	aNode := NewInternalNode(idx.nodeCapacity)
	if err := aNode.Unmarshal(aPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, aPage.Index, false)
		return insertResult{}, err
	}

	if aNode.Level == levelAboveLeaves {
		res, dirty, err := idx.insertIntoLeaf(ctx, aPage, aNode, key, rid)
		if unpinErr := idx.pool.UnpinPage(idx.file, aPage.Index, dirty); unpinErr != nil && err == nil {
			err = unpinErr
		}
		return res, err
	}

	childIdx := aNode.ChildAt(findChildSlot(aNode, key))
	childRes, err := idx.recurseInsert(ctx, childIdx, key, rid)
	if err != nil {
		_ = idx.pool.UnpinPage(idx.file, aPage.Index, false)
		return insertResult{}, err
	}
	if !childRes.split {
		return insertResult{}, idx.pool.UnpinPage(idx.file, aPage.Index, false)
	}

	res, err := idx.absorbSplit(ctx, aPage, aNode, childRes.promotedKey, childRes.newSibling)
	if unpinErr := idx.pool.UnpinPage(idx.file, aPage.Index, true); unpinErr != nil && err == nil {
		err = unpinErr
	}
	return res, err
}

// insertIntoLeaf handles the frame directly above the leaf level: pin the
// target leaf, insert in place when it has room, otherwise split it and
// absorb the promoted separator into this node. Reports whether this node
// was modified.
func (idx *Index) insertIntoLeaf(ctx context.Context, aPage *Page, aNode *InternalNode, key int32, rid RecordID) (insertResult, bool, error) {
	leafIdx := aNode.ChildAt(findChildSlot(aNode, key))
	leafPage, err := idx.pool.ReadPage(ctx, idx.file, leafIdx)
	if err != nil {
		return insertResult{}, false, fmt.Errorf("read leaf page %d: %w", leafIdx, err)
	}

	aLeaf := NewLeafNode(idx.leafCapacity)
	if err := aLeaf.Unmarshal(leafPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
		return insertResult{}, false, err
	}

	if aLeaf.HasFreeSlot() {
		aLeaf.InsertAt(findInsertSlot(aLeaf, key), key, rid)
		if err := aLeaf.Marshal(leafPage.Data); err != nil {
			_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
			return insertResult{}, false, err
		}
		return insertResult{}, false, idx.pool.UnpinPage(idx.file, leafPage.Index, true)
	}

	promoted, newLeafIdx, err := idx.splitLeaf(ctx, aLeaf, key)
	if err != nil {
		_ = idx.pool.UnpinPage(idx.file, leafPage.Index, true)
		return insertResult{}, false, err
	}

	// The new entry goes to whichever half covers its key, strictly less
	// than the separator stays left.
	if key < promoted {
		aLeaf.InsertAt(findInsertSlot(aLeaf, key), key, rid)
	} else {
		if err := idx.insertIntoSplitLeaf(ctx, newLeafIdx, key, rid); err != nil {
			_ = idx.pool.UnpinPage(idx.file, leafPage.Index, true)
			return insertResult{}, false, err
		}
	}
	if err := aLeaf.Marshal(leafPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, leafPage.Index, true)
		return insertResult{}, false, err
	}
	if err := idx.pool.UnpinPage(idx.file, leafPage.Index, true); err != nil {
		return insertResult{}, false, err
	}

	res, err := idx.absorbSplit(ctx, aPage, aNode, promoted, newLeafIdx)
	return res, true, err
}

func (idx *Index) insertIntoSplitLeaf(ctx context.Context, leafIdx PageIndex, key int32, rid RecordID) error {
	leafPage, err := idx.pool.ReadPage(ctx, idx.file, leafIdx)
	if err != nil {
		return fmt.Errorf("read split leaf page %d: %w", leafIdx, err)
	}

	aLeaf := NewLeafNode(idx.leafCapacity)
	if err := aLeaf.Unmarshal(leafPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
		return err
	}

	aLeaf.InsertAt(findInsertSlot(aLeaf, key), key, rid)
	if err := aLeaf.Marshal(leafPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, leafPage.Index, false)
		return err
	}
	return idx.pool.UnpinPage(idx.file, leafPage.Index, true)
}

// absorbSplit stores a separator and sibling pointer coming up from below,
// splitting this node too when it has no room. The updated node is
// marshalled back into aPage here, the caller unpins aPage.
func (idx *Index) absorbSplit(ctx context.Context, aPage *Page, aNode *InternalNode, promoted int32, sibling PageIndex) (insertResult, error) {
	if aNode.HasFreeSlot() {
		aNode.InsertKeyChild(promoted, sibling)
		if err := aNode.Marshal(aPage.Data); err != nil {
			return insertResult{}, err
		}
		return insertResult{}, nil
	}

	myPromoted, mySibling, err := idx.splitInternal(ctx, aNode, promoted, sibling)
	if err != nil {
		return insertResult{}, err
	}
	if err := aNode.Marshal(aPage.Data); err != nil {
		return insertResult{}, err
	}
	return insertResult{
		split:       true,
		promotedKey: myPromoted,
		newSibling:  mySibling,
	}, nil
}

// growRoot adds a level: a fresh root holding just the separator that
// escaped the old root, with the old root and its new sibling as its two
// children. The header page is updated to name the new root.
func (idx *Index) growRoot(ctx context.Context, res insertResult) error {
	newRootPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return fmt.Errorf("alloc root page: %w", err)
	}

	newRoot := NewInternalNode(idx.nodeCapacity)
	newRoot.Level = levelInternal
	newRoot.Keys[0] = res.promotedKey
	newRoot.Used = 1
	newRoot.Children[0] = idx.rootPageIdx
	newRoot.Children[1] = res.newSibling

	if err := newRoot.Marshal(newRootPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, newRootPage.Index, false)
		return err
	}
	if err := idx.pool.UnpinPage(idx.file, newRootPage.Index, true); err != nil {
		return err
	}

	idx.rootPageIdx = newRootPage.Index

	headerPage, err := idx.pool.ReadPage(ctx, idx.file, headerPageIdx)
	if err != nil {
		return fmt.Errorf("read header page: %w", err)
	}

	meta := new(MetaNode)
	if _, err := meta.Unmarshal(headerPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, headerPage.Index, false)
		return err
	}
	meta.RootPage = idx.rootPageIdx
	if err := meta.Marshal(headerPage.Data); err != nil {
		_ = idx.pool.UnpinPage(idx.file, headerPage.Index, false)
		return err
	}
	return idx.pool.UnpinPage(idx.file, headerPage.Index, true)
}
