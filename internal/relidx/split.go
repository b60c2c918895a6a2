package relidx

import (
	"context"
	"fmt"
)

// leafSplitPoint picks the middle index and the separator to promote for a
// full leaf. For an even capacity the separator depends on where the
// inserted key falls relative to the two middle keys; when it falls
// between them the key itself is promoted by value. These rules are
// on-disk contract, two indexes built from the same inserts must produce
// identical files.
func leafSplitPoint(aLeaf *LeafNode, key int32) (uint32, int32) {
	half := aLeaf.Capacity() / 2

	if aLeaf.Capacity()%2 == 1 {
		return half, aLeaf.Keys[half]
	}

	a, b := aLeaf.Keys[half-1], aLeaf.Keys[half]
	switch {
	case key > a && key < b:
		return half, key
	case key > b:
		return half, b
	default:
		return half - 1, a
	}
}

// nodeSplitPoint mirrors leafSplitPoint for internal nodes. The even
// capacity fall-through promotes the left middle key, and an inserted key
// falling into either middle interval is promoted by value.
func nodeSplitPoint(aNode *InternalNode, key int32) (uint32, int32) {
	half := aNode.Capacity() / 2

	if aNode.Capacity()%2 == 0 {
		a, b := aNode.Keys[half-1], aNode.Keys[half]
		switch {
		case key > a && key < b:
			return half - 1, key
		case key > b:
			return half, b
		default:
			return half - 1, a
		}
	}

	switch {
	case key > aNode.Keys[half-1] && key < aNode.Keys[half]:
		return half - 1, key
	case key > aNode.Keys[half] && key < aNode.Keys[half+1]:
		return half, key
	case key < aNode.Keys[half-1]:
		return half - 1, aNode.Keys[half-1]
	default:
		return half, aNode.Keys[half]
	}
}

// splitLeaf splits a full leaf around the key about to be inserted. It
// allocates the right sibling, moves the upper half of the entries over,
// splices the sibling chain and returns the promoted separator and the new
// page. The inserted entry itself is NOT placed, the caller puts it on the
// side its key belongs to.
func (idx *Index) splitLeaf(ctx context.Context, aLeaf *LeafNode, key int32) (int32, PageIndex, error) {
	m, promoted := leafSplitPoint(aLeaf, key)

	newPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return 0, NullPage, fmt.Errorf("alloc leaf page: %w", err)
	}

	newLeaf := NewLeafNode(aLeaf.Capacity())
	j := uint32(0)
	for i := m; i < aLeaf.Capacity(); i++ {
		newLeaf.Keys[j] = aLeaf.Keys[i]
		newLeaf.Rids[j] = aLeaf.Rids[i]
		aLeaf.Keys[i] = KeySentinel
		j += 1
	}
	newLeaf.Used = aLeaf.Capacity() - m
	aLeaf.Used = m

	newLeaf.RightSibling = aLeaf.RightSibling
	aLeaf.RightSibling = newPage.Index

	if err := newLeaf.Marshal(newPage.Data); err != nil {
		return 0, NullPage, err
	}
	if err := idx.pool.UnpinPage(idx.file, newPage.Index, true); err != nil {
		return 0, NullPage, err
	}

	return promoted, newPage.Index, nil
}

// splitInternal splits a full internal node that is receiving the
// separator key and right-hand child of a lower split. The promoted key
// moves up and is stored in neither half; when the inserted key is itself
// the median its child becomes the new sibling's leftmost pointer,
// otherwise the pair lands on whichever side its key belongs to. Returns
// the separator to promote further and the new sibling page.
func (idx *Index) splitInternal(ctx context.Context, aNode *InternalNode, key int32, child PageIndex) (int32, PageIndex, error) {
	m, promoted := nodeSplitPoint(aNode, key)

	newPage, err := idx.pool.AllocPage(ctx, idx.file)
	if err != nil {
		return 0, NullPage, fmt.Errorf("alloc internal page: %w", err)
	}

	newNode := NewInternalNode(aNode.Capacity())
	newNode.Level = aNode.Level

	if key == promoted {
		// The inserted key is the median: it exists only in the parent
		// and its child pointer leads the new sibling.
		newNode.Children[0] = child
		j := uint32(0)
		for i := m + 1; i < aNode.Capacity(); i++ {
			newNode.Keys[j] = aNode.Keys[i]
			newNode.Children[j+1] = aNode.Children[i+1]
			aNode.Keys[i] = KeySentinel
			aNode.Children[i+1] = NullPage
			j += 1
		}
		newNode.Used = aNode.Capacity() - m - 1
		aNode.Used = m + 1
	} else {
		// The median at slot m moves up and vacates the left node.
		j := uint32(0)
		for i := m + 1; i < aNode.Capacity(); i++ {
			newNode.Keys[j] = aNode.Keys[i]
			newNode.Children[j] = aNode.Children[i]
			aNode.Keys[i] = KeySentinel
			aNode.Children[i] = NullPage
			j += 1
		}
		newNode.Children[j] = aNode.Children[aNode.Capacity()]
		aNode.Children[aNode.Capacity()] = NullPage
		newNode.Used = aNode.Capacity() - m - 1

		aNode.Keys[m] = KeySentinel
		aNode.Used = m

		if key < promoted {
			aNode.InsertKeyChild(key, child)
		} else {
			newNode.InsertKeyChild(key, child)
		}
	}

	if err := newNode.Marshal(newPage.Data); err != nil {
		return 0, NullPage, err
	}
	if err := idx.pool.UnpinPage(idx.file, newPage.Index, true); err != nil {
		return 0, NullPage, err
	}

	return promoted, newPage.Index, nil
}
