package relidx

import (
	"fmt"
)

const (
	// levelAboveLeaves marks an internal node whose children are leaves.
	levelAboveLeaves = int32(1)
	// levelInternal marks an internal node whose children are themselves
	// internal nodes.
	levelInternal = int32(0)
)

// InternalNode is the typed view of a non leaf page: the level tag,
// ascending separator keys and one more child pointer than there are used
// keys. Children[i] covers keys < Keys[i], the last used child covers the
// rest.
type InternalNode struct {
	Level    int32
	Keys     []int32
	Children []PageIndex
	Used     uint32
}

func NewInternalNode(capacity uint32) *InternalNode {
	aNode := &InternalNode{
		Keys:     make([]int32, capacity),
		Children: make([]PageIndex, capacity+1),
	}
	for i := range aNode.Keys {
		aNode.Keys[i] = KeySentinel
	}
	return aNode
}

func (n *InternalNode) Capacity() uint32 {
	return uint32(len(n.Keys))
}

func (n *InternalNode) HasFreeSlot() bool {
	return n.Used < n.Capacity()
}

// ChildAt returns the child pointer for slot i, i ranging over
// [0, used keys].
func (n *InternalNode) ChildAt(i uint32) PageIndex {
	return n.Children[i]
}

// InsertKeyChild inserts a separator key together with the child pointer
// covering keys >= key, shifting larger entries right. The caller
// guarantees a free slot.
func (n *InternalNode) InsertKeyChild(key int32, child PageIndex) {
	slot := n.Used
	for i := uint32(0); i < n.Used; i++ {
		if key < n.Keys[i] {
			slot = i
			break
		}
	}

	for i := n.Used; i > slot; i-- {
		n.Keys[i] = n.Keys[i-1]
		n.Children[i+1] = n.Children[i]
	}
	n.Keys[slot] = key
	n.Children[slot+1] = child
	n.Used += 1
}

func (n *InternalNode) Size() uint64 {
	return 4 + uint64(n.Capacity())*keySize + uint64(n.Capacity()+1)*pageIndexSize
}

func (n *InternalNode) Marshal(buf []byte) error {
	if uint64(len(buf)) < n.Size() {
		return fmt.Errorf("internal page buffer too small: %d < %d", len(buf), n.Size())
	}

	i := uint64(0)
	marshalInt32(buf, n.Level, i)
	i += 4

	for idx := uint32(0); idx < n.Capacity(); idx++ {
		marshalInt32(buf, n.Keys[idx], i)
		i += keySize
	}
	for idx := uint32(0); idx <= n.Capacity(); idx++ {
		marshalUint32(buf, uint32(n.Children[idx]), i)
		i += pageIndexSize
	}

	return nil
}

func (n *InternalNode) Unmarshal(buf []byte) error {
	if uint64(len(buf)) < n.Size() {
		return fmt.Errorf("internal page truncated at %d bytes", len(buf))
	}

	i := uint64(0)
	n.Level = unmarshalInt32(buf, i)
	i += 4

	n.Used = 0
	for idx := uint32(0); idx < n.Capacity(); idx++ {
		n.Keys[idx] = unmarshalInt32(buf, i)
		i += keySize
	}
	for idx := uint32(0); idx <= n.Capacity(); idx++ {
		n.Children[idx] = PageIndex(unmarshalUint32(buf, i))
		i += pageIndexSize
	}

	for idx := uint32(0); idx < n.Capacity(); idx++ {
		if n.Keys[idx] == KeySentinel {
			break
		}
		n.Used += 1
	}

	return nil
}
