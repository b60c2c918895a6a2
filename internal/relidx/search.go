package relidx

// findChildSlot returns the index of the child to descend into from an
// internal node: the smallest i such that key < Keys[i], or the used key
// count when no separator exceeds the key.
func findChildSlot(aNode *InternalNode, key int32) uint32 {
	for i := uint32(0); i < aNode.Used; i++ {
		if key < aNode.Keys[i] {
			return i
		}
	}
	return aNode.Used
}

// findInsertSlot returns the position at which key keeps the leaf sorted,
// 0 on an empty leaf. Duplicate keys are not supported so equality never
// arises.
func findInsertSlot(aLeaf *LeafNode, key int32) uint32 {
	for i := uint32(0); i < aLeaf.Used; i++ {
		if key < aLeaf.Keys[i] {
			return i
		}
	}
	return aLeaf.Used
}
