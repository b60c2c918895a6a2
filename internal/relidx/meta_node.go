package relidx

import (
	"bytes"
	"fmt"
)

// relationNameSize is the fixed, null padded width of the relation name in
// the index header page.
const relationNameSize = 20

// MetaNode is the typed view of the index header page, always the file's
// first page. It records which relation and attribute the index covers and
// where the current tree root lives.
type MetaNode struct {
	RelationName   string
	AttrByteOffset int32
	AttrType       AttrType
	RootPage       PageIndex
}

func (m *MetaNode) Size() uint64 {
	return relationNameSize + 4 + 4 + 4
}

func (m *MetaNode) Marshal(buf []byte) error {
	if len(m.RelationName) > relationNameSize {
		return fmt.Errorf("relation name %q longer than %d bytes", m.RelationName, relationNameSize)
	}

	i := uint64(0)
	for j := 0; j < relationNameSize; j++ {
		buf[j] = 0
	}
	copy(buf[i:i+relationNameSize], m.RelationName)
	i += relationNameSize

	marshalInt32(buf, m.AttrByteOffset, i)
	i += 4

	marshalInt32(buf, int32(m.AttrType), i)
	i += 4

	marshalUint32(buf, uint32(m.RootPage), i)

	return nil
}

func (m *MetaNode) Unmarshal(buf []byte) (uint64, error) {
	if uint64(len(buf)) < m.Size() {
		return 0, fmt.Errorf("header page truncated at %d bytes", len(buf))
	}

	i := uint64(0)
	m.RelationName = string(bytes.TrimRight(buf[i:i+relationNameSize], "\x00"))
	i += relationNameSize

	m.AttrByteOffset = unmarshalInt32(buf, i)
	i += 4

	m.AttrType = AttrType(unmarshalInt32(buf, i))
	i += 4

	m.RootPage = PageIndex(unmarshalUint32(buf, i))
	i += 4

	return i, nil
}
