package relidx

import (
	"fmt"
)

// RecordID identifies a tuple in the base relation by the heap page it
// lives on and its slot within that page.
type RecordID struct {
	PageNumber PageIndex
	SlotNumber uint16
}

func (r RecordID) String() string {
	return fmt.Sprintf("(%d, %d)", r.PageNumber, r.SlotNumber)
}

// Marshal writes the record ID at offset i using its fixed 8 byte wire
// layout, page number + slot number + two bytes of struct padding.
func (r RecordID) Marshal(buf []byte, i uint64) {
	marshalUint32(buf, uint32(r.PageNumber), i)
	marshalUint16(buf, r.SlotNumber, i+4)
	buf[i+6] = 0
	buf[i+7] = 0
}

func unmarshalRecordID(buf []byte, i uint64) RecordID {
	return RecordID{
		PageNumber: PageIndex(unmarshalUint32(buf, i)),
		SlotNumber: unmarshalUint16(buf, i+4),
	}
}

// AttrType tags the scalar type of the indexed attribute. Only Integer is
// implemented, the other tags exist for header compatibility.
type AttrType int32

const (
	Integer AttrType = iota
	Double
	String
)

func (t AttrType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Double:
		return "double"
	case String:
		return "string"
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}
