package relidx

const (
	PageSize = 4096 // 4 kilobytes

	// On-disk sizes of the fixed-width fields making up node entries.
	keySize       = 4
	pageIndexSize = 4
	recordIDSize  = 8 // page number + slot number + struct padding

	// DefaultLeafOccupancy is the number of (key, record ID) pairs a leaf
	// page holds: everything after the right sibling pointer divided into
	// key + record ID entries.
	DefaultLeafOccupancy = uint32((PageSize - pageIndexSize) / (keySize + recordIDSize))

	// DefaultNodeOccupancy is the number of separator keys an internal
	// page holds: everything after the level field divided into key +
	// child pointer entries, leaving room for the extra rightmost child.
	DefaultNodeOccupancy = uint32((PageSize - 4 - pageIndexSize) / (keySize + pageIndexSize))
)

type PageIndex uint32

// NullPage marks "no page" in sibling and child pointers, page 0 being
// always the index header page.
const NullPage = PageIndex(0)

// KeySentinel marks an unused key slot on disk. It is legacy wire format,
// in memory occupancy is tracked explicitly via used counts.
const KeySentinel = int32(1<<31 - 1)

// Page is a single buffer pool frame. Data is the raw on-disk page, typed
// node views unmarshal from and marshal back into it. The pin count and
// dirty flag are managed by the buffer pool.
type Page struct {
	Index PageIndex
	Data  []byte

	file  *PagedFile
	pins  int
	dirty bool
}
