package relidx

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/ncw/directio"
)

type DBFile interface {
	io.ReadSeeker
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// OpenDBFile opens or creates a database file. With direct set, reads and
// writes bypass the OS page cache; buffer pool frames for such a file must
// be aligned blocks, which PagedFile.frame allocates.
func OpenDBFile(path string, direct bool) (DBFile, error) {
	if direct {
		return directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
}

var pagedFileCounter uint64

// PagedFile tracks page count bookkeeping on top of a DBFile. Page reads
// and writes go through the buffer pool, never directly through this type.
type PagedFile struct {
	id         uint64
	file       DBFile
	totalPages uint32
	direct     bool
}

// NewPagedFile wraps an open file, deriving the page count from its size.
func NewPagedFile(file DBFile, direct bool) (*PagedFile, error) {
	fileSize, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	if fileSize%PageSize != 0 {
		return nil, fmt.Errorf("file size is not divisible by page size: %d", fileSize)
	}

	return &PagedFile{
		id:         atomic.AddUint64(&pagedFileCounter, 1),
		file:       file,
		totalPages: uint32(fileSize / PageSize),
		direct:     direct,
	}, nil
}

func (f *PagedFile) TotalPages() uint32 {
	return f.totalPages
}

func (f *PagedFile) Close() error {
	return f.file.Close()
}

// frame allocates a page sized buffer suitable for IO against this file.
func (f *PagedFile) frame() []byte {
	if f.direct {
		return directio.AlignedBlock(PageSize)
	}
	return make([]byte, PageSize)
}
