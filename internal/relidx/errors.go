package relidx

import (
	"fmt"
)

// Index lifecycle and scan failure conditions, propagated to the caller
// without recovery.
var (
	// ErrBadIndexInfo means an existing index file's header disagrees with
	// the metadata the caller opened it with.
	ErrBadIndexInfo = fmt.Errorf("index header does not match caller metadata")

	// ErrBadOpcodes means a scan was started with operators other than
	// GT/GTE on the low bound or LT/LTE on the high bound.
	ErrBadOpcodes = fmt.Errorf("invalid scan operators")

	// ErrBadScanRange means the low bound exceeds the high bound.
	ErrBadScanRange = fmt.Errorf("scan low value greater than high value")

	// ErrNoSuchKeyFound means no key in the tree satisfies the scan
	// predicates.
	ErrNoSuchKeyFound = fmt.Errorf("no key satisfies the scan predicates")

	// ErrScanNotInitialized means ScanNext or EndScan was called with no
	// active scan.
	ErrScanNotInitialized = fmt.Errorf("no scan in progress")

	// ErrIndexScanCompleted means the cursor is exhausted under the
	// current predicates.
	ErrIndexScanCompleted = fmt.Errorf("index scan completed")
)

// Buffer pool failure conditions.
var (
	// ErrPageNotFound means the requested page is past the end of the
	// file or its frame is gone.
	ErrPageNotFound = fmt.Errorf("page not found")

	// ErrPageNotPinned means an unpin was attempted on a page with no
	// outstanding pins.
	ErrPageNotPinned = fmt.Errorf("page is not pinned")

	// ErrPagePinned means a file teardown found frames still pinned.
	ErrPagePinned = fmt.Errorf("page is still pinned")

	// ErrBufferExceeded means every frame in the pool is pinned and
	// nothing could be evicted.
	ErrBufferExceeded = fmt.Errorf("buffer pool exceeded, all pages pinned")
)
