package diskmanager

import (
	"os"
	"sync"
)

// PageKey identifies a page local to one file, before it is folded into
// the global page-id space the buffer pool keys frames by.
type PageKey struct {
	FileID   uint32
	LocalNum int32
}

// FileDescriptor represents one open heap file.
type FileDescriptor struct {
	FileID       uint32
	FilePath     string
	File         *os.File
	NextPageID   int32 // next unallocated local page number within this file
	HeaderPageNo int32 // local page number of the file's header page

	mu sync.RWMutex
}

// DiskManager owns OS file handles and the global page-id space shared by
// the buffer pool. Global ids are deterministic, int64(fileID)<<32 |
// localPageNum, so no counter needs to persist across restarts.
type DiskManager struct {
	files      map[uint32]*FileDescriptor
	byPath     map[string]uint32
	nextFileID uint32

	mu sync.RWMutex
}
