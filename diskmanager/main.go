// Package diskmanager owns OS file handles for heap files and translates
// between (fileID, local page number) and the global page id the buffer
// pool uses to key its frame table. Grounded on
// storage_engine/disk_manager/main.go, trimmed to the single-file-per-
// relation model spec.md §6 describes (createFile, destroyFile,
// openFile, closeFile, getFirstPage) and stripped of the WAL/B+Tree-only
// bits (WriteRootID/ReadMetadata, session-scoped OpenFile counter) that
// had no owner once indexes and WAL replay were dropped as non-goals.
package diskmanager

import (
	"fmt"
	"os"

	"heapdb/page"
	"heapdb/types"
)

func NewDiskManager() *DiskManager {
	return &DiskManager{
		files:      make(map[uint32]*FileDescriptor),
		byPath:     make(map[string]uint32),
		nextFileID: 1,
	}
}

// CreateFile implements the file layer's createFile(name): §4.1 step 1
// requires createHeapFile to fail with FILEEXISTS when the file already
// opens successfully.
func (dm *DiskManager) CreateFile(path string) (uint32, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if _, exists := dm.byPath[path]; exists {
		return 0, types.NewStatusError(types.FileExists)
	}
	if _, err := os.Stat(path); err == nil {
		return 0, types.NewStatusError(types.FileExists)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return 0, types.NewStatusError(types.FileExists)
		}
		return 0, fmt.Errorf("create file %s: %w", path, err)
	}

	fileID := dm.nextFileID
	dm.nextFileID++

	dm.files[fileID] = &FileDescriptor{FileID: fileID, FilePath: path, File: file, HeaderPageNo: 0}
	dm.byPath[path] = fileID
	return fileID, nil
}

// OpenFile opens an existing file (creating it is not implied, callers
// use CreateFile first). Idempotent: reopening an already-open path
// returns the existing file id.
func (dm *DiskManager) OpenFile(path string) (uint32, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if id, ok := dm.byPath[path]; ok {
		return id, nil
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return 0, fmt.Errorf("open file %s: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("stat file %s: %w", path, err)
	}
	numPages := int32(stat.Size() / page.PageSize)

	fileID := dm.nextFileID
	dm.nextFileID++

	dm.files[fileID] = &FileDescriptor{FileID: fileID, FilePath: path, File: file, NextPageID: numPages, HeaderPageNo: 0}
	dm.byPath[path] = fileID
	return fileID, nil
}

// DestroyFile implements the file layer's destroyFile(name): removes the
// backing file outright. Matches original_source's destroyHeapFile, which
// delegates straight to db.destroyFile.
func (dm *DiskManager) DestroyFile(path string) error {
	dm.mu.Lock()
	if id, ok := dm.byPath[path]; ok {
		if fd := dm.files[id]; fd != nil && fd.File != nil {
			fd.File.Close()
		}
		delete(dm.files, id)
		delete(dm.byPath, path)
	}
	dm.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("destroy file %s: %w", path, err)
	}
	return nil
}

func (dm *DiskManager) CloseFile(fileID uint32) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	fd, ok := dm.files[fileID]
	if !ok {
		return fmt.Errorf("file %d not found", fileID)
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.File == nil {
		return nil
	}
	if err := fd.File.Sync(); err != nil {
		return fmt.Errorf("sync before close: %w", err)
	}
	if err := fd.File.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	fd.File = nil
	delete(dm.files, fileID)
	delete(dm.byPath, fd.FilePath)
	return nil
}

// AllocatePage reserves the next local page number for fileID. It does not
// write anything to disk, the buffer pool writes the page back on flush
// or eviction once its caller has initialized it.
func (dm *DiskManager) AllocatePage(fileID uint32) (int32, error) {
	dm.mu.RLock()
	fd, ok := dm.files[fileID]
	dm.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("file %d not found", fileID)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()
	local := fd.NextPageID
	fd.NextPageID++
	return local, nil
}

// FirstPage returns the local page number of fileID's header page, the
// file layer's getFirstPage operation from spec.md §6. A heap file
// always allocates its header page first, via AllocatePage, so this is
// the HeaderPageNo recorded in the file's descriptor at that point
// (zero for every file tracked by this disk manager, since header
// allocation always happens immediately after CreateFile).
func (dm *DiskManager) FirstPage(fileID uint32) (int32, error) {
	dm.mu.RLock()
	fd, ok := dm.files[fileID]
	dm.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("file %d not found", fileID)
	}
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	return fd.HeaderPageNo, nil
}

// ReadPage reads one page from disk. Callers pass the local page number;
// the global id used by the buffer pool is GlobalPageID(fileID, local).
func (dm *DiskManager) ReadPage(fileID uint32, local int32) (*page.Page, error) {
	dm.mu.RLock()
	fd, ok := dm.files[fileID]
	dm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file %d not found", fileID)
	}

	fd.mu.RLock()
	defer fd.mu.RUnlock()
	if fd.File == nil {
		return nil, fmt.Errorf("file %d is closed", fileID)
	}

	pg := &page.Page{
		ID:       GlobalPageID(fileID, local),
		FileID:   fileID,
		Data:     make([]byte, page.PageSize),
		PageType: types.PageTypeHeapData,
	}
	offset := int64(local) * page.PageSize
	n, err := fd.File.ReadAt(pg.Data, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read page %d of file %d: %w", local, fileID, err)
	}
	return pg, nil
}

// WritePage flushes one dirty frame back to disk.
func (dm *DiskManager) WritePage(pg *page.Page) error {
	dm.mu.RLock()
	fd, ok := dm.files[pg.FileID]
	dm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("file %d not found", pg.FileID)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.File == nil {
		return fmt.Errorf("file %d is closed", pg.FileID)
	}
	if len(pg.Data) != page.PageSize {
		return fmt.Errorf("page data size %d != %d", len(pg.Data), page.PageSize)
	}

	local := LocalPageNo(pg.ID)
	offset := int64(local) * page.PageSize
	if _, err := fd.File.WriteAt(pg.Data, offset); err != nil {
		return fmt.Errorf("write page %d of file %d: %w", local, pg.FileID, err)
	}
	if local >= fd.NextPageID {
		fd.NextPageID = local + 1
	}
	return nil
}

// Sync fsyncs a file's OS-level buffers. HeapFile.Close does not call it;
// CloseFile syncs the file itself before closing it.
func (dm *DiskManager) Sync(fileID uint32) error {
	dm.mu.RLock()
	fd, ok := dm.files[fileID]
	dm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("file %d not found", fileID)
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.File == nil {
		return nil
	}
	return fd.File.Sync()
}

// GlobalPageID folds a (fileID, local page number) pair into the global id
// space the buffer pool's frame table is keyed by. Deterministic in its
// inputs; the fileID half is assigned by the DiskManager in open order,
// so the same page can get a different global id after a restart.
func GlobalPageID(fileID uint32, local int32) int64 {
	return int64(fileID)<<32 | int64(uint32(local))
}

// LocalPageNo recovers the local page number encoded in a global id.
func LocalPageNo(globalID int64) int32 {
	return int32(uint32(globalID))
}

// FileIDOf recovers the file id encoded in a global id.
func FileIDOf(globalID int64) uint32 {
	return uint32(globalID >> 32)
}
