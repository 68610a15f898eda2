// Package bufferpool implements the pin/dirty/LRU frame table the heap
// file layer is built on. Grounded on
// storage_engine/bufferpool/bufferpool.go: same LRU access-order slice,
// same addPage/evictLRU shape, same pin-count discipline. The WAL-
// flushed-LSN gate on eviction/flush is dropped, since crash recovery
// beyond close-time flush is a non-goal, and replaced with a ristretto-
// backed second-chance cache so github.com/dgraph-io/ristretto/v2 has an
// actual job: bytes of clean pages evicted from the pinned working set
// are kept around, so a page that cycles back in shortly after eviction
// is served without a disk read.
package bufferpool

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"heapdb/diskmanager"
	"heapdb/page"
	"heapdb/types"
)

// New creates a buffer pool with room for capacity frames, backed by dm.
func New(capacity int, dm *diskmanager.DiskManager) (*Pool, error) {
	victims, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters: int64(capacity) * 10,
		MaxCost:     int64(capacity) * page.PageSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create victim cache: %w", err)
	}

	return &Pool{
		pages:       make(map[int64]*page.Page, capacity),
		capacity:    capacity,
		diskManager: dm,
		accessOrder: make([]int64, 0, capacity),
		victims:     victims,
	}, nil
}

// FetchPage returns a pinned frame for globalPageID, loading it from the
// victim cache or disk if it is not already resident.
func (bp *Pool) FetchPage(globalPageID int64) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, exists := bp.pages[globalPageID]; exists {
		bp.hits++
		bp.updateAccessOrder(globalPageID)
		pg.Pin()
		return pg, nil
	}
	bp.misses++

	var pg *page.Page
	if data, ok := bp.victims.Get(globalPageID); ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		pg = &page.Page{
			ID:       globalPageID,
			FileID:   diskmanager.FileIDOf(globalPageID),
			Data:     cp,
			PageType: types.PageTypeHeapData,
		}
		bp.victims.Del(globalPageID)
	} else {
		var err error
		pg, err = bp.diskManager.ReadPage(diskmanager.FileIDOf(globalPageID), diskmanager.LocalPageNo(globalPageID))
		if err != nil {
			return nil, fmt.Errorf("read page %d from disk: %w", globalPageID, err)
		}
	}

	if err := bp.addPage(pg); err != nil {
		return nil, fmt.Errorf("add page to buffer pool: %w", err)
	}

	pg.Pin()
	return pg, nil
}

// NewPage allocates a fresh page for fileID, pins it, and marks it dirty.
func (bp *Pool) NewPage(fileID uint32, pageType types.PageType) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	local, err := bp.diskManager.AllocatePage(fileID)
	if err != nil {
		return nil, fmt.Errorf("allocate page: %w", err)
	}

	pg := &page.Page{
		ID:       diskmanager.GlobalPageID(fileID, local),
		FileID:   fileID,
		Data:     make([]byte, page.PageSize),
		PageType: pageType,
	}
	pg.Pin()
	pg.MarkDirty()

	if err := bp.addPage(pg); err != nil {
		pg.Unpin(false)
		return nil, fmt.Errorf("add new page to buffer pool: %w", err)
	}
	return pg, nil
}

// UnpinPage releases one pin on globalPageID. isDirty is OR'd into the
// frame's dirty flag, per §5, the dirty flag passed to unpin is the
// logical OR of all mutations observed on that pin.
func (bp *Pool) UnpinPage(globalPageID int64, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[globalPageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", globalPageID)
	}
	pg.Unpin(isDirty)
	return nil
}

// FlushPage writes globalPageID back to disk if dirty.
func (bp *Pool) FlushPage(globalPageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(globalPageID)
}

func (bp *Pool) flushLocked(globalPageID int64) error {
	pg, exists := bp.pages[globalPageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", globalPageID)
	}
	if !pg.IsDirty() {
		return nil
	}
	if err := bp.diskManager.WritePage(pg); err != nil {
		return fmt.Errorf("flush page %d: %w", globalPageID, err)
	}
	pg.ClearDirty()
	return nil
}

// FlushFile writes back every dirty page belonging to fileID, matching
// the buffer pool's flushFile(file) contract consumed by createHeapFile
// (§4.1) and HeapFile.Close (§4.2).
func (bp *Pool) FlushFile(fileID uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for id, pg := range bp.pages {
		if pg.FileID != fileID {
			continue
		}
		if err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages writes back every dirty page in the pool.
func (bp *Pool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for id := range bp.pages {
		if err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// addPage inserts pg into the pool, evicting the LRU unpinned frame first
// if at capacity. Caller holds bp.mu.
func (bp *Pool) addPage(pg *page.Page) error {
	if _, exists := bp.pages[pg.ID]; exists {
		bp.updateAccessOrder(pg.ID)
		return nil
	}
	if len(bp.pages) >= bp.capacity {
		if err := bp.evictLRU(); err != nil {
			return fmt.Errorf("evict page: %w", err)
		}
	}
	bp.pages[pg.ID] = pg
	bp.updateAccessOrder(pg.ID)
	return nil
}

// evictLRU evicts the least recently used unpinned frame, flushing it if
// dirty and admitting its bytes into the victim cache if clean. Caller
// holds bp.mu, which also serializes every Pin/Unpin on every resident
// frame, so the pinned check below cannot race with a concurrent pin.
func (bp *Pool) evictLRU() error {
	for i := 0; i < len(bp.accessOrder); i++ {
		id := bp.accessOrder[i]
		pg, exists := bp.pages[id]
		if !exists {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			i--
			continue
		}

		if pg.IsPinned() {
			continue
		}
		if pg.IsDirty() {
			if err := bp.diskManager.WritePage(pg); err != nil {
				return fmt.Errorf("write page %d during eviction: %w", id, err)
			}
			pg.ClearDirty()
		} else {
			cp := make([]byte, len(pg.Data))
			copy(cp, pg.Data)
			bp.victims.Set(id, cp, int64(len(cp)))
		}

		delete(bp.pages, id)
		bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
		return nil
	}
	return fmt.Errorf("all pages are pinned, cannot evict")
}

func (bp *Pool) updateAccessOrder(globalPageID int64) {
	for i, id := range bp.accessOrder {
		if id == globalPageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	bp.accessOrder = append(bp.accessOrder, globalPageID)
}
