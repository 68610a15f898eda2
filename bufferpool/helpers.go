package bufferpool

import (
	"fmt"

	"heapdb/page"
)

// GetStats reports current occupancy and hit/miss counters. Exposed to
// operators via cmd/heapdbctl's stats subcommand.
func (bp *Pool) GetStats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	s := Stats{TotalPages: len(bp.pages), Capacity: bp.capacity, Hits: bp.hits, Misses: bp.misses}
	for _, pg := range bp.pages {
		pinned, dirty := pg.Snapshot()
		if pinned {
			s.PinnedPages++
		}
		if dirty {
			s.DirtyPages++
		}
	}
	return s
}

// Size reports the number of resident frames.
func (bp *Pool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pages)
}

func (bp *Pool) Capacity() int { return bp.capacity }

// GetPage returns a resident frame without touching disk, or nil.
func (bp *Pool) GetPage(globalPageID int64) *page.Page {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.pages[globalPageID]
}

// MarkDirty flags a resident page dirty without changing its pin count.
// HeapFileScan.MarkDirty does not call it; it sets the scan's own dirty
// flag, which is passed to UnpinPage.
func (bp *Pool) MarkDirty(globalPageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[globalPageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", globalPageID)
	}
	pg.MarkDirty()
	return nil
}
