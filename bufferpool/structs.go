package bufferpool

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"heapdb/diskmanager"
	"heapdb/page"
)

// Pool caches page frames in memory with LRU eviction, backed by a
// ristretto second-chance cache that remembers the bytes of pages evicted
// while clean so a later FetchPage can skip the disk read entirely.
type Pool struct {
	pages       map[int64]*page.Page // globalPageID -> frame
	capacity    int
	diskManager *diskmanager.DiskManager
	accessOrder []int64 // LRU tracking: most recently used at end

	victims *ristretto.Cache[int64, []byte] // second-chance cache of evicted clean pages

	hits, misses uint64

	mu sync.Mutex
}

// Stats reports point-in-time buffer pool occupancy and effectiveness.
type Stats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
	Hits        uint64
	Misses      uint64
}
