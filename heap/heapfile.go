// HeapFile open/close and random access by RID, per spec.md §4.1 and
// §4.2. Grounded on original_source/Stage4/heapfile.C's createHeapFile,
// HeapFile::HeapFile, HeapFile::~HeapFile and HeapFile::getRecord, and on
// the bufferpool/diskmanager pin discipline they share.
package heap

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"heapdb/bufferpool"
	"heapdb/diskmanager"
	"heapdb/page"
	"heapdb/types"
)

// Env bundles the shared services every heap file in one database opens
// against: the disk manager, the buffer pool, and the directory each
// relation's backing file lives under.
type Env struct {
	baseDir string
	Disk    *diskmanager.DiskManager
	Pool    *bufferpool.Pool
}

func NewEnv(baseDir string, disk *diskmanager.DiskManager, pool *bufferpool.Pool) *Env {
	return &Env{baseDir: baseDir, Disk: disk, Pool: pool}
}

func (e *Env) path(name string) string {
	return filepath.Join(e.baseDir, name+".heap")
}

// CreateHeapFile implements §4.1: allocate the header page and first data
// page, wire the chain head/tail to that one page, flush, and close.
func (e *Env) CreateHeapFile(name string) error {
	fileID, err := e.Disk.CreateFile(e.path(name))
	if err != nil {
		return err
	}

	hdrPg, err := e.Pool.NewPage(fileID, types.PageTypeHeader)
	if err != nil {
		e.Disk.CloseFile(fileID)
		return fmt.Errorf("allocate header page: %w", err)
	}
	InitHeaderPage(hdrPg, name)

	dataPg, err := e.Pool.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		e.Pool.UnpinPage(hdrPg.ID, true)
		e.Disk.CloseFile(fileID)
		return fmt.Errorf("allocate first data page: %w", err)
	}
	dataLocal := diskmanager.LocalPageNo(dataPg.ID)
	InitDataPage(dataPg, dataLocal)

	SetFirstPage(hdrPg, dataLocal)
	SetLastPage(hdrPg, dataLocal)
	SetPageCnt(hdrPg, 2) // header + first data page; §9 open question 1
	SetRecCnt(hdrPg, 0)

	hdrErr := e.Pool.UnpinPage(hdrPg.ID, true)
	dataErr := e.Pool.UnpinPage(dataPg.ID, true)
	if hdrErr != nil {
		return hdrErr
	}
	if dataErr != nil {
		return dataErr
	}
	if err := e.Pool.FlushFile(fileID); err != nil {
		return fmt.Errorf("flush new heap file %q: %w", name, err)
	}
	return e.Disk.CloseFile(fileID)
}

// DestroyHeapFile delegates to the file layer's destroy operation (§4.1).
func (e *Env) DestroyHeapFile(name string) error {
	return e.Disk.DestroyFile(e.path(name))
}

// HeapFile is the base object: it owns the header pin and at most one
// data-page pin, and exposes record count and random access by RID.
type HeapFile struct {
	env    *Env
	fileID uint32
	name   string

	hdrPage  *page.Page
	hdrDirty bool

	curPage   *page.Page // nil when no data page is pinned
	curPageNo int32
	curRec    types.RID
	curDirty  bool

	mu sync.Mutex
}

// OpenHeapFile implements §4.2's constructor: open the file, pin the
// header, pin headerPage.firstPage as the current data page. Any failure
// unwinds pins already acquired.
func OpenHeapFile(env *Env, name string) (*HeapFile, error) {
	fileID, err := env.Disk.OpenFile(env.path(name))
	if err != nil {
		return nil, fmt.Errorf("open heap file %q: %w", name, err)
	}

	hdrLocal, err := env.Disk.FirstPage(fileID)
	if err != nil {
		env.Disk.CloseFile(fileID)
		return nil, fmt.Errorf("locate header page of %q: %w", name, err)
	}
	hdrGlobal := diskmanager.GlobalPageID(fileID, hdrLocal)
	hdrPg, err := env.Pool.FetchPage(hdrGlobal)
	if err != nil {
		env.Disk.CloseFile(fileID)
		return nil, fmt.Errorf("pin header page of %q: %w", name, err)
	}

	firstDataPage := GetFirstPage(hdrPg)
	var curPg *page.Page
	if firstDataPage != types.NoPage {
		curPg, err = env.Pool.FetchPage(diskmanager.GlobalPageID(fileID, firstDataPage))
		if err != nil {
			env.Pool.UnpinPage(hdrGlobal, false)
			env.Disk.CloseFile(fileID)
			return nil, fmt.Errorf("pin first data page of %q: %w", name, err)
		}
	}

	return &HeapFile{
		env:       env,
		fileID:    fileID,
		name:      name,
		hdrPage:   hdrPg,
		curPage:   curPg,
		curPageNo: firstDataPage,
		curRec:    types.NullRID,
	}, nil
}

// GetRecCnt returns the live record count tracked in the header page.
func (hf *HeapFile) GetRecCnt() int32 {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return GetRecCnt(hf.hdrPage)
}

// GetRecord implements §4.2: repin if the requested page differs from
// the currently pinned one, then delegate to the page layer.
func (hf *HeapFile) GetRecord(rid types.RID) (types.Record, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hf.curPage == nil || hf.curPageNo != rid.PageNo {
		if err := hf.swapCurrent(rid.PageNo); err != nil {
			return types.Record{}, err
		}
	}

	data, err := GetRecord(hf.curPage, rid.SlotNo)
	if err != nil {
		return types.Record{}, err
	}
	hf.curRec = rid
	return types.Record{Data: data}, nil
}

// swapCurrent unpins the current data page (if any) and pins pageNo as
// the new current page. Caller holds hf.mu.
func (hf *HeapFile) swapCurrent(pageNo int32) error {
	if hf.curPage != nil {
		if err := hf.env.Pool.UnpinPage(hf.curPage.ID, hf.curDirty); err != nil {
			return fmt.Errorf("unpin current page: %w", err)
		}
	}
	pg, err := hf.env.Pool.FetchPage(diskmanager.GlobalPageID(hf.fileID, pageNo))
	if err != nil {
		hf.curPage = nil
		return fmt.Errorf("pin page %d: %w", pageNo, err)
	}
	hf.curPage = pg
	hf.curPageNo = pageNo
	hf.curDirty = false
	return nil
}

// Close implements §4.2's destructor: unpin whatever is pinned, flush,
// close. Flush/close errors are logged, not propagated, destruction
// cannot fail.
func (hf *HeapFile) Close() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.closeLocked()
}

func (hf *HeapFile) closeLocked() error {
	if hf.curPage != nil {
		if err := hf.env.Pool.UnpinPage(hf.curPage.ID, hf.curDirty); err != nil {
			log.Printf("heap: unpin current page of %q on close: %v", hf.name, err)
		}
		hf.curPage = nil
	}
	if err := hf.env.Pool.UnpinPage(hf.hdrPage.ID, hf.hdrDirty); err != nil {
		log.Printf("heap: unpin header page of %q on close: %v", hf.name, err)
	}
	if err := hf.env.Pool.FlushFile(hf.fileID); err != nil {
		log.Printf("heap: flush %q on close: %v", hf.name, err)
	}
	if err := hf.env.Disk.CloseFile(hf.fileID); err != nil {
		log.Printf("heap: close file %q: %v", hf.name, err)
	}
	return nil
}
