// InsertFileScan: a HeapFile positioned at the tail page for appends,
// growing the page chain on overflow. Grounded on
// original_source/Stage4/heapfile.C's InsertFileScan::InsertFileScan and
// ::insertRecord.
package heap

import (
	"fmt"

	"heapdb/diskmanager"
	"heapdb/types"
)

// InsertFileScan wraps a HeapFile pinned at its last page, ready to
// append. Per §4.4 / §9's resolved open question, any pin error while
// repositioning onto the tail page during construction is fatal, the
// constructor tears the file down and returns the error rather than
// leaving a half-open handle.
type InsertFileScan struct {
	hf *HeapFile
}

// OpenInsertFileScan implements §4.4's constructor.
func OpenInsertFileScan(env *Env, name string) (*InsertFileScan, error) {
	hf, err := OpenHeapFile(env, name)
	if err != nil {
		return nil, err
	}

	hf.mu.Lock()
	lastPage := GetLastPage(hf.hdrPage)
	if hf.curPageNo != lastPage {
		if err := hf.swapCurrent(lastPage); err != nil {
			hf.mu.Unlock()
			hf.closeLocked()
			return nil, fmt.Errorf("pin tail page for insert: %w", err)
		}
	}
	hf.mu.Unlock()

	return &InsertFileScan{hf: hf}, nil
}

// InsertRecord implements §4.4: insert into the pinned tail page, or on
// NoSpace allocate a fresh page, chain it, and retry there.
func (s *InsertFileScan) InsertRecord(data []byte) (types.RID, error) {
	if len(data) > MaxRecordLen {
		return types.NullRID, types.NewStatusError(types.InvalidRecLen)
	}

	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()

	slotIdx, err := InsertRecord(hf.curPage, data)
	if err == nil {
		hf.curDirty = true
		SetRecCnt(hf.hdrPage, GetRecCnt(hf.hdrPage)+1)
		hf.hdrDirty = true
		return types.RID{PageNo: hf.curPageNo, SlotNo: slotIdx}, nil
	}

	st, ok := types.AsStatus(err)
	if !ok || st != types.NoSpace {
		return types.NullRID, err
	}

	newPg, aerr := hf.env.Pool.NewPage(hf.fileID, types.PageTypeHeapData)
	if aerr != nil {
		return types.NullRID, fmt.Errorf("allocate overflow page: %w", aerr)
	}
	newLocal := diskmanager.LocalPageNo(newPg.ID)
	InitDataPage(newPg, newLocal)
	SetNextPage(hf.curPage, newLocal)

	if uerr := hf.env.Pool.UnpinPage(hf.curPage.ID, true); uerr != nil {
		hf.env.Pool.UnpinPage(newPg.ID, true)
		return types.NullRID, fmt.Errorf("unpin full tail page: %w", uerr)
	}

	hf.curPage = newPg
	hf.curPageNo = newLocal
	hf.curDirty = true

	SetLastPage(hf.hdrPage, newLocal)
	SetPageCnt(hf.hdrPage, GetPageCnt(hf.hdrPage)+1)
	hf.hdrDirty = true

	slotIdx, err = InsertRecord(hf.curPage, data)
	if err != nil {
		return types.NullRID, fmt.Errorf("insert into freshly allocated page: %w", err)
	}
	SetRecCnt(hf.hdrPage, GetRecCnt(hf.hdrPage)+1)
	return types.RID{PageNo: newLocal, SlotNo: slotIdx}, nil
}

// Close unpins the tail page as dirty and closes the underlying heap
// file, matching ~InsertFileScan's unconditional dirty unpin.
func (s *InsertFileScan) Close() error {
	hf := s.hf
	hf.mu.Lock()
	if hf.curPage != nil {
		hf.curDirty = true
	}
	hf.mu.Unlock()
	return hf.Close()
}
