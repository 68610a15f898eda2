// HeapFileScan: a HeapFile plus an optional single-attribute filter and a
// sequential cursor. Grounded on original_source/Stage4/scan.C's
// HeapFileScan::HeapFileScan, ::startScan, ::getNext, ::matchRec and
// ::deleteRecord, and on the page-at-a-time scan style in
// storage_engine/access/heapfile_manager.
package heap

import (
	"encoding/binary"
	"fmt"
	"math"

	"heapdb/types"
)

// HeapFileScan wraps a HeapFile with a scan predicate and cursor. Per
// §9's resolved open question, it does not keep the data-page pin that
// OpenHeapFile acquired, it releases that pin immediately and pins
// pages lazily as ScanNext walks the chain, so a scan that is opened and
// never advanced holds zero data-page pins.
type HeapFileScan struct {
	hf *HeapFile

	hasFilter bool
	filter    types.Filter

	markedPageNo int32
	markedRec    types.RID
	hasMark      bool
}

// OpenHeapFileScan implements §4.3's constructor.
func OpenHeapFileScan(env *Env, name string) (*HeapFileScan, error) {
	hf, err := OpenHeapFile(env, name)
	if err != nil {
		return nil, err
	}

	hf.mu.Lock()
	if hf.curPage != nil {
		if err := hf.env.Pool.UnpinPage(hf.curPage.ID, hf.curDirty); err != nil {
			hf.mu.Unlock()
			hf.closeLocked()
			return nil, fmt.Errorf("release initial pin for scan: %w", err)
		}
		hf.curPage = nil
	}
	hf.curPageNo = types.NoPage
	hf.curRec = types.NullRID
	hf.curDirty = false
	hf.mu.Unlock()

	return &HeapFileScan{hf: hf}, nil
}

// StartScan installs (or clears, when data is nil) the scan's filter
// predicate, per §4.3. A malformed predicate is rejected with
// BadScanParm rather than silently ignored.
func (s *HeapFileScan) StartScan(offset, length int, dtype types.Datatype, data []byte, op types.Operator) error {
	if data == nil {
		s.hasFilter = false
		return nil
	}
	if offset < 0 || length <= 0 || !dtype.Valid() || !op.Valid() {
		return types.NewStatusError(types.BadScanParm)
	}
	if (dtype == types.DTInteger || dtype == types.DTFloat) && length != 4 {
		return types.NewStatusError(types.BadScanParm)
	}
	filterBytes := make([]byte, length)
	copy(filterBytes, data)
	s.filter = types.Filter{Offset: offset, Length: length, Type: dtype, Bytes: filterBytes, Op: op}
	s.hasFilter = true
	return nil
}

// matchRec reports whether rec satisfies the installed filter, per
// original_source's HeapFileScan::matchRec. A record shorter than the
// filter's field never matches.
func (s *HeapFileScan) matchRec(rec types.Record) bool {
	if !s.hasFilter {
		return true
	}
	f := s.filter
	if f.Offset+f.Length > len(rec.Data) {
		return false
	}
	field := rec.Data[f.Offset : f.Offset+f.Length]

	var diff float64
	switch f.Type {
	case types.DTInteger:
		diff = float64(decodeInt32(field)) - float64(decodeInt32(f.Bytes))
	case types.DTFloat:
		diff = float64(decodeFloat32(field)) - float64(decodeFloat32(f.Bytes))
	case types.DTString:
		switch {
		case string(field) < string(f.Bytes):
			diff = -1
		case string(field) > string(f.Bytes):
			diff = 1
		default:
			diff = 0
		}
	}
	return f.Op.Apply(diff)
}

// ScanNext advances the cursor to the next record matching the filter,
// walking forward across page boundaries via NextPage as needed. It pins
// the header-declared first page lazily on the scan's very first call.
func (s *HeapFileScan) ScanNext() (types.RID, types.Record, error) {
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hf.curPage == nil {
		firstPage := GetFirstPage(hf.hdrPage)
		if firstPage == types.NoPage {
			return types.NullRID, types.Record{}, types.NewStatusError(types.FileEOF)
		}
		if err := hf.swapCurrent(firstPage); err != nil {
			return types.NullRID, types.Record{}, err
		}
		hf.curRec = types.NullRID
	}

	for {
		var next types.RID
		var err error
		if hf.curRec.IsNull() {
			next, err = FirstRecord(hf.curPage)
		} else {
			next, err = NextRecord(hf.curPage, hf.curRec)
		}

		if err == nil {
			hf.curRec = next
			data, gerr := GetRecord(hf.curPage, next.SlotNo)
			if gerr != nil {
				return types.NullRID, types.Record{}, gerr
			}
			rec := types.Record{Data: data}
			if s.matchRec(rec) {
				return next, rec, nil
			}
			continue
		}

		st, ok := types.AsStatus(err)
		if !ok || (st != types.NoRecords && st != types.EndOfPage) {
			return types.NullRID, types.Record{}, err
		}

		nextPageNo := GetNextPage(hf.curPage)
		if nextPageNo == types.NoPage {
			return types.NullRID, types.Record{}, types.NewStatusError(types.FileEOF)
		}
		if err := hf.swapCurrent(nextPageNo); err != nil {
			return types.NullRID, types.Record{}, err
		}
		hf.curRec = types.NullRID
	}
}

// GetRecord returns the record the cursor currently sits on.
func (s *HeapFileScan) GetRecord() (types.Record, error) {
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if hf.curPage == nil || hf.curRec.IsNull() {
		return types.Record{}, fmt.Errorf("scan cursor is not positioned on a record")
	}
	data, err := GetRecord(hf.curPage, hf.curRec.SlotNo)
	if err != nil {
		return types.Record{}, err
	}
	return types.Record{Data: data}, nil
}

// DeleteRecord tombstones the record under the cursor and decrements the
// header's live-record count, per §4.3.
func (s *HeapFileScan) DeleteRecord() error {
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if hf.curPage == nil || hf.curRec.IsNull() {
		return fmt.Errorf("scan cursor is not positioned on a record")
	}
	if err := DeleteRecord(hf.curPage, hf.curRec.SlotNo); err != nil {
		return err
	}
	hf.curDirty = true
	SetRecCnt(hf.hdrPage, GetRecCnt(hf.hdrPage)-1)
	hf.hdrDirty = true
	return nil
}

// MarkDirty flags the currently pinned data page as dirty, so it is
// unpinned dirty and written back (§4.3). GetRecord returns a copy, so
// changes made to that copy do not reach the page.
func (s *HeapFileScan) MarkDirty() {
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()
	hf.curDirty = true
}

// MarkScan records the current cursor position for a later ResetScan.
func (s *HeapFileScan) MarkScan() {
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()
	s.markedPageNo = hf.curPageNo
	s.markedRec = hf.curRec
	s.hasMark = true
}

// ResetScan rewinds the cursor to the last MarkScan position.
func (s *HeapFileScan) ResetScan() error {
	if !s.hasMark {
		return fmt.Errorf("no mark set for this scan")
	}
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if hf.curPageNo != s.markedPageNo {
		if err := hf.swapCurrent(s.markedPageNo); err != nil {
			return err
		}
	}
	hf.curRec = s.markedRec
	return nil
}

// EndScan releases the data-page pin, if any, without touching the
// header. Safe to call more than once.
func (s *HeapFileScan) EndScan() error {
	hf := s.hf
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if hf.curPage == nil {
		return nil
	}
	err := hf.env.Pool.UnpinPage(hf.curPage.ID, hf.curDirty)
	hf.curPage = nil
	hf.curPageNo = types.NoPage
	hf.curRec = types.NullRID
	return err
}

// Close ends the scan and closes the underlying heap file.
func (s *HeapFileScan) Close() error {
	err := s.EndScan()
	if cerr := s.hf.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func decodeInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func decodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
