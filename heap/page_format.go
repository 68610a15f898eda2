// Package heap implements the record-level heap file layer: the slotted
// data page format, HeapFile, HeapFileScan and InsertFileScan.
//
// The slotted page binary layout below is grounded on
// storage_engine/access/heapfile_manager/heap_page.go and
// heap_page_helpers.go, generalized with a NextPage field so data pages
// can be chained the way spec.md §3 requires, and with FirstRecord/
// NextRecord added so the page itself exposes the record-iteration
// contract §3 lists rather than leaving it to callers to walk the slot
// directory by hand.
package heap

import (
	"encoding/binary"

	"heapdb/page"
	"heapdb/types"
)

/*
Data page binary layout (all values little-endian):

	Offset  Size  Field
	──────────────────────────────────────────────────────
	0       8     LSN             uint64, zeroed by InitDataPage, not updated after
	8       1     PageType        uint8 , reserved, left zero
	9       4     FileID          uint32
	13      4     PageNo          uint32
	17      4     NextPage        int32 , -1 terminates the chain
	21      2     RecordEndPtr    uint16, first free byte after last record
	23      2     SlotRegionStart uint16, first byte of the slot directory
	25      2     NumRows         uint16, live records
	27      2     NumRowsFree     uint16, tombstoned slots
	29      2     IsPageFull      uint16, 1 when no usable space remains
	31      2     SlotCount       uint16, total slot entries (live + tombstone)
	──────────────────────────────────────────────────────
	33            dataHeaderSize

Records grow forward from dataHeaderSize; the slot directory grows
backward from PageSize. A slot is 4 bytes: [Offset uint16][Length uint16].
Offset==0 && Length==0 marks a tombstone (original_source's deleteRecord
never reclaims slot-directory space either).
*/
const (
	offLSN             = 0
	offPageType        = 8
	offFileID          = 9
	offPageNo          = 13
	offNextPage        = 17
	offRecordEndPtr    = 21
	offSlotRegionStart = 23
	offNumRows         = 25
	offNumRowsFree     = 27
	offIsPageFull      = 29
	offSlotCount       = 31

	dataHeaderSize = 33
	slotSize       = 4

	// MaxRecordLen is PAGESIZE - DPFIXED in the original's terms: the
	// largest record that can ever fit on a freshly initialized page.
	MaxRecordLen = page.PageSize - dataHeaderSize - slotSize
)

// InitDataPage stamps a fresh, empty data-page header into pg.Data and
// sets its next-page pointer to NoPage, matching createHeapFile step 4
// and InsertFileScan's page-allocation-on-overflow step (§4.1, §4.4).
func InitDataPage(pg *page.Page, pageNo int32) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	binary.LittleEndian.PutUint64(pg.Data[offLSN:], 0)
	binary.LittleEndian.PutUint32(pg.Data[offFileID:], pg.FileID)
	binary.LittleEndian.PutUint32(pg.Data[offPageNo:], uint32(pageNo))
	setNextPage(pg, types.NoPage)
	setRecordEndPtr(pg, dataHeaderSize)
	setSlotRegionStart(pg, page.PageSize)
	setNumRows(pg, 0)
	setNumRowsFree(pg, 0)
	setIsPageFull(pg, false)
	setSlotCount(pg, 0)
	pg.ResetLSN(0)
	pg.MarkDirty()
}

func GetPageNo(pg *page.Page) int32 { return int32(binary.LittleEndian.Uint32(pg.Data[offPageNo:])) }

func GetNextPage(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[offNextPage:]))
}

func setNextPage(pg *page.Page, next int32) {
	binary.LittleEndian.PutUint32(pg.Data[offNextPage:], uint32(next))
}

// SetNextPage sets the chain pointer and marks the page dirty.
func SetNextPage(pg *page.Page, next int32) {
	setNextPage(pg, next)
	pg.Touch()
}

func GetRecordEndPtr(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[offRecordEndPtr:])
}
func setRecordEndPtr(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[offRecordEndPtr:], v)
}

func GetSlotRegionStart(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[offSlotRegionStart:])
}
func setSlotRegionStart(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[offSlotRegionStart:], v)
}

func GetNumRows(pg *page.Page) uint16 { return binary.LittleEndian.Uint16(pg.Data[offNumRows:]) }
func setNumRows(pg *page.Page, n uint16) {
	binary.LittleEndian.PutUint16(pg.Data[offNumRows:], n)
}

func GetNumRowsFree(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[offNumRowsFree:])
}
func setNumRowsFree(pg *page.Page, n uint16) {
	binary.LittleEndian.PutUint16(pg.Data[offNumRowsFree:], n)
}

func GetIsPageFull(pg *page.Page) bool {
	return binary.LittleEndian.Uint16(pg.Data[offIsPageFull:]) == 1
}
func setIsPageFull(pg *page.Page, full bool) {
	v := uint16(0)
	if full {
		v = 1
	}
	binary.LittleEndian.PutUint16(pg.Data[offIsPageFull:], v)
}

func GetSlotCount(pg *page.Page) uint16 { return binary.LittleEndian.Uint16(pg.Data[offSlotCount:]) }
func setSlotCount(pg *page.Page, n uint16) {
	binary.LittleEndian.PutUint16(pg.Data[offSlotCount:], n)
}

// FreeSpace returns the bytes available for one more record, including
// the slot entry it would consume.
func FreeSpace(pg *page.Page) int {
	available := int(GetSlotRegionStart(pg)) - int(GetRecordEndPtr(pg)) - slotSize
	if available < 0 {
		return 0
	}
	return available
}

func slotByteOffset(i uint16) int {
	return page.PageSize - (int(i)+1)*slotSize
}

func readSlot(pg *page.Page, i uint16) (offset, length uint16) {
	base := slotByteOffset(i)
	return binary.LittleEndian.Uint16(pg.Data[base:]), binary.LittleEndian.Uint16(pg.Data[base+2:])
}

func writeSlot(pg *page.Page, i uint16, offset, length uint16) {
	base := slotByteOffset(i)
	binary.LittleEndian.PutUint16(pg.Data[base:], offset)
	binary.LittleEndian.PutUint16(pg.Data[base+2:], length)
}

// IsSlotLive reports whether slot i currently holds a record.
func IsSlotLive(pg *page.Page, i uint16) bool {
	if i >= GetSlotCount(pg) {
		return false
	}
	offset, length := readSlot(pg, i)
	return !(offset == 0 && length == 0)
}

// InsertRecord writes data onto pg, reusing a tombstoned slot when one
// exists. Returns a NoSpace status error when the record does not fit;
// callers translate that into page-chain overflow handling (§4.4).
func InsertRecord(pg *page.Page, data []byte) (uint16, error) {
	recLen := uint16(len(data))
	if FreeSpace(pg) < int(recLen) {
		return 0, types.NewStatusError(types.NoSpace)
	}

	slotIdx := GetSlotCount(pg)
	for i := uint16(0); i < GetSlotCount(pg); i++ {
		if !IsSlotLive(pg, i) {
			slotIdx = i
			break
		}
	}

	recordOffset := GetRecordEndPtr(pg)
	copy(pg.Data[recordOffset:], data)
	setRecordEndPtr(pg, recordOffset+recLen)
	writeSlot(pg, slotIdx, recordOffset, recLen)

	if slotIdx == GetSlotCount(pg) {
		setSlotRegionStart(pg, GetSlotRegionStart(pg)-slotSize)
		setSlotCount(pg, GetSlotCount(pg)+1)
	} else {
		setNumRowsFree(pg, GetNumRowsFree(pg)-1)
	}
	setNumRows(pg, GetNumRows(pg)+1)
	if FreeSpace(pg) <= 0 {
		setIsPageFull(pg, true)
	}
	pg.Touch()
	return slotIdx, nil
}

// GetRecord returns a copy of the record at slotIdx.
func GetRecord(pg *page.Page, slotIdx uint16) ([]byte, error) {
	if slotIdx >= GetSlotCount(pg) || !IsSlotLive(pg, slotIdx) {
		return nil, errBadSlot(slotIdx)
	}
	offset, length := readSlot(pg, slotIdx)
	out := make([]byte, length)
	copy(out, pg.Data[offset:offset+length])
	return out, nil
}

// DeleteRecord tombstones slotIdx. Space is not reclaimed, matching the
// original's deleteRecord, later scanNext/nextRecord calls must treat a
// tombstoned slot as absent rather than stopping the scan there.
func DeleteRecord(pg *page.Page, slotIdx uint16) error {
	if slotIdx >= GetSlotCount(pg) || !IsSlotLive(pg, slotIdx) {
		return errBadSlot(slotIdx)
	}
	writeSlot(pg, slotIdx, 0, 0)
	setNumRows(pg, GetNumRows(pg)-1)
	setNumRowsFree(pg, GetNumRowsFree(pg)+1)
	setIsPageFull(pg, false)
	pg.Touch()
	return nil
}

// FirstRecord returns the RID of the first live slot on pg, or NoRecords
// if the page holds none.
func FirstRecord(pg *page.Page) (types.RID, error) {
	count := GetSlotCount(pg)
	for i := uint16(0); i < count; i++ {
		if IsSlotLive(pg, i) {
			return types.RID{PageNo: GetPageNo(pg), SlotNo: i}, nil
		}
	}
	return types.NullRID, types.NewStatusError(types.NoRecords)
}

// NextRecord returns the RID of the first live slot strictly after
// cur.SlotNo, or EndOfPage if none remains, regardless of whether
// cur itself is still live, so a delete-then-continue scan (§9's
// resolved open question) keeps walking the rest of the page.
func NextRecord(pg *page.Page, cur types.RID) (types.RID, error) {
	count := GetSlotCount(pg)
	for i := cur.SlotNo + 1; i < count; i++ {
		if IsSlotLive(pg, i) {
			return types.RID{PageNo: GetPageNo(pg), SlotNo: i}, nil
		}
	}
	return types.NullRID, types.NewStatusError(types.EndOfPage)
}
