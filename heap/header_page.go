package heap

import (
	"encoding/binary"

	"heapdb/page"
	"heapdb/types"
)

// MaxNameSize bounds the persisted file name, matching the original's
// MAXNAMESIZE bound on FileHdr.fileName (§3).
const MaxNameSize = 256

const (
	hdrOffNameLen    = 0
	hdrOffName       = 2
	hdrOffFirstPage  = hdrOffName + MaxNameSize
	hdrOffLastPage   = hdrOffFirstPage + 4
	hdrOffPageCnt    = hdrOffLastPage + 4
	hdrOffRecCnt     = hdrOffPageCnt + 4
)

// InitHeaderPage zeroes pg.Data and stamps the relation name into it,
// per createHeapFile step 3 (§4.1): "Allocate a page: this becomes the
// header page; zero it and copy the name into it."
func InitHeaderPage(pg *page.Page, name string) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	if len(name) > MaxNameSize {
		name = name[:MaxNameSize]
	}
	binary.LittleEndian.PutUint16(pg.Data[hdrOffNameLen:], uint16(len(name)))
	copy(pg.Data[hdrOffName:], name)
	setFirstPage(pg, types.NoPage)
	setLastPage(pg, types.NoPage)
	setPageCnt(pg, 0)
	setRecCnt(pg, 0)
	pg.Touch()
}

func HeaderName(pg *page.Page) string {
	n := binary.LittleEndian.Uint16(pg.Data[hdrOffNameLen:])
	return string(pg.Data[hdrOffName : hdrOffName+int(n)])
}

func GetFirstPage(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[hdrOffFirstPage:]))
}
func setFirstPage(pg *page.Page, p int32) {
	binary.LittleEndian.PutUint32(pg.Data[hdrOffFirstPage:], uint32(p))
}
func SetFirstPage(pg *page.Page, p int32) { setFirstPage(pg, p); pg.Touch() }

func GetLastPage(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[hdrOffLastPage:]))
}
func setLastPage(pg *page.Page, p int32) {
	binary.LittleEndian.PutUint32(pg.Data[hdrOffLastPage:], uint32(p))
}
func SetLastPage(pg *page.Page, p int32) { setLastPage(pg, p); pg.Touch() }

func GetPageCnt(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[hdrOffPageCnt:]))
}
func setPageCnt(pg *page.Page, n int32) {
	binary.LittleEndian.PutUint32(pg.Data[hdrOffPageCnt:], uint32(n))
}
func SetPageCnt(pg *page.Page, n int32) { setPageCnt(pg, n); pg.Touch() }

func GetRecCnt(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[hdrOffRecCnt:]))
}
func setRecCnt(pg *page.Page, n int32) {
	binary.LittleEndian.PutUint32(pg.Data[hdrOffRecCnt:], uint32(n))
}
func SetRecCnt(pg *page.Page, n int32) { setRecCnt(pg, n); pg.Touch() }
