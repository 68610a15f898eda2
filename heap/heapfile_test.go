package heap

import (
	"bytes"
	"encoding/binary"
	"testing"

	"heapdb/bufferpool"
	"heapdb/diskmanager"
	"heapdb/types"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	dm := diskmanager.NewDiskManager()
	pool, err := bufferpool.New(32, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}
	return NewEnv(dir, dm, pool)
}

func TestCreateAndReopen(t *testing.T) {
	env := newTestEnv(t)

	if err := env.CreateHeapFile("students"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}
	if err := env.CreateHeapFile("students"); err == nil {
		t.Fatalf("expected FileExists on duplicate create")
	} else if st, ok := types.AsStatus(err); !ok || st != types.FileExists {
		t.Errorf("expected FileExists, got %v", err)
	}

	hf, err := OpenHeapFile(env, "students")
	if err != nil {
		t.Fatalf("open heap file: %v", err)
	}
	if got := hf.GetRecCnt(); got != 0 {
		t.Errorf("GetRecCnt() = %d, want 0", got)
	}
	if err := hf.Close(); err != nil {
		t.Fatalf("close heap file: %v", err)
	}

	hf2, err := OpenHeapFile(env, "students")
	if err != nil {
		t.Fatalf("reopen heap file: %v", err)
	}
	if err := hf2.Close(); err != nil {
		t.Fatalf("close reopened heap file: %v", err)
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	env := newTestEnv(t)
	if err := env.CreateHeapFile("people"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	ifs, err := OpenInsertFileScan(env, "people")
	if err != nil {
		t.Fatalf("open insert scan: %v", err)
	}
	rid, err := ifs.InsertRecord([]byte("alice"))
	if err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if err := ifs.Close(); err != nil {
		t.Fatalf("close insert scan: %v", err)
	}

	hf, err := OpenHeapFile(env, "people")
	if err != nil {
		t.Fatalf("open heap file: %v", err)
	}
	defer hf.Close()

	if got := hf.GetRecCnt(); got != 1 {
		t.Errorf("GetRecCnt() = %d, want 1", got)
	}
	rec, err := hf.GetRecord(rid)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !bytes.Equal(rec.Data, []byte("alice")) {
		t.Errorf("GetRecord() = %q, want %q", rec.Data, "alice")
	}
}

func TestInsertAcrossPageBoundary(t *testing.T) {
	env := newTestEnv(t)
	if err := env.CreateHeapFile("big"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	ifs, err := OpenInsertFileScan(env, "big")
	if err != nil {
		t.Fatalf("open insert scan: %v", err)
	}
	defer ifs.Close()

	data := bytes.Repeat([]byte("x"), 200)
	pages := make(map[int32]bool)
	for i := 0; i < 40; i++ {
		rid, err := ifs.InsertRecord(data)
		if err != nil {
			t.Fatalf("insert record %d: %v", i, err)
		}
		pages[rid.PageNo] = true
	}

	if len(pages) < 2 {
		t.Errorf("expected records to overflow onto a second page, got pages %v", pages)
	}
}

func TestFilteredScan(t *testing.T) {
	env := newTestEnv(t)
	if err := env.CreateHeapFile("nums"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	ifs, err := OpenInsertFileScan(env, "nums")
	if err != nil {
		t.Fatalf("open insert scan: %v", err)
	}
	for _, v := range []int32{1, 2, 3, 4, 5} {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		if _, err := ifs.InsertRecord(buf); err != nil {
			t.Fatalf("insert record %d: %v", v, err)
		}
	}
	if err := ifs.Close(); err != nil {
		t.Fatalf("close insert scan: %v", err)
	}

	scan, err := OpenHeapFileScan(env, "nums")
	if err != nil {
		t.Fatalf("open scan: %v", err)
	}
	defer scan.Close()

	filterVal := make([]byte, 4)
	binary.LittleEndian.PutUint32(filterVal, uint32(3))
	if err := scan.StartScan(0, 4, types.DTInteger, filterVal, types.GT); err != nil {
		t.Fatalf("start scan: %v", err)
	}

	var got []int32
	for {
		_, rec, err := scan.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				break
			}
			t.Fatalf("scan next: %v", err)
		}
		got = append(got, int32(binary.LittleEndian.Uint32(rec.Data)))
	}

	want := []int32{4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMarkAndResetScan(t *testing.T) {
	env := newTestEnv(t)
	if err := env.CreateHeapFile("letters"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	ifs, err := OpenInsertFileScan(env, "letters")
	if err != nil {
		t.Fatalf("open insert scan: %v", err)
	}
	for _, s := range []string{"a", "b", "c"} {
		if _, err := ifs.InsertRecord([]byte(s)); err != nil {
			t.Fatalf("insert %q: %v", s, err)
		}
	}
	if err := ifs.Close(); err != nil {
		t.Fatalf("close insert scan: %v", err)
	}

	scan, err := OpenHeapFileScan(env, "letters")
	if err != nil {
		t.Fatalf("open scan: %v", err)
	}
	defer scan.Close()
	if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
		t.Fatalf("start scan: %v", err)
	}

	_, first, err := scan.ScanNext()
	if err != nil {
		t.Fatalf("scan next (1st): %v", err)
	}
	if string(first.Data) != "a" {
		t.Fatalf("1st record = %q, want %q", first.Data, "a")
	}
	scan.MarkScan()

	_, second, err := scan.ScanNext()
	if err != nil {
		t.Fatalf("scan next (2nd): %v", err)
	}
	if string(second.Data) != "b" {
		t.Fatalf("2nd record = %q, want %q", second.Data, "b")
	}

	if err := scan.ResetScan(); err != nil {
		t.Fatalf("reset scan: %v", err)
	}
	_, replay, err := scan.ScanNext()
	if err != nil {
		t.Fatalf("scan next after reset: %v", err)
	}
	if string(replay.Data) != "b" {
		t.Errorf("replayed record = %q, want %q", replay.Data, "b")
	}
}

func TestDeleteDuringScan(t *testing.T) {
	env := newTestEnv(t)
	if err := env.CreateHeapFile("tags"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	ifs, err := OpenInsertFileScan(env, "tags")
	if err != nil {
		t.Fatalf("open insert scan: %v", err)
	}
	for _, s := range []string{"keep", "drop", "keep", "drop", "keep"} {
		if _, err := ifs.InsertRecord([]byte(s)); err != nil {
			t.Fatalf("insert %q: %v", s, err)
		}
	}
	if err := ifs.Close(); err != nil {
		t.Fatalf("close insert scan: %v", err)
	}

	scan, err := OpenHeapFileScan(env, "tags")
	if err != nil {
		t.Fatalf("open scan: %v", err)
	}
	if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
		t.Fatalf("start scan: %v", err)
	}
	deleted := 0
	for {
		_, rec, err := scan.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				break
			}
			t.Fatalf("scan next: %v", err)
		}
		if string(rec.Data) == "drop" {
			if err := scan.DeleteRecord(); err != nil {
				t.Fatalf("delete record: %v", err)
			}
			deleted++
		}
	}
	if err := scan.Close(); err != nil {
		t.Fatalf("close scan: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted %d records, want 2", deleted)
	}

	verify, err := OpenHeapFileScan(env, "tags")
	if err != nil {
		t.Fatalf("reopen scan: %v", err)
	}
	defer verify.Close()
	if err := verify.StartScan(0, 0, 0, nil, types.EQ); err != nil {
		t.Fatalf("start verify scan: %v", err)
	}
	var remaining []string
	for {
		_, rec, err := verify.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				break
			}
			t.Fatalf("verify scan next: %v", err)
		}
		remaining = append(remaining, string(rec.Data))
	}
	if len(remaining) != 3 {
		t.Fatalf("remaining = %v, want 3 records", remaining)
	}
	for _, s := range remaining {
		if s != "keep" {
			t.Errorf("remaining record %q, want %q", s, "keep")
		}
	}
}

func TestOversizeInsertRejected(t *testing.T) {
	env := newTestEnv(t)
	if err := env.CreateHeapFile("oversize"); err != nil {
		t.Fatalf("create heap file: %v", err)
	}
	ifs, err := OpenInsertFileScan(env, "oversize")
	if err != nil {
		t.Fatalf("open insert scan: %v", err)
	}
	defer ifs.Close()

	data := bytes.Repeat([]byte("x"), MaxRecordLen+1)
	if _, err := ifs.InsertRecord(data); err == nil {
		t.Fatalf("expected InvalidRecLen for oversize record")
	} else if st, ok := types.AsStatus(err); !ok || st != types.InvalidRecLen {
		t.Errorf("expected InvalidRecLen, got %v", err)
	}
}
