package query

import (
	"strings"
	"testing"

	"heapdb/bufferpool"
	"heapdb/catalog"
	"heapdb/diskmanager"
	"heapdb/heap"
	"heapdb/types"
)

func newTestSetup(t *testing.T) (*heap.Env, *catalog.Manager) {
	t.Helper()
	dir := t.TempDir()

	dm := diskmanager.NewDiskManager()
	pool, err := bufferpool.New(32, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}
	env := heap.NewEnv(dir, dm, pool)

	cat := catalog.NewManager(dir)
	cat.SetCurrentDatabase("db1")
	return env, cat
}

func registerAndCreate(t *testing.T, env *heap.Env, cat *catalog.Manager, schema types.RelationSchema) {
	t.Helper()
	if _, err := cat.RegisterNewRelation(schema); err != nil {
		t.Fatalf("register relation %q: %v", schema.RelName, err)
	}
	if err := env.CreateHeapFile(schema.RelName); err != nil {
		t.Fatalf("create heap file %q: %v", schema.RelName, err)
	}
}

func personsSchema() types.RelationSchema {
	return types.RelationSchema{
		RelName: "persons",
		Attrs: []types.AttrDesc{
			{RelName: "persons", Name: "id", Offset: 0, Length: 4, Type: types.DTInteger},
			{RelName: "persons", Name: "name", Offset: 4, Length: 10, Type: types.DTString},
		},
		RecLen: 14,
	}
}

func TestQUInsertAndBadArity(t *testing.T) {
	env, cat := newTestSetup(t)
	registerAndCreate(t, env, cat, personsSchema())

	rid, err := QUInsert(env, cat, "persons", []AttrValue{{Name: "id", Value: "1"}, {Name: "name", Value: "alice"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	hf, err := heap.OpenHeapFile(env, "persons")
	if err != nil {
		t.Fatalf("open heap file: %v", err)
	}
	defer hf.Close()
	rec, err := hf.GetRecord(rid)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got := strings.TrimRight(string(rec.Data[4:14]), "\x00"); got != "alice" {
		t.Errorf("name field = %q, want %q", got, "alice")
	}

	if _, err := QUInsert(env, cat, "persons", []AttrValue{{Name: "id", Value: "2"}}); err == nil {
		t.Fatalf("expected BadCatParm for attribute-count mismatch")
	} else if st, ok := types.AsStatus(err); !ok || st != types.BadCatParm {
		t.Errorf("expected BadCatParm, got %v", err)
	}

	if _, err := QUInsert(env, cat, "persons", []AttrValue{{Name: "id", Value: "2"}, {Name: "nope", Value: "x"}}); err == nil {
		t.Fatalf("expected BadCatParm for unknown attribute name")
	}
}

func TestQUSelectProjection(t *testing.T) {
	env, cat := newTestSetup(t)
	registerAndCreate(t, env, cat, personsSchema())
	registerAndCreate(t, env, cat, types.RelationSchema{
		RelName: "names",
		Attrs:   []types.AttrDesc{{RelName: "names", Name: "name", Offset: 0, Length: 10, Type: types.DTString}},
		RecLen:  10,
	})

	for _, p := range []struct{ id, name string }{{"1", "alice"}, {"2", "bob"}} {
		if _, err := QUInsert(env, cat, "persons", []AttrValue{{Name: "id", Value: p.id}, {Name: "name", Value: p.name}}); err != nil {
			t.Fatalf("insert %v: %v", p, err)
		}
	}

	n, err := QUSelect(env, cat, "persons", []string{"name"}, "names", "", "", types.EQ)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if n != 2 {
		t.Fatalf("selected %d rows, want 2", n)
	}

	scan, err := heap.OpenHeapFileScan(env, "names")
	if err != nil {
		t.Fatalf("open scan on dest: %v", err)
	}
	defer scan.Close()
	if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
		t.Fatalf("start scan: %v", err)
	}
	var got []string
	for {
		_, rec, err := scan.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				break
			}
			t.Fatalf("scan next: %v", err)
		}
		got = append(got, strings.TrimRight(string(rec.Data), "\x00"))
	}
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("projected names = %v, want [alice bob]", got)
	}
}

func TestQUDeleteFiltered(t *testing.T) {
	env, cat := newTestSetup(t)
	registerAndCreate(t, env, cat, personsSchema())

	for _, p := range []struct{ id, name string }{{"1", "alice"}, {"2", "bob"}, {"3", "carol"}} {
		if _, err := QUInsert(env, cat, "persons", []AttrValue{{Name: "id", Value: p.id}, {Name: "name", Value: p.name}}); err != nil {
			t.Fatalf("insert %v: %v", p, err)
		}
	}

	n, err := QUDelete(env, cat, "persons", "id", "2", types.EQ)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d rows, want 1", n)
	}

	n, err = QUDelete(env, cat, "persons", "", "", types.EQ)
	if err != nil {
		t.Fatalf("unconditional delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("unconditionally deleted %d rows, want 2", n)
	}
}
