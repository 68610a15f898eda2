package catalog

import (
	"testing"

	"heapdb/types"
)

func testSchema(relName string) types.RelationSchema {
	return types.RelationSchema{
		RelName: relName,
		Attrs: []types.AttrDesc{
			{RelName: relName, Name: "id", Offset: 0, Length: 4, Type: types.DTInteger},
			{RelName: relName, Name: "name", Offset: 4, Length: 10, Type: types.DTString},
		},
		RecLen: 14,
	}
}

func TestRegisterAndLookup(t *testing.T) {
	dir := t.TempDir()
	cm := NewManager(dir)
	cm.SetCurrentDatabase("db1")

	fileID, err := cm.RegisterNewRelation(testSchema("students"))
	if err != nil {
		t.Fatalf("register relation: %v", err)
	}
	if fileID == 0 {
		t.Errorf("fileID = 0, want nonzero")
	}

	if _, err := cm.RegisterNewRelation(testSchema("students")); err == nil {
		t.Fatalf("expected FileExists on duplicate registration")
	} else if st, ok := types.AsStatus(err); !ok || st != types.FileExists {
		t.Errorf("expected FileExists, got %v", err)
	}

	attr, err := cm.GetInfo("students", "name")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	if attr.Offset != 4 || attr.Length != 10 {
		t.Errorf("attr = %+v, want offset 4 length 10", attr)
	}

	if _, err := cm.GetInfo("students", "nonexistent"); err == nil {
		t.Fatalf("expected BadCatParm for unknown attribute")
	} else if st, ok := types.AsStatus(err); !ok || st != types.BadCatParm {
		t.Errorf("expected BadCatParm, got %v", err)
	}
}

func TestLoadFromDiskAfterRestart(t *testing.T) {
	dir := t.TempDir()

	cm1 := NewManager(dir)
	cm1.SetCurrentDatabase("db1")
	if _, err := cm1.RegisterNewRelation(testSchema("students")); err != nil {
		t.Fatalf("register relation: %v", err)
	}
	wantFileID, err := cm1.GetRelFileID("students")
	if err != nil {
		t.Fatalf("get file id: %v", err)
	}

	cm2 := NewManager(dir)
	cm2.SetCurrentDatabase("db1")
	if err := cm2.LoadAllSchemas(); err != nil {
		t.Fatalf("load schemas: %v", err)
	}
	if err := cm2.LoadFileMapping(); err != nil {
		t.Fatalf("load file mapping: %v", err)
	}

	if !cm2.RelationExists("students") {
		t.Fatalf("relation not loaded from disk")
	}
	gotFileID, err := cm2.GetRelFileID("students")
	if err != nil {
		t.Fatalf("get file id after reload: %v", err)
	}
	if gotFileID != wantFileID {
		t.Errorf("fileID after reload = %d, want %d", gotFileID, wantFileID)
	}

	names := cm2.RelationNames()
	if len(names) != 1 || names[0] != "students" {
		t.Errorf("RelationNames() = %v, want [students]", names)
	}
}

func TestUnregisterRelation(t *testing.T) {
	dir := t.TempDir()
	cm := NewManager(dir)
	cm.SetCurrentDatabase("db1")
	if _, err := cm.RegisterNewRelation(testSchema("temp")); err != nil {
		t.Fatalf("register relation: %v", err)
	}
	if err := cm.UnregisterRelation("temp"); err != nil {
		t.Fatalf("unregister relation: %v", err)
	}
	if cm.RelationExists("temp") {
		t.Errorf("relation still exists after unregister")
	}
	if err := cm.UnregisterRelation("temp"); err == nil {
		t.Errorf("expected error unregistering an already-removed relation")
	}
}
