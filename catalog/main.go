// Package catalog is the schema and file-id directory consumed by the
// relation operators in package query (§6's "Catalog" external
// interface: GetInfo, GetRelInfo). Grounded on
// storage_engine/catalog/main.go: same JSON-file persistence layout
// under dbRoot/currDb/{tables,metadata}, same memory-cache-then-disk-
// fallback GetTableSchema shape. Adapted from a dynamic ColumnDef/
// TableSchema model (arbitrary named columns, no fixed offsets) to the
// fixed-width AttrDesc model this layer requires, since heap records are
// laid out by byte offset, not by a runtime column map.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"heapdb/types"
)

func NewManager(dbRoot string) *Manager {
	return &Manager{
		dbRoot:     dbRoot,
		nextFileID: 1,
		fileByRel:  make(map[string]uint32),
		schemas:    make(map[string]types.RelationSchema),
		schemaHash: make(map[string]uint64),
	}
}

func (cm *Manager) SetCurrentDatabase(db string) { cm.currDb = db }

func (cm *Manager) RelationExists(name string) bool {
	_, ok := cm.schemas[name]
	return ok
}

// GetRelInfo returns every attribute of a relation, matching
// attrCat->getRelInfo(relation, count, attrs) from
// original_source/Stage6/insert.C and select.C.
func (cm *Manager) GetRelInfo(relation string) ([]types.AttrDesc, error) {
	schema, err := cm.schema(relation)
	if err != nil {
		return nil, err
	}
	return schema.Attrs, nil
}

// GetInfo returns one named attribute's descriptor, matching
// attrCat->getInfo(relation, attrName, ad).
func (cm *Manager) GetInfo(relation, attrName string) (types.AttrDesc, error) {
	schema, err := cm.schema(relation)
	if err != nil {
		return types.AttrDesc{}, err
	}
	attr, ok := schema.AttrByName(attrName)
	if !ok {
		return types.AttrDesc{}, types.NewStatusError(types.BadCatParm)
	}
	return attr, nil
}

func (cm *Manager) schema(name string) (types.RelationSchema, error) {
	if cm.currDb == "" {
		return types.RelationSchema{}, fmt.Errorf("no database selected")
	}
	if schema, ok := cm.schemas[name]; ok {
		if err := cm.refreshIfChanged(name); err == nil {
			schema = cm.schemas[name]
		}
		return schema, nil
	}

	path := cm.schemaPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RelationSchema{}, types.NewStatusError(types.BadCatParm)
	}

	var schema types.RelationSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return types.RelationSchema{}, fmt.Errorf("parse schema for %q: %w", name, err)
	}

	cm.schemas[name] = schema
	cm.schemaHash[name] = xxhash.Sum64(data)
	return schema, nil
}

// RegisterNewRelation allocates a heap file id for a fresh relation and
// persists its schema and the file-id mapping.
func (cm *Manager) RegisterNewRelation(schema types.RelationSchema) (uint32, error) {
	if cm.RelationExists(schema.RelName) {
		return 0, types.NewStatusError(types.FileExists)
	}

	fileID := cm.nextFileID
	cm.nextFileID++

	cm.schemas[schema.RelName] = schema
	cm.fileByRel[schema.RelName] = fileID

	if err := cm.persistSchema(schema); err != nil {
		return 0, err
	}
	if err := cm.persistMapping(); err != nil {
		return 0, err
	}
	return fileID, nil
}

func (cm *Manager) UnregisterRelation(name string) error {
	if !cm.RelationExists(name) {
		return fmt.Errorf("relation %q not found in catalog", name)
	}
	delete(cm.schemas, name)
	delete(cm.fileByRel, name)
	delete(cm.schemaHash, name)

	if err := os.Remove(cm.schemaPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete schema file: %w", err)
	}
	return cm.persistMapping()
}

// RelationNames lists every relation currently cached in the catalog, in
// no particular order. Populated by RegisterNewRelation or a prior
// LoadAllSchemas call.
func (cm *Manager) RelationNames() []string {
	names := make([]string, 0, len(cm.schemas))
	for name := range cm.schemas {
		names = append(names, name)
	}
	return names
}

func (cm *Manager) GetRelFileID(name string) (uint32, error) {
	id, ok := cm.fileByRel[name]
	if !ok {
		return 0, fmt.Errorf("relation %q not found in file mapping", name)
	}
	return id, nil
}

// refreshIfChanged reads and hashes a relation's schema file, and
// re-parses it into the in-memory cache only when its content hash has
// moved since it was last cached.
func (cm *Manager) refreshIfChanged(name string) error {
	data, err := os.ReadFile(cm.schemaPath(name))
	if err != nil {
		return err
	}
	h := xxhash.Sum64(data)
	if cm.schemaHash[name] == h {
		return nil
	}
	var schema types.RelationSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return err
	}
	cm.schemas[name] = schema
	cm.schemaHash[name] = h
	return nil
}

func (cm *Manager) LoadAllSchemas() error {
	if cm.currDb == "" {
		return fmt.Errorf("no database selected")
	}
	cm.schemas = make(map[string]types.RelationSchema)
	cm.schemaHash = make(map[string]uint64)

	dir := filepath.Join(cm.dbRoot, cm.currDb, "tables")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read tables directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_schema.json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read schema file %s: %w", path, err)
		}
		var schema types.RelationSchema
		if err := json.Unmarshal(data, &schema); err != nil {
			return fmt.Errorf("invalid schema in %s: %w", path, err)
		}
		cm.schemas[schema.RelName] = schema
		cm.schemaHash[schema.RelName] = xxhash.Sum64(data)
	}
	return nil
}

func (cm *Manager) LoadFileMapping() error {
	path := filepath.Join(cm.dbRoot, cm.currDb, "metadata", "file_mapping.json")
	cm.fileByRel = make(map[string]uint32)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cm.nextFileID = 1
			return nil
		}
		return fmt.Errorf("read file mapping: %w", err)
	}
	if err := json.Unmarshal(data, &cm.fileByRel); err != nil {
		return fmt.Errorf("unmarshal file mapping: %w", err)
	}

	max := uint32(0)
	for _, id := range cm.fileByRel {
		if id > max {
			max = id
		}
	}
	cm.nextFileID = max + 1
	return nil
}

func (cm *Manager) schemaPath(name string) string {
	return filepath.Join(cm.dbRoot, cm.currDb, "tables", name+"_schema.json")
}

func (cm *Manager) persistSchema(schema types.RelationSchema) error {
	dir := filepath.Join(cm.dbRoot, cm.currDb, "tables")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, schema.RelName+"_schema.json"), data, 0644)
}

func (cm *Manager) persistMapping() error {
	dir := filepath.Join(cm.dbRoot, cm.currDb, "metadata")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cm.fileByRel, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "file_mapping.json"), data, 0644)
}
