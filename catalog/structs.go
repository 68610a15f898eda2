package catalog

import "heapdb/types"

// Manager tracks, for each relation, its schema (attribute offsets,
// lengths, datatypes) and the file id of its heap file, persisting both
// as JSON under dbRoot.
type Manager struct {
	dbRoot     string
	currDb     string
	fileByRel  map[string]uint32
	nextFileID uint32

	schemas    map[string]types.RelationSchema
	schemaHash map[string]uint64 // rel -> xxhash of the on-disk schema bytes last loaded
}
