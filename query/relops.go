// Package query implements the three relation operators the heap layer
// exists to serve: QUInsert, QUDelete, QUSelect. Grounded on
// original_source/Stage6/insert.C, delete.C and select.C, the
// FEATURES SUPPLEMENTED section of SPEC_FULL.md carries the exact
// per-operator behavior these were built from.
package query

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"heapdb/catalog"
	"heapdb/heap"
	"heapdb/types"
)

// AttrValue is one (name, textual value) pair supplied by a caller of
// QUInsert, mirroring the recCnt/attrList arguments of Stage6/insert.C's
// QU_Insert before Go's typed layer converts them.
type AttrValue struct {
	Name  string
	Value string
}

// buildTuple resolves values against schema attribute-by-attribute and
// encodes each into its fixed byte window, per QU_Insert's two
// validation checks: attribute-count mismatch and any unmatched
// attribute name are both BadCatParm.
func buildTuple(attrs []types.AttrDesc, values []AttrValue) ([]byte, error) {
	if len(values) != len(attrs) {
		return nil, types.NewStatusError(types.BadCatParm)
	}

	recLen := 0
	for _, a := range attrs {
		if a.Offset+a.Length > recLen {
			recLen = a.Offset + a.Length
		}
	}
	buf := make([]byte, recLen)

	for _, a := range attrs {
		var raw string
		found := false
		for _, v := range values {
			if v.Name == a.Name {
				raw = v.Value
				found = true
				break
			}
		}
		if !found {
			return nil, types.NewStatusError(types.BadCatParm)
		}
		if err := encodeField(buf[a.Offset:a.Offset+a.Length], a, raw); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeField(dst []byte, a types.AttrDesc, raw string) error {
	switch a.Type {
	case types.DTInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		putInt32(dst, int32(n))
	case types.DTFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		putFloat32(dst, float32(f))
	case types.DTString:
		n := copy(dst, raw)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	default:
		return fmt.Errorf("attribute %q: unknown datatype", a.Name)
	}
	return nil
}

// QUInsert builds a tuple from values against relation's schema and
// appends it, per §4.5 and Stage6/insert.C's QU_Insert.
func QUInsert(env *heap.Env, cat *catalog.Manager, relation string, values []AttrValue) (types.RID, error) {
	attrs, err := cat.GetRelInfo(relation)
	if err != nil {
		return types.NullRID, err
	}
	tuple, err := buildTuple(attrs, values)
	if err != nil {
		return types.NullRID, err
	}

	ifs, err := heap.OpenInsertFileScan(env, relation)
	if err != nil {
		return types.NullRID, err
	}
	defer ifs.Close()

	return ifs.InsertRecord(tuple)
}

// QUDelete deletes every record of relation matching (attrName, value,
// op), or every record when attrName is empty, matching
// Stage6/delete.C's QU_Delete. Returns the number of records deleted.
func QUDelete(env *heap.Env, cat *catalog.Manager, relation, attrName, value string, op types.Operator) (int, error) {
	scan, err := heap.OpenHeapFileScan(env, relation)
	if err != nil {
		return 0, err
	}
	defer scan.Close()

	if attrName == "" {
		if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
			return 0, err
		}
	} else {
		attr, err := cat.GetInfo(relation, attrName)
		if err != nil {
			return 0, err
		}
		filterBytes := make([]byte, attr.Length)
		if err := encodeField(filterBytes, attr, value); err != nil {
			return 0, err
		}
		if err := scan.StartScan(attr.Offset, attr.Length, attr.Type, filterBytes, op); err != nil {
			return 0, err
		}
	}

	count := 0
	for {
		_, _, err := scan.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				return count, nil
			}
			return count, err
		}
		if err := scan.DeleteRecord(); err != nil {
			return count, err
		}
		count++
	}
}

// QUSelect projects projAttrs from every record of src matching
// (filterAttr, filterValue, op) into dest, matching Stage6/select.C's
// ScanSelect: a source scan and a destination insert scan open at once,
// one record copied at a time.
func QUSelect(env *heap.Env, cat *catalog.Manager, src string, projAttrs []string, dest, filterAttr, filterValue string, op types.Operator) (int, error) {
	srcAttrs, err := cat.GetRelInfo(src)
	if err != nil {
		return 0, err
	}
	projected := make([]types.AttrDesc, 0, len(projAttrs))
	for _, name := range projAttrs {
		attr, err := cat.GetInfo(src, name)
		if err != nil {
			return 0, err
		}
		projected = append(projected, attr)
	}

	scan, err := heap.OpenHeapFileScan(env, src)
	if err != nil {
		return 0, err
	}
	defer scan.Close()

	if filterAttr == "" {
		if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
			return 0, err
		}
	} else {
		var filterAttrDesc types.AttrDesc
		for _, a := range srcAttrs {
			if a.Name == filterAttr {
				filterAttrDesc = a
				break
			}
		}
		if filterAttrDesc.Name == "" {
			return 0, types.NewStatusError(types.BadCatParm)
		}
		filterBytes := make([]byte, filterAttrDesc.Length)
		if err := encodeField(filterBytes, filterAttrDesc, filterValue); err != nil {
			return 0, err
		}
		if err := scan.StartScan(filterAttrDesc.Offset, filterAttrDesc.Length, filterAttrDesc.Type, filterBytes, op); err != nil {
			return 0, err
		}
	}

	ifs, err := heap.OpenInsertFileScan(env, dest)
	if err != nil {
		return 0, err
	}
	defer ifs.Close()

	// destination tuple is the concatenation of the projected fields in
	// projAttrs order, matching ScanSelect's contiguous output buffer.
	outLen := 0
	for _, a := range projected {
		outLen += a.Length
	}

	count := 0
	for {
		_, rec, err := scan.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				return count, nil
			}
			return count, err
		}

		out := make([]byte, outLen)
		pos := 0
		for _, a := range projected {
			copy(out[pos:pos+a.Length], rec.Data[a.Offset:a.Offset+a.Length])
			pos += a.Length
		}
		if _, err := ifs.InsertRecord(out); err != nil {
			return count, err
		}
		count++
	}
}

func putInt32(dst []byte, v int32) {
	binary.LittleEndian.PutUint32(dst, uint32(v))
}

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
