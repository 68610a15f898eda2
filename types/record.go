package types

// Record is an opaque, contiguous byte buffer plus a length. Its content
// is interpreted only by callers holding schema information (offsets,
// lengths, datatypes), the heap layer never inspects it.
type Record struct {
	Data []byte
}

func (r Record) Length() int {
	return len(r.Data)
}
