package dictionary

import "unsafe"

// Arena is an append-only byte buffer. Bytes are never modified or released once
// inserted, so views handed out by String stay valid for the arena's lifetime even
// after the buffer grows.
type Arena struct {
	buf []byte
}

// StringRef locates a string inside an Arena.
type StringRef struct {
	Offset int
	Len    int
}

func (a *Arena) Insert(s string) StringRef {
	ref := StringRef{Offset: len(a.buf), Len: len(s)}
	a.buf = append(a.buf, s...)
	return ref
}

// String returns a zero-copy view of ref.
func (a *Arena) String(ref StringRef) string {
	if ref.Len == 0 {
		return ""
	}
	b := a.buf[ref.Offset : ref.Offset+ref.Len : ref.Offset+ref.Len]
	return *(*string)(unsafe.Pointer(&b))
}

// Size is the number of bytes held.
func (a *Arena) Size() int {
	return len(a.buf)
}
