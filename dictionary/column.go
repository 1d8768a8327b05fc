package dictionary

type (
	// Column is a materialized lookup result aligned with the input keys.
	Column interface {
		Len() int
		Type() Type
		// Value returns row i in its native Go type, nil when the row is null
		Value(i int) any
	}

	// Vector is a fixed-width column of one native type.
	Vector[T any] struct {
		typ  Type
		Data []T
	}

	// StringColumn stores rows back to back in Chars. Offsets[i] is the end of row i.
	StringColumn struct {
		Chars   []byte
		Offsets []int
	}

	// NullableColumn wraps a column with a parallel null mask.
	NullableColumn struct {
		Nested  Column
		NullMap []bool
	}
)

func NewVector[T any](typ Type, size int) *Vector[T] {
	return &Vector[T]{typ: typ, Data: make([]T, size)}
}

func (v *Vector[T]) Len() int {
	return len(v.Data)
}

func (v *Vector[T]) Type() Type {
	return v.typ
}

func (v *Vector[T]) Value(i int) any {
	return v.Data[i]
}

func NewStringColumn(size int) *StringColumn {
	return &StringColumn{Offsets: make([]int, 0, size)}
}

func (c *StringColumn) Append(s string) {
	c.Chars = append(c.Chars, s...)
	c.Offsets = append(c.Offsets, len(c.Chars))
}

func (c *StringColumn) Len() int {
	return len(c.Offsets)
}

func (c *StringColumn) Type() Type {
	return Type{Kind: KindString}
}

func (c *StringColumn) Value(i int) any {
	return c.At(i)
}

// At returns row i as a string copied out of Chars.
func (c *StringColumn) At(i int) string {
	start := 0
	if i > 0 {
		start = c.Offsets[i-1]
	}
	return string(c.Chars[start:c.Offsets[i]])
}

func (c *NullableColumn) Len() int {
	return c.Nested.Len()
}

func (c *NullableColumn) Type() Type {
	return c.Nested.Type()
}

func (c *NullableColumn) Value(i int) any {
	if c.NullMap[i] {
		return nil
	}
	return c.Nested.Value(i)
}

func (c *NullableColumn) IsNull(i int) bool {
	return c.NullMap[i]
}

// Values flattens any column into a slice of native values, nil for null rows.
func Values(c Column) []any {
	out := make([]any, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}
