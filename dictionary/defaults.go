package dictionary

import "fmt"

// Defaults supplies the value reported for keys the source does not return. The zero
// value falls back to the attribute's configured null_value.
type Defaults struct {
	constant any
	rows     []any
	perRow   bool
}

// ConstantDefault broadcasts one value to every row. A nil value means the attribute's
// null_value.
func ConstantDefault(v any) Defaults {
	return Defaults{constant: v}
}

// RowDefaults supplies one default per key. A nil entry means the attribute's null_value
// for that row.
func RowDefaults(rows []any) Defaults {
	return Defaults{rows: rows, perRow: true}
}

type defaultExtractor[T any] func(row int) T

func newDefaultExtractor[T any](d *Dictionary, attr *Attribute, defaults Defaults, numRows int) (defaultExtractor[T], error) {
	fallback, err := convertValue[T](attr, attr.NullValue())
	if err != nil {
		return nil, newError(d.fullName, ErrTypeMismatch, err, fmt.Sprintf("null_value of attribute '%s'", attr.Name))
	}

	if !defaults.perRow {
		if defaults.constant == nil {
			return func(int) T { return fallback }, nil
		}
		v, err := convertValue[T](attr, defaults.constant)
		if err != nil {
			return nil, newError(d.fullName, ErrBadArguments, err, fmt.Sprintf("bad default for attribute '%s'", attr.Name))
		}
		return func(int) T { return v }, nil
	}

	if len(defaults.rows) != numRows {
		return nil, newError(d.fullName, ErrBadArguments, nil,
			fmt.Sprintf("defaults column has %d rows, expected %d", len(defaults.rows), numRows))
	}
	values := make([]T, numRows)
	for i, raw := range defaults.rows {
		if raw == nil {
			values[i] = fallback
			continue
		}
		if values[i], err = convertValue[T](attr, raw); err != nil {
			return nil, newError(d.fullName, ErrBadArguments, err, fmt.Sprintf("bad default in row %d for attribute '%s'", i, attr.Name))
		}
	}
	return func(row int) T { return values[row] }, nil
}

// convertValue coerces v into the attribute's native type T.
func convertValue[T any](attr *Attribute, v any) (T, error) {
	var zero T
	if t, ok := v.(T); ok && !attr.Type.Kind.IsDecimal() {
		return t, nil
	}
	c, err := attr.Type.Coerce(v)
	if err != nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("attribute '%s' is %s, cannot hold %T", attr.Name, attr.Type, c)
	}
	return t, nil
}
