package dictionary

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetColumn resolves one attribute for every key. resultType must equal the attribute's
// type. Row i of the result belongs to keys[i]; nullable attributes come back as a
// *NullableColumn.
func (d *Dictionary) GetColumn(ctx context.Context, attribute string, resultType Type, keys []Key, defaults Defaults) (Column, error) {
	idx, ok := d.indexByName[attribute]
	if !ok {
		return nil, newError(d.fullName, ErrNotFound, nil, fmt.Sprintf("no such attribute '%s'", attribute))
	}
	attr := &d.attributes[idx]
	if resultType != attr.Type {
		return nil, newError(d.fullName, ErrTypeMismatch, nil,
			fmt.Sprintf("attribute '%s' is %s, requested %s", attribute, attr.Type, resultType))
	}

	d.ctxLogger(ctx).Debug().Str("attribute", attribute).Int("keys", len(keys)).Msg("getting column")

	switch attr.Type.Kind {
	case KindUInt8:
		return resolveVector[uint8](ctx, d, idx, keys, defaults)
	case KindUInt16:
		return resolveVector[uint16](ctx, d, idx, keys, defaults)
	case KindUInt32:
		return resolveVector[uint32](ctx, d, idx, keys, defaults)
	case KindUInt64:
		return resolveVector[uint64](ctx, d, idx, keys, defaults)
	case KindInt8:
		return resolveVector[int8](ctx, d, idx, keys, defaults)
	case KindInt16:
		return resolveVector[int16](ctx, d, idx, keys, defaults)
	case KindInt32:
		return resolveVector[int32](ctx, d, idx, keys, defaults)
	case KindInt64:
		return resolveVector[int64](ctx, d, idx, keys, defaults)
	case KindFloat32:
		return resolveVector[float32](ctx, d, idx, keys, defaults)
	case KindFloat64:
		return resolveVector[float64](ctx, d, idx, keys, defaults)
	case KindDecimal32, KindDecimal64, KindDecimal128:
		return resolveVector[decimal.Decimal](ctx, d, idx, keys, defaults)
	case KindUUID:
		return resolveVector[uuid.UUID](ctx, d, idx, keys, defaults)
	case KindString:
		return resolveStrings(ctx, d, idx, keys, defaults)
	case KindInvalid, kindCount:
	}
	return nil, newError(d.fullName, ErrTypeMismatch, nil, fmt.Sprintf("unsupported type %s", attr.Type))
}

func resolveVector[T any](ctx context.Context, d *Dictionary, idx int, keys []Key, defaults Defaults) (Column, error) {
	attr := &d.attributes[idx]
	extract, err := newDefaultExtractor[T](d, attr, defaults, len(keys))
	if err != nil {
		return nil, err
	}

	out := NewVector[T](attr.Type, len(keys))
	nullMap := newNullMap(attr, len(keys))
	err = getItems[T](ctx, d, idx, keys, extract, func(row int, v T, isNull bool) {
		out.Data[row] = v
		if nullMap != nil {
			nullMap[row] = isNull
		}
	})
	if err != nil {
		return nil, err
	}
	return wrapNullable(out, nullMap), nil
}

func resolveStrings(ctx context.Context, d *Dictionary, idx int, keys []Key, defaults Defaults) (Column, error) {
	attr := &d.attributes[idx]
	extract, err := newDefaultExtractor[string](d, attr, defaults, len(keys))
	if err != nil {
		return nil, err
	}

	out := NewStringColumn(len(keys))
	nullMap := newNullMap(attr, len(keys))
	// rows are set in order so appending keeps output aligned with keys
	err = getItems[string](ctx, d, idx, keys, extract, func(row int, v string, isNull bool) {
		out.Append(v)
		if nullMap != nil {
			nullMap[row] = isNull
		}
	})
	if err != nil {
		return nil, err
	}
	return wrapNullable(out, nullMap), nil
}

func newNullMap(attr *Attribute, size int) []bool {
	if !attr.Nullable {
		return nil
	}
	return make([]bool, size)
}

func wrapNullable(c Column, nullMap []bool) Column {
	if nullMap == nil {
		return c
	}
	return &NullableColumn{Nested: c, NullMap: nullMap}
}
