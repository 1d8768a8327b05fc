package dictionary

import (
	"context"
	"fmt"
)

type setter[T any] func(row int, value T, isNull bool)

// distinctKeys returns the keys in first-seen order.
func distinctKeys(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// getItems resolves attribute attrIdx for every key with a single selective load and
// hands each row to set in input order. Nothing is set if the load fails.
func getItems[T any](ctx context.Context, d *Dictionary, attrIdx int, keys []Key, defaults defaultExtractor[T], set setter[T]) error {
	attr := &d.attributes[attrIdx]

	values := make(map[Key]T, len(keys))
	ids := make([]Key, 0, len(keys))
	for row, k := range keys {
		if _, ok := values[k]; ok {
			continue
		}
		values[k] = defaults(row)
		ids = append(ids, k)
	}
	nulls := make(map[Key]struct{})

	stream, err := d.source.LoadIDs(ctx, ids)
	if err != nil {
		return sourceError(d.fullName, err, "error in source.LoadIDs")
	}

	err = ForEachBlock(ctx, stream, func(b *Block) error {
		if err := b.Validate(len(d.attributes)); err != nil {
			return err
		}
		col := b.Columns[attrIdx]
		for i, id := range b.IDs {
			if _, ok := values[id]; !ok {
				continue
			}
			if col[i] == nil {
				nulls[id] = struct{}{}
				continue
			}
			v, err := convertValue[T](attr, col[i])
			if err != nil {
				return fmt.Errorf("error converting attribute '%s' for id %d: %w", attr.Name, id, err)
			}
			values[id] = v
			delete(nulls, id)
		}
		return nil
	})
	if err != nil {
		return sourceError(d.fullName, err, "error reading source")
	}

	for row, k := range keys {
		_, isNull := nulls[k]
		set(row, values[k], isNull)
	}

	d.addQueries(len(keys))
	return nil
}
