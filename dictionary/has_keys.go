package dictionary

import "context"

// HasKeys reports for every key whether the source returned it.
func (d *Dictionary) HasKeys(ctx context.Context, keys []Key) ([]bool, error) {
	found := make(map[Key]bool, len(keys))
	ids := distinctKeys(keys)
	for _, k := range ids {
		found[k] = false
	}

	stream, err := d.source.LoadIDs(ctx, ids)
	if err != nil {
		return nil, sourceError(d.fullName, err, "error in source.LoadIDs")
	}
	err = ForEachBlock(ctx, stream, func(b *Block) error {
		for _, id := range b.IDs {
			if _, ok := found[id]; ok {
				found[id] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, sourceError(d.fullName, err, "error reading source")
	}

	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = found[k]
	}
	d.addQueries(len(keys))
	return out, nil
}
