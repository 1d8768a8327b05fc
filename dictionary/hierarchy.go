package dictionary

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MaxHierarchyDepth bounds every ancestor walk, a chain longer than this (or a cycle)
// makes IsIn report false.
const MaxHierarchyDepth = 1000

func (d *Dictionary) requireHierarchy(op string) (*Attribute, error) {
	h := d.hierarchical()
	if h == nil {
		return nil, newError(d.fullName, ErrUnsupportedMethod, nil, fmt.Sprintf("%s requires a hierarchical attribute", op))
	}
	return h, nil
}

// sentinel is the hierarchical attribute's null_value, the parent of a root.
func (d *Dictionary) sentinel() Key {
	return d.hierarchical().NullValue().(uint64)
}

// ToParent returns the parent of every id, the null_value of the hierarchical attribute
// when the source does not know the id.
func (d *Dictionary) ToParent(ctx context.Context, ids []Key) ([]Key, error) {
	h, err := d.requireHierarchy("ToParent")
	if err != nil {
		return nil, err
	}
	extract, err := newDefaultExtractor[uint64](d, h, Defaults{}, len(ids))
	if err != nil {
		return nil, err
	}

	out := make([]Key, len(ids))
	err = getItems[uint64](ctx, d, d.hierarchicalIdx, ids, extract, func(row int, v uint64, _ bool) {
		out[row] = v
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// getValueOrNullByKey loads one key on its own and returns the parent held by the first
// row with that id. A missing row or a null parent cell both give the sentinel.
func (d *Dictionary) getValueOrNullByKey(ctx context.Context, key Key) (Key, error) {
	h := d.hierarchical()
	parent := d.sentinel()

	stream, err := d.source.LoadIDs(ctx, []Key{key})
	if err != nil {
		return 0, sourceError(d.fullName, err, "error in source.LoadIDs")
	}

	found := false
	err = ForEachBlock(ctx, stream, func(b *Block) error {
		if err := b.Validate(len(d.attributes)); err != nil {
			return err
		}
		if found {
			return nil
		}
		col := b.Columns[d.hierarchicalIdx]
		for i, id := range b.IDs {
			if id != key {
				continue
			}
			found = true
			if col[i] == nil {
				return nil
			}
			v, err := convertValue[uint64](h, col[i])
			if err != nil {
				return fmt.Errorf("error converting parent of id %d: %w", id, err)
			}
			parent = v
			return nil
		}
		return nil
	})
	if err != nil {
		return 0, sourceError(d.fullName, err, "error reading source")
	}
	return parent, nil
}

// isIn walks up from child until it reaches ancestor, the sentinel or MaxHierarchyDepth.
func (d *Dictionary) isIn(ctx context.Context, child, ancestor Key) (bool, error) {
	sentinel := d.sentinel()
	current := child
	for depth := 0; current != sentinel && current != ancestor && depth < MaxHierarchyDepth; depth++ {
		next, err := d.getValueOrNullByKey(ctx, current)
		if err != nil {
			return false, err
		}
		current = next
	}
	return current == ancestor, nil
}

func (d *Dictionary) isInBatch(ctx context.Context, op string, rows int, child, ancestor func(i int) Key) ([]bool, error) {
	if _, err := d.requireHierarchy(op); err != nil {
		return nil, err
	}

	out := make([]bool, rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.walkConcurrency)
	for i := 0; i < rows; i++ {
		i := i
		g.Go(func() error {
			res, err := d.isIn(gctx, child(i), ancestor(i))
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.addQueries(rows)
	return out, nil
}

// IsInVectorVector reports whether ancestors[i] is an ancestor of (or equal to) children[i].
func (d *Dictionary) IsInVectorVector(ctx context.Context, children, ancestors []Key) ([]bool, error) {
	if len(children) != len(ancestors) {
		return nil, newError(d.fullName, ErrBadArguments, nil,
			fmt.Sprintf("children has %d rows but ancestors has %d", len(children), len(ancestors)))
	}
	return d.isInBatch(ctx, "IsInVectorVector", len(children),
		func(i int) Key { return children[i] },
		func(i int) Key { return ancestors[i] })
}

func (d *Dictionary) IsInVectorConstant(ctx context.Context, children []Key, ancestor Key) ([]bool, error) {
	return d.isInBatch(ctx, "IsInVectorConstant", len(children),
		func(i int) Key { return children[i] },
		func(int) Key { return ancestor })
}

func (d *Dictionary) IsInConstantVector(ctx context.Context, child Key, ancestors []Key) ([]bool, error) {
	return d.isInBatch(ctx, "IsInConstantVector", len(ancestors),
		func(int) Key { return child },
		func(i int) Key { return ancestors[i] })
}
