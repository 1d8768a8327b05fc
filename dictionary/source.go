package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

type (
	// Key identifies a dictionary row.
	Key = uint64

	// Source is the external data a dictionary queries on every lookup.
	Source interface {
		// SupportsSelectiveLoad reports whether LoadIDs can restrict a load to given keys
		SupportsSelectiveLoad() bool
		LoadIDs(ctx context.Context, ids []Key) (RowStream, error)
		LoadAll(ctx context.Context) (RowStream, error)
	}

	// RowStream yields Blocks between Open and Close. Read returns io.EOF once exhausted.
	// Close must be safe to call after a failed Open.
	RowStream interface {
		Open(ctx context.Context) error
		Read(ctx context.Context) (*Block, error)
		Close(ctx context.Context) error
	}

	// Block is a batch of source rows. IDs is the key column; Columns holds one column per
	// declared attribute in declaration order. A nil cell is an explicit null.
	Block struct {
		IDs     []Key
		Columns [][]any
	}
)

func NewBlock(numAttributes, capacity int) *Block {
	b := &Block{
		IDs:     make([]Key, 0, capacity),
		Columns: make([][]any, numAttributes),
	}
	for i := range b.Columns {
		b.Columns[i] = make([]any, 0, capacity)
	}
	return b
}

// AppendRow adds one row; values must have one entry per attribute.
func (b *Block) AppendRow(id Key, values []any) {
	b.IDs = append(b.IDs, id)
	for i := range b.Columns {
		b.Columns[i] = append(b.Columns[i], values[i])
	}
}

func (b *Block) Rows() int {
	return len(b.IDs)
}

// Validate checks the block carries numAttributes columns, each as long as the id column.
func (b *Block) Validate(numAttributes int) error {
	if len(b.Columns) != numAttributes {
		return fmt.Errorf("block has %d attribute columns, expected %d", len(b.Columns), numAttributes)
	}
	for i, col := range b.Columns {
		if len(col) != len(b.IDs) {
			return fmt.Errorf("attribute column %d has %d rows, id column has %d", i, len(col), len(b.IDs))
		}
	}
	return nil
}

// ForEachBlock opens stream, hands every block to fn and closes the stream on every exit
// path. A Close failure is merged into the returned error.
func ForEachBlock(ctx context.Context, stream RowStream, fn func(*Block) error) (err error) {
	defer func() {
		err = multierr.Append(err, stream.Close(ctx))
	}()

	if err = stream.Open(ctx); err != nil {
		return fmt.Errorf("error in stream.Open: %w", err)
	}

	for {
		block, rerr := stream.Read(ctx)
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("error in stream.Read: %w", rerr)
		}
		if block == nil {
			continue
		}
		if err = fn(block); err != nil {
			return err
		}
	}
}

// SliceStream is a RowStream over blocks already in memory.
type SliceStream struct {
	Blocks []*Block
	pos    int
	opened bool
}

func NewSliceStream(blocks ...*Block) *SliceStream {
	return &SliceStream{Blocks: blocks}
}

func (s *SliceStream) Open(context.Context) error {
	s.opened = true
	s.pos = 0
	return nil
}

func (s *SliceStream) Read(context.Context) (*Block, error) {
	if !s.opened {
		return nil, errors.New("stream not opened")
	}
	if s.pos >= len(s.Blocks) {
		return nil, io.EOF
	}
	b := s.Blocks[s.pos]
	s.pos++
	return b, nil
}

func (s *SliceStream) Close(context.Context) error {
	s.opened = false
	return nil
}
