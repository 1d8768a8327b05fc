package dictionary

import (
	"context"
	"sync"
)

type fakeRow struct {
	id     Key
	values []any
}

// fakeSource serves rows from memory and records every load.
type fakeSource struct {
	mu sync.Mutex

	numAttrs    int
	rows        []fakeRow
	noSelective bool
	openErr     error
	readErr     error

	loadCalls int
	loadedIDs [][]Key
	opened    int
	closed    int
}

func newFakeSource(numAttrs int, rows ...fakeRow) *fakeSource {
	return &fakeSource{numAttrs: numAttrs, rows: rows}
}

func row(id Key, values ...any) fakeRow {
	return fakeRow{id: id, values: values}
}

func (s *fakeSource) SupportsSelectiveLoad() bool {
	return !s.noSelective
}

func (s *fakeSource) LoadIDs(_ context.Context, ids []Key) (RowStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	s.loadedIDs = append(s.loadedIDs, append([]Key(nil), ids...))

	want := make(map[Key]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	b := NewBlock(s.numAttrs, len(ids))
	for _, r := range s.rows {
		if _, ok := want[r.id]; ok {
			b.AppendRow(r.id, r.values)
		}
	}
	return &fakeStream{src: s, inner: NewSliceStream(b)}, nil
}

func (s *fakeSource) LoadAll(context.Context) (RowStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := NewBlock(s.numAttrs, len(s.rows))
	for _, r := range s.rows {
		b.AppendRow(r.id, r.values)
	}
	return &fakeStream{src: s, inner: NewSliceStream(b)}, nil
}

func (s *fakeSource) counts() (loads, opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCalls, s.opened, s.closed
}

type fakeStream struct {
	src   *fakeSource
	inner *SliceStream
}

func (f *fakeStream) Open(ctx context.Context) error {
	f.src.mu.Lock()
	f.src.opened++
	err := f.src.openErr
	f.src.mu.Unlock()
	if err != nil {
		return err
	}
	return f.inner.Open(ctx)
}

func (f *fakeStream) Read(ctx context.Context) (*Block, error) {
	f.src.mu.Lock()
	err := f.src.readErr
	f.src.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.inner.Read(ctx)
}

func (f *fakeStream) Close(ctx context.Context) error {
	f.src.mu.Lock()
	f.src.closed++
	f.src.mu.Unlock()
	return f.inner.Close(ctx)
}
