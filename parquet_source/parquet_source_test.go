package parquet_source

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/parquet_accumulator"
	"github.com/danthegoodman1/directdict/utils"
)

var regions = dictionary.Structure{
	Attributes: []dictionary.AttributeSpec{
		{Name: "parent", Type: "UInt64", Hierarchical: true},
		{Name: "name", Type: "Nullable(String)", NullValue: "unknown"},
		{Name: "big", Type: "UInt64"},
	},
}

func writeRegions(t *testing.T, store datastore.DataStore) {
	t.Helper()
	pa, err := parquet_accumulator.FromStructure(regions)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w, err := parquet_accumulator.NewWriter(pa, &buf)
	if err != nil {
		t.Fatal(err)
	}
	b := dictionary.NewBlock(3, 4)
	b.AppendRow(10, []any{uint64(0), "earth", uint64(18446744073709551615)})
	b.AppendRow(20, []any{uint64(10), "europe", uint64(1)})
	b.AppendRow(30, []any{uint64(20), nil, uint64(2)})
	if err = w.WriteBlock(b); err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	if err = store.WriteFile(context.Background(), "regions.parquet", &buf); err != nil {
		t.Fatal(err)
	}
}

func newRegionsDict(t *testing.T, blockSize int) *dictionary.Dictionary {
	t.Helper()
	store, err := datastore.NewDiskDataStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeRegions(t, store)

	src, err := NewParquetSource(store, Config{Path: "regions.parquet", BlockSize: blockSize}, regions)
	if err != nil {
		t.Fatal(err)
	}
	d, err := dictionary.New("regions", regions, src)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestParquetSourceLookups(t *testing.T) {
	ctx := context.Background()
	// a block size of 2 makes the file span several blocks
	d := newRegionsDict(t, 2)

	col, err := d.GetColumn(ctx, "name", dictionary.Type{Kind: dictionary.KindString}, []dictionary.Key{30, 10, 99, 20}, dictionary.Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	if got := dictionary.Values(col); !reflect.DeepEqual(got, []any{nil, "earth", "unknown", "europe"}) {
		t.Fatalf("got %v", got)
	}

	big, err := d.GetColumn(ctx, "big", dictionary.Type{Kind: dictionary.KindUInt64}, []dictionary.Key{10, 20}, dictionary.Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	if got := dictionary.Values(big); !reflect.DeepEqual(got, []any{uint64(18446744073709551615), uint64(1)}) {
		t.Fatalf("got %v", got)
	}

	has, err := d.HasKeys(ctx, []dictionary.Key{10, 11, 30})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(has, []bool{true, false, true}) {
		t.Fatalf("got %v", has)
	}

	in, err := d.IsInVectorConstant(ctx, []dictionary.Key{30, 20, 99}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, []bool{true, true, false}) {
		t.Fatalf("got %v", in)
	}
}

func TestParquetSourceDump(t *testing.T) {
	ctx := context.Background()
	d := newRegionsDict(t, 0)

	stream, err := d.DumpAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []dictionary.Key
	err = dictionary.ForEachBlock(ctx, stream, func(b *dictionary.Block) error {
		ids = append(ids, b.IDs...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []dictionary.Key{10, 20, 30}) {
		t.Fatalf("got %v", ids)
	}
}

func TestParquetSourceErrors(t *testing.T) {
	ctx := context.Background()
	store, err := datastore.NewDiskDataStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	src, err := NewParquetSource(store, Config{Path: "missing.parquet"}, regions)
	if err != nil {
		t.Fatal(err)
	}
	d, err := dictionary.New("regions", regions, src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = d.HasKeys(ctx, []dictionary.Key{1}); !errors.Is(err, dictionary.ErrSource) {
		t.Fatalf("expected source error, got %v", err)
	}

	src, err = NewParquetSource(store, Config{Path: "x.parquet", Selective: utils.Ptr(false)}, regions)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = dictionary.New("regions", regions, src); !errors.Is(err, dictionary.ErrUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
}
