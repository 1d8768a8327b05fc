package catalog

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/metastore"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func regionsDef(addr string) metastore.Definition {
	return metastore.Definition{
		Name:     "regions",
		Database: "geo",
		Layout:   dictionary.LayoutDirect,
		Structure: dictionary.Structure{
			ID: &dictionary.IDSpec{Name: "region_id"},
			Attributes: []dictionary.AttributeSpec{
				{Name: "parent", Type: "UInt64", Hierarchical: true},
				{Name: "name", Type: "String"},
			},
		},
		Source: metastore.SourceDefinition{
			Type:   SourceRedis,
			Params: map[string]any{"key_prefix": "region:", "addr": addr},
		},
	}
}

func setup(t *testing.T) (*miniredis.Miniredis, metastore.MetaStore) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)
	m.HSet("region:1", "parent", "0", "name", "earth")
	m.HSet("region:2", "parent", "1", "name", "europe")

	ms, err := metastore.NewRedisMetaStore(context.Background(), metastore.RedisOptions{Addr: m.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ms.Shutdown(context.Background()) })
	return m, ms
}

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	m, ms := setup(t)
	c := NewCatalog(ms, Deps{})
	defer c.Shutdown(ctx)

	d, err := c.CreateDictionary(ctx, regionsDef(m.Addr()))
	if err != nil {
		t.Fatal(err)
	}
	if d.FullName() != "geo.regions" || !d.HasHierarchy() {
		t.Fatal("bad dictionary", d.FullName())
	}
	if _, err = c.CreateDictionary(ctx, regionsDef(m.Addr())); !errors.Is(err, ErrDictionaryExists) {
		t.Fatalf("expected exists error, got %v", err)
	}

	got, err := c.Get("geo.regions")
	if err != nil {
		t.Fatal(err)
	}
	col, err := got.GetColumn(ctx, "name", dictionary.Type{Kind: dictionary.KindString}, []dictionary.Key{2, 1, 3}, dictionary.Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	if v := dictionary.Values(col); !reflect.DeepEqual(v, []any{"europe", "earth", ""}) {
		t.Fatalf("got %v", v)
	}

	if _, err = c.Get("nope"); !errors.Is(err, dictionary.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	stored, err := ms.GetDefinition(ctx, "geo.regions")
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == "" {
		t.Fatal("definition stored without id")
	}
	def, err := c.Definition("geo.regions")
	if err != nil || def.ID != stored.ID {
		t.Fatal("catalog definition differs from stored one", err)
	}
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	m, ms := setup(t)

	first := NewCatalog(ms, Deps{})
	if _, err := first.CreateDictionary(ctx, regionsDef(m.Addr())); err != nil {
		t.Fatal(err)
	}
	first.Shutdown(ctx)

	fileDef := regionsDef(m.Addr())
	fileDef.Database = "files"
	broken := regionsDef(m.Addr())
	broken.Name = "broken"
	broken.Source.Type = "carrier_pigeon"

	c := NewCatalog(ms, Deps{})
	defer c.Shutdown(ctx)
	loaded, err := c.LoadAll(ctx, []metastore.Definition{fileDef, broken})
	if loaded != 2 {
		t.Fatalf("expected 2 loaded, got %d", loaded)
	}
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected unknown source error, got %v", err)
	}
	if names := c.Names(); !reflect.DeepEqual(names, []string{"files.regions", "geo.regions"}) {
		t.Fatalf("got %v", names)
	}
	if n := testutil.CollectAndCount(NewCollector(c)); n != 9 {
		t.Fatalf("expected 9 metrics, got %d", n)
	}

	// file definitions are not persisted, so dropping one leaves the metastore alone
	if err = c.Drop(ctx, "files.regions"); err != nil {
		t.Fatal(err)
	}
	if err = c.Drop(ctx, "geo.regions"); err != nil {
		t.Fatal(err)
	}
	if _, err = ms.GetDefinition(ctx, "geo.regions"); !errors.Is(err, metastore.ErrDefinitionNotFound) {
		t.Fatalf("expected definition deleted, got %v", err)
	}
	if err = c.Drop(ctx, "geo.regions"); !errors.Is(err, dictionary.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// gatedMetaStore holds the first PutDefinition until release is closed.
type gatedMetaStore struct {
	metastore.MetaStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedMetaStore) PutDefinition(ctx context.Context, def metastore.Definition) (metastore.Definition, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MetaStore.PutDefinition(ctx, def)
}

func TestConcurrentCreateSameName(t *testing.T) {
	ctx := context.Background()
	m, ms := setup(t)
	gated := &gatedMetaStore{MetaStore: ms, entered: make(chan struct{}), release: make(chan struct{})}
	c := NewCatalog(gated, Deps{})
	defer c.Shutdown(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := c.CreateDictionary(ctx, regionsDef(m.Addr()))
		done <- err
	}()
	<-gated.entered

	// same name with one attribute while the first create is still persisting
	other := regionsDef(m.Addr())
	other.Structure.Attributes = other.Structure.Attributes[1:]
	if _, err := c.CreateDictionary(ctx, other); !errors.Is(err, ErrDictionaryExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	close(gated.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	d, err := c.Get("geo.regions")
	if err != nil {
		t.Fatal(err)
	}
	stored, err := ms.GetDefinition(ctx, "geo.regions")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Attributes()) != 2 || len(stored.Structure.Attributes) != 2 {
		t.Fatalf("live has %d attributes, stored has %d", len(d.Attributes()), len(stored.Structure.Attributes))
	}

	// a failed create frees the name
	if err = c.Drop(ctx, "geo.regions"); err != nil {
		t.Fatal(err)
	}
	bad := regionsDef(m.Addr())
	bad.Source.Params = map[string]any{}
	if _, err = c.CreateDictionary(ctx, bad); err == nil {
		t.Fatal("missing key_prefix accepted")
	}
	if _, err = c.CreateDictionary(ctx, regionsDef(m.Addr())); err != nil {
		t.Fatal(err)
	}
}

func TestBadDefinitions(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(nil, Deps{})

	def := regionsDef("localhost:0")
	def.Source.Params = map[string]any{}
	if _, err := c.CreateDictionary(ctx, def); err == nil {
		t.Fatal("missing key_prefix accepted")
	}

	def = regionsDef("localhost:0")
	def.Source.Type = SourceParquet
	def.Source.Params = map[string]any{"path": "regions.parquet"}
	if _, err := c.CreateDictionary(ctx, def); err == nil {
		t.Fatal("parquet source without datastore accepted")
	}

	def = regionsDef("localhost:0")
	def.Lifetime = &dictionary.Lifetime{Max: 300}
	if _, err := c.CreateDictionary(ctx, def); !errors.Is(err, dictionary.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	if len(c.Names()) != 0 {
		t.Fatal("failed creations left dictionaries behind")
	}
}

func TestRegisterSource(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(nil, Deps{})
	c.RegisterSource("static", func(_ context.Context, _ Deps, params map[string]any, structure dictionary.Structure) (dictionary.Source, error) {
		return &staticSource{}, nil
	})

	def := regionsDef("")
	def.Source = metastore.SourceDefinition{Type: "static"}
	d, err := c.CreateDictionary(ctx, def)
	if err != nil {
		t.Fatal(err)
	}
	has, err := d.HasKeys(ctx, []dictionary.Key{7, 8})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(has, []bool{true, false}) {
		t.Fatalf("got %v", has)
	}
}

type staticSource struct{}

func (s *staticSource) SupportsSelectiveLoad() bool { return true }

func (s *staticSource) LoadIDs(context.Context, []dictionary.Key) (dictionary.RowStream, error) {
	b := dictionary.NewBlock(2, 1)
	b.AppendRow(7, []any{uint64(0), "seven"})
	return dictionary.NewSliceStream(b), nil
}

func (s *staticSource) LoadAll(ctx context.Context) (dictionary.RowStream, error) {
	return s.LoadIDs(ctx, nil)
}
