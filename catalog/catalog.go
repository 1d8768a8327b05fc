package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/metastore"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

var (
	logger = gologger.NewLogger()

	ErrDictionaryExists = errors.New("dictionary already exists")
	ErrUnknownSource    = errors.New("unknown source type")
)

type (
	// Deps are the shared connections source factories may use. Any of them may be nil.
	Deps struct {
		Pool      *pgxpool.Pool
		DataStore datastore.DataStore
	}

	SourceFactory func(ctx context.Context, deps Deps, params map[string]any, structure dictionary.Structure) (dictionary.Source, error)

	// Catalog holds the live dictionaries, building each from its definition through the
	// factory registered for its source type.
	Catalog struct {
		metaStore metastore.MetaStore
		deps      Deps
		dictOpts  []dictionary.Option

		mu        sync.RWMutex
		factories map[string]SourceFactory
		entries   map[string]*entry
		// pending holds names claimed by an in-flight create or load
		pending map[string]struct{}
	}

	entry struct {
		def  metastore.Definition
		dict *dictionary.Dictionary
	}

	shutdowner interface {
		Shutdown(ctx context.Context) error
	}
)

// NewCatalog registers the built in source types. ms may be nil, in which case
// dictionaries only live in memory.
func NewCatalog(ms metastore.MetaStore, deps Deps, dictOpts ...dictionary.Option) *Catalog {
	c := &Catalog{
		metaStore: ms,
		deps:      deps,
		dictOpts:  dictOpts,
		factories: map[string]SourceFactory{},
		entries:   map[string]*entry{},
		pending:   map[string]struct{}{},
	}
	for name, f := range builtinSources {
		c.RegisterSource(name, f)
	}
	return c
}

// RegisterSource adds or replaces the factory for a source type.
func (c *Catalog) RegisterSource(sourceType string, f SourceFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[sourceType] = f
}

func (c *Catalog) build(ctx context.Context, def metastore.Definition) (*dictionary.Dictionary, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	factory, ok := c.factories[def.Source.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w '%s' for dictionary '%s'", ErrUnknownSource, def.Source.Type, def.FullName())
	}
	src, err := factory(ctx, c.deps, def.Source.Params, def.Structure)
	if err != nil {
		return nil, fmt.Errorf("error building %s source for '%s': %w", def.Source.Type, def.FullName(), err)
	}
	d, err := dictionary.NewFromConfig(def.Config(), src, c.dictOpts...)
	if err != nil {
		shutdownSource(ctx, src)
		return nil, err
	}
	return d, nil
}

// claim reserves name until release, failing if it is live or already claimed.
func (c *Catalog) claim(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[name]; exists {
		return fmt.Errorf("%w: '%s'", ErrDictionaryExists, name)
	}
	if _, claimed := c.pending[name]; claimed {
		return fmt.Errorf("%w: '%s'", ErrDictionaryExists, name)
	}
	c.pending[name] = struct{}{}
	return nil
}

func (c *Catalog) release(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, name)
}

// publish makes a claimed dictionary visible to Get.
func (c *Catalog) publish(def metastore.Definition, d *dictionary.Dictionary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[def.FullName()] = &entry{def: def, dict: d}
}

// CreateDictionary builds the dictionary, stores its definition in the metastore when there
// is one, and makes it available to Get.
func (c *Catalog) CreateDictionary(ctx context.Context, def metastore.Definition) (*dictionary.Dictionary, error) {
	logger := zerolog.Ctx(ctx)
	if def.Layout == "" {
		def.Layout = dictionary.LayoutDirect
	}
	name := def.FullName()
	if err := c.claim(name); err != nil {
		return nil, err
	}
	defer c.release(name)

	d, err := c.build(ctx, def)
	if err != nil {
		return nil, err
	}
	if c.metaStore != nil {
		def, err = c.metaStore.PutDefinition(ctx, def)
		if err != nil {
			shutdownSource(ctx, d.Source())
			return nil, fmt.Errorf("error in metaStore.PutDefinition: %w", err)
		}
	}
	c.publish(def, d)
	logger.Info().Str("dictionary", def.FullName()).Str("source", def.Source.Type).Msg("created dictionary")
	return d, nil
}

// LoadAll builds every definition in the metastore plus the given file definitions, which
// are not persisted. A definition that fails to build is logged and skipped; the joined
// errors are returned alongside the number loaded.
func (c *Catalog) LoadAll(ctx context.Context, fileDefs []metastore.Definition) (int, error) {
	logger := zerolog.Ctx(ctx)
	defs := append([]metastore.Definition{}, fileDefs...)
	if c.metaStore != nil {
		stored, err := c.metaStore.ListDefinitions(ctx)
		if err != nil {
			return 0, fmt.Errorf("error in metaStore.ListDefinitions: %w", err)
		}
		defs = append(defs, stored...)
	}

	var errs error
	loaded := 0
	for _, def := range defs {
		err := c.load(ctx, def)
		if err != nil {
			logger.Error().Err(err).Str("dictionary", def.FullName()).Msg("failed to load dictionary")
			errs = multierr.Append(errs, err)
			continue
		}
		loaded++
	}
	logger.Info().Int("loaded", loaded).Int("definitions", len(defs)).Msg("loaded dictionaries")
	return loaded, errs
}

func (c *Catalog) load(ctx context.Context, def metastore.Definition) error {
	name := def.FullName()
	if err := c.claim(name); err != nil {
		return err
	}
	defer c.release(name)
	d, err := c.build(ctx, def)
	if err != nil {
		return err
	}
	c.publish(def, d)
	return nil
}

func (c *Catalog) Get(name string) (*dictionary.Dictionary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("dictionary '%s': %w", name, dictionary.ErrNotFound)
	}
	return e.dict, nil
}

func (c *Catalog) Definition(name string) (metastore.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return metastore.Definition{}, fmt.Errorf("dictionary '%s': %w", name, dictionary.ErrNotFound)
	}
	return e.def, nil
}

// Names lists the loaded dictionaries in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Dictionaries() []*dictionary.Dictionary {
	names := c.Names()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*dictionary.Dictionary, 0, len(names))
	for _, name := range names {
		if e, ok := c.entries[name]; ok {
			out = append(out, e.dict)
		}
	}
	return out
}

// Drop removes a dictionary, shuts its source down and deletes its stored definition.
func (c *Catalog) Drop(ctx context.Context, name string) error {
	c.mu.Lock()
	e, ok := c.entries[name]
	delete(c.entries, name)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("dictionary '%s': %w", name, dictionary.ErrNotFound)
	}

	err := shutdownSource(ctx, e.dict.Source())
	if c.metaStore != nil {
		derr := c.metaStore.DeleteDefinition(ctx, name)
		if derr != nil && !errors.Is(derr, metastore.ErrDefinitionNotFound) {
			err = multierr.Append(err, fmt.Errorf("error in metaStore.DeleteDefinition: %w", derr))
		}
	}
	return err
}

// Shutdown shuts every source down. The metastore belongs to the caller.
func (c *Catalog) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	entries := c.entries
	c.entries = map[string]*entry{}
	c.mu.Unlock()

	var err error
	for _, e := range entries {
		err = multierr.Append(err, shutdownSource(ctx, e.dict.Source()))
	}
	return err
}

func shutdownSource(ctx context.Context, src dictionary.Source) error {
	s, ok := src.(shutdowner)
	if !ok {
		return nil
	}
	if err := s.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("error shutting down source")
		return fmt.Errorf("error in source.Shutdown: %w", err)
	}
	return nil
}
