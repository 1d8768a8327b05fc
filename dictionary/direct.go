package dictionary

import (
	"context"
	"time"

	"github.com/danthegoodman1/directdict/gologger"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	logger = gologger.NewLogger()
)

type (
	// Dictionary is a direct dictionary: it holds no data and re-queries its Source on
	// every lookup. Everything but the query counter is immutable after New returns, so a
	// Dictionary is safe for concurrent use.
	Dictionary struct {
		fullName  string
		structure Structure
		source    Source
		createdAt time.Time

		attributes      []Attribute
		indexByName     map[string]int
		nameByIndex     []string
		hierarchicalIdx int

		walkConcurrency int

		queryCount atomic.Uint64
	}

	Option func(*Dictionary)
)

// WithWalkConcurrency bounds how many rows of an IsIn call walk their parent chain at
// the same time. The default walks rows one after another.
func WithWalkConcurrency(n int) Option {
	return func(d *Dictionary) {
		if n > 0 {
			d.walkConcurrency = n
		}
	}
}

// NewFromConfig rejects configurations the direct layout cannot serve, then builds the
// dictionary with New.
func NewFromConfig(cfg Config, source Source, opts ...Option) (*Dictionary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg.FullName(), cfg.Structure, source, opts...)
}

// New builds a dictionary that takes exclusive ownership of source.
func New(fullName string, structure Structure, source Source, opts ...Option) (*Dictionary, error) {
	d := &Dictionary{
		fullName:        fullName,
		structure:       structure,
		source:          source,
		createdAt:       time.Now(),
		hierarchicalIdx: -1,
		walkConcurrency: 1,
	}
	for _, opt := range opts {
		opt(d)
	}

	if source == nil || !source.SupportsSelectiveLoad() {
		return nil, constructionError(fullName, ErrUnsupportedMethod, "source cannot be used with DirectDictionary")
	}

	if err := d.buildAttributes(); err != nil {
		return nil, err
	}

	logger.Debug().Str(gologger.DictionaryField, fullName).Int("attributes", len(d.attributes)).Bool("hierarchical", d.HasHierarchy()).Msg("created direct dictionary")
	return d, nil
}

func (d *Dictionary) FullName() string {
	return d.fullName
}

func (d *Dictionary) TypeName() string {
	return "Direct"
}

func (d *Dictionary) Structure() Structure {
	return d.structure
}

func (d *Dictionary) Source() Source {
	return d.source
}

func (d *Dictionary) CreatedAt() time.Time {
	return d.createdAt
}

// QueryCount is the number of rows looked up so far. It is approximate under concurrency.
func (d *Dictionary) QueryCount() uint64 {
	return d.queryCount.Load()
}

// ElementCount is always 0, a direct dictionary stores nothing.
func (d *Dictionary) ElementCount() uint64 {
	return 0
}

// HitRate is always 1, every lookup goes to the source.
func (d *Dictionary) HitRate() float64 {
	return 1.0
}

// BytesAllocated counts the arenas owned by attributes.
func (d *Dictionary) BytesAllocated() int {
	total := 0
	for i := range d.attributes {
		total += d.attributes[i].ArenaSize()
	}
	return total
}

func (d *Dictionary) HasHierarchy() bool {
	return d.hierarchicalIdx >= 0
}

// IsInjective reports whether the attribute maps distinct keys to distinct values.
func (d *Dictionary) IsInjective(name string) (bool, error) {
	attr, err := d.GetAttribute(name)
	if err != nil {
		return false, err
	}
	return attr.Injective, nil
}

// DumpAll streams the whole source. The caller owns the returned stream and must drive
// it with ForEachBlock (or Open/Read/Close).
func (d *Dictionary) DumpAll(ctx context.Context) (RowStream, error) {
	stream, err := d.source.LoadAll(ctx)
	if err != nil {
		return nil, sourceError(d.fullName, err, "error in source.LoadAll")
	}
	return stream, nil
}

func (d *Dictionary) addQueries(rows int) {
	d.queryCount.Add(uint64(rows))
}

func (d *Dictionary) ctxLogger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str(gologger.DictionaryField, d.fullName).Logger()
	return &l
}
