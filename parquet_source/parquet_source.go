package parquet_source

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

var (
	logger = gologger.NewLogger()
)

const DefaultBlockSize = 8192

type (
	Config struct {
		// Path is relative to the datastore root
		Path string `json:"path" yaml:"path" validate:"required"`
		// Selective set to false makes the source unusable for a direct dictionary
		Selective *bool `json:"selective,omitempty" yaml:"selective,omitempty"`
		BlockSize int   `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	}

	// ParquetSource reads a whole parquet file on every load, filtering by id in memory.
	ParquetSource struct {
		store     datastore.DataStore
		cfg       Config
		idField   string
		columns   []column
		blockSize int
	}

	column struct {
		name  string
		field string
		typ   dictionary.Type
	}
)

func NewParquetSource(store datastore.DataStore, cfg Config, structure dictionary.Structure) (*ParquetSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("parquet source needs a path")
	}
	ps := &ParquetSource{
		store:     store,
		cfg:       cfg,
		idField:   common.StringToVariableName(structure.IDName()),
		blockSize: cfg.BlockSize,
	}
	if ps.blockSize <= 0 {
		ps.blockSize = DefaultBlockSize
	}
	for _, attr := range structure.Attributes {
		t, _, err := dictionary.ParseType(attr.Type)
		if err != nil {
			return nil, fmt.Errorf("error parsing type of attribute '%s': %w", attr.Name, err)
		}
		ps.columns = append(ps.columns, column{
			name:  attr.Name,
			field: common.StringToVariableName(attr.Name),
			typ:   t,
		})
	}
	return ps, nil
}

func (ps *ParquetSource) SupportsSelectiveLoad() bool {
	return ps.cfg.Selective == nil || *ps.cfg.Selective
}

func (ps *ParquetSource) LoadIDs(_ context.Context, ids []dictionary.Key) (dictionary.RowStream, error) {
	filter := make(map[dictionary.Key]struct{}, len(ids))
	for _, id := range ids {
		filter[id] = struct{}{}
	}
	return &stream{src: ps, filter: filter}, nil
}

func (ps *ParquetSource) LoadAll(context.Context) (dictionary.RowStream, error) {
	return &stream{src: ps}, nil
}

type stream struct {
	src *ParquetSource
	// nil filter means every row
	filter map[dictionary.Key]struct{}

	file      source.ParquetFile
	pr        *reader.ParquetReader
	remaining int64
}

func (s *stream) Open(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	f, err := s.src.store.OpenParquetFile(ctx, s.src.cfg.Path)
	if err != nil {
		return fmt.Errorf("error in OpenParquetFile: %w", err)
	}
	s.file = f

	s.pr, err = reader.NewParquetReader(f, nil, 4)
	if err != nil {
		return fmt.Errorf("error in reader.NewParquetReader: %w", err)
	}
	s.remaining = s.pr.GetNumRows()
	logger.Debug().Str("path", s.src.cfg.Path).Int64("rows", s.remaining).Int("filter", len(s.filter)).Msg("opened parquet source")
	return nil
}

func (s *stream) Read(context.Context) (*dictionary.Block, error) {
	if s.pr == nil {
		return nil, fmt.Errorf("stream not opened")
	}
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	n := int64(s.src.blockSize)
	if n > s.remaining {
		n = s.remaining
	}
	rows, err := s.pr.ReadByNumber(int(n))
	if err != nil {
		return nil, fmt.Errorf("error in ReadByNumber: %w", err)
	}
	s.remaining -= n

	block := dictionary.NewBlock(len(s.src.columns), len(rows))
	values := make([]any, len(s.src.columns))
	for _, r := range rows {
		v := reflect.ValueOf(r)
		id, err := s.src.readID(v)
		if err != nil {
			return nil, err
		}
		if s.filter != nil {
			if _, ok := s.filter[id]; !ok {
				continue
			}
		}
		for i, col := range s.src.columns {
			if values[i], err = readCell(v, col); err != nil {
				return nil, err
			}
		}
		block.AppendRow(id, values)
	}
	return block, nil
}

func (s *stream) Close(context.Context) error {
	if s.pr != nil {
		s.pr.ReadStop()
		s.pr = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		if err != nil {
			return fmt.Errorf("error closing parquet file: %w", err)
		}
	}
	return nil
}

func (ps *ParquetSource) readID(row reflect.Value) (dictionary.Key, error) {
	f := row.FieldByName(ps.idField)
	if !f.IsValid() {
		return 0, fmt.Errorf("id column '%s' not found in parquet file", ps.idField)
	}
	v := physical(f)
	switch n := v.(type) {
	case int64:
		return uint64(n), nil
	case int32:
		return uint64(uint32(n)), nil
	case nil:
		return 0, fmt.Errorf("null id in parquet file")
	}
	return 0, fmt.Errorf("id column has unsupported type %T", v)
}

// readCell undoes the signed physical storage of unsigned columns. Every other value is
// passed on for the dictionary to convert.
func readCell(row reflect.Value, col column) (any, error) {
	f := row.FieldByName(col.field)
	if !f.IsValid() {
		return nil, fmt.Errorf("column '%s' not found in parquet file", col.name)
	}
	v := physical(f)
	switch col.typ.Kind {
	case dictionary.KindUInt32:
		if n, ok := v.(int32); ok {
			return uint32(n), nil
		}
	case dictionary.KindUInt64:
		if n, ok := v.(int64); ok {
			return uint64(n), nil
		}
	}
	return v, nil
}

// physical unwraps OPTIONAL (pointer) fields, nil for a null.
func physical(f reflect.Value) any {
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return nil
		}
		f = f.Elem()
	}
	return f.Interface()
}
