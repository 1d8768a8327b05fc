package pg_source

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	logger = gologger.NewLogger()
)

const DefaultBlockSize = 8192

type (
	Config struct {
		// Table may be schema qualified, e.g. "public.regions"
		Table string `json:"table" yaml:"table" validate:"required"`
		// IDColumn defaults to the dictionary's id name
		IDColumn string `json:"id_column,omitempty" yaml:"id_column,omitempty"`
		// Where is an extra SQL condition ANDed into every load
		Where string `json:"where,omitempty" yaml:"where,omitempty"`
		// DSN connects a dedicated pool instead of the shared one
		DSN       string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
		BlockSize int    `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	}

	PGSource struct {
		pool      *pgxpool.Pool
		ownsPool  bool
		selectSQL string
		where     string
		idColumn  string
		numAttrs  int
		blockSize int
	}
)

// NewPGSource builds a source over pool. A Config.DSN takes precedence and gives the
// source its own pool, closed by Shutdown.
func NewPGSource(ctx context.Context, pool *pgxpool.Pool, cfg Config, structure dictionary.Structure) (*PGSource, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("postgres source needs a table")
	}
	ps := &PGSource{
		pool:      pool,
		where:     cfg.Where,
		numAttrs:  len(structure.Attributes),
		blockSize: cfg.BlockSize,
	}
	if ps.blockSize <= 0 {
		ps.blockSize = DefaultBlockSize
	}
	if cfg.DSN != "" {
		p, err := pgxpool.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("error in pgxpool.Connect: %w", err)
		}
		ps.pool, ps.ownsPool = p, true
	}
	if ps.pool == nil {
		return nil, fmt.Errorf("postgres source has no connection pool")
	}

	idName := cfg.IDColumn
	if idName == "" {
		idName = structure.IDName()
	}
	ps.idColumn = pgx.Identifier{idName}.Sanitize()
	cols := []string{ps.idColumn}
	for _, name := range structure.AttributeNames() {
		cols = append(cols, pgx.Identifier{name}.Sanitize())
	}
	ps.selectSQL = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), pgx.Identifier(strings.Split(cfg.Table, ".")).Sanitize())
	return ps, nil
}

func (ps *PGSource) SupportsSelectiveLoad() bool {
	return true
}

// query renders the statement for a load, selective when ids is not nil.
func (ps *PGSource) query(ids []dictionary.Key) (string, []any, error) {
	var conds []string
	var args []any
	if ids != nil {
		pgIDs := make([]int64, len(ids))
		for i, id := range ids {
			if id > math.MaxInt64 {
				return "", nil, fmt.Errorf("id %d does not fit a postgres bigint", id)
			}
			pgIDs[i] = int64(id)
		}
		conds = append(conds, ps.idColumn+" = ANY($1)")
		args = append(args, pgIDs)
	}
	if ps.where != "" {
		conds = append(conds, "("+ps.where+")")
	}
	sql := ps.selectSQL
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	return sql, args, nil
}

func (ps *PGSource) LoadIDs(_ context.Context, ids []dictionary.Key) (dictionary.RowStream, error) {
	if ids == nil {
		ids = []dictionary.Key{}
	}
	sql, args, err := ps.query(ids)
	if err != nil {
		return nil, err
	}
	return &stream{src: ps, sql: sql, args: args}, nil
}

func (ps *PGSource) LoadAll(context.Context) (dictionary.RowStream, error) {
	sql, args, err := ps.query(nil)
	if err != nil {
		return nil, err
	}
	return &stream{src: ps, sql: sql, args: args}, nil
}

func (ps *PGSource) Shutdown(context.Context) error {
	if ps.ownsPool {
		ps.pool.Close()
	}
	return nil
}

type stream struct {
	src  *PGSource
	sql  string
	args []any
	rows pgx.Rows
}

func (s *stream) Open(ctx context.Context) error {
	zerolog.Ctx(ctx).Debug().Str("sql", s.sql).Msg("querying postgres source")
	rows, err := s.src.pool.Query(ctx, s.sql, s.args...)
	if err != nil {
		return fmt.Errorf("error in pool.Query: %w", err)
	}
	s.rows = rows
	return nil
}

func (s *stream) Read(context.Context) (*dictionary.Block, error) {
	if s.rows == nil {
		return nil, fmt.Errorf("stream not opened")
	}
	block := dictionary.NewBlock(s.src.numAttrs, s.src.blockSize)
	for block.Rows() < s.src.blockSize && s.rows.Next() {
		vals, err := s.rows.Values()
		if err != nil {
			return nil, fmt.Errorf("error in rows.Values: %w", err)
		}
		if len(vals) != s.src.numAttrs+1 {
			return nil, fmt.Errorf("query returned %d columns, expected %d", len(vals), s.src.numAttrs+1)
		}
		id, err := toKey(vals[0])
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(vals); i++ {
			if vals[i], err = normalize(vals[i]); err != nil {
				return nil, err
			}
		}
		block.AppendRow(id, vals[1:])
	}
	if err := s.rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	if block.Rows() == 0 {
		return nil, io.EOF
	}
	return block, nil
}

func (s *stream) Close(context.Context) error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return nil
}

func toKey(v any) (dictionary.Key, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative id %d", n)
		}
		return uint64(n), nil
	case int32:
		if n < 0 {
			return 0, fmt.Errorf("negative id %d", n)
		}
		return uint64(n), nil
	case int16:
		if n < 0 {
			return 0, fmt.Errorf("negative id %d", n)
		}
		return uint64(n), nil
	case nil:
		return 0, fmt.Errorf("null id")
	}
	nv, err := normalize(v)
	if err != nil {
		return 0, err
	}
	d, ok := nv.(decimal.Decimal)
	if !ok || !d.Equal(d.Truncate(0)) || d.IsNegative() || !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("id %v is not an unsigned 64 bit integer", v)
	}
	return d.BigInt().Uint64(), nil
}

// normalize turns pgx driver values into types the dictionary converts natively.
func normalize(v any) (any, error) {
	switch n := v.(type) {
	case pgtype.Numeric:
		return numericToDecimal(n)
	case *pgtype.Numeric:
		if n == nil {
			return nil, nil
		}
		return numericToDecimal(*n)
	case [16]byte:
		return uuid.UUID(n), nil
	case pgtype.InfinityModifier:
		return nil, fmt.Errorf("infinite numeric")
	}
	return v, nil
}

func numericToDecimal(n pgtype.Numeric) (any, error) {
	if n.Status != pgtype.Present {
		return nil, nil
	}
	if n.NaN {
		return nil, fmt.Errorf("numeric NaN")
	}
	if n.InfinityModifier != pgtype.None {
		return nil, fmt.Errorf("infinite numeric")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
