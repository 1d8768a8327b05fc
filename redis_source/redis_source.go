package redis_source

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewLogger()
)

const (
	DefaultBlockSize = 1024
	DefaultScanCount = 1000
)

type (
	Config struct {
		// KeyPrefix is prepended to the decimal id to form the hash key, e.g. "region:"
		KeyPrefix string `json:"key_prefix" yaml:"key_prefix" validate:"required"`
		// Addr defaults to REDIS_ADDR
		Addr      string `json:"addr,omitempty" yaml:"addr,omitempty"`
		Password  string `json:"password,omitempty" yaml:"password,omitempty"`
		DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
		BlockSize int    `json:"block_size,omitempty" yaml:"block_size,omitempty"`
		ScanCount int64  `json:"scan_count,omitempty" yaml:"scan_count,omitempty"`
	}

	// RedisSource keeps one hash per id with a field per attribute.
	RedisSource struct {
		client    *redis.Client
		prefix    string
		attrs     []string
		blockSize int
		scanCount int64
	}
)

func NewRedisSource(cfg Config, structure dictionary.Structure) (*RedisSource, error) {
	if cfg.KeyPrefix == "" {
		return nil, fmt.Errorf("redis source needs a key_prefix")
	}
	addr := cfg.Addr
	password := cfg.Password
	if addr == "" {
		addr, password = utils.REDIS_ADDR, utils.REDIS_PASSWORD
	}
	rs := &RedisSource{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    password,
			DB:          cfg.DB,
			DialTimeout: time.Second * 3,
		}),
		prefix:    cfg.KeyPrefix,
		attrs:     structure.AttributeNames(),
		blockSize: cfg.BlockSize,
		scanCount: cfg.ScanCount,
	}
	if rs.blockSize <= 0 {
		rs.blockSize = DefaultBlockSize
	}
	if rs.scanCount <= 0 {
		rs.scanCount = DefaultScanCount
	}
	return rs, nil
}

func (rs *RedisSource) Key(id dictionary.Key) string {
	return rs.prefix + strconv.FormatUint(id, 10)
}

func (rs *RedisSource) SupportsSelectiveLoad() bool {
	return true
}

func (rs *RedisSource) LoadIDs(_ context.Context, ids []dictionary.Key) (dictionary.RowStream, error) {
	return &stream{src: rs, ids: append([]dictionary.Key(nil), ids...), selective: true}, nil
}

func (rs *RedisSource) LoadAll(context.Context) (dictionary.RowStream, error) {
	return &stream{src: rs}, nil
}

func (rs *RedisSource) Shutdown(context.Context) error {
	err := rs.client.Close()
	if err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}

// scanIDs walks every key under the prefix. Keys whose suffix is not an id are skipped.
func (rs *RedisSource) scanIDs(ctx context.Context) ([]dictionary.Key, error) {
	logger := zerolog.Ctx(ctx)
	var ids []dictionary.Key
	iter := rs.client.Scan(ctx, 0, rs.prefix+"*", rs.scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, err := strconv.ParseUint(strings.TrimPrefix(key, rs.prefix), 10, 64)
		if err != nil {
			logger.Warn().Str("key", key).Msg("skipping key without a numeric id")
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error in redis SCAN: %w", err)
	}
	return ids, nil
}

type stream struct {
	src       *RedisSource
	ids       []dictionary.Key
	selective bool
	pos       int
	opened    bool
}

func (s *stream) Open(ctx context.Context) error {
	if !s.selective {
		ids, err := s.src.scanIDs(ctx)
		if err != nil {
			return err
		}
		s.ids = ids
	}
	s.opened = true
	s.pos = 0
	return nil
}

// Read fetches the next chunk of ids with one pipelined round of HGETALLs.
func (s *stream) Read(ctx context.Context) (*dictionary.Block, error) {
	if !s.opened {
		return nil, fmt.Errorf("stream not opened")
	}
	if s.pos >= len(s.ids) {
		return nil, io.EOF
	}
	end := s.pos + s.src.blockSize
	if end > len(s.ids) {
		end = len(s.ids)
	}
	chunk := s.ids[s.pos:end]
	s.pos = end

	cmds := make([]*redis.StringStringMapCmd, len(chunk))
	_, err := s.src.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range chunk {
			cmds[i] = pipe.HGetAll(ctx, s.src.Key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error in redis pipeline HGETALL: %w", err)
	}

	block := dictionary.NewBlock(len(s.src.attrs), len(chunk))
	values := make([]any, len(s.src.attrs))
	for i, id := range chunk {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		for a, name := range s.src.attrs {
			if v, ok := fields[name]; ok {
				values[a] = v
			} else {
				values[a] = nil
			}
		}
		block.AppendRow(id, values)
	}
	return block, nil
}

func (s *stream) Close(context.Context) error {
	s.opened = false
	return nil
}
