package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/danthegoodman1/directdict/utils"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const redisDefinitionsKey = "dictionary_definitions"

type (
	// RedisMetaStore keeps every definition as JSON in a single hash keyed by full name.
	RedisMetaStore struct {
		client *redis.Client
	}

	RedisOptions struct {
		Addr     string
		Password string
		DB       int
		// PingTest fails construction when redis is unreachable
		PingTest bool
	}
)

func NewRedisMetaStore(ctx context.Context, opts RedisOptions) (*RedisMetaStore, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("connecting to redis metastore")
	if opts.Addr == "" {
		opts.Addr = utils.REDIS_ADDR
	}
	if opts.Password == "" {
		opts.Password = utils.REDIS_PASSWORD
	}
	rms := &RedisMetaStore{
		client: redis.NewClient(&redis.Options{
			Addr:        opts.Addr,
			Password:    opts.Password,
			DB:          opts.DB,
			DialTimeout: time.Second * 3,
		}),
	}

	// Ping test first to ensure valid connection
	if opts.PingTest {
		logger.Debug().Msg("running redis ping test")
		s := time.Now()
		_, err := rms.client.Ping(ctx).Result()
		if err != nil {
			rms.client.Close()
			return nil, fmt.Errorf("error pinging redis: %w", err)
		}
		logger.Debug().Msgf("redis ping test successful in %s", time.Since(s))
	}

	return rms, nil
}

func (rms *RedisMetaStore) GetDefinition(ctx context.Context, fullName string) (Definition, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("dictionary", fullName).Msg("getting definition")
	def := Definition{}
	raw, err := rms.client.HGet(ctx, redisDefinitionsKey, fullName).Result()
	if errors.Is(err, redis.Nil) {
		return def, ErrDefinitionNotFound
	}
	if err != nil {
		return def, fmt.Errorf("error in redis HGET: %w", err)
	}

	err = json.Unmarshal([]byte(raw), &def)
	if err != nil {
		return def, fmt.Errorf("error in json.Unmarshal: %w", err)
	}
	return def, nil
}

func (rms *RedisMetaStore) ListDefinitions(ctx context.Context) ([]Definition, error) {
	logger := zerolog.Ctx(ctx)

	var cursorPos uint64 = 0
	var returnedCursor uint64 = 1
	defs := make([]Definition, 0)

	// Loop until we have all the results
	for returnedCursor != 0 {
		logger.Debug().Msgf("running redis HSCAN with cursor %d", cursorPos)
		kvs, newCursor, err := rms.client.HScan(ctx, redisDefinitionsKey, cursorPos, "", 0).Result()
		if err != nil {
			return nil, fmt.Errorf("error in redis HSCAN: %w", err)
		}

		// HSCAN returns a flat field, value list
		for i := 0; i+1 < len(kvs); i += 2 {
			def := Definition{}
			err = json.Unmarshal([]byte(kvs[i+1]), &def)
			if err != nil {
				return nil, fmt.Errorf("error unmarshalling definition '%s': %w", kvs[i], err)
			}
			defs = append(defs, def)
		}

		returnedCursor = newCursor
		cursorPos = newCursor
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].FullName() < defs[j].FullName() })
	return defs, nil
}

func (rms *RedisMetaStore) PutDefinition(ctx context.Context, def Definition) (Definition, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("dictionary", def.FullName()).Msg("putting definition")
	if err := def.Validate(); err != nil {
		return def, err
	}

	existing, err := rms.GetDefinition(ctx, def.FullName())
	switch {
	case err == nil:
		def.ID = existing.ID
		def.CreatedAt = existing.CreatedAt
	case errors.Is(err, ErrDefinitionNotFound):
		def.ID = utils.GenRandomShortID()
		def.CreatedAt = time.Now()
	default:
		return def, err
	}
	def.UpdatedAt = time.Now()

	jsonBytes, err := json.Marshal(def)
	if err != nil {
		return def, fmt.Errorf("error in json.Marshal: %w", err)
	}

	_, err = rms.client.HSet(ctx, redisDefinitionsKey, def.FullName(), string(jsonBytes)).Result()
	if err != nil {
		return def, fmt.Errorf("error in redis HSET: %w", err)
	}
	return def, nil
}

func (rms *RedisMetaStore) DeleteDefinition(ctx context.Context, fullName string) error {
	n, err := rms.client.HDel(ctx, redisDefinitionsKey, fullName).Result()
	if err != nil {
		return fmt.Errorf("error in redis HDEL: %w", err)
	}
	if n == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

func (rms *RedisMetaStore) Shutdown(_ context.Context) error {
	err := rms.client.Close()
	if err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
