package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/http_source"
	"github.com/danthegoodman1/directdict/parquet_source"
	"github.com/danthegoodman1/directdict/pg_source"
	"github.com/danthegoodman1/directdict/redis_source"
	"github.com/go-playground/validator/v10"
)

const (
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceParquet  = "parquet"
	SourceHTTP     = "http"
)

var (
	validate = validator.New()

	builtinSources = map[string]SourceFactory{
		SourcePostgres: func(ctx context.Context, deps Deps, params map[string]any, structure dictionary.Structure) (dictionary.Source, error) {
			cfg, err := decodeParams[pg_source.Config](params)
			if err != nil {
				return nil, err
			}
			return pg_source.NewPGSource(ctx, deps.Pool, cfg, structure)
		},
		SourceRedis: func(_ context.Context, _ Deps, params map[string]any, structure dictionary.Structure) (dictionary.Source, error) {
			cfg, err := decodeParams[redis_source.Config](params)
			if err != nil {
				return nil, err
			}
			return redis_source.NewRedisSource(cfg, structure)
		},
		SourceParquet: func(_ context.Context, deps Deps, params map[string]any, structure dictionary.Structure) (dictionary.Source, error) {
			if deps.DataStore == nil {
				return nil, fmt.Errorf("parquet source needs a datastore")
			}
			cfg, err := decodeParams[parquet_source.Config](params)
			if err != nil {
				return nil, err
			}
			return parquet_source.NewParquetSource(deps.DataStore, cfg, structure)
		},
		SourceHTTP: func(_ context.Context, _ Deps, params map[string]any, structure dictionary.Structure) (dictionary.Source, error) {
			cfg, err := decodeParams[http_source.Config](params)
			if err != nil {
				return nil, err
			}
			return http_source.NewHTTPSource(cfg, structure)
		},
	}
)

// decodeParams turns loosely typed definition params into a source config through JSON,
// then validates it.
func decodeParams[T any](params map[string]any) (T, error) {
	var cfg T
	raw, err := json.Marshal(params)
	if err != nil {
		return cfg, fmt.Errorf("error in json.Marshal: %w", err)
	}
	if err = json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: bad source params: %s", dictionary.ErrConfiguration, err)
	}
	if err = validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return cfg, fmt.Errorf("%w: bad source params: field %s failed '%s'", dictionary.ErrConfiguration, verrs[0].Field(), verrs[0].Tag())
		}
		return cfg, fmt.Errorf("error in validate.Struct: %w", err)
	}
	return cfg, nil
}
