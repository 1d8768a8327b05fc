package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/directdict/gologger"
	"github.com/jackc/pgx/v4/pgxpool"
)

var (
	logger = gologger.NewLogger()
)

type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// ConnectToDB opens the pool shared by postgres sources and the CRDB metastore.
func ConnectToDB(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	logger.Debug().Msg("connecting to CRDB...")
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ParseConfig: %w", err)
	}

	config.MaxConns = 10
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.MinConns = 1
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ConnectConfig: %w", err)
	}
	logger.Debug().Msg("connected to CRDB")
	return pool, nil
}
