package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

const reliableExecMaxRetries = 3

type permanent interface {
	IsPermanent() bool
}

// ReliableExec acquires a pool connection and runs f with a per-try timeout, retrying with
// exponential backoff unless f returns a PermError (or anything else reporting IsPermanent).
func ReliableExec(ctx context.Context, pool *pgxpool.Pool, tryTimeout time.Duration, f func(ctx context.Context, conn *pgxpool.Conn) error) error {
	return retry(ctx, func() error {
		tryCtx, cancel := context.WithTimeout(ctx, tryTimeout)
		defer cancel()

		conn, err := pool.Acquire(tryCtx)
		if err != nil {
			return fmt.Errorf("error in pool.Acquire: %w", err)
		}
		defer conn.Release()

		return f(tryCtx, conn)
	})
}

// ReliableExecInTx is ReliableExec where f runs inside a CRDB transaction, which crdbpgx
// restarts on retryable serialization errors.
func ReliableExecInTx(ctx context.Context, pool *pgxpool.Pool, tryTimeout time.Duration, f func(ctx context.Context, tx pgx.Tx) error) error {
	return ReliableExec(ctx, pool, tryTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		return crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return f(ctx, tx)
		})
	})
}

func retry(ctx context.Context, op func() error) error {
	logger := zerolog.Ctx(ctx)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), reliableExecMaxRetries), ctx)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var p permanent
		if errors.As(err, &p) && p.IsPermanent() {
			return backoff.Permanent(err)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("reliable exec attempt failed")
		return err
	}, b)
}
