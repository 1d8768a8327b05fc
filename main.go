package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danthegoodman1/directdict/catalog"
	"github.com/danthegoodman1/directdict/crdb"
	"github.com/danthegoodman1/directdict/datastore"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/http_server"
	"github.com/danthegoodman1/directdict/metastore"
	"github.com/danthegoodman1/directdict/migrations"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting directdict")
	ctx := logger.WithContext(context.Background())

	var pool *pgxpool.Pool
	if utils.CRDB_DSN != "" {
		var err error
		pool, err = crdb.ConnectToDB(ctx, utils.CRDB_DSN, crdb.PoolOptions{})
		if err != nil {
			logger.Fatal().Err(err).Msg("error connecting to CRDB")
		}
		defer pool.Close()
	}

	ms, err := openMetaStore(ctx, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening metastore")
	}

	dataStore, err := openDataStore(utils.DATASTORE, utils.S3_DATA_PREFIX)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening datastore")
	}
	dumpStore := dataStore
	if utils.S3_BUCKET_NAME != "" {
		if dumpStore, err = datastore.NewS3DataStore(utils.S3_BUCKET_NAME, utils.S3_DUMP_PREFIX); err != nil {
			logger.Fatal().Err(err).Msg("error opening dump store")
		}
	}

	cat := catalog.NewCatalog(ms, catalog.Deps{Pool: pool, DataStore: dataStore}, dictionary.WithWalkConcurrency(int(utils.WALK_CONCURRENCY)))
	fileDefs, err := metastore.LoadDefinitionFiles(ctx, utils.SplitList(utils.DICTIONARY_FILES))
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading definition files")
	}
	if _, err = cat.LoadAll(ctx, fileDefs); err != nil {
		// broken definitions are skipped, the rest keep serving
		logger.Error().Err(err).Msg("some dictionaries failed to load")
	}

	httpServer := http_server.NewHTTPServer(cat, dumpStore)
	if err = http_server.StartHTTPServer(httpServer, utils.HTTP_PORT); err != nil {
		logger.Fatal().Err(err).Msg("error starting HTTP server")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	// Convert the time to seconds
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if err := cat.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown dictionary sources")
	}
	if ms != nil {
		if err := ms.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown metastore")
		}
	}
}

func openMetaStore(ctx context.Context, pool *pgxpool.Pool) (metastore.MetaStore, error) {
	switch utils.METASTORE {
	case "":
		return nil, nil
	case "redis":
		return metastore.NewRedisMetaStore(ctx, metastore.RedisOptions{PingTest: utils.REDIS_PING_TEST})
	case "crdb":
		if pool == nil {
			return nil, fmt.Errorf("crdb metastore needs CRDB_DSN")
		}
		if utils.RUN_MIGRATIONS {
			if _, err := migrations.RunMigrations(utils.CRDB_DSN); err != nil {
				return nil, fmt.Errorf("error running migrations: %w", err)
			}
		}
		if err := migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			return nil, fmt.Errorf("error checking migrations: %w", err)
		}
		return metastore.NewCRDBMetaStore(pool), nil
	}
	return nil, fmt.Errorf("unknown METASTORE '%s'", utils.METASTORE)
}

func openDataStore(kind, s3Prefix string) (datastore.DataStore, error) {
	switch kind {
	case "disk":
		return datastore.NewDiskDataStore(utils.DATA_ROOT)
	case "s3":
		return datastore.NewS3DataStore(utils.S3_BUCKET_NAME, s3Prefix)
	}
	return nil, fmt.Errorf("unknown DATASTORE '%s'", kind)
}
