package utils

import "os"

var (
	CRDB_DSN = os.Getenv("CRDB_DSN")

	AWS_ACCESS_KEY_ID     = os.Getenv("AWS_ACCESS_KEY_ID")
	AWS_SECRET_ACCESS_KEY = os.Getenv("AWS_SECRET_ACCESS_KEY")
	AWS_DEFAULT_REGION    = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")
	// S3_DUMP_PREFIX is where parquet dumps are uploaded
	S3_DUMP_PREFIX = GetEnvOrDefault("S3_DUMP_PREFIX", "dumps/")

	REDIS_ADDR     = os.Getenv("REDIS_ADDR")
	REDIS_PASSWORD = os.Getenv("REDIS_PASSWORD")

	// METASTORE is one of "crdb", "redis" or "" (definitions files only)
	METASTORE = os.Getenv("METASTORE")
	// DICTIONARY_FILES is a comma separated list of YAML definition files, local paths or s3://bucket/key
	DICTIONARY_FILES = os.Getenv("DICTIONARY_FILES")
	// DATA_ROOT is the root directory of the disk datastore used by parquet sources
	DATA_ROOT = GetEnvOrDefault("DATA_ROOT", "./data")
	// DATASTORE is "disk" or "s3", where parquet sources read their files
	DATASTORE      = GetEnvOrDefault("DATASTORE", "disk")
	S3_DATA_PREFIX = os.Getenv("S3_DATA_PREFIX")

	HTTP_PORT        = GetEnvOrDefault("HTTP_PORT", "8080")
	WALK_CONCURRENCY = GetEnvOrDefaultInt("WALK_CONCURRENCY", 4)
	RUN_MIGRATIONS   = os.Getenv("RUN_MIGRATIONS") == "1"
	REDIS_PING_TEST  = os.Getenv("REDIS_PING_TEST") == "1"
)
