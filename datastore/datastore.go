package datastore

import (
	"context"
	"io"

	"github.com/danthegoodman1/directdict/gologger"
	"github.com/xitongsys/parquet-go/source"
)

var (
	logger = gologger.NewLogger()
)

type (
	DataStore interface {
		// OpenParquetFile opens a file for parquet reads, which need random access
		OpenParquetFile(ctx context.Context, path string) (source.ParquetFile, error)

		// WriteFile stores everything read from r at path, replacing any existing file
		WriteFile(ctx context.Context, path string, r io.Reader) error

		Shutdown(ctx context.Context) error
	}
)
