package datastore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
)

type (
	DiskDataStore struct {
		rootPath string
	}
)

func NewDiskDataStore(rootPath string) (*DiskDataStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	dds := &DiskDataStore{
		rootPath: rootPath,
	}

	return dds, nil
}

func (dds *DiskDataStore) OpenParquetFile(ctx context.Context, path string) (source.ParquetFile, error) {
	full := filepath.Join(dds.rootPath, filepath.Clean("/"+path))
	zerolog.Ctx(ctx).Debug().Str("path", full).Msg("opening parquet file from disk")
	f, err := local.NewLocalFileReader(full)
	if err != nil {
		return nil, fmt.Errorf("error in local.NewLocalFileReader: %w", err)
	}
	return f, nil
}

func (dds *DiskDataStore) WriteFile(_ context.Context, path string, r io.Reader) error {
	full := filepath.Join(dds.rootPath, filepath.Clean("/"+path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("error in os.Create: %w", err)
	}
	defer f.Close()
	if _, err = io.Copy(f, r); err != nil {
		return fmt.Errorf("error in io.Copy: %w", err)
	}
	return nil
}

func (dds *DiskDataStore) Shutdown(context.Context) error {
	return nil
}
