package datastore

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/danthegoodman1/directdict/s3_helper"
	"github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/source"
)

type (
	// S3DataStore reads and writes objects under a prefix of one bucket.
	S3DataStore struct {
		bucket string
		prefix string
	}
)

func NewS3DataStore(bucket, prefix string) (*S3DataStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 datastore needs a bucket")
	}
	if _, err := s3_helper.Session(); err != nil {
		return nil, err
	}
	return &S3DataStore{bucket: bucket, prefix: prefix}, nil
}

func (sds *S3DataStore) key(p string) string {
	return path.Join(sds.prefix, p)
}

func (sds *S3DataStore) OpenParquetFile(ctx context.Context, p string) (source.ParquetFile, error) {
	client, err := s3_helper.Client()
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("bucket", sds.bucket).Str("key", sds.key(p)).Msg("opening parquet file from s3")
	f, err := s3.NewS3FileReaderWithClient(ctx, client, sds.bucket, sds.key(p))
	if err != nil {
		return nil, fmt.Errorf("error in s3.NewS3FileReaderWithClient: %w", err)
	}
	return f, nil
}

func (sds *S3DataStore) WriteFile(ctx context.Context, p string, r io.Reader) error {
	_, err := s3_helper.WriteObject(ctx, sds.bucket, sds.key(p), r, aws.String("application/octet-stream"))
	if err != nil {
		return fmt.Errorf("error in s3_helper.WriteObject: %w", err)
	}
	return nil
}

func (sds *S3DataStore) Shutdown(context.Context) error {
	return nil
}
