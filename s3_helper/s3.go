package s3_helper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/danthegoodman1/directdict/utils"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewLogger()

	sessOnce sync.Once
	sess     *session.Session
	sessErr  error
)

// Session returns the process wide AWS session, built from the environment on first use.
func Session() (*session.Session, error) {
	sessOnce.Do(func() {
		s3Config := &aws.Config{
			Region:      aws.String(utils.AWS_DEFAULT_REGION),
			Credentials: credentials.NewEnvCredentials(),
		}
		if utils.S3_ENDPOINT != "" {
			s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
			s3Config.S3ForcePathStyle = aws.Bool(true)
		}
		sess, sessErr = session.NewSession(s3Config)
		if sessErr != nil {
			sessErr = fmt.Errorf("error making new session: %w", sessErr)
		}
	})
	return sess, sessErr
}

func Client() (*s3.S3, error) {
	s, err := Session()
	if err != nil {
		return nil, err
	}
	return s3.New(s), nil
}

// ParseS3URL splits s3://bucket/key. An empty bucket means S3_BUCKET_NAME.
func ParseS3URL(url string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(url, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		bucket = utils.S3_BUCKET_NAME
	}
	return bucket, key, key != ""
}

func WriteObject(ctx context.Context, bucket, fileName string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {
	logger := zerolog.Ctx(ctx)

	s3Session, err := Session()
	if err != nil {
		return nil, err
	}

	uploader := s3manager.NewUploader(s3Session)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(fileName),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")

	return output, nil
}

func ReadObject(ctx context.Context, bucket, fileName string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	s3Session, err := Session()
	if err != nil {
		return nil, err
	}

	downloader := s3manager.NewDownloader(s3Session)

	buf := &aws.WriteAtBuffer{}

	s := time.Now()
	_, err = downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading from s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("downloaded file from s3")

	return buf.Bytes(), nil
}
