// Package objectstore keeps track and album art blobs in S3 compatible storage
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/models"
)

const defaultRegion = "us-east-1"

type Config struct {
	// Custom endpoint (MinIO, R2 etc.). Empty means AWS itself
	Endpoint string
	Region   string
	Bucket   string

	// Static credentials. If empty the default AWS credentials chain is used
	AccessKey string
	SecretKey string

	UsePathStyle bool
}

type S3Store struct {
	client *s3.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error while loading aws config. Err: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle

		// Most S3 compatible stores do not support flexible checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Object metadata without its content
func (s *S3Store) Stat(ctx context.Context, key string) (models.StoredObject, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return models.StoredObject{}, wrapError("head", key, err)
	}

	return models.StoredObject{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// Whole object content. Caller has to close the reader
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapError("get", key, err)
	}
	return out.Body, nil
}

// Object bytes from start to end, both inclusive. Caller has to close the reader
func (s *S3Store) GetRange(ctx context.Context, key string, start int64, end int64) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, wrapError("get range", key, err)
	}
	return out.Body, nil
}

// Upload object. Body has to be seekable so the request may be signed and retried
func (s *S3Store) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return wrapError("put", key, err)
	}
	return nil
}

// Delete object. Deleting missing object is not an error
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return wrapError("delete", key, err)
	}
	return nil
}

func wrapError(op string, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("s3 %s %q: %w", op, key, apperrors.ErrObjectNotFound)
	}
	return fmt.Errorf("s3 %s %q error: %w", op, key, err)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
