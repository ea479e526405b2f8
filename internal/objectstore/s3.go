// Package objectstore implements log object storage on S3 and on a local
// directory tree.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("object not found")

// ErrTooLarge is returned when an object exceeds the configured size limit.
var ErrTooLarge = errors.New("object exceeds maximum size")

const bytesPerMB = 1024 * 1024

// Compile-time interface checks
var (
	_ analyzer.ObjectStore  = (*S3Store)(nil)
	_ analyzer.ObjectWriter = (*S3Store)(nil)
)

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store reads and writes log objects in one bucket.
type S3Store struct {
	client    s3API
	bucket    string
	maxSizeMB int
}

// NewS3Store creates a store for bucket. maxSizeMB <= 0 disables the size check.
func NewS3Store(client s3API, bucket string, maxSizeMB int) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &S3Store{client: client, bucket: bucket, maxSizeMB: maxSizeMB}, nil
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Get returns the object body as text.
func (s *S3Store) Get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return "", fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	maxBytes := int64(s.maxSizeMB) * bytesPerMB
	if maxBytes > 0 && aws.ToInt64(out.ContentLength) > maxBytes {
		return "", fmt.Errorf("%w of %dMB: s3://%s/%s (size: %.2fMB)",
			ErrTooLarge, s.maxSizeMB, s.bucket, key, float64(aws.ToInt64(out.ContentLength))/bytesPerMB)
	}

	var r io.Reader = out.Body
	if maxBytes > 0 {
		r = io.LimitReader(out.Body, maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return "", fmt.Errorf("%w of %dMB: s3://%s/%s", ErrTooLarge, s.maxSizeMB, s.bucket, key)
	}

	return string(body), nil
}

// List returns every object under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, prefix string) ([]analyzer.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	objects := make([]analyzer.ObjectInfo, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, analyzer.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
