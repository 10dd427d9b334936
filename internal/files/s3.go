package files

import (
	"context"
	"errors"
	"io"
	"path"

	"campushub/server/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps blobs in an S3 bucket under an optional key prefix
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	policy   Policy
}

// NewS3Store loads AWS credentials from the default chain
func NewS3Store(ctx context.Context, region, bucket, prefix string, policy Policy) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, apperr.Storage("failed to load AWS config", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		policy:   policy,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// countingReader records how many bytes the uploader consumed
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Save implements BlobStore
func (s *S3Store) Save(ctx context.Context, up Upload) (*StoredFile, error) {
	if err := s.policy.Check(&up); err != nil {
		return nil, err
	}

	key := newKey(up)
	body := up.Body
	if s.policy.MaxBytes > 0 {
		body = io.LimitReader(body, s.policy.MaxBytes+1)
	}
	counter := &countingReader{r: body}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        counter,
		ContentType: aws.String(up.ContentType),
	})
	if err != nil {
		return nil, apperr.Storage("failed to upload file", err)
	}

	if s.policy.MaxBytes > 0 && counter.n > s.policy.MaxBytes {
		_ = s.Delete(ctx, key)
		return nil, apperr.Validation("File size exceeds limit of %s", formatMB(s.policy.MaxBytes))
	}

	return &StoredFile{
		StorageKey:   key,
		OriginalName: up.Filename,
		ContentType:  up.ContentType,
		Size:         counter.n,
	}, nil
}

// Open implements BlobStore
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, apperr.Validation("invalid storage key")
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, apperr.NotFound("File not found")
	}
	if err != nil {
		return nil, apperr.Storage("failed to fetch file", err)
	}
	return out.Body, nil
}

// Delete implements BlobStore
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return apperr.Validation("invalid storage key")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return apperr.Storage("failed to delete file", err)
	}
	return nil
}
