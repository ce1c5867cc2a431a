package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Mirror is a shared artifact store keyed like the local cache.
type Mirror interface {
	// Get writes the object for key to dest and reports whether it existed.
	Get(ctx context.Context, key, dest string) (bool, error)
	Put(ctx context.Context, key, src string) error
}

// MirrorOptions locates an S3 (or S3-compatible) bucket.
type MirrorOptions struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Mirror stores artifacts in an S3 bucket so several workstations can share
// one set of downloads.
type S3Mirror struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

// NewS3Mirror builds a client from the default AWS credential chain, or from
// static keys when both are given. A custom endpoint switches to path-style
// addressing for S3-compatible servers.
func NewS3Mirror(ctx context.Context, opts MirrorOptions) (*S3Mirror, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewS3MirrorWithClient(client, opts.Bucket, opts.Prefix), nil
}

// NewS3MirrorWithClient wraps an existing client.
func NewS3MirrorWithClient(client *s3.Client, bucket, prefix string) *S3Mirror {
	return &S3Mirror{Client: client, Bucket: bucket, Prefix: prefix}
}

func (m *S3Mirror) fullKey(key string) string {
	if m.Prefix == "" {
		return key
	}
	return strings.TrimSuffix(m.Prefix, "/") + "/" + key
}

func (m *S3Mirror) Get(ctx context.Context, key, dest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	result, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(m.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get object %s: %w", key, err)
	}
	defer result.Body.Close()

	if _, err := writeStream(result.Body, dest); err != nil {
		return false, fmt.Errorf("download object %s: %w", key, err)
	}
	return true, nil
}

func (m *S3Mirror) Put(ctx context.Context, key, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer file.Close()

	if _, err := m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(m.fullKey(key)),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
