package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/depgraph/pkg/loader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"
)

// objectAPI is the part of *s3.Client the loader uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3SourceLoader reads a repository stored below a prefix of an S3 bucket.
type S3SourceLoader struct {
	bucket string
	prefix string
	client objectAPI

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3SourceLoaderWithClient creates a loader on an existing client.
func NewS3SourceLoaderWithClient(bucket, prefix string, client objectAPI) *S3SourceLoader {
	return &S3SourceLoader{
		bucket: bucket,
		prefix: normalizePrefix(prefix),
		client: client,
		cache:  make(map[string][]byte),
	}
}

// NewS3SourceLoaderParams defines the configuration parameters for
// creating a new S3SourceLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO). AccessKey and SecretKey provide static credentials.
type NewS3SourceLoaderParams struct {
	Bucket    string
	Prefix    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3SourceLoader creates a new S3SourceLoader with static credentials.
//
// Example:
//
//	l, err := s3.NewS3SourceLoader(ctx, s3.NewS3SourceLoaderParams{
//		Bucket:    "repos",
//		Prefix:    "order-service/",
//		Endpoint:  "http://localhost:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
func NewS3SourceLoader(ctx context.Context, params NewS3SourceLoaderParams) (*S3SourceLoader, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
	}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	if params.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return NewS3SourceLoaderWithClient(params.Bucket, params.Prefix, client), nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// List returns the keys below the prefix, relative to it.
func (l *S3SourceLoader) List(ctx context.Context) ([]string, error) {
	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(l.prefix),
	}

	for {
		listOutput, err := l.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", l.prefix, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			keys = append(keys, strings.TrimPrefix(*obj.Key, l.prefix))
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return keys, nil
}

// Read retrieves the object for the relative path p. Results are cached.
func (l *S3SourceLoader) Read(ctx context.Context, p string) ([]byte, error) {
	l.cacheMu.RLock()
	if cached, ok := l.cache[p]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(p, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[p]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(l.prefix + p),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get file from S3: %w", err)
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, fmt.Errorf("failed to read file contents: %w", err)
		}

		byts := buf.Bytes()

		l.cacheMu.Lock()
		l.cache[p] = byts
		l.cacheMu.Unlock()

		return byts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

var _ loader.SourceLoader = (*S3SourceLoader)(nil)
