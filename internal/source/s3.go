package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/franz/sparkify-etl/internal/util"
)

const (
	s3Scheme            = "s3://"
	defaultBucketRegion = "us-west-2"
)

// S3Config holds the optional settings for reading data trees from S3.
// Empty credentials fall back to the default AWS credential chain.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Endpoint     string // S3-compatible endpoint, addressed path-style
}

// S3API is the subset of the S3 client the source uses
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 finds and reads objects in S3 buckets
type S3 struct {
	client  S3API
	pattern string
}

// NewS3 builds an S3 source from the default AWS config plus cfg overrides
func NewS3(ctx context.Context, cfg S3Config, pattern string) (*S3, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)))
	}

	region := cfg.Region
	if region == "" {
		region = defaultBucketRegion
	}
	opts = append(opts, config.WithRegion(region))

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	util.DebugLog("S3 source initialized (region %s)", region)
	return NewS3WithClient(client, pattern), nil
}

// NewS3WithClient wraps an existing client
func NewS3WithClient(client S3API, pattern string) *S3 {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &S3{client: client, pattern: pattern}
}

// ParseS3URI splits s3://bucket/prefix into bucket and key prefix
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3(uri) {
		return "", "", fmt.Errorf("%q is not an s3:// URI: %w", uri, util.ErrUnsupported)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket: %w", uri, util.ErrInvalidConfig)
	}
	return bucket, key, nil
}

// Find lists every object under the root prefix whose base name matches the
// pattern and returns them as s3:// URIs in listing order
func (s *S3) Find(ctx context.Context, root string) ([]string, error) {
	bucket, prefix, err := ParseS3URI(root)
	if err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	files := make([]string, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			ok, err := path.Match(s.pattern, path.Base(key))
			if err != nil {
				return nil, err
			}
			if ok {
				files = append(files, s3Scheme+bucket+"/"+key)
			}
		}
	}

	util.DebugLog("Found %d objects matching %s under %s", len(files), s.pattern, root)
	return files, nil
}

// Open streams one object
func (s *S3) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", uri, err)
	}
	return out.Body, nil
}
