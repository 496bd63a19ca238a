package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
)

// S3Store keeps transient uploads in an S3 compatible bucket.
type S3Store struct {
	s3Client *s3.Client
	config   *Config
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates the S3 client and checks that the bucket is reachable
func NewS3Store(ctx context.Context, cfg *Config) (*S3Store, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	store := &S3Store{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := store.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[BlobStore] Successfully initialized S3 store for bucket: %s", cfg.GetBucketName())
	return store, nil
}

// testConnection checks if the bucket exists
func (s *S3Store) testConnection(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.GetBucketName()),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.config.GetBucketName(), err)
	}
	return nil
}

// Put uploads body under key and returns the public object description
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*Object, error) {
	bucketName := s.config.GetBucketName()

	log.Debugf("[BlobStore] Starting upload: s3://%s/%s (Size: %d bytes)", bucketName, key, size)

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucketName),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			"upload-source": "imagedataextract",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         s.config.PublicURL(key),
		Size:        size,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}, nil
}

// List returns every object under prefix, following continuation tokens
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.GetBucketName()),
		Prefix: aws.String(prefix),
	})

	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			objects = append(objects, Object{
				Key:        key,
				URL:        s.config.PublicURL(key),
				Size:       aws.ToInt64(obj.Size),
				UploadedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// Delete removes key from the bucket
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.GetBucketName()),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	log.Infof("[BlobStore] Deleted: s3://%s/%s", s.config.GetBucketName(), key)
	return nil
}

// KeyFromURL maps a public URL back to its key
func (s *S3Store) KeyFromURL(rawURL string) (string, bool) {
	return s.config.KeyFromURL(rawURL)
}
