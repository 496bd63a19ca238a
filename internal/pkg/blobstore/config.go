package blobstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

// UploadPrefix is the key prefix for every transient upload.
const UploadPrefix = "uploads/"

// Config holds S3 configuration for the transient upload bucket
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Optional CDN / public bucket URL used in returned links
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   strings.TrimRight(env.GetEnv("S3_PUBLIC_BASE_URL", ""), "/"),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if config.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required")
	}

	return config, nil
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}

// BaseURL is the prefix of every public object URL, without trailing slash.
func (c *Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	if c.EndpointURL != "" {
		// path-style for S3-compatible endpoints
		return fmt.Sprintf("%s/%s", strings.TrimRight(c.EndpointURL, "/"), c.BucketName)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.BucketName, c.Region)
}

// PublicURL builds the browser-facing URL of an object key.
func (c *Config) PublicURL(key string) string {
	return c.BaseURL() + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL reports the object key if rawURL points into this bucket.
func (c *Config) KeyFromURL(rawURL string) (string, bool) {
	base := c.BaseURL() + "/"
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, base)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if !strings.HasPrefix(key, UploadPrefix) || len(key) == len(UploadPrefix) {
		return "", false
	}
	return key, true
}
