package controllers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cleanup"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/fetch"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metadata"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/turnstile"
)

const (
	DefaultMaxUploadBytes = 20 << 20
	DefaultCacheTTL       = time.Hour
)

// BlobDeleteScheduler defers removal of an upload (job queue).
type BlobDeleteScheduler interface {
	ScheduleBlobDelete(ctx context.Context, objectKey string) error
}

// ReportCache stores serialized reports by content hash.
type ReportCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// UsageCounter records request outcomes (metrics/counter).
type UsageCounter interface {
	Add(event string, n int64)
}

// CleanupRunner runs one retention sweep.
type CleanupRunner interface {
	Run(ctx context.Context) (*cleanup.Result, error)
}

// APIController serves the JSON routes under /api. Jobs, Cache and Counter
// are optional; every other dependency is required for its route.
type APIController struct {
	Store     blobstore.Store
	Verifier  turnstile.Verifier
	Fetcher   fetch.Fetcher
	Extractor metadata.Extractor
	Sweeper   CleanupRunner
	Jobs      BlobDeleteScheduler
	Cache     ReportCache
	Counter   UsageCounter

	CacheTTL       time.Duration
	MaxUploadBytes int64

	validate *validator.Validate
}

func NewAPIController(c APIController) *APIController {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	c.validate = validator.New()
	return &c
}

func (a *APIController) count(event string, n int64) {
	if a.Counter != nil && n > 0 {
		a.Counter.Add(event, n)
	}
}
