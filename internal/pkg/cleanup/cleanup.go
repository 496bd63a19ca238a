package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

const (
	DefaultRetention = 24 * time.Hour
	maxConcurrent    = 8
)

// Result summarizes one sweep.
type Result struct {
	Deleted int      `json:"deletedCount"`
	Failed  int      `json:"failedCount"`
	Errors  []string `json:"errors"`
}

// Sweeper deletes uploads older than Retention.
type Sweeper struct {
	Store     blobstore.Store
	Retention time.Duration
	Now       func() time.Time
}

func NewSweeper(store blobstore.Store) *Sweeper {
	return &Sweeper{
		Store:     store,
		Retention: env.GetDuration("CLEANUP_RETENTION", DefaultRetention),
		Now:       time.Now,
	}
}

// Run lists every upload and removes the expired ones. Listing errors abort
// the sweep; per-object delete errors are collected into the result.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	if s.Store == nil {
		return nil, errors.New("cleanup: no blob store configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	retention := s.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now().Add(-retention)

	objects, err := s.Store.List(ctx, blobstore.UploadPrefix)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	var (
		mu  sync.Mutex
		res = &Result{Errors: []string{}}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, obj := range objects {
		if !obj.UploadedAt.Before(cutoff) {
			continue
		}
		key := obj.Key
		g.Go(func() error {
			err := s.Store.Delete(gctx, key)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil, errors.Is(err, blobstore.ErrNotFound):
				res.Deleted++
			default:
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", key, err))
				log.Warnf("[Cleanup] Failed to delete %s: %v", key, err)
			}
			// Never cancel siblings; failures are reported, not fatal
			return nil
		})
	}
	_ = g.Wait()

	log.Infof("[Cleanup] Sweep done: %d deleted, %d failed, %d listed", res.Deleted, res.Failed, len(objects))
	return res, nil
}
