package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cleanup"
)

// EnqueueBlobDelete schedules removal of an uploaded object
func (q *Queue) EnqueueBlobDelete(ctx context.Context, objectKey, reason string) (*Job, error) {
	if objectKey == "" {
		return nil, errors.New("object key is required")
	}
	payload := BlobDeleteJobPayload{ObjectKey: objectKey, Reason: reason}
	return q.EnqueueJob(ctx, JobTypeBlobDelete, payload.ToMap())
}

// EnqueueBlobSweep schedules a retention sweep over all uploads
func (q *Queue) EnqueueBlobSweep(ctx context.Context, trigger string) (*Job, error) {
	return q.EnqueueJob(ctx, JobTypeBlobSweep, BlobSweepJobPayload{Trigger: trigger}.ToMap())
}

// BlobDeleteHandler removes the object named in the payload. Objects that are
// already gone count as success.
func BlobDeleteHandler(store blobstore.Store) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := BlobDeleteJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse blob delete payload: %w", err)
		}
		if payload.ObjectKey == "" {
			return errors.New("blob delete payload has no object key")
		}

		err = store.Delete(ctx, payload.ObjectKey)
		if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", payload.ObjectKey, err)
		}
		log.Infof("[BlobDeleteJob] Removed %s (%s)", payload.ObjectKey, payload.Reason)
		return nil
	}
}

// BlobSweepHandler runs one retention sweep. Per-object failures are logged
// by the sweeper and picked up again on the next tick, so only a listing
// failure makes the job retry.
func BlobSweepHandler(sweeper *cleanup.Sweeper) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := BlobSweepJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse blob sweep payload: %w", err)
		}
		res, err := sweeper.Run(ctx)
		if err != nil {
			return err
		}
		log.Infof("[BlobSweepJob] Sweep (%s) deleted %d, failed %d", payload.Trigger, res.Deleted, res.Failed)
		return nil
	}
}
