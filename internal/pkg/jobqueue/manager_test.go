package jobqueue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cleanup"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]blobstore.Object
	deleteErr error
	deleted   []string
}

func newFakeStore(objs ...blobstore.Object) *fakeStore {
	s := &fakeStore{objects: map[string]blobstore.Object{}}
	for _, o := range objs {
		s.objects[o.Key] = o
	}
	return s
}

func (s *fakeStore) Put(_ context.Context, key string, _ io.Reader, size int64, ct string) (*blobstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := blobstore.Object{Key: key, Size: size, ContentType: ct, UploadedAt: time.Now()}
	s.objects[key] = o
	return &o, nil
}

func (s *fakeStore) List(context.Context, string) ([]blobstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blobstore.Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.objects[key]; !ok {
		return blobstore.ErrNotFound
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) KeyFromURL(string) (string, bool) { return "", false }

func TestBlobDeleteHandler(t *testing.T) {
	store := newFakeStore(blobstore.Object{Key: "uploads/a.jpg"})
	h := BlobDeleteHandler(store)

	job := &Job{Type: JobTypeBlobDelete, Payload: BlobDeleteJobPayload{ObjectKey: "uploads/a.jpg"}.ToMap()}
	require.NoError(t, h(context.Background(), job))
	assert.Equal(t, []string{"uploads/a.jpg"}, store.deleted)

	// Second delete hits ErrNotFound and still succeeds
	require.NoError(t, h(context.Background(), job))

	store.deleteErr = errors.New("throttled")
	assert.Error(t, h(context.Background(), job))

	empty := &Job{Type: JobTypeBlobDelete, Payload: map[string]interface{}{}}
	assert.Error(t, h(context.Background(), empty))
}

func TestBlobSweepHandler(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		blobstore.Object{Key: "uploads/old", UploadedAt: now.Add(-48 * time.Hour)},
		blobstore.Object{Key: "uploads/new", UploadedAt: now},
	)
	sweeper := &cleanup.Sweeper{Store: store, Retention: 24 * time.Hour, Now: func() time.Time { return now }}

	job := &Job{Type: JobTypeBlobSweep, Payload: BlobSweepJobPayload{Trigger: "test"}.ToMap()}
	require.NoError(t, BlobSweepHandler(sweeper)(context.Background(), job))
	assert.Equal(t, []string{"uploads/old"}, store.deleted)
}

func TestNewManager(t *testing.T) {
	store := newFakeStore()
	m := NewManager(offlineClient(), store, cleanup.NewSweeper(store), 4, time.Minute)

	require.NotNil(t, m.GetQueue())
	assert.Equal(t, 4, m.GetQueue().workers)
	assert.Equal(t, time.Minute, m.sweepInterval)
	_, ok := m.GetQueue().handler(JobTypeBlobDelete)
	assert.True(t, ok)
	_, ok = m.GetQueue().handler(JobTypeBlobSweep)
	assert.True(t, ok)
	assert.False(t, m.IsRunning())
}

func TestNewManager_NoSweeperDisablesSweep(t *testing.T) {
	m := NewManager(offlineClient(), newFakeStore(), nil, 1, time.Minute)
	assert.Zero(t, m.sweepInterval)
	_, ok := m.GetQueue().handler(JobTypeBlobSweep)
	assert.False(t, ok)
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(offlineClient(), newFakeStore(), nil, 1, 0)
	assert.False(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_ScheduleBlobDeleteWithRedis(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	store := newFakeStore(blobstore.Object{Key: "uploads/z.webp"})

	m := NewManager(client, store, nil, 1, 0)
	require.NoError(t, m.ScheduleBlobDelete(context.Background(), "uploads/z.webp"))

	m.Start()
	defer m.Stop()
	assert.True(t, m.IsRunning())

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.deleted) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
