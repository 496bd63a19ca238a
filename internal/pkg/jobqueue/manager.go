package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cleanup"
)

const DefaultSweepInterval = time.Hour

// Manager owns the queue workers and the periodic retention sweep
type Manager struct {
	queue         *Queue
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

// NewManager wires the blob handlers into a fresh queue. A sweepInterval of
// zero disables the periodic sweep.
func NewManager(client *redis.Client, store blobstore.Store, sweeper *cleanup.Sweeper, workers int, sweepInterval time.Duration) *Manager {
	q := NewQueue(client, workers)
	q.Handle(JobTypeBlobDelete, BlobDeleteHandler(store))
	if sweeper != nil {
		q.Handle(JobTypeBlobSweep, BlobSweepHandler(sweeper))
	} else {
		sweepInterval = 0
	}
	return &Manager{
		queue:         q,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// ScheduleBlobDelete enqueues removal of an upload once its metadata was served
func (m *Manager) ScheduleBlobDelete(ctx context.Context, objectKey string) error {
	_, err := m.queue.EnqueueBlobDelete(ctx, objectKey, "extracted")
	return err
}

// Start starts the job queue and the sweep ticker
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be restarted
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.sweepInterval > 0 {
		m.sweepTicker = time.NewTicker(m.sweepInterval)
		m.wg.Add(1)
		go m.sweepWorker(m.sweepTicker, m.stopCh)
	} else {
		log.Info("[JobQueue Manager] Periodic blob sweep disabled")
	}
}

// Stop stops the sweep ticker and the job queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// sweepWorker enqueues a retention sweep on every tick
func (m *Manager) sweepWorker(ticker *time.Ticker, stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started sweep worker (interval: %s)", m.sweepInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Sweep worker stopping")
			return
		case <-ticker.C:
			if _, err := m.queue.EnqueueBlobSweep(context.Background(), "interval"); err != nil {
				log.Errorf("[JobQueue Manager] Error enqueuing blob sweep: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
