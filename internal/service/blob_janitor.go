package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/rd-studio-media-api/pkg/jobs"
	"github.com/noah-isme/rd-studio-media-api/pkg/storage"
)

const blobDeleteJob = "blob.delete"

type blobDeleter interface {
	Delete(ctx context.Context, rawURL string) (bool, error)
}

type purgeMetrics interface {
	RecordBlobPurge(outcome string)
}

// BlobJanitorConfig configures the background purge of replaced blobs.
type BlobJanitorConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// BlobJanitor deletes blobs that are no longer referenced by any item.
type BlobJanitor struct {
	store   blobDeleter
	queue   *jobs.Queue
	enabled bool
	retries int
	timeout time.Duration
	metrics purgeMetrics
	logger  *zap.Logger
}

// NewBlobJanitor wires the janitor on top of a jobs.Queue.
func NewBlobJanitor(store storage.ObjectStore, cfg BlobJanitorConfig, metrics *MetricsService, logger *zap.Logger) *BlobJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	j := &BlobJanitor{
		store:   store,
		enabled: cfg.Enabled,
		retries: cfg.Retries,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if metrics != nil {
		j.metrics = metrics
	}
	j.queue = jobs.NewQueue("blob-janitor", j.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return j
}

// Start launches the janitor workers.
func (j *BlobJanitor) Start(ctx context.Context) {
	if !j.enabled {
		return
	}
	j.queue.Start(ctx)
}

// Stop waits for workers to exit; pending deletions are dropped.
func (j *BlobJanitor) Stop() {
	j.queue.Stop()
}

// Stats exposes the underlying queue counters.
func (j *BlobJanitor) Stats() jobs.Stats {
	return j.queue.Stats()
}

// Schedule queues the given URLs for deletion without blocking the caller.
func (j *BlobJanitor) Schedule(urls []string) {
	if !j.enabled || len(urls) == 0 {
		return
	}
	for _, url := range urls {
		err := j.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: blobDeleteJob, Payload: url})
		if err != nil {
			j.record("dropped")
			j.logger.Warn("blob purge not scheduled", zap.String("url", url), zap.Error(err))
		}
	}
}

func (j *BlobJanitor) handle(ctx context.Context, job jobs.Job) error {
	url, ok := job.Payload.(string)
	if !ok {
		j.record("failed")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	deleted, err := j.store.Delete(ctx, url)
	if err != nil {
		if job.Attempt >= j.retries {
			j.record("failed")
		}
		return fmt.Errorf("delete blob %s: %w", url, err)
	}
	if !deleted {
		j.record("skipped")
		j.logger.Debug("blob purge skipped foreign url", zap.String("url", url))
		return nil
	}
	j.record("deleted")
	return nil
}

func (j *BlobJanitor) record(outcome string) {
	if j.metrics != nil {
		j.metrics.RecordBlobPurge(outcome)
	}
}
