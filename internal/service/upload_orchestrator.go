package service

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/rd-studio-media-api/internal/models"
	"github.com/noah-isme/rd-studio-media-api/pkg/compressor"
	"github.com/noah-isme/rd-studio-media-api/pkg/storage"
)

const (
	defaultUploadWorkers = 12
	defaultExtension     = "jpg"
)

// UploadFile is one file received for a batch upload.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadedItem is the stored result for one UploadFile.
type UploadedItem struct {
	URL         string
	Title       string
	Description string
	PageRole    models.PageRole
	ContentType string
	Size        int
}

// BatchUploadError reports the first file that failed in a batch.
type BatchUploadError struct {
	Index    int
	FileName string
	Err      error
}

func (e *BatchUploadError) Error() string {
	return fmt.Sprintf("upload file %q (#%d): %v", e.FileName, e.Index+1, e.Err)
}

func (e *BatchUploadError) Unwrap() error {
	return e.Err
}

type imageCompressor interface {
	Compress(data []byte, fileName, contentType string) compressor.Result
}

type uploadMetrics interface {
	ObserveUpload(duration time.Duration, bytesIn, bytesOut int, compressed bool, err error)
	ObserveBatch(files int, duration time.Duration, err error)
}

// UploadOrchestrator compresses and uploads a batch of files in parallel.
type UploadOrchestrator struct {
	store      storage.ObjectStore
	compressor imageCompressor
	workers    int
	metrics    uploadMetrics
	logger     *zap.Logger
}

// NewUploadOrchestrator builds an orchestrator sharing one object store across workers.
func NewUploadOrchestrator(store storage.ObjectStore, comp imageCompressor, workers int, metrics *MetricsService, logger *zap.Logger) *UploadOrchestrator {
	if workers <= 0 {
		workers = defaultUploadWorkers
	}
	if comp == nil {
		comp = compressor.New(compressor.DefaultOptions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &UploadOrchestrator{store: store, compressor: comp, workers: workers, logger: logger}
	if metrics != nil {
		o.metrics = metrics
	}
	return o
}

// UploadBatch stores every file under keyPrefix and returns the results in
// input order. The first failure stops dispatching the remaining files and is
// returned as *BatchUploadError; workers already running finish and their
// results are discarded. Blobs stored before the failure are not removed.
func (o *UploadOrchestrator) UploadBatch(ctx context.Context, keyPrefix string, files []UploadFile) ([]UploadedItem, error) {
	if len(files) == 0 {
		return []UploadedItem{}, nil
	}
	start := time.Now()
	results := make([]UploadedItem, len(files))

	workers := o.workers
	if workers > len(files) {
		workers = len(files)
	}
	var g errgroup.Group
	g.SetLimit(workers)

	var failed atomic.Bool
	for i := range files {
		if failed.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			item, err := o.uploadOne(ctx, keyPrefix, files[i])
			if err != nil {
				failed.Store(true)
				return &BatchUploadError{Index: i, FileName: files[i].Name, Err: err}
			}
			results[i] = item
			return nil
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if o.metrics != nil {
		o.metrics.ObserveBatch(len(files), time.Since(start), err)
	}
	if err != nil {
		o.logger.Warn("upload batch failed", zap.String("prefix", keyPrefix), zap.Int("files", len(files)), zap.Error(err))
		return nil, err
	}
	return results, nil
}

func (o *UploadOrchestrator) uploadOne(ctx context.Context, keyPrefix string, file UploadFile) (UploadedItem, error) {
	start := time.Now()
	role, displayName := ParseUploadName(file.Name)

	res := o.compressor.Compress(file.Data, file.Name, file.ContentType)
	key := path.Join(keyPrefix, uuid.NewString()+"."+objectExtension(res))

	url, err := o.store.Put(ctx, key, res.Data, res.ContentType)
	if o.metrics != nil {
		o.metrics.ObserveUpload(time.Since(start), len(file.Data), len(res.Data), res.Compressed, err)
	}
	if err != nil {
		return UploadedItem{}, err
	}

	return UploadedItem{
		URL:         url,
		Title:       displayName,
		Description: "Uploaded file: " + displayName,
		PageRole:    role,
		ContentType: res.ContentType,
		Size:        len(res.Data),
	}, nil
}

// ParseUploadName splits "<role>_<displayName>" on the first underscore.
// Without a separator, or when the prefix is not a role token, the role is
// Middle and the display name is the whole name.
func ParseUploadName(name string) (models.PageRole, string) {
	prefix, rest, found := strings.Cut(name, "_")
	if !found {
		return models.PageRoleMiddle, name
	}
	role, ok := models.ParsePageRole(prefix)
	if !ok {
		return models.PageRoleMiddle, name
	}
	return role, rest
}

func objectExtension(res compressor.Result) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(res.FileName)), "."); ext != "" {
		return ext
	}
	if ext := strings.TrimPrefix(mimetype.Detect(res.Data).Extension(), "."); ext != "" {
		return ext
	}
	return defaultExtension
}
