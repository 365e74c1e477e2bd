package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// the public lookup cache and the media ingestion pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploadDuration  *prometheus.HistogramVec
	uploadBytes     *prometheus.CounterVec
	uploadFailures  prometheus.Counter
	compressed      prometheus.Counter
	batchSize       prometheus.Histogram
	batchDuration   *prometheus.HistogramVec
	blobPurges      *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_upload_duration_seconds",
		Help:    "Duration of compress plus upload per media file",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	uploadBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_upload_bytes_total",
		Help: "Media bytes received and stored",
	}, []string{"direction"})

	uploadFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_upload_failures_total",
		Help: "Media files that failed to upload",
	})

	compressed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_images_compressed_total",
		Help: "Images re-encoded to fit the size budget",
	})

	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_upload_batch_files",
		Help:    "Number of files per upload batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_upload_batch_duration_seconds",
		Help:    "Duration of whole upload batches",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"outcome"})

	blobPurges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_blob_purges_total",
		Help: "Replaced media blobs handed to the janitor by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		uploadDuration, uploadBytes, uploadFailures, compressed, batchSize, batchDuration, blobPurges, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		uploadDuration:  uploadDuration,
		uploadBytes:     uploadBytes,
		uploadFailures:  uploadFailures,
		compressed:      compressed,
		batchSize:       batchSize,
		batchDuration:   batchDuration,
		blobPurges:      blobPurges,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveUpload records one compress plus upload attempt.
func (m *MetricsService) ObserveUpload(duration time.Duration, bytesIn, bytesOut int, compressed bool, err error) {
	if m == nil {
		return
	}
	m.uploadBytes.WithLabelValues("in").Add(float64(bytesIn))
	if err != nil {
		m.uploadDuration.WithLabelValues("error").Observe(duration.Seconds())
		m.uploadFailures.Inc()
		return
	}
	m.uploadDuration.WithLabelValues("ok").Observe(duration.Seconds())
	m.uploadBytes.WithLabelValues("out").Add(float64(bytesOut))
	if compressed {
		m.compressed.Inc()
	}
}

// ObserveBatch records the size and duration of an upload batch.
func (m *MetricsService) ObserveBatch(files int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.batchSize.Observe(float64(files))
	m.batchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordBlobPurge counts replaced blobs by outcome: deleted, skipped, failed or dropped.
func (m *MetricsService) RecordBlobPurge(outcome string) {
	if m == nil {
		return
	}
	m.blobPurges.WithLabelValues(outcome).Inc()
}
