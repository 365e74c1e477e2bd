package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/rd-studio-media-api/pkg/config"
)

// New builds the configured driver and wraps remote drivers with the circuit
// breaker when enabled.
func New(ctx context.Context, cfg *config.Config, logr *zap.Logger) (ObjectStore, error) {
	sc := cfg.Storage
	urls := NewURLBuilder(sc.PublicScheme, sc.PublicDomain)

	var (
		store ObjectStore
		err   error
	)
	switch sc.Driver {
	case config.StorageDriverS3:
		store, err = NewS3Store(ctx, S3Options{
			Bucket:          sc.Bucket,
			Region:          sc.Region,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
			Endpoint:        sc.Endpoint,
			PublicRead:      sc.PublicRead,
			MaxAttempts:     sc.MaxAttempts,
			PartSize:        sc.PartSizeBytes,
			Concurrency:     sc.UploadConcurrency,
			MaxIdleConns:    sc.MaxIdleConns,
			RequestTimeout:  sc.RequestTimeout,
			URLs:            urls,
		})
	case config.StorageDriverMinio:
		store, err = NewMinioStore(ctx, MinioOptions{
			Endpoint:        sc.Endpoint,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
			Bucket:          sc.Bucket,
			Region:          sc.Region,
			UseSSL:          sc.UseSSL,
			PublicRead:      sc.PublicRead,
			PartSize:        sc.PartSizeBytes,
			Concurrency:     sc.UploadConcurrency,
			MaxIdleConns:    sc.MaxIdleConns,
			URLs:            urls,
			Logger:          logr,
		})
	case config.StorageDriverLocal:
		local, localErr := NewLocalStorage(sc.LocalDir, urls)
		if localErr != nil {
			return nil, localErr
		}
		logr.Info("using local object store", zap.String("dir", local.Dir()))
		return local, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Breaker.Enabled {
		return store, nil
	}
	return NewBreakerStore(store, BreakerSettings{
		Name:                "object-store-" + sc.Driver,
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		Logger:              logr,
	}), nil
}
