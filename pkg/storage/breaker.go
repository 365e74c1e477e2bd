package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings configures the circuit breaker wrapped around a store.
type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	Logger              *zap.Logger
}

// BreakerStore fails fast while the backend keeps erroring so a batch upload
// does not wait out the full retry budget of every remaining file.
type BreakerStore struct {
	next ObjectStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next with a circuit breaker. Put, Get and Delete go
// through the breaker; List is used by maintenance tooling and bypasses it.
func NewBreakerStore(next ObjectStore, settings BreakerSettings) *BreakerStore {
	logger := settings.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Name == "" {
		settings.Name = "object-store"
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	threshold := settings.ConsecutiveFailures

	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrObjectNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Put(ctx, key, data, contentType)
	})
	if err != nil {
		if isBreakerRejection(err) {
			return "", &UploadError{Key: key, Err: err}
		}
		return "", err
	}
	return res.(string), nil
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (b *BreakerStore) Delete(ctx context.Context, rawURL string) (bool, error) {
	if _, ok := b.next.KeyFromURL(rawURL); !ok {
		return false, nil
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Delete(ctx, rawURL)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (b *BreakerStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return b.next.List(ctx, prefix)
}

func (b *BreakerStore) URL(key string) string {
	return b.next.URL(key)
}

func (b *BreakerStore) KeyFromURL(rawURL string) (string, bool) {
	return b.next.KeyFromURL(rawURL)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
