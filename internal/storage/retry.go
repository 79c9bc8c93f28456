package storage

import (
	"MediaVault/internal/logger"
	"MediaVault/internal/metrics"
	"context"
	"errors"
	"io"
	"time"
)

var errNoRewind = errors.New("reader cannot be rewound for retry")

// RetryStore retries transient backend failures with a bounded delay schedule.
type RetryStore struct {
	inner  Store
	delays []time.Duration
	log    *logger.Logger
}

// NewRetryStore wraps inner. One attempt is made per delay plus the initial one.
func NewRetryStore(inner Store, delays []time.Duration) *RetryStore {
	return &RetryStore{
		inner:  inner,
		delays: delays,
		log:    logger.L().With("component", "storage-retry"),
	}
}

// Unwrap returns the wrapped backend.
func (s *RetryStore) Unwrap() Store {
	return s.inner
}

func (s *RetryStore) do(ctx context.Context, op, key string, fn func() error) error {
	start := time.Now()
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !retryable(err) || attempt >= len(s.delays) {
			break
		}
		s.log.Warn("storage operation failed, retrying", "op", op, "key", key, "attempt", attempt+1, "error", err)
		timer := time.NewTimer(s.delays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	status := "success"
	switch {
	case errors.Is(err, ErrObjectNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.RecordStorageOperation(op, status, time.Since(start).Seconds())
	return err
}

func retryable(err error) bool {
	return !errors.Is(err, ErrObjectNotFound) &&
		!errors.Is(err, errUnsafeKey) &&
		!errors.Is(err, errNoRewind) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// WriteAtomic retries only when the reader can be rewound.
func (s *RetryStore) WriteAtomic(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	write := func() error {
		return s.inner.WriteAtomic(ctx, key, reader, size, contentType)
	}
	seeker, canRewind := reader.(io.Seeker)
	if !canRewind {
		once := &RetryStore{inner: s.inner, log: s.log}
		return once.do(ctx, "write", key, write)
	}
	first := true
	return s.do(ctx, "write", key, func() error {
		if !first {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return errors.Join(errNoRewind, err)
			}
		}
		first = false
		return write()
	})
}

// Open is not retried past the first byte; only the open call itself is.
func (s *RetryStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var (
		rc   io.ReadCloser
		info ObjectInfo
	)
	err := s.do(ctx, "open", key, func() error {
		var err error
		rc, info, err = s.inner.Open(ctx, key)
		return err
	})
	return rc, info, err
}

func (s *RetryStore) Delete(ctx context.Context, key string) error {
	return s.do(ctx, "delete", key, func() error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *RetryStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.do(ctx, "exists", key, func() error {
		var err error
		ok, err = s.inner.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (s *RetryStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	var u string
	err := s.do(ctx, "presign", key, func() error {
		var err error
		u, err = s.inner.PresignedGetURL(ctx, key, expiry)
		return err
	})
	return u, err
}
