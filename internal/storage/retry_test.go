package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	Store
	failures int
	calls    int
	written  [][]byte
}

func (f *flakyStore) WriteAtomic(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	f.calls++
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	f.written = append(f.written, data)
	return nil
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.calls++
	return ErrObjectNotFound
}

func TestRetryStoreRewindsAndRetries(t *testing.T) {
	inner := &flakyStore{failures: 2}
	s := NewRetryStore(inner, []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond})

	require.NoError(t, s.WriteAtomic(context.Background(), "k", bytes.NewReader([]byte("payload")), 7, "image/png"))
	assert.Equal(t, 3, inner.calls)
	require.Len(t, inner.written, 1)
	assert.Equal(t, "payload", string(inner.written[0]))
}

func TestRetryStoreGivesUpAfterSchedule(t *testing.T) {
	inner := &flakyStore{failures: 10}
	s := NewRetryStore(inner, []time.Duration{time.Millisecond, time.Millisecond})

	err := s.WriteAtomic(context.Background(), "k", bytes.NewReader([]byte("x")), 1, "image/png")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStoreNoRetryForUnseekableReader(t *testing.T) {
	inner := &flakyStore{failures: 1}
	s := NewRetryStore(inner, []time.Duration{time.Millisecond})

	err := s.WriteAtomic(context.Background(), "k", io.MultiReader(strings.NewReader("x")), 1, "image/png")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryStoreNotFoundIsNotRetried(t *testing.T) {
	inner := &flakyStore{}
	s := NewRetryStore(inner, []time.Duration{time.Millisecond, time.Millisecond})

	assert.ErrorIs(t, s.Delete(context.Background(), "k"), ErrObjectNotFound)
	assert.Equal(t, 1, inner.calls)
}
