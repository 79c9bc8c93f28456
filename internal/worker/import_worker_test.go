package worker

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/service"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New("connection reset"), true},
		{"server error", &service.HTTPStatusError{StatusCode: http.StatusBadGateway}, true},
		{"rate limited", &service.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"timeout status", &service.HTTPStatusError{StatusCode: http.StatusRequestTimeout}, true},
		{"not found", &service.HTTPStatusError{StatusCode: http.StatusNotFound}, false},
		{"missing task", gorm.ErrRecordNotFound, false},
		{"quota", fmt.Errorf("ingest: %w", apperr.ErrQuotaExceeded), false},
		{"invalid media", &apperr.ValidationError{}, false},
		{"source rejected", fmt.Errorf("%w: ip not allowed", service.ErrSourceRejected), false},
		{"storage", fmt.Errorf("%w: disk full", apperr.ErrStorageIO), true},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldRetry(tc.err))
		})
	}
}

func TestPickRetryDelay(t *testing.T) {
	delays := []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
	assert.Equal(t, time.Second, pickRetryDelay(0, delays))
	assert.Equal(t, time.Second, pickRetryDelay(1, delays))
	assert.Equal(t, 5*time.Second, pickRetryDelay(2, delays))
	assert.Equal(t, 30*time.Second, pickRetryDelay(9, delays))
	assert.Zero(t, pickRetryDelay(1, nil))
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, newLimiter(0, 0).Allow())
	l := newLimiter(1, 2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
