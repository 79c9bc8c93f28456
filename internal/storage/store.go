package storage

import (
	"MediaVault/config"
	"MediaVault/internal/logger"
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Store abstracts blob storage for media files.
type Store interface {
	// WriteAtomic stores the object so readers see either nothing or the complete content.
	WriteAtomic(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes the object; a missing key yields ErrObjectNotFound.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Default is the main object store instance.
var Default Store

// InitStorage builds the backend selected by STORAGE_BACKEND and installs it as Default.
func InitStorage() {
	log := logger.L().With("component", "storage", "backend", config.AppConfig.StorageBackend)

	var (
		backend Store
		err     error
	)
	switch strings.ToLower(config.AppConfig.StorageBackend) {
	case "local", "fs":
		backend, err = NewLocalStore(config.AppConfig.LocalStoragePath)
	default:
		backend, err = InitMinio()
	}
	if err != nil {
		log.Fatal("init storage fail", "error", err)
	}
	Default = NewRetryStore(backend, config.AppConfig.StorageRetryDelays)
	log.Info("init storage success")
}
