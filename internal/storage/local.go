package storage

import (
	"MediaVault/internal/logger"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var errUnsafeKey = errors.New("unsafe object key")

// LocalStore keeps objects as files under a base directory.
type LocalStore struct {
	basePath string
	log      *logger.Logger
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("local storage path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	log := logger.L().With("component", "local-storage", "path", basePath)
	log.Info("local storage initialized")
	return &LocalStore{basePath: basePath, log: log}, nil
}

func (l *LocalStore) fullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", errUnsafeKey
	}
	return filepath.Join(l.basePath, clean), nil
}

// WriteAtomic writes to a temp file in the target directory, fsyncs it, then renames it into place.
func (l *LocalStore) WriteAtomic(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	full, err := l.fullPath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+uuid.NewString()+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: reader})
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("write file: wrote %d bytes, expected %d", written, size)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	committed = true

	l.log.Debug("file stored", "key", key, "bytes", written)
	return nil
}

// Open reads a file from the local filesystem.
func (l *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	full, err := l.fullPath(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(full); err == nil {
		contentType = mt.String()
	}
	return file, ObjectInfo{Key: key, Size: stat.Size(), ContentType: contentType}, nil
}

// Delete removes a file.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	full, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Exists reports whether the file is present.
func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	full, err := l.fullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PresignedGetURL returns a file:// URL; local files have no signed access.
func (l *LocalStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	full, err := l.fullPath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return "", ErrObjectNotFound
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
