package testutil

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"
)

var (
	pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpgMagic = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	mp4Magic = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
)

var userSeq atomic.Uint64

// CreateUser inserts a user with a ledger row holding limit and used bytes.
func CreateUser(tb testing.TB, db *gorm.DB, limit, used uint64) *model.User {
	tb.Helper()
	n := userSeq.Add(1)
	user := &model.User{
		UserName: fmt.Sprintf("user%d", n),
		Email:    fmt.Sprintf("user%d@example.com", n),
		Password: "x",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		tb.Fatalf("create user: %v", err)
	}
	if err := db.Create(&model.StorageLedger{UserID: user.ID, UsedBytes: used, LimitBytes: limit}).Error; err != nil {
		tb.Fatalf("create ledger: %v", err)
	}
	return user
}

// UsedBytes reads the ledger's used bytes straight from the table.
func UsedBytes(tb testing.TB, db *gorm.DB, userID uint64) uint64 {
	tb.Helper()
	var ledger model.StorageLedger
	if err := db.Where("user_id = ?", userID).Take(&ledger).Error; err != nil {
		tb.Fatalf("load ledger: %v", err)
	}
	return ledger.UsedBytes
}

// LiveBytes sums the sizes of the user's active and trashed assets.
func LiveBytes(tb testing.TB, db *gorm.DB, userID uint64) uint64 {
	tb.Helper()
	var sum uint64
	if err := db.Model(&model.Asset{}).
		Where("user_id = ? AND state IN ?", userID, []model.LifecycleState{model.StateActive, model.StateTrashed}).
		Select("COALESCE(SUM(size), 0)").Scan(&sum).Error; err != nil {
		tb.Fatalf("sum assets: %v", err)
	}
	return sum
}

// CountAssets counts the user's rows in any state.
func CountAssets(tb testing.TB, db *gorm.DB, userID uint64) int64 {
	tb.Helper()
	var n int64
	if err := db.Model(&model.Asset{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		tb.Fatalf("count assets: %v", err)
	}
	return n
}

func padded(magic []byte, size int) []byte {
	if size < len(magic) {
		size = len(magic)
	}
	buf := make([]byte, size)
	copy(buf, magic)
	return buf
}

// PNG returns an in-memory PNG upload of exactly size bytes.
func PNG(name string, size int) *dto.UploadFile {
	return dto.FromBytes(name, "image/png", padded(pngMagic, size))
}

// JPEG returns an in-memory JPEG upload of exactly size bytes.
func JPEG(name string, size int) *dto.UploadFile {
	return dto.FromBytes(name, "image/jpeg", padded(jpgMagic, size))
}

// MP4 returns an in-memory MP4 upload of exactly size bytes.
func MP4(name string, size int) *dto.UploadFile {
	return dto.FromBytes(name, "video/mp4", padded(mp4Magic, size))
}

// Text returns content that sniffs as plain text under the given declared type.
func Text(name, declared string) *dto.UploadFile {
	return dto.FromBytes(name, declared, []byte("just some words, not media at all"))
}

// SetTrashedAt pins an asset's trash time.
func SetTrashedAt(tb testing.TB, db *gorm.DB, assetID uint64, at time.Time) {
	tb.Helper()
	if err := db.Model(&model.Asset{}).Where("id = ?", assetID).Update("trashed_at", at).Error; err != nil {
		tb.Fatalf("set trashed_at: %v", err)
	}
}

var ErrInjected = errors.New("injected storage failure")

// FlakyStore wraps a store and fails writes or deletes on demand.
type FlakyStore struct {
	storage.Store

	mu          sync.Mutex
	writes      int
	FailWriteAt int // 1-based write number to fail; 0 never fails
	FailDeletes bool
}

func (s *FlakyStore) WriteAtomic(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.writes++
	n := s.writes
	s.mu.Unlock()
	if s.FailWriteAt > 0 && n == s.FailWriteAt {
		return ErrInjected
	}
	return s.Store.WriteAtomic(ctx, key, r, size, contentType)
}

func (s *FlakyStore) Delete(ctx context.Context, key string) error {
	if s.FailDeletes {
		return ErrInjected
	}
	return s.Store.Delete(ctx, key)
}

// Install swaps the flaky store in as storage.Default.
func (s *FlakyStore) Install(tb testing.TB) {
	prev := storage.Default
	storage.Default = s
	tb.Cleanup(func() { storage.Default = prev })
}

// Blob reads a stored object, failing the test on error.
func Blob(tb testing.TB, store storage.Store, key string) []byte {
	tb.Helper()
	rc, _, err := store.Open(context.Background(), key)
	if err != nil {
		tb.Fatalf("open %s: %v", key, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		tb.Fatalf("read %s: %v", key, err)
	}
	return buf.Bytes()
}
