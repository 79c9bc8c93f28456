package testutil

import (
	"MediaVault/config"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/utils"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Env is an isolated database and blob store installed as the package globals.
type Env struct {
	DB    *gorm.DB
	Store *storage.LocalStore
	Root  string
}

// Setup opens a fresh SQLite database and local store for one test and swaps them
// into repo.Db and storage.Default. Globals are restored on cleanup.
func Setup(tb testing.TB) *Env {
	tb.Helper()

	dir := tb.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "media.db")), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// one connection keeps sqlite writers serialized
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	root := filepath.Join(dir, "blobs")
	store, err := storage.NewLocalStore(root)
	if err != nil {
		tb.Fatalf("local store: %v", err)
	}

	prevDB, prevRedis, prevStore, prevCfg := repo.Db, repo.Redis, storage.Default, config.AppConfig
	repo.Db = db
	repo.Redis = nil
	storage.Default = store
	config.AppConfig = testConfig(root)
	utils.InitCacheManager()

	tb.Cleanup(func() {
		_ = sqlDB.Close()
		repo.Db, repo.Redis, storage.Default, config.AppConfig = prevDB, prevRedis, prevStore, prevCfg
		utils.InitCacheManager()
	})
	return &Env{DB: db, Store: store, Root: root}
}

func testConfig(root string) config.Config {
	return config.Config{
		JWTSecret:        "test-secret",
		JWTTTL:           time.Hour,
		StorageBackend:   "local",
		LocalStoragePath: root,
		PresignTTL:       time.Minute,
		ListCacheTTL:     time.Minute,
		Media:            config.DefaultMediaPolicy(),
		Retention:        config.DefaultRetentionPolicy(),
		ImportRetryMax:   3,
		ImportRetryDelays: []time.Duration{
			time.Second, 2 * time.Second,
		},
	}
}
