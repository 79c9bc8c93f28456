package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr           string
	LogMode            string
	JWTSecret          string
	JWTTTL             time.Duration
	CORSAllowedOrigins []string
	AdminUsers         []string

	DBDriver string
	DBHost   string
	DBPort   string
	DBUser   string
	DBPass   string
	DBName   string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ListCacheTTL  time.Duration

	StorageBackend     string
	LocalStoragePath   string
	MinioHost          string
	MinioPort          string
	MinioUsername      string
	MinioPassword      string
	MinioUseSSL        bool
	BucketName         string
	StorageRetryDelays []time.Duration
	PresignTTL         time.Duration

	Media     MediaPolicy
	Retention RetentionPolicy

	RabbitMQURL             string
	RabbitMQHost            string
	RabbitMQPort            string
	RabbitMQUser            string
	RabbitMQPass            string
	RabbitMQVhost           string
	RabbitMQPrefetch        int
	ImportWorkerConcurrency int
	ImportRate              float64
	ImportBurst             int
	ImportRetryMax          int
	ImportRetryDelays       []time.Duration
	ImportHTTPTimeout       time.Duration
	ImportAllowPrivate      bool
	ImportAllowedHosts      []string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	AlertEmailTo []string
}

// MediaPolicy bounds what ingestion accepts.
type MediaPolicy struct {
	ImageMaxBytes     uint64
	VideoMaxBytes     uint64
	ImageMIMETypes    []string
	VideoMIMETypes    []string
	UploadConcurrency int
	DefaultQuotaBytes uint64
}

// RetentionPolicy drives the trash sweeper.
type RetentionPolicy struct {
	Window         time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
	SweepRate      float64
	LockTTL        time.Duration
	ReconcileEvery time.Duration
}

var AppConfig Config

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := time.ParseDuration(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// DefaultMediaPolicy returns the built-in ingestion limits.
func DefaultMediaPolicy() MediaPolicy {
	return MediaPolicy{
		ImageMaxBytes: 5 * 1024 * 1024,
		VideoMaxBytes: 2 * 1024 * 1024 * 1024,
		ImageMIMETypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp", "image/heic", "image/heif",
		},
		VideoMIMETypes: []string{
			"video/mp4", "video/quicktime", "video/webm", "video/x-matroska", "video/3gpp",
		},
		UploadConcurrency: 4,
		DefaultQuotaBytes: 10 * 1024 * 1024 * 1024,
	}
}

// DefaultRetentionPolicy returns the built-in sweeper settings.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		Window:         30 * 24 * time.Hour,
		SweepInterval:  time.Hour,
		SweepBatchSize: 100,
		SweepRate:      20,
		LockTTL:        2 * time.Minute,
		ReconcileEvery: 24 * time.Hour,
	}
}

// InitConfig loads configuration from the environment and an optional .env file.
func InitConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env failed: %v", err)
	}

	rabbitHost := getEnv("RABBITMQ_HOST", "localhost")
	rabbitPort := getEnv("RABBITMQ_PORT", "5672")
	rabbitUser := getEnv("RABBITMQ_USER", "guest")
	rabbitPass := getEnv("RABBITMQ_PASSWORD", "guest")
	rabbitVhost := getEnv("RABBITMQ_VHOST", "/")
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(rabbitUser),
			url.PathEscape(rabbitPass),
			rabbitHost,
			rabbitPort,
			url.PathEscape(rabbitVhost),
		)
	}

	media := DefaultMediaPolicy()
	media.ImageMaxBytes = getEnvUint64("IMAGE_MAX_BYTES", media.ImageMaxBytes)
	media.VideoMaxBytes = getEnvUint64("VIDEO_MAX_BYTES", media.VideoMaxBytes)
	media.ImageMIMETypes = getEnvList("IMAGE_MIME_TYPES", media.ImageMIMETypes)
	media.VideoMIMETypes = getEnvList("VIDEO_MIME_TYPES", media.VideoMIMETypes)
	media.UploadConcurrency = getEnvInt("UPLOAD_CONCURRENCY", media.UploadConcurrency)
	media.DefaultQuotaBytes = getEnvUint64("DEFAULT_QUOTA_BYTES", media.DefaultQuotaBytes)

	retention := DefaultRetentionPolicy()
	retention.Window = getEnvDuration("RETENTION_WINDOW", retention.Window)
	retention.SweepInterval = getEnvDuration("SWEEP_INTERVAL", retention.SweepInterval)
	retention.SweepBatchSize = getEnvInt("SWEEP_BATCH_SIZE", retention.SweepBatchSize)
	retention.SweepRate = getEnvFloat("SWEEP_RATE", retention.SweepRate)
	retention.LockTTL = getEnvDuration("SWEEP_LOCK_TTL", retention.LockTTL)
	retention.ReconcileEvery = getEnvDuration("RECONCILE_INTERVAL", retention.ReconcileEvery)

	AppConfig = Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8000"),
		LogMode:            getEnv("LOG_MODE", "dev"),
		JWTSecret:          getEnv("JWT_SECRET", "l=ax+b"),
		JWTTTL:             getEnvDuration("JWT_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AdminUsers:         getEnvList("ADMIN_USERS", nil),

		DBDriver: getEnv("DB_DRIVER", "mysql"),
		DBHost:   getEnv("DB_HOST", "localhost"),
		DBPort:   getEnv("DB_PORT", "3306"),
		DBUser:   getEnv("DB_USER", "root"),
		DBPass:   getEnv("DB_PASS", "root"),
		DBName:   getEnv("DB_NAME", "media_vault"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ListCacheTTL:  getEnvDuration("LIST_CACHE_TTL", 5*time.Minute),

		StorageBackend:   getEnv("STORAGE_BACKEND", "minio"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data/media"),
		MinioHost:        getEnv("MINIO_HOST", "localhost"),
		MinioPort:        getEnv("MINIO_PORT", "9000"),
		MinioUsername:    getEnv("MINIO_USERNAME", "minioadmin"),
		MinioPassword:    getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioUseSSL:      getEnvBool("MINIO_USE_SSL", false),
		BucketName:       getEnv("BUCKET_NAME", "media-vault"),
		StorageRetryDelays: getEnvDurationList(
			"STORAGE_RETRY_DELAYS",
			[]time.Duration{200 * time.Millisecond, time.Second, 3 * time.Second},
		),
		PresignTTL: getEnvDuration("PRESIGN_TTL", 15*time.Minute),

		Media:     media,
		Retention: retention,

		RabbitMQURL:             rabbitURL,
		RabbitMQHost:            rabbitHost,
		RabbitMQPort:            rabbitPort,
		RabbitMQUser:            rabbitUser,
		RabbitMQPass:            rabbitPass,
		RabbitMQVhost:           rabbitVhost,
		RabbitMQPrefetch:        getEnvInt("RABBITMQ_PREFETCH", 8),
		ImportWorkerConcurrency: getEnvInt("IMPORT_WORKER_CONCURRENCY", 4),
		ImportRate:              getEnvFloat("IMPORT_RATE", 2),
		ImportBurst:             getEnvInt("IMPORT_BURST", 4),
		ImportRetryMax:          getEnvInt("IMPORT_RETRY_MAX", 5),
		ImportRetryDelays: getEnvDurationList(
			"IMPORT_RETRY_DELAYS",
			[]time.Duration{10 * time.Second, 30 * time.Second, 2 * time.Minute, 10 * time.Minute, 30 * time.Minute},
		),
		ImportHTTPTimeout:  getEnvDuration("IMPORT_HTTP_TIMEOUT", 30*time.Minute),
		ImportAllowPrivate: getEnvBool("IMPORT_ALLOW_PRIVATE", false),
		ImportAllowedHosts: getEnvList("IMPORT_ALLOW_HOSTS", nil),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.qq.com"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		AlertEmailTo: getEnvList("ALERT_EMAIL_TO", nil),
	}
}
