package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers understood by the object store factory.
const (
	StorageDriverS3    = "s3"
	StorageDriverMinio = "minio"
	StorageDriverLocal = "local"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Storage     StorageConfig
	Breaker     BreakerConfig
	Compression CompressionConfig
	Media       MediaConfig
	Events      EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// URL renders the connection settings in the postgres:// form used by migrations.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and tunes the object store backing media uploads.
type StorageConfig struct {
	Driver            string
	Bucket            string
	Region            string
	AccessKeyID       string
	SecretAccessKey   string
	Endpoint          string
	UseSSL            bool
	PublicDomain      string
	PublicScheme      string
	PublicRead        bool
	MaxAttempts       int
	PartSizeBytes     int64
	UploadConcurrency int
	MaxIdleConns      int
	RequestTimeout    time.Duration
	LocalDir          string
}

// BreakerConfig tunes the circuit breaker guarding remote object stores.
type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// CompressionConfig drives the image re-encoding budget.
type CompressionConfig struct {
	TargetBytes    int
	MaxWidth       int
	InitialQuality int
	QualityStep    int
	MinQuality     int
}

// MediaConfig bounds media ingestion and public lookups.
type MediaConfig struct {
	KeyPrefix          string
	MaxFiles           int
	MaxFileBytes       int64
	MaxRequestBytes    int64
	UploadWorkers      int
	PublicCacheTTL     time.Duration
	PublicRateLimit    float64
	PublicRateBurst    int
	PurgeReplacedBlobs bool
	JanitorWorkers     int
	JanitorRetries     int
	JanitorRetryDelay  time.Duration
}

// EventsConfig configures the optional Kafka publisher.
type EventsConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:            strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Bucket:            v.GetString("STORAGE_BUCKET"),
		Region:            v.GetString("STORAGE_REGION"),
		AccessKeyID:       v.GetString("STORAGE_ACCESS_KEY_ID"),
		SecretAccessKey:   v.GetString("STORAGE_SECRET_ACCESS_KEY"),
		Endpoint:          v.GetString("STORAGE_ENDPOINT"),
		UseSSL:            v.GetBool("STORAGE_USE_SSL"),
		PublicDomain:      v.GetString("STORAGE_PUBLIC_DOMAIN"),
		PublicScheme:      v.GetString("STORAGE_PUBLIC_SCHEME"),
		PublicRead:        v.GetBool("STORAGE_PUBLIC_READ"),
		MaxAttempts:       v.GetInt("STORAGE_MAX_ATTEMPTS"),
		PartSizeBytes:     v.GetInt64("STORAGE_PART_SIZE"),
		UploadConcurrency: v.GetInt("STORAGE_UPLOAD_CONCURRENCY"),
		MaxIdleConns:      v.GetInt("STORAGE_MAX_IDLE_CONNS"),
		RequestTimeout:    parseDuration(v.GetString("STORAGE_REQUEST_TIMEOUT"), 2*time.Minute),
		LocalDir:          v.GetString("STORAGE_LOCAL_DIR"),
	}
	if cfg.Storage.PublicDomain == "" && cfg.Storage.Driver == StorageDriverS3 && cfg.Storage.Bucket != "" {
		cfg.Storage.PublicDomain = fmt.Sprintf("%s.s3.%s.amazonaws.com", cfg.Storage.Bucket, cfg.Storage.Region)
	}

	cfg.Breaker = BreakerConfig{
		Enabled:             v.GetBool("BREAKER_ENABLED"),
		MaxRequests:         v.GetUint32("BREAKER_MAX_REQUESTS"),
		Interval:            parseDuration(v.GetString("BREAKER_INTERVAL"), time.Minute),
		Timeout:             parseDuration(v.GetString("BREAKER_TIMEOUT"), 30*time.Second),
		ConsecutiveFailures: v.GetUint32("BREAKER_CONSECUTIVE_FAILURES"),
	}

	cfg.Compression = CompressionConfig{
		TargetBytes:    v.GetInt("COMPRESS_TARGET_BYTES"),
		MaxWidth:       v.GetInt("COMPRESS_MAX_WIDTH"),
		InitialQuality: v.GetInt("COMPRESS_INITIAL_QUALITY"),
		QualityStep:    v.GetInt("COMPRESS_QUALITY_STEP"),
		MinQuality:     v.GetInt("COMPRESS_MIN_QUALITY"),
	}

	cfg.Media = MediaConfig{
		KeyPrefix:          strings.Trim(v.GetString("MEDIA_KEY_PREFIX"), "/"),
		MaxFiles:           v.GetInt("MEDIA_MAX_FILES"),
		MaxFileBytes:       v.GetInt64("MEDIA_MAX_FILE_BYTES"),
		MaxRequestBytes:    v.GetInt64("MEDIA_MAX_REQUEST_BYTES"),
		UploadWorkers:      v.GetInt("MEDIA_UPLOAD_WORKERS"),
		PublicCacheTTL:     parseDuration(v.GetString("MEDIA_PUBLIC_CACHE_TTL"), 5*time.Minute),
		PublicRateLimit:    v.GetFloat64("MEDIA_PUBLIC_RATE_LIMIT"),
		PublicRateBurst:    v.GetInt("MEDIA_PUBLIC_RATE_BURST"),
		PurgeReplacedBlobs: v.GetBool("MEDIA_PURGE_REPLACED_BLOBS"),
		JanitorWorkers:     v.GetInt("MEDIA_JANITOR_WORKERS"),
		JanitorRetries:     v.GetInt("MEDIA_JANITOR_RETRIES"),
		JanitorRetryDelay:  parseDuration(v.GetString("MEDIA_JANITOR_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Events = EventsConfig{
		Enabled:      v.GetBool("EVENTS_ENABLED"),
		Brokers:      splitAndTrim(v.GetString("EVENTS_BROKERS")),
		Topic:        v.GetString("EVENTS_TOPIC"),
		BatchTimeout: parseDuration(v.GetString("EVENTS_BATCH_TIMEOUT"), 50*time.Millisecond),
	}

	return cfg
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverS3, StorageDriverMinio:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required for the %s driver", c.Storage.Driver)
		}
		if c.Storage.Driver == StorageDriverMinio && c.Storage.Endpoint == "" {
			return fmt.Errorf("STORAGE_ENDPOINT is required for the minio driver")
		}
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required for the local driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Storage.PublicDomain == "" {
		return fmt.Errorf("STORAGE_PUBLIC_DOMAIN is required")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("EVENTS_BROKERS is required when events are enabled")
	}
	if c.Compression.MinQuality <= 0 || c.Compression.MinQuality > c.Compression.InitialQuality {
		return fmt.Errorf("COMPRESS_MIN_QUALITY must be between 1 and COMPRESS_INITIAL_QUALITY")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rd_studio")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("STORAGE_REGION", "ap-south-1")
	v.SetDefault("STORAGE_ACCESS_KEY_ID", "")
	v.SetDefault("STORAGE_SECRET_ACCESS_KEY", "")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PUBLIC_DOMAIN", "localhost:8080/media-files")
	v.SetDefault("STORAGE_PUBLIC_SCHEME", "https")
	v.SetDefault("STORAGE_PUBLIC_READ", true)
	v.SetDefault("STORAGE_MAX_ATTEMPTS", 5)
	v.SetDefault("STORAGE_PART_SIZE", 8*1024*1024)
	v.SetDefault("STORAGE_UPLOAD_CONCURRENCY", 4)
	v.SetDefault("STORAGE_MAX_IDLE_CONNS", 50)
	v.SetDefault("STORAGE_REQUEST_TIMEOUT", "2m")
	v.SetDefault("STORAGE_LOCAL_DIR", "./media-files")

	v.SetDefault("BREAKER_ENABLED", true)
	v.SetDefault("BREAKER_MAX_REQUESTS", 3)
	v.SetDefault("BREAKER_INTERVAL", "1m")
	v.SetDefault("BREAKER_TIMEOUT", "30s")
	v.SetDefault("BREAKER_CONSECUTIVE_FAILURES", 5)

	v.SetDefault("COMPRESS_TARGET_BYTES", 400*1024)
	v.SetDefault("COMPRESS_MAX_WIDTH", 1920)
	v.SetDefault("COMPRESS_INITIAL_QUALITY", 85)
	v.SetDefault("COMPRESS_QUALITY_STEP", 5)
	v.SetDefault("COMPRESS_MIN_QUALITY", 20)

	v.SetDefault("MEDIA_KEY_PREFIX", "media_library")
	v.SetDefault("MEDIA_MAX_FILES", 100)
	v.SetDefault("MEDIA_MAX_FILE_BYTES", 200*1024*1024)
	v.SetDefault("MEDIA_MAX_REQUEST_BYTES", 64*1024*1024)
	v.SetDefault("MEDIA_UPLOAD_WORKERS", 12)
	v.SetDefault("MEDIA_PUBLIC_CACHE_TTL", "5m")
	v.SetDefault("MEDIA_PUBLIC_RATE_LIMIT", 5)
	v.SetDefault("MEDIA_PUBLIC_RATE_BURST", 20)
	v.SetDefault("MEDIA_PURGE_REPLACED_BLOBS", true)
	v.SetDefault("MEDIA_JANITOR_WORKERS", 2)
	v.SetDefault("MEDIA_JANITOR_RETRIES", 3)
	v.SetDefault("MEDIA_JANITOR_RETRY_DELAY", "5s")

	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("EVENTS_BROKERS", "")
	v.SetDefault("EVENTS_TOPIC", "media.collections")
	v.SetDefault("EVENTS_BATCH_TIMEOUT", "50ms")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
