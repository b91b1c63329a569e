package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// SideseatConfig is the full runtime configuration for cmd/sideseatd,
// layered by LoadSideseat: built-in defaults, then a TOML file, then
// environment variables (optionally from a .env file) overriding
// individual fields.
type SideseatConfig struct {
	Server    SideseatServerConfig    `toml:"server"`
	Database  SideseatDatabaseConfig  `toml:"database"`
	Topic     SideseatTopicConfig     `toml:"topic"`
	Cache     SideseatCacheConfig     `toml:"cache"`
	Storage   SideseatStorageConfig   `toml:"storage"`
	Pricing   SideseatPricingConfig   `toml:"pricing"`
	Auth      SideseatAuthConfig      `toml:"auth"`
	Log       SideseatLogConfig       `toml:"log"`
	Telemetry SideseatTelemetryConfig `toml:"telemetry"`
}

type SideseatServerConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	ShutdownSeconds int    `toml:"shutdown_seconds"`
}

type SideseatDatabaseConfig struct {
	Dialect string `toml:"dialect"` // postgres, clickhouse, sqlite
	DSN     string `toml:"dsn"`
}

type SideseatTopicConfig struct {
	Backend               string `toml:"backend"` // memory, redis
	RedisAddr             string `toml:"redis_addr"`
	RedisStreamGroup      string `toml:"redis_stream_group"`
	ChannelCapacity       int    `toml:"channel_capacity"`
	VisibilityTimeoutSecs int    `toml:"visibility_timeout_seconds"`
}

type SideseatCacheConfig struct {
	Backend   string `toml:"backend"` // memory, redis
	RedisAddr string `toml:"redis_addr"`
}

type SideseatStorageConfig struct {
	Backend                 string `toml:"backend"` // memory, fs, s3
	FSDir                   string `toml:"fs_dir"`
	S3Bucket                string `toml:"s3_bucket"`
	S3Prefix                string `toml:"s3_prefix"`
	S3Region                string `toml:"s3_region"`
	S3Endpoint              string `toml:"s3_endpoint"`
	S3AccessKey             string `toml:"s3_access_key"`
	S3SecretKey             string `toml:"s3_secret_key"`
	S3UsePathStyle          bool   `toml:"s3_use_path_style"`
	S3TLSInsecureSkipVerify bool   `toml:"s3_tls_insecure_skip_verify"`
	S3SSEMode               string `toml:"s3_sse_mode"`
	S3SSEKMSKeyID           string `toml:"s3_sse_kms_key_id"`
}

type SideseatPricingConfig struct {
	SyncURL      string            `toml:"sync_url"`
	SyncInterval int               `toml:"sync_interval_seconds"`
	Aliases      map[string]string `toml:"aliases"`
}

type SideseatAuthConfig struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

type SideseatLogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// SideseatTelemetryConfig governs sideseatd's own self-instrumentation
// (its request handling and pipeline spans/metrics), distinct from the
// OTLP traces/metrics/logs it accepts as ingestion workload.
type SideseatTelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
	Environment string `toml:"environment"`
}

// DefaultSideseatConfig returns the zero-config defaults for local,
// single-process operation: an in-process memory topic/cache backend, an
// on-disk sqlite database, and file-system blob storage.
func DefaultSideseatConfig() SideseatConfig {
	return SideseatConfig{
		Server: SideseatServerConfig{
			ListenAddr:      ":8420",
			ShutdownSeconds: 15,
		},
		Database: SideseatDatabaseConfig{
			Dialect: "sqlite",
			DSN:     "sideseat.db",
		},
		Topic: SideseatTopicConfig{
			Backend:               "memory",
			RedisStreamGroup:      "sideseat",
			ChannelCapacity:       1024,
			VisibilityTimeoutSecs: 30,
		},
		Cache: SideseatCacheConfig{
			Backend: "memory",
		},
		Storage: SideseatStorageConfig{
			Backend: "fs",
			FSDir:   "sideseat-blobs",
		},
		Pricing: SideseatPricingConfig{
			SyncInterval: 3600,
		},
		Auth: SideseatAuthConfig{
			CacheTTLSeconds: 30,
		},
		Log: SideseatLogConfig{
			Level: "info",
		},
		Telemetry: SideseatTelemetryConfig{
			ServiceName: "sideseatd",
			Environment: "development",
		},
	}
}

// LoadSideseat reads SideseatConfig starting from DefaultSideseatConfig,
// applying tomlPath (if non-empty) over the defaults, then environment
// variables over the file.
func LoadSideseat(tomlPath string) (SideseatConfig, error) {
	_ = godotenv.Overload()

	cfg := DefaultSideseatConfig()
	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return SideseatConfig{}, err
		}
	}

	envString(&cfg.Server.ListenAddr, "SIDESEAT_LISTEN_ADDR")
	envInt(&cfg.Server.ShutdownSeconds, "SIDESEAT_SHUTDOWN_SECONDS")

	envString(&cfg.Database.Dialect, "SIDESEAT_DB_DIALECT")
	envString(&cfg.Database.DSN, "SIDESEAT_DB_DSN")

	envString(&cfg.Topic.Backend, "SIDESEAT_TOPIC_BACKEND")
	envString(&cfg.Topic.RedisAddr, "SIDESEAT_TOPIC_REDIS_ADDR")
	envInt(&cfg.Topic.ChannelCapacity, "SIDESEAT_TOPIC_CAPACITY")
	envInt(&cfg.Topic.VisibilityTimeoutSecs, "SIDESEAT_TOPIC_VISIBILITY_SECONDS")

	envString(&cfg.Cache.Backend, "SIDESEAT_CACHE_BACKEND")
	envString(&cfg.Cache.RedisAddr, "SIDESEAT_CACHE_REDIS_ADDR")

	envString(&cfg.Storage.Backend, "SIDESEAT_STORAGE_BACKEND")
	envString(&cfg.Storage.FSDir, "SIDESEAT_STORAGE_FS_DIR")
	envString(&cfg.Storage.S3Bucket, "SIDESEAT_STORAGE_S3_BUCKET")
	envString(&cfg.Storage.S3Prefix, "SIDESEAT_STORAGE_S3_PREFIX")
	envString(&cfg.Storage.S3Region, "SIDESEAT_STORAGE_S3_REGION")
	envString(&cfg.Storage.S3Endpoint, "SIDESEAT_STORAGE_S3_ENDPOINT")
	envString(&cfg.Storage.S3AccessKey, "SIDESEAT_STORAGE_S3_ACCESS_KEY")
	envString(&cfg.Storage.S3SecretKey, "SIDESEAT_STORAGE_S3_SECRET_KEY")
	envBool(&cfg.Storage.S3UsePathStyle, "SIDESEAT_STORAGE_S3_USE_PATH_STYLE")
	envBool(&cfg.Storage.S3TLSInsecureSkipVerify, "SIDESEAT_STORAGE_S3_TLS_INSECURE_SKIP_VERIFY")
	envString(&cfg.Storage.S3SSEMode, "SIDESEAT_STORAGE_S3_SSE_MODE")
	envString(&cfg.Storage.S3SSEKMSKeyID, "SIDESEAT_STORAGE_S3_SSE_KMS_KEY_ID")

	envString(&cfg.Pricing.SyncURL, "SIDESEAT_PRICING_SYNC_URL")
	envInt(&cfg.Pricing.SyncInterval, "SIDESEAT_PRICING_SYNC_INTERVAL_SECONDS")

	envInt(&cfg.Auth.CacheTTLSeconds, "SIDESEAT_AUTH_CACHE_TTL_SECONDS")

	envString(&cfg.Log.Path, "SIDESEAT_LOG_PATH")
	envString(&cfg.Log.Level, "SIDESEAT_LOG_LEVEL")

	envBool(&cfg.Telemetry.Enabled, "SIDESEAT_TELEMETRY_ENABLED")
	envString(&cfg.Telemetry.Endpoint, "SIDESEAT_TELEMETRY_OTLP_ENDPOINT")
	envString(&cfg.Telemetry.ServiceName, "SIDESEAT_TELEMETRY_SERVICE_NAME")
	envString(&cfg.Telemetry.Environment, "SIDESEAT_TELEMETRY_ENVIRONMENT")

	return cfg, nil
}

// PricingSyncInterval converts the config's seconds field to a Duration,
// defaulting to an hour when unset.
func (c SideseatPricingConfig) PricingSyncInterval() time.Duration {
	if c.SyncInterval <= 0 {
		return time.Hour
	}
	return time.Duration(c.SyncInterval) * time.Second
}

func envString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := parseInt(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
