package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Backend kinds accepted in storage.kind.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageMinIO = "minio"
)

// Config holds the relay service configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	App       AppConfig       `json:"app" yaml:"app"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Signing   SigningConfig   `json:"signing" yaml:"signing"`
	Blocklist BlocklistConfig `json:"blocklist" yaml:"blocklist"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Logger    logger.Config   `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
	// ProxyHeader names the header carrying the client address when running
	// behind a reverse proxy, e.g. "X-Forwarded-For".
	ProxyHeader       string `json:"proxy_header" yaml:"proxy_header"`
	AllowOrigins      string `json:"allow_origins" yaml:"allow_origins"`
	ShutdownTimeoutMS int    `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" validate:"gte=0"`
}

type AppConfig struct {
	Mode                 domain.Mode `json:"mode" yaml:"mode" validate:"oneof=proxy issuance"`
	MaxUploadSize        int64       `json:"max_upload_size" yaml:"max_upload_size" validate:"gt=0"`
	URLTTLSeconds        int         `json:"url_ttl_seconds" yaml:"url_ttl_seconds" validate:"gt=0"`
	JanitorIntervalSec   int         `json:"janitor_interval_sec" yaml:"janitor_interval_sec" validate:"gte=0"`
	PartialMaxAgeSeconds int         `json:"partial_max_age_seconds" yaml:"partial_max_age_seconds" validate:"gt=0"`
}

type StorageConfig struct {
	Kind  string      `json:"kind" yaml:"kind" validate:"oneof=local s3 minio"`
	Local LocalConfig `json:"local" yaml:"local"`
	S3    S3Config    `json:"s3" yaml:"s3"`
	MinIO MinIOConfig `json:"minio" yaml:"minio"`
}

type LocalConfig struct {
	Dir   string `json:"dir" yaml:"dir"`
	FSync bool   `json:"fsync" yaml:"fsync"`
}

type S3Config struct {
	Region         string `json:"region" yaml:"region"`
	Bucket         string `json:"bucket" yaml:"bucket"`
	Endpoint       string `json:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	AccessKey      string `json:"access_key" yaml:"access_key"`
	SecretKey      string `json:"secret_key" yaml:"secret_key"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style"`
}

type MinIOConfig struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Region       string `json:"region" yaml:"region"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
	UseSSL       bool   `json:"use_ssl" yaml:"use_ssl"`
	PathStyle    bool   `json:"path_style" yaml:"path_style"`
	CreateBucket bool   `json:"create_bucket" yaml:"create_bucket"`
	PartSizeMB   int    `json:"part_size_mb" yaml:"part_size_mb" validate:"gte=0"`
}

// SigningConfig is used only by the local backend in issuance mode.
type SigningConfig struct {
	Secret        string `json:"secret" yaml:"secret"`
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url" validate:"omitempty,url"`
}

type BlocklistConfig struct {
	IPs          []string `json:"ips" yaml:"ips"`
	RedisEnabled bool     `json:"redis_enabled" yaml:"redis_enabled"`
	RedisKey     string   `json:"redis_key" yaml:"redis_key"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8090",
			AllowOrigins:      "*",
			ShutdownTimeoutMS: 10000,
		},
		App: AppConfig{
			Mode:                 domain.ModeProxy,
			MaxUploadSize:        1024 * 1024 * 1024, // 1GB
			URLTTLSeconds:        30 * 60,
			JanitorIntervalSec:   10 * 60,
			PartialMaxAgeSeconds: 60 * 60,
		},
		Storage: StorageConfig{
			Kind: StorageLocal,
			Local: LocalConfig{
				Dir: "data/files",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
			MinIO: MinIOConfig{
				Endpoint:   "localhost:9000",
				Region:     "us-east-1",
				PathStyle:  true,
				PartSizeMB: 16,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// URLTTL is the lifetime of issued transfer URLs.
func (c AppConfig) URLTTL() time.Duration {
	return time.Duration(c.URLTTLSeconds) * time.Second
}

// JanitorInterval is how often partial uploads are swept; zero disables the sweep.
func (c AppConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSec) * time.Second
}

func (c AppConfig) PartialMaxAge() time.Duration {
	return time.Duration(c.PartialMaxAgeSeconds) * time.Second
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// PartSize is the multipart chunk size in bytes.
func (c MinIOConfig) PartSize() uint64 {
	return uint64(c.PartSizeMB) << 20
}

// Load loads configuration from file, then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "api", "config", env+".yaml")
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		if path != "" {
			return nil, err
		}
		log.Printf("Config file not found or failed to parse, using defaults. Path: %s, Error: %v", configPath, err)
		parsedCfg = cfg
	}

	if err := applyEnv(parsedCfg); err != nil {
		return nil, err
	}
	if err := parsedCfg.Validate(); err != nil {
		return nil, err
	}
	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// loadDotEnv reads .env from the working directory when present.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Environment variables that override file values. Secrets are expected to
// come from here rather than from the YAML file.
const (
	EnvServerAddr     = "RELAY_SERVER_ADDR"
	EnvAppMode        = "RELAY_APP_MODE"
	EnvMaxUploadSize  = "RELAY_MAX_UPLOAD_SIZE"
	EnvStorageKind    = "RELAY_STORAGE_KIND"
	EnvLocalDir       = "RELAY_LOCAL_DIR"
	EnvS3Bucket       = "RELAY_S3_BUCKET"
	EnvS3AccessKey    = "RELAY_S3_ACCESS_KEY"
	EnvS3SecretKey    = "RELAY_S3_SECRET_KEY"
	EnvMinIOEndpoint  = "RELAY_MINIO_ENDPOINT"
	EnvMinIOBucket    = "RELAY_MINIO_BUCKET"
	EnvMinIOAccessKey = "RELAY_MINIO_ACCESS_KEY"
	EnvMinIOSecretKey = "RELAY_MINIO_SECRET_KEY"
	EnvSigningSecret  = "RELAY_SIGNING_SECRET"
	EnvPublicBaseURL  = "RELAY_PUBLIC_BASE_URL"
	EnvRedisAddr      = "RELAY_REDIS_ADDR"
	EnvRedisPassword  = "RELAY_REDIS_PASSWORD"
)

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		EnvServerAddr:     &cfg.Server.Addr,
		EnvStorageKind:    &cfg.Storage.Kind,
		EnvLocalDir:       &cfg.Storage.Local.Dir,
		EnvS3Bucket:       &cfg.Storage.S3.Bucket,
		EnvS3AccessKey:    &cfg.Storage.S3.AccessKey,
		EnvS3SecretKey:    &cfg.Storage.S3.SecretKey,
		EnvMinIOEndpoint:  &cfg.Storage.MinIO.Endpoint,
		EnvMinIOBucket:    &cfg.Storage.MinIO.Bucket,
		EnvMinIOAccessKey: &cfg.Storage.MinIO.AccessKey,
		EnvMinIOSecretKey: &cfg.Storage.MinIO.SecretKey,
		EnvSigningSecret:  &cfg.Signing.Secret,
		EnvPublicBaseURL:  &cfg.Signing.PublicBaseURL,
		EnvRedisAddr:      &cfg.Redis.Addr,
		EnvRedisPassword:  &cfg.Redis.Password,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvAppMode); ok {
		cfg.App.Mode = domain.Mode(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv(EnvMaxUploadSize); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxUploadSize, err)
		}
		cfg.App.MaxUploadSize = n
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// MinSigningSecretLength matches the signer's lower bound.
const MinSigningSecretLength = 16

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	switch c.Storage.Kind {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.Local.Dir) == "" {
			errs = append(errs, errors.New("storage.local.dir is required"))
		}
		if c.App.Mode == domain.ModeIssuance && len(c.Signing.Secret) < MinSigningSecretLength {
			errs = append(errs, fmt.Errorf("signing.secret must be at least %d bytes for local issuance", MinSigningSecretLength))
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required"))
		}
		if c.Storage.S3.Region == "" {
			errs = append(errs, errors.New("storage.s3.region is required"))
		}
	case StorageMinIO:
		if c.Storage.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("storage.minio.endpoint is required"))
		}
		if c.Storage.MinIO.Bucket == "" {
			errs = append(errs, errors.New("storage.minio.bucket is required"))
		}
	}
	if c.Blocklist.RedisEnabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when blocklist.redis_enabled is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
