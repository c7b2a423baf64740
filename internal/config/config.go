// Package config handles loading and parsing of mediacache configuration.
//
// Configuration is read once at process start from a YAML file, with
// environment variables (MEDIACACHE_*) overriding file values and
// command-line flags overriding both. There is no hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for mediacache.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Limits  LimitsConfig  `yaml:"limits"`
	Tenants TenantsConfig `yaml:"tenants"`
	Storage StorageConfig `yaml:"storage"`
	Encoder EncoderConfig `yaml:"encoder"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Notify  NotifyConfig  `yaml:"notify"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ShutdownTimeout is the graceful shutdown window in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the slog level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the handler format: text or json.
	Format string `yaml:"format"`
}

// LimitsConfig bounds origin fetches and transform parameters.
type LimitsConfig struct {
	// MaxSourceBytes caps the size of a fetched or uploaded source payload.
	MaxSourceBytes int64 `yaml:"max_source_bytes"`
	// FetchTimeout is the origin fetch timeout in seconds.
	FetchTimeout int `yaml:"fetch_timeout"`
	// MaxWidth is the ceiling for the requested output width.
	MaxWidth int `yaml:"max_width"`
	// DefaultQuality is used when the request omits a quality value.
	DefaultQuality int `yaml:"default_quality"`
}

// TenantsConfig holds the namespace allow-list.
type TenantsConfig struct {
	// Allowed is the list of recognized tenant identifiers.
	Allowed []string `yaml:"allowed"`
	// Default is the namespace used for absent or unrecognized tenants.
	Default string `yaml:"default"`
}

// StorageConfig holds object storage provider settings. Any combination of
// providers may be configured; the selector picks by priority (s3 > local >
// gcs) unless the request names one explicitly.
type StorageConfig struct {
	// Provider forces a specific provider for all requests when set.
	Provider string      `yaml:"provider"`
	S3       S3Config    `yaml:"s3"`
	Local    LocalConfig `yaml:"local"`
	GCS      GCSConfig   `yaml:"gcs"`
}

// S3Config holds remote bucket store settings. Endpoint enables
// S3-compatible services (R2, MinIO) with path-style addressing.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// PublicURL overrides URL construction for served objects (e.g. a CDN
	// or custom domain in front of the bucket).
	PublicURL string `yaml:"public_url"`
}

// LocalConfig holds local filesystem store settings.
type LocalConfig struct {
	RootDir string `yaml:"root_dir"`
	// PublicURL is the prefix under which the root directory is served.
	PublicURL string `yaml:"public_url"`
}

// GCSConfig holds Google Cloud Storage settings. GCS is last in the
// provider fall-through order: selected by priority only when neither s3
// nor local is configured.
type GCSConfig struct {
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"`
}

// EncoderConfig holds transcoding settings.
type EncoderConfig struct {
	// Engine selects the image encoder: "vips" (libvips, all formats) or
	// "native" (pure Go, jpeg/png targets only).
	Engine string `yaml:"engine"`
	// QualityTiers maps named quality tiers to numeric values. Policy,
	// not invariant: deployments may retune these.
	QualityTiers map[string]int `yaml:"quality_tiers"`
	// VideoEnabled turns on the ffmpeg video transcode path.
	VideoEnabled bool `yaml:"video_enabled"`
	// FFmpegPath overrides ffmpeg binary discovery via PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// LedgerConfig holds the SQLite usage ledger settings.
type LedgerConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `yaml:"path"`
}

// NotifyConfig holds SMTP alert settings. Empty host disables alerts.
type NotifyConfig struct {
	SMTPHost   string `yaml:"smtp_host"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	AdminEmail string `yaml:"admin_email"`
}

// MonitorConfig holds the usage dashboard settings.
type MonitorConfig struct {
	// AccessCode is the shared secret gating /monitor.
	AccessCode string `yaml:"access_code"`
}

// Load reads a YAML configuration file from the given path, applies
// defaults for unset values, then applies environment overrides. A missing
// file is not an error: env-only deployments run from defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Limits: LimitsConfig{
			MaxSourceBytes: 50 * 1024 * 1024,
			FetchTimeout:   8,
			MaxWidth:       3840,
			DefaultQuality: 80,
		},
		Tenants: TenantsConfig{
			Allowed: []string{"musefactory"},
			Default: "default",
		},
		Storage: StorageConfig{
			Local: LocalConfig{
				RootDir: "./data/objects",
			},
		},
		Encoder: EncoderConfig{
			Engine: "vips",
			QualityTiers: map[string]int{
				"auto:best": 90,
				"auto:good": 80,
				"auto:eco":  60,
			},
		},
	}
}

// applyDefaults fills in any fields still at their zero value after YAML
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Limits.MaxSourceBytes == 0 {
		cfg.Limits.MaxSourceBytes = 50 * 1024 * 1024
	}
	if cfg.Limits.FetchTimeout == 0 {
		cfg.Limits.FetchTimeout = 8
	}
	if cfg.Limits.MaxWidth == 0 {
		cfg.Limits.MaxWidth = 3840
	}
	if cfg.Limits.DefaultQuality == 0 {
		cfg.Limits.DefaultQuality = 80
	}
	if cfg.Tenants.Default == "" {
		cfg.Tenants.Default = "default"
	}
	if cfg.Encoder.Engine == "" {
		cfg.Encoder.Engine = "vips"
	}
	if len(cfg.Encoder.QualityTiers) == 0 {
		cfg.Encoder.QualityTiers = map[string]int{
			"auto:best": 90,
			"auto:good": 80,
			"auto:eco":  60,
		}
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "auto"
	}
	if cfg.Notify.SMTPPort == 0 {
		cfg.Notify.SMTPPort = 587
	}
}

// applyEnv overrides config values from MEDIACACHE_* environment
// variables. Only deployment-sensitive values are exposed this way;
// structural settings stay in the file.
func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Storage.S3.Bucket, "MEDIACACHE_S3_BUCKET")
	setStr(&cfg.Storage.S3.Region, "MEDIACACHE_S3_REGION")
	setStr(&cfg.Storage.S3.Endpoint, "MEDIACACHE_S3_ENDPOINT")
	setStr(&cfg.Storage.S3.AccessKey, "MEDIACACHE_S3_ACCESS_KEY_ID")
	setStr(&cfg.Storage.S3.SecretKey, "MEDIACACHE_S3_SECRET_ACCESS_KEY")
	setStr(&cfg.Storage.S3.PublicURL, "MEDIACACHE_S3_PUBLIC_URL")
	setStr(&cfg.Storage.GCS.Bucket, "MEDIACACHE_GCS_BUCKET")
	setStr(&cfg.Monitor.AccessCode, "MEDIACACHE_MONITOR_CODE")
	setStr(&cfg.Notify.Password, "MEDIACACHE_SMTP_PASSWORD")

	if v := os.Getenv("MEDIACACHE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
