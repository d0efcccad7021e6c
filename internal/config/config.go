package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Storage   Storage `yaml:"storage"`
	Upload    Upload  `yaml:"upload"`
	LogLevel  string  `yaml:"log_level"`
	LogFormat string  `yaml:"log_format"`
}

// Storage represents the object store the upload targets
type Storage struct {
	Driver    string `yaml:"driver"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	PathStyle bool   `yaml:"path_style"`
}

// Upload represents one upload session
type Upload struct {
	Bucket       string `yaml:"bucket"`
	Key          string `yaml:"key"`
	Pattern      string `yaml:"pattern"`
	Root         string `yaml:"root"`
	Log          string `yaml:"log"`
	LogBackend   string `yaml:"log_backend"`
	MaxAttempts  int    `yaml:"max_attempts"`
	ShowProgress bool   `yaml:"show_progress"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

const (
	DriverMinIO = "minio"
	DriverS3    = "s3"
)

// Default returns the configuration used before the file and flags apply.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		Storage: Storage{
			Driver: DriverMinIO,
			Secure: true,
		},
		Upload: Upload{
			Pattern:      "*",
			Root:         ".",
			LogBackend:   "file",
			MaxAttempts:  3,
			ShowProgress: true,
		},
	}
}

// RegisterFlags adds every configuration flag to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()

	flags.StringP("bucket", "b", "", "Target bucket (required)")
	flags.StringP("key", "k", "", "Target object key (required)")
	flags.StringP("pattern", "p", d.Upload.Pattern, "Glob matching the part files, in upload order")
	flags.StringP("log", "l", "", "Upload log path (required)")
	flags.IntP("tries", "t", d.Upload.MaxAttempts, "Attempts per step before giving up")
	flags.String("root", d.Upload.Root, "Directory the pattern is resolved against")
	flags.String("log-backend", d.Upload.LogBackend, "Upload log backend (file/sqlite)")
	flags.Bool("show-progress", d.Upload.ShowProgress, "Show progress display when stdout is a terminal")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address")

	flags.String("driver", d.Storage.Driver, "Storage driver (minio/s3)")
	flags.StringP("endpoint", "e", "", "Object store endpoint")
	flags.StringP("region", "r", "", "Object store region")
	flags.String("access-key", "", "Access key")
	flags.String("secret-key", "", "Secret key")
	flags.Bool("secure", d.Storage.Secure, "Use HTTPS")
	flags.Bool("path-style", false, "Use path-style bucket addressing")

	flags.String("log-level", d.LogLevel, "Log level (debug/info/warn/error)")
	flags.String("log-format", d.LogFormat, "Log format (console/json)")
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if flags != nil {
		if err := loadFromFlags(cfg, flags); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		"bucket":       &cfg.Upload.Bucket,
		"key":          &cfg.Upload.Key,
		"pattern":      &cfg.Upload.Pattern,
		"log":          &cfg.Upload.Log,
		"root":         &cfg.Upload.Root,
		"log-backend":  &cfg.Upload.LogBackend,
		"metrics-addr": &cfg.Upload.MetricsAddr,
		"driver":       &cfg.Storage.Driver,
		"endpoint":     &cfg.Storage.Endpoint,
		"region":       &cfg.Storage.Region,
		"access-key":   &cfg.Storage.AccessKey,
		"secret-key":   &cfg.Storage.SecretKey,
		"log-level":    &cfg.LogLevel,
		"log-format":   &cfg.LogFormat,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	boolFlags := map[string]*bool{
		"show-progress": &cfg.Upload.ShowProgress,
		"secure":        &cfg.Storage.Secure,
		"path-style":    &cfg.Storage.PathStyle,
	}
	for name, dst := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("tries") {
		v, err := flags.GetInt("tries")
		if err != nil {
			return err
		}
		cfg.Upload.MaxAttempts = v
	}

	return nil
}

// Validate checks required keys and enumerated values.
func (c *Config) Validate() error {
	if c.Upload.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Upload.Key == "" {
		return fmt.Errorf("key is required")
	}
	if c.Upload.Log == "" {
		return fmt.Errorf("log path is required")
	}
	if c.Upload.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if c.Upload.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Upload.MaxAttempts)
	}

	switch c.Upload.LogBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown log backend %q", c.Upload.LogBackend)
	}

	switch c.Storage.Driver {
	case DriverMinIO, DriverS3:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}
