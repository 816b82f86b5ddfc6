package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	AWSRegion string `mapstructure:"aws_region"`

	StateStoreType  string `mapstructure:"state_store_type"`
	BBoltPath       string `mapstructure:"bbolt_path"`
	CheckpointTable string `mapstructure:"checkpoint_table"`

	ObjectStoreType string `mapstructure:"object_store_type"`
	ObjectStorePath string `mapstructure:"object_store_path"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	S3Prefix        string `mapstructure:"s3_prefix"`

	FetchLimit     int    `mapstructure:"fetch_limit"`
	TargetLanguage string `mapstructure:"target_language"`
	WorkerCount    int    `mapstructure:"worker_count"`
	MediaMaxBytes  int64  `mapstructure:"media_max_bytes"`

	MaxRetryAttempts   int           `mapstructure:"max_retry_attempts"`
	RetryBaseDelayMs   int64         `mapstructure:"retry_base_delay_ms"`
	RetryBaseDelay     time.Duration `mapstructure:"-"`
	CallTimeoutSeconds int64         `mapstructure:"call_timeout_seconds"`
	CallTimeout        time.Duration `mapstructure:"-"`
	RunDeadlineSeconds int64         `mapstructure:"run_deadline_seconds"`
	RunDeadline        time.Duration `mapstructure:"-"`
	RunIntervalSeconds int64         `mapstructure:"run_interval_seconds"`
	RunInterval        time.Duration `mapstructure:"-"`
	RunOnce            bool          `mapstructure:"run_once"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "aws-image-translate")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("state_store_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/checkpoints.db")
	v.SetDefault("checkpoint_table", "")
	v.SetDefault("object_store_type", "fs")
	v.SetDefault("object_store_path", "./data/objects")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "media")
	v.SetDefault("fetch_limit", 25)
	v.SetDefault("target_language", "en")
	v.SetDefault("worker_count", 4)
	v.SetDefault("media_max_bytes", int64(10<<20))
	v.SetDefault("max_retry_attempts", 3)
	v.SetDefault("retry_base_delay_ms", int64(250))
	v.SetDefault("call_timeout_seconds", int64(15))
	v.SetDefault("run_deadline_seconds", int64(600))
	v.SetDefault("run_interval_seconds", int64(900))
	v.SetDefault("run_once", false)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.RetryBaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
	cfg.CallTimeout = time.Duration(cfg.CallTimeoutSeconds) * time.Second
	cfg.RunDeadline = time.Duration(cfg.RunDeadlineSeconds) * time.Second
	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second

	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.TargetLanguage) == "" {
		return fmt.Errorf("invalid target_language (must not be empty)")
	}
	if c.FetchLimit <= 0 {
		return fmt.Errorf("invalid fetch_limit (must be positive)")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("invalid worker_count (must be positive)")
	}
	if c.MediaMaxBytes <= 0 {
		return fmt.Errorf("invalid media_max_bytes (must be positive)")
	}
	if c.MaxRetryAttempts <= 0 {
		return fmt.Errorf("invalid max_retry_attempts (must be positive)")
	}
	if c.RetryBaseDelayMs <= 0 {
		return fmt.Errorf("invalid retry_base_delay_ms (must be positive)")
	}
	if c.CallTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid call_timeout_seconds (must be positive)")
	}
	if c.RunDeadlineSeconds <= 0 {
		return fmt.Errorf("invalid run_deadline_seconds (must be positive)")
	}
	if c.RunIntervalSeconds <= 0 {
		return fmt.Errorf("invalid run_interval_seconds (must be positive)")
	}
	return nil
}
