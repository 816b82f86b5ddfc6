package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AppName != "aws-image-translate" {
		t.Errorf("app_name = %q", cfg.AppName)
	}
	if cfg.TargetLanguage != "en" {
		t.Errorf("target_language = %q", cfg.TargetLanguage)
	}
	if cfg.StateStoreType != "bbolt" || cfg.ObjectStoreType != "fs" {
		t.Errorf("store types = %q/%q", cfg.StateStoreType, cfg.ObjectStoreType)
	}
	if cfg.MaxRetryAttempts != 3 {
		t.Errorf("max_retry_attempts = %d", cfg.MaxRetryAttempts)
	}
	if cfg.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("retry base delay = %v", cfg.RetryBaseDelay)
	}
	if cfg.CallTimeout != 15*time.Second {
		t.Errorf("call timeout = %v", cfg.CallTimeout)
	}
	if cfg.RunInterval != 900*time.Second {
		t.Errorf("run interval = %v", cfg.RunInterval)
	}
	if cfg.RunOnce {
		t.Errorf("run_once should default to false")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TARGET_LANGUAGE", "de")
	t.Setenv("FETCH_LIMIT", "50")
	t.Setenv("OBJECT_STORE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "my-media-bucket")
	t.Setenv("RUN_INTERVAL_SECONDS", "60")
	t.Setenv("RUN_ONCE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetLanguage != "de" {
		t.Errorf("target_language = %q", cfg.TargetLanguage)
	}
	if cfg.FetchLimit != 50 {
		t.Errorf("fetch_limit = %d", cfg.FetchLimit)
	}
	if cfg.ObjectStoreType != "s3" || cfg.S3Bucket != "my-media-bucket" {
		t.Errorf("object store = %q bucket %q", cfg.ObjectStoreType, cfg.S3Bucket)
	}
	if cfg.RunInterval != time.Minute {
		t.Errorf("run interval = %v", cfg.RunInterval)
	}
	if !cfg.RunOnce {
		t.Errorf("run_once override lost")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"TARGET_LANGUAGE":      "  ",
		"FETCH_LIMIT":          "0",
		"WORKER_COUNT":         "-1",
		"MAX_RETRY_ATTEMPTS":   "0",
		"RETRY_BASE_DELAY_MS":  "-5",
		"CALL_TIMEOUT_SECONDS": "0",
		"RUN_DEADLINE_SECONDS": "0",
		"RUN_INTERVAL_SECONDS": "0",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}
