package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRIAL_AUDIT_"

// Config drives sync mode: which bucket exports land in, where
// snapshots go, and which apps we expect to recognize.
type Config struct {
	GCSBucket string      `koanf:"gcs_bucket"`
	DataDir   string      `koanf:"data_dir"`
	Apps      []AppConfig `koanf:"apps"`
}

// loadConfig reads the JSON config file and applies TRIAL_AUDIT_*
// environment overrides (TRIAL_AUDIT_GCS_BUCKET, TRIAL_AUDIT_DATA_DIR).
// A .env file in the working directory is honored when present.
func loadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfjson.Parser()); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return cfg, nil
}
