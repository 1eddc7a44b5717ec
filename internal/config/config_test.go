package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Training.BatchSize != 128 {
		t.Fatalf("batch size default")
	}
	if cfg.Training.TrainTestSplit != 0.8 {
		t.Fatalf("train/test split default")
	}
	if cfg.Tub.ImageFormat != "png" {
		t.Fatalf("image format default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pmlcar.json")
	data := []byte(`{"dataPath":"/srv/tubs","training":{"batchSize":32,"trainTestSplit":0.9},"tub":{"imageFormat":"jpg"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataPath != "/srv/tubs" {
		t.Fatalf("expected /srv/tubs, got %s", cfg.DataPath)
	}
	if cfg.Training.BatchSize != 32 || cfg.Training.TrainTestSplit != 0.9 {
		t.Fatalf("training overrides not applied: %+v", cfg.Training)
	}
	if cfg.Tub.JPEGQuality != 90 {
		t.Fatalf("unset fields should keep defaults")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pmlcar.yaml")
	data := []byte("dataPath: /srv/yaml\ntraining:\n  batchSize: 64\n  outputKeys: [user/angle]\nlog:\n  format: json\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataPath != "/srv/yaml" || cfg.Training.BatchSize != 64 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if len(cfg.Training.OutputKeys) != 1 || cfg.Training.OutputKeys[0] != "user/angle" {
		t.Fatalf("output keys: %v", cfg.Training.OutputKeys)
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("log format: %s", cfg.Log.Format)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("PMLCAR_DATA_PATH", "/env/tubs")
	t.Setenv("PMLCAR_BATCH_SIZE", "16")
	t.Setenv("PMLCAR_TRAIN_TEST_SPLIT", "0.75")
	t.Setenv("PMLCAR_OUTPUT_KEYS", "user/angle, user/throttle ,")
	t.Setenv("PMLCAR_IMAGE_FORMAT", "JPG")
	FromEnv(&cfg)
	if cfg.DataPath != "/env/tubs" {
		t.Fatalf("env override data path")
	}
	if cfg.Training.BatchSize != 16 || cfg.Training.TrainTestSplit != 0.75 {
		t.Fatalf("env override training: %+v", cfg.Training)
	}
	if len(cfg.Training.OutputKeys) != 2 || cfg.Training.OutputKeys[1] != "user/throttle" {
		t.Fatalf("env override keys: %v", cfg.Training.OutputKeys)
	}
	if cfg.Tub.ImageFormat != "jpg" {
		t.Fatalf("image format should be lowercased, got %s", cfg.Tub.ImageFormat)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Tub.ImageFormat = "bmp" }},
		{"zero batch", func(c *Config) { c.Training.BatchSize = 0 }},
		{"split of one", func(c *Config) { c.Training.TrainTestSplit = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestCacheDir(t *testing.T) {
	cfg := Default()
	cfg.DataPath = "/srv/tubs"
	if got := cfg.CacheDir(); got != "/srv/tubs/.index" {
		t.Fatalf("cache dir: %s", got)
	}
	cfg.IndexCacheDir = "/var/cache/pmlcar"
	if got := cfg.CacheDir(); got != "/var/cache/pmlcar" {
		t.Fatalf("explicit cache dir: %s", got)
	}
}
