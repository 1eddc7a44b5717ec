package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataPath is the root directory holding session tubs (tub_<n>_<date>).
	DataPath string `json:"dataPath" yaml:"dataPath"`
	// IndexCacheDir holds the Pebble store used to cache tub indexes. Empty
	// means <DataPath>/.index.
	IndexCacheDir string `json:"indexCacheDir" yaml:"indexCacheDir"`

	Tub      TubConfig      `json:"tub" yaml:"tub"`
	Training TrainingConfig `json:"training" yaml:"training"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// TubConfig controls how records are written.
type TubConfig struct {
	// ImageFormat is the sidecar encoding for media fields: png or jpg.
	ImageFormat string `json:"imageFormat" yaml:"imageFormat"`
	JPEGQuality int    `json:"jpegQuality" yaml:"jpegQuality"`
}

// TrainingConfig captures batch generation defaults.
type TrainingConfig struct {
	BatchSize      int      `json:"batchSize" yaml:"batchSize"`
	TrainTestSplit float64  `json:"trainTestSplit" yaml:"trainTestSplit"`
	Seed           int64    `json:"seed" yaml:"seed"`
	InputKeys      []string `json:"inputKeys" yaml:"inputKeys"`
	OutputKeys     []string `json:"outputKeys" yaml:"outputKeys"`
}

// LogConfig mirrors pkg/log.Config.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataPath: DefaultDataDir(),
		Tub: TubConfig{
			ImageFormat: "png",
			JPEGQuality: 90,
		},
		Training: TrainingConfig{
			BatchSize:      128,
			TrainTestSplit: 0.8,
			InputKeys:      []string{"cam/image_array"},
			OutputKeys:     []string{"user/angle", "user/throttle"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(ExpandUser(path))
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports settings the datastore cannot work with.
func (c Config) Validate() error {
	switch c.Tub.ImageFormat {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("config: unsupported image format %q", c.Tub.ImageFormat)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive, got %d", c.Training.BatchSize)
	}
	if c.Training.TrainTestSplit <= 0 || c.Training.TrainTestSplit >= 1 {
		return fmt.Errorf("config: train/test split must be in (0,1), got %v", c.Training.TrainTestSplit)
	}
	return nil
}

// CacheDir resolves the index cache directory.
func (c Config) CacheDir() string {
	if c.IndexCacheDir != "" {
		return ExpandUser(c.IndexCacheDir)
	}
	return filepath.Join(ExpandUser(c.DataPath), ".index")
}
