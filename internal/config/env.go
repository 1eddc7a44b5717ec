package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays PMLCAR_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("PMLCAR_DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("PMLCAR_INDEX_CACHE_DIR"); v != "" {
		cfg.IndexCacheDir = v
	}
	if v := os.Getenv("PMLCAR_IMAGE_FORMAT"); v != "" {
		cfg.Tub.ImageFormat = strings.ToLower(v)
	}
	if v := os.Getenv("PMLCAR_JPEG_QUALITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tub.JPEGQuality = n
		}
	}
	if v := os.Getenv("PMLCAR_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Training.BatchSize = n
		}
	}
	if v := os.Getenv("PMLCAR_TRAIN_TEST_SPLIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Training.TrainTestSplit = f
		}
	}
	if v := os.Getenv("PMLCAR_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Training.Seed = n
		}
	}
	if v := os.Getenv("PMLCAR_INPUT_KEYS"); v != "" {
		cfg.Training.InputKeys = splitList(v)
	}
	if v := os.Getenv("PMLCAR_OUTPUT_KEYS"); v != "" {
		cfg.Training.OutputKeys = splitList(v)
	}
	if v := os.Getenv("PMLCAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PMLCAR_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
