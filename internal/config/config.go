package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Clustering  ClusteringConfig  `yaml:"clustering"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Cache       CacheConfig       `yaml:"cache"`
}

type ClusteringConfig struct {
	FlatThreshold         int `yaml:"flat_threshold"`          // max Hamming distance, flat variant
	DateWindowedThreshold int `yaml:"date_windowed_threshold"` // max Hamming distance, date-windowed variant
	DayWindow             int `yaml:"day_window"`              // days, date-windowed variant
	StrictThreshold       int `yaml:"strict_threshold"`        // clusters unconditionally, dual variant
	LooseThreshold        int `yaml:"loose_threshold"`         // clusters within the day window, dual variant
	DualDayWindow         int `yaml:"dual_day_window"`         // days, dual variant
}

type FingerprintConfig struct {
	BatchSize            int `yaml:"batch_size"`
	MaxConcurrentDecodes int `yaml:"max_concurrent_decodes"`
	MemoCapacity         int `yaml:"memo_capacity"`
}

type DedupConfig struct {
	HashWorkers         int `yaml:"hash_workers"`
	PerceptualThreshold int `yaml:"perceptual_threshold"`
}

type CacheConfig struct {
	PlayableCapacity int `yaml:"playable_capacity"`
	ImageCapacity    int `yaml:"image_capacity"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// Load builds the configuration from embedded defaults with environment
// variable overrides.
func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg.Clustering.FlatThreshold = envInt("CLEANER_FLAT_THRESHOLD", cfg.Clustering.FlatThreshold)
	cfg.Clustering.DateWindowedThreshold = envInt("CLEANER_DATE_WINDOWED_THRESHOLD", cfg.Clustering.DateWindowedThreshold)
	cfg.Clustering.DayWindow = envInt("CLEANER_DAY_WINDOW", cfg.Clustering.DayWindow)
	cfg.Clustering.StrictThreshold = envInt("CLEANER_STRICT_THRESHOLD", cfg.Clustering.StrictThreshold)
	cfg.Clustering.LooseThreshold = envInt("CLEANER_LOOSE_THRESHOLD", cfg.Clustering.LooseThreshold)
	cfg.Clustering.DualDayWindow = envInt("CLEANER_DUAL_DAY_WINDOW", cfg.Clustering.DualDayWindow)

	cfg.Fingerprint.BatchSize = envInt("CLEANER_FINGERPRINT_BATCH_SIZE", cfg.Fingerprint.BatchSize)
	cfg.Fingerprint.MaxConcurrentDecodes = envInt("CLEANER_MAX_CONCURRENT_DECODES", cfg.Fingerprint.MaxConcurrentDecodes)
	cfg.Fingerprint.MemoCapacity = envInt("CLEANER_FINGERPRINT_MEMO_CAPACITY", cfg.Fingerprint.MemoCapacity)

	cfg.Dedup.HashWorkers = envInt("CLEANER_HASH_WORKERS", cfg.Dedup.HashWorkers)
	cfg.Dedup.PerceptualThreshold = envInt("CLEANER_PERCEPTUAL_THRESHOLD", cfg.Dedup.PerceptualThreshold)

	cfg.Cache.PlayableCapacity = envInt("CLEANER_PLAYABLE_CACHE_CAPACITY", cfg.Cache.PlayableCapacity)
	cfg.Cache.ImageCapacity = envInt("CLEANER_IMAGE_CACHE_CAPACITY", cfg.Cache.ImageCapacity)

	return &cfg
}
