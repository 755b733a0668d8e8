package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Proximity ProximityConfig `yaml:"proximity"`
	Match     MatchConfig     `yaml:"match"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Backend   BackendConfig   `yaml:"backend"`
	Database  DatabaseConfig  `yaml:"database"`
	Location  LocationConfig  `yaml:"location"`
	Attempt   AttemptConfig   `yaml:"attempt"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Lang      string          `yaml:"lang"`
}

type ProximityConfig struct {
	RadiusMeters float64 `yaml:"radius_meters"`
}

type MatchConfig struct {
	Threshold float64 `yaml:"threshold"` // maximum descriptor distance accepted as a match
}

type EmbeddingConfig struct {
	URL    string `yaml:"url"`    // face embedding server, defaults to http://localhost:8000
	Dim    int    `yaml:"dim"`    // descriptor length, defaults to 128
	Metric string `yaml:"metric"` // euclidean or cosine
}

type BackendConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"` // employee bearer token
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type LocationConfig struct {
	HighAccuracy bool          `yaml:"high_accuracy"`
	MaxFixAge    time.Duration `yaml:"max_fix_age"`
	FixTimeout   time.Duration `yaml:"fix_timeout"`
}

type AttemptConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type SnapshotConfig struct {
	MaxSize int `yaml:"max_size"`
	Quality int `yaml:"quality"` // JPEG quality 1-100
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

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envDuration accepts Go durations ("10s") and, for compatibility with the
// browser geolocation options, bare milliseconds ("10000").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults, the optional
// YAML file named by CONFIG_FILE, and environment variables, in that order.
func Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.Proximity.RadiusMeters = envFloat("PROXIMITY_RADIUS_METERS", cfg.Proximity.RadiusMeters)
	cfg.Match.Threshold = envFloat("MATCH_THRESHOLD", cfg.Match.Threshold)
	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Dim = envInt("DESCRIPTOR_DIM", cfg.Embedding.Dim)
	cfg.Embedding.Metric = envString("FACE_METRIC", cfg.Embedding.Metric)
	cfg.Backend.URL = envString("BACKEND_URL", cfg.Backend.URL)
	cfg.Backend.Token = envString("BACKEND_TOKEN", cfg.Backend.Token)
	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Location.HighAccuracy = envBool("LOCATION_HIGH_ACCURACY", cfg.Location.HighAccuracy)
	cfg.Location.MaxFixAge = envDuration("LOCATION_MAX_FIX_AGE", cfg.Location.MaxFixAge)
	cfg.Location.FixTimeout = envDuration("LOCATION_FIX_TIMEOUT", cfg.Location.FixTimeout)
	cfg.Attempt.Timeout = envDuration("ATTEMPT_TIMEOUT", cfg.Attempt.Timeout)
	cfg.Snapshot.MaxSize = envInt("SNAPSHOT_MAX_SIZE", cfg.Snapshot.MaxSize)
	cfg.Snapshot.Quality = envInt("SNAPSHOT_QUALITY", cfg.Snapshot.Quality)
	cfg.Lang = envString("LANG", cfg.Lang)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Proximity.RadiusMeters <= 0 {
		errs = append(errs, fmt.Errorf("proximity.radius_meters must be positive, got %v", c.Proximity.RadiusMeters))
	}
	if c.Match.Threshold < 0.40 || c.Match.Threshold > 0.60 {
		errs = append(errs, fmt.Errorf("match.threshold must be within [0.40, 0.60], got %v", c.Match.Threshold))
	}
	if c.Embedding.Dim <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dim must be positive, got %d", c.Embedding.Dim))
	}
	if c.Embedding.Metric != "euclidean" && c.Embedding.Metric != "cosine" {
		errs = append(errs, fmt.Errorf("embedding.metric must be euclidean or cosine, got %q", c.Embedding.Metric))
	}
	if c.Snapshot.Quality < 1 || c.Snapshot.Quality > 100 {
		errs = append(errs, fmt.Errorf("snapshot.quality must be within [1, 100], got %d", c.Snapshot.Quality))
	}
	if c.Snapshot.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("snapshot.max_size must be positive, got %d", c.Snapshot.MaxSize))
	}
	if c.Location.MaxFixAge < 0 || c.Location.FixTimeout < 0 || c.Attempt.Timeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
