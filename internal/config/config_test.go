package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"CONFIG_FILE", "PROXIMITY_RADIUS_METERS", "MATCH_THRESHOLD", "DESCRIPTOR_DIM",
	"FACE_METRIC", "EMBEDDING_URL", "BACKEND_URL", "BACKEND_TOKEN", "DATABASE_URL",
	"DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS", "LOCATION_HIGH_ACCURACY",
	"LOCATION_MAX_FIX_AGE", "LOCATION_FIX_TIMEOUT", "ATTEMPT_TIMEOUT",
	"SNAPSHOT_MAX_SIZE", "SNAPSHOT_QUALITY", "LANG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Proximity.RadiusMeters != 200 {
		t.Errorf("expected radius 200, got %v", cfg.Proximity.RadiusMeters)
	}
	if cfg.Match.Threshold != 0.55 {
		t.Errorf("expected threshold 0.55, got %v", cfg.Match.Threshold)
	}
	if cfg.Embedding.Dim != 128 || cfg.Embedding.Metric != "euclidean" {
		t.Errorf("unexpected embedding config %+v", cfg.Embedding)
	}
	if !cfg.Location.HighAccuracy || cfg.Location.MaxFixAge != 10*time.Second || cfg.Location.FixTimeout != 5*time.Second {
		t.Errorf("unexpected location config %+v", cfg.Location)
	}
	if cfg.Attempt.Timeout != 0 {
		t.Errorf("expected attempt timeout disabled, got %v", cfg.Attempt.Timeout)
	}
	if cfg.Snapshot.Quality != 80 || cfg.Snapshot.MaxSize != 640 {
		t.Errorf("unexpected snapshot config %+v", cfg.Snapshot)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Lang != "en" {
		t.Errorf("expected lang en, got %q", cfg.Lang)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXIMITY_RADIUS_METERS", "150.5")
	t.Setenv("MATCH_THRESHOLD", "0.5")
	t.Setenv("DESCRIPTOR_DIM", "512")
	t.Setenv("FACE_METRIC", "cosine")
	t.Setenv("BACKEND_URL", "https://clock.example.com")
	t.Setenv("BACKEND_TOKEN", "secret")
	t.Setenv("LOCATION_HIGH_ACCURACY", "false")
	t.Setenv("LOCATION_MAX_FIX_AGE", "10000")
	t.Setenv("LOCATION_FIX_TIMEOUT", "2s")
	t.Setenv("ATTEMPT_TIMEOUT", "1m")
	t.Setenv("LANG", "pt_BR.UTF-8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Proximity.RadiusMeters != 150.5 || cfg.Match.Threshold != 0.5 {
		t.Errorf("unexpected thresholds %+v %+v", cfg.Proximity, cfg.Match)
	}
	if cfg.Embedding.Dim != 512 || cfg.Embedding.Metric != "cosine" {
		t.Errorf("unexpected embedding config %+v", cfg.Embedding)
	}
	if cfg.Backend.URL != "https://clock.example.com" || cfg.Backend.Token != "secret" {
		t.Errorf("unexpected backend config %+v", cfg.Backend)
	}
	if cfg.Location.HighAccuracy {
		t.Error("expected high accuracy disabled")
	}
	if cfg.Location.MaxFixAge != 10*time.Second {
		t.Errorf("expected milliseconds to parse, got %v", cfg.Location.MaxFixAge)
	}
	if cfg.Location.FixTimeout != 2*time.Second || cfg.Attempt.Timeout != time.Minute {
		t.Errorf("unexpected durations %v %v", cfg.Location.FixTimeout, cfg.Attempt.Timeout)
	}
	if cfg.Lang != "pt_BR.UTF-8" {
		t.Errorf("unexpected lang %q", cfg.Lang)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DESCRIPTOR_DIM", "abc"},
		{"DESCRIPTOR_DIM", "-5"},
		{"DESCRIPTOR_DIM", "0"},
		{"PROXIMITY_RADIUS_METERS", "far"},
		{"LOCATION_HIGH_ACCURACY", "maybe"},
		{"LOCATION_FIX_TIMEOUT", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Embedding.Dim != 128 || cfg.Proximity.RadiusMeters != 200 ||
				!cfg.Location.HighAccuracy || cfg.Location.FixTimeout != 5*time.Second {
				t.Errorf("expected defaults to survive invalid %s", tt.key)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "clock.yaml")
	content := "proximity:\n  radius_meters: 300\nsnapshot:\n  quality: 60\nlocation:\n  max_fix_age: 30s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SNAPSHOT_QUALITY", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Proximity.RadiusMeters != 300 {
		t.Errorf("expected file radius 300, got %v", cfg.Proximity.RadiusMeters)
	}
	if cfg.Snapshot.Quality != 90 {
		t.Errorf("expected env to override file quality, got %d", cfg.Snapshot.Quality)
	}
	if cfg.Location.MaxFixAge != 30*time.Second {
		t.Errorf("expected file max fix age, got %v", cfg.Location.MaxFixAge)
	}
	if cfg.Match.Threshold != 0.55 {
		t.Errorf("expected default threshold kept, got %v", cfg.Match.Threshold)
	}
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("proximity: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestLoad_ThresholdOutOfRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCH_THRESHOLD", "0.7")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "match.threshold") {
		t.Errorf("expected threshold validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Proximity: ProximityConfig{RadiusMeters: 200},
			Match:     MatchConfig{Threshold: 0.55},
			Embedding: EmbeddingConfig{Dim: 128, Metric: "euclidean"},
			Snapshot:  SnapshotConfig{MaxSize: 640, Quality: 80},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero radius", func(c *Config) { c.Proximity.RadiusMeters = 0 }, "radius_meters"},
		{"low threshold", func(c *Config) { c.Match.Threshold = 0.39 }, "match.threshold"},
		{"threshold upper bound", func(c *Config) { c.Match.Threshold = 0.60 }, ""},
		{"bad metric", func(c *Config) { c.Embedding.Metric = "manhattan" }, "embedding.metric"},
		{"quality", func(c *Config) { c.Snapshot.Quality = 101 }, "snapshot.quality"},
		{"negative timeout", func(c *Config) { c.Attempt.Timeout = -time.Second }, "durations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
