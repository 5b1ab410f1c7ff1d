// Package config provides configuration loading and structs for the retrieval service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Artifact   ArtifactConfig   `yaml:"artifact"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Safety     SafetyConfig     `yaml:"safety"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Audit      AuditConfig      `yaml:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArtifactConfig holds the base directory and provenance store path for
// persisted index artifacts (C11).
type ArtifactConfig struct {
	// Dir is the base directory all artifact paths must resolve inside of.
	Dir string `yaml:"dir"`
	// ChunkStorePath, BM25Path, TFIDFPath, DensePath name the artifact
	// files relative to Dir. artifact.LoadAll does not read these fields;
	// it always loads the fixed names artifact.ChunkStoreFile, BM25File,
	// TFIDFFile and DenseFile.
	ChunkStorePath string `yaml:"chunk_store_path"`
	BM25Path       string `yaml:"bm25_path"`
	TFIDFPath      string `yaml:"tfidf_path"`
	DensePath      string `yaml:"dense_path"`
	// MaxFileSizeMB is the artifact size limit in megabytes. The loader
	// does not read it; it enforces the fixed artifact.MaxFileSizeMB (100).
	MaxFileSizeMB int64 `yaml:"max_file_size_mb"`
	// ProvenancePath is the SQLite database of load history. One row is
	// recorded per bundle load or build (schema version, chunk count,
	// degraded flag, first warning, load timestamp); the checksum column
	// is recorded as "n/a".
	ProvenancePath string `yaml:"provenance_path"`
}

// EmbeddingConfig holds the dense query encoder's settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	ModelName  string `yaml:"model_name"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SafetyConfig holds input, domain, and PII enforcement limits (C8).
type SafetyConfig struct {
	// MaxQueryLength is not read by safety.Sanitize, which truncates to the
	// fixed safety.MaxQueryLength (512).
	MaxQueryLength     int      `yaml:"max_query_length"`
	MaxResultsPerQuery int      `yaml:"max_results_per_query"`
	// AllowedHoursStart/End enforce an optional business-hours gate
	// (07-20 local Peru by default), disabled unless explicitly enabled.
	AllowedHoursEnabled bool     `yaml:"allowed_hours_enabled"`
	AllowedHoursStart   int      `yaml:"allowed_hours_start"`
	AllowedHoursEnd     int      `yaml:"allowed_hours_end"`
	AdminIdentifiers    []string `yaml:"admin_identifiers"`
}

// RateLimitConfig holds the sliding-window limiter's thresholds (C9).
// ratelimit.New does not read them; the limiter enforces its fixed
// RequestsPerMinute/RequestsPerHour/RequestsPerDay constants (30/500/2000).
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

// FusionConfig holds the default per-index weights used by C7.
type FusionConfig struct {
	WeightBM25  float64 `yaml:"weight_bm25"`
	WeightTFIDF float64 `yaml:"weight_tfidf"`
	WeightDense float64 `yaml:"weight_dense"`
}

// AuditConfig holds the append-only audit/security log file paths (C10).
type AuditConfig struct {
	AuditLogPath    string `yaml:"audit_log_path"`
	SecurityLogPath string `yaml:"security_log_path"`
	MaxSizeBytes    int64  `yaml:"max_size_bytes"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Artifact.Dir = expandPath(cfg.Artifact.Dir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Audit.AuditLogPath = expandPath(cfg.Audit.AuditLogPath, configDir)
	cfg.Audit.SecurityLogPath = expandPath(cfg.Audit.SecurityLogPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
