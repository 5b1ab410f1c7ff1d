package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
artifact:
  dir: "test-artifacts"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Artifact.Dir == "" {
		t.Error("artifact dir should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Safety.MaxQueryLength != 512 {
		t.Errorf("default max query length: got %d, want 512", cfg.Safety.MaxQueryLength)
	}
	if cfg.Safety.MaxResultsPerQuery != 100 {
		t.Errorf("default max results per query: got %d, want 100", cfg.Safety.MaxResultsPerQuery)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 || cfg.RateLimit.RequestsPerHour != 500 || cfg.RateLimit.RequestsPerDay != 2000 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Fusion.WeightBM25 != 0.4 || cfg.Fusion.WeightTFIDF != 0.3 || cfg.Fusion.WeightDense != 0.3 {
		t.Errorf("unexpected fusion weight defaults: %+v", cfg.Fusion)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default embedding dimensions: got %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Artifact.MaxFileSizeMB != 100 {
		t.Errorf("default artifact max file size: got %d, want 100", cfg.Artifact.MaxFileSizeMB)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:   ServerConfig{Host: "localhost", Port: 9090},
		Artifact: ArtifactConfig{Dir: "/tmp/artifacts"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
