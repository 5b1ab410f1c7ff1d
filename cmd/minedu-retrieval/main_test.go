package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_readsExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != path {
		t.Errorf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_fallsBackToCwdConfigWhenDefaultMissing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(cwd)

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 7070\n"), 0o644); err != nil {
		t.Fatalf("write fallback config: %v", err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected fallback config to be loaded with port 7070, got %d", cfg.Server.Port)
	}
	if resolved == defaultConfigPath {
		t.Error("expected resolved path to be the fallback, not the missing default")
	}
}

func TestLoadConfig_errorsWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()
	_, _, err := loadConfig(filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error when the config file does not exist")
	}
}
