package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresSlideDir(t *testing.T) {
	if _, err := Load([]string{}); err == nil {
		t.Fatal("expected error when slide_dir is omitted")
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"-dir", dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || !cfg.HTTPS {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadHTTPOnlyFlag(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"-dir", dir, "--http-only"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPS {
		t.Fatal("expected HTTPS to be disabled by --http-only")
	}
}

func TestLoadRejectsMismatchedCertKey(t *testing.T) {
	dir := t.TempDir()
	_, err := Load([]string{"-dir", dir, "-cert", "/tmp/a.pem"})
	if err == nil {
		t.Fatal("expected error when only cert is set")
	}
}

func TestLoadYAMLFileLayering(t *testing.T) {
	slideDir := t.TempDir()
	yamlPath := filepath.Join(t.TempDir(), "irisd.yaml")
	content := "port: 9443\ncors: https://viewer.example\n"
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"-dir", slideDir, "-config", yamlPath})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9443 {
		t.Fatalf("expected port from YAML file, got %d", cfg.Port)
	}
	if cfg.CORS != "https://viewer.example" {
		t.Fatalf("expected cors from YAML file, got %q", cfg.CORS)
	}
}

func TestLoadFlagOverridesYAML(t *testing.T) {
	slideDir := t.TempDir()
	yamlPath := filepath.Join(t.TempDir(), "irisd.yaml")
	if err := os.WriteFile(yamlPath, []byte("port: 9443\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"-dir", slideDir, "-config", yamlPath, "-port", "1234"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected flag to override YAML, got %d", cfg.Port)
	}
}
