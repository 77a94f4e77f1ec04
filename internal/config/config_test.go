package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address %q", cfg.Server.Address)
	}
	if cfg.Cluster.EventWindow != 30*time.Minute {
		t.Fatalf("unexpected default event window %v", cfg.Cluster.EventWindow)
	}
	if cfg.Diagnosis.ConfidenceThreshold != 0.7 {
		t.Fatalf("unexpected default confidence threshold %f", cfg.Diagnosis.ConfidenceThreshold)
	}
	if cfg.Diagnosis.MaxProposals != 5 {
		t.Fatalf("unexpected default max proposals %d", cfg.Diagnosis.MaxProposals)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  address: ":9090"
cluster:
  namespace: payments
diagnosis:
  maxProposals: 3
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("KUBE_TRIAGE_NAMESPACE", "checkout")
	t.Setenv("KUBE_TRIAGE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("file override not applied, got %q", cfg.Server.Address)
	}
	if cfg.Diagnosis.MaxProposals != 3 {
		t.Fatalf("file override not applied, got %d", cfg.Diagnosis.MaxProposals)
	}
	if cfg.Cluster.Namespace != "checkout" {
		t.Fatalf("env override should win, got %q", cfg.Cluster.Namespace)
	}
	if !cfg.Logging.JSON {
		t.Fatal("expected JSON logging from env override")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
