package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}
	return path
}

func TestLoadMemoryBackendYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
trace_level: 1
backend:
  type: memory
  write_can_append: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend.Type != "memory" {
		t.Fatalf("Backend.Type = %q, want memory", cfg.Backend.Type)
	}
	if !cfg.Backend.Memory.WriteCanAppend {
		t.Fatalf("Backend.Memory.WriteCanAppend = false, want true")
	}
	if cfg.TraceLevel != 1 {
		t.Fatalf("TraceLevel = %d, want 1", cfg.TraceLevel)
	}
}

func TestLoadS3BackendJSON(t *testing.T) {
	path := writeTemp(t, "config.json", `
	{
		"backend": {
			"type": "s3",
			"options": {
				"bucket": "test-bucket",
				"region": "us-east-1",
				"endpoint": "minio:9000",
				"access_key_id": "minioadmin",
				"secret_access_key": "minioadmin",
				"allow_http": true
			}
		}
	}
	`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend.Type != "s3" {
		t.Fatalf("Backend.Type = %q, want s3", cfg.Backend.Type)
	}
	if cfg.Backend.S3.Bucket != "test-bucket" {
		t.Fatalf("Backend.S3.Bucket = %q, want test-bucket", cfg.Backend.S3.Bucket)
	}
	if !cfg.Backend.S3.AllowHTTP {
		t.Fatalf("Backend.S3.AllowHTTP = false, want true")
	}
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
backend:
  type: s3
  options:
    region: us-east-1
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("Load() succeeded, want error for missing backend.options.bucket")
	}
}

func TestLoadUnrecognizedBackendTypeFails(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
backend:
  type: azure
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("Load() succeeded, want error for unrecognized backend type")
	}
}

func TestLoadUnrecognizedExtensionFails(t *testing.T) {
	path := writeTemp(t, "config.ini", "backend: {type: memory}")

	if _, err := Load(path); err == nil {
		t.Fatalf("Load() succeeded, want error for unrecognized extension")
	}
}
