// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadReceiverConfig(t *testing.T) {
	path := writeTempConfig(t, `
port: 9847
logging:
  level: debug
  format: text
`)

	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		t.Fatalf("LoadReceiverConfig: %v", err)
	}
	if cfg.Port != 9847 {
		t.Errorf("Port: got %d, want 9847", cfg.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestLoadReceiverConfig_MissingFile(t *testing.T) {
	if _, err := LoadReceiverConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadUploaderConfig(t *testing.T) {
	path := writeTempConfig(t, `
host: backup.example.net
port: 9847
rate_limit: 1048576
logging:
  level: info
  format: json
`)

	cfg, err := LoadUploaderConfig(path)
	if err != nil {
		t.Fatalf("LoadUploaderConfig: %v", err)
	}
	if cfg.Host != "backup.example.net" {
		t.Errorf("Host: got %q", cfg.Host)
	}
	if cfg.Port != 9847 {
		t.Errorf("Port: got %d, want 9847", cfg.Port)
	}
	if cfg.RateLimit != 1<<20 {
		t.Errorf("RateLimit: got %d, want %d", cfg.RateLimit, 1<<20)
	}
}

func TestLoadUploaderConfig_RejectsNegativeRateLimit(t *testing.T) {
	path := writeTempConfig(t, `
host: 127.0.0.1
port: 9847
rate_limit: -1
`)

	if _, err := LoadUploaderConfig(path); err == nil {
		t.Fatal("expected an error for a negative rate_limit")
	}
}
