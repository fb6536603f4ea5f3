package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hbctl/hbctl/internal/apperrors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hbctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("HBCTL_TEST_SUPERVISOR_PASSWORD", "s3cret")
	path := writeConfig(t, `version: 1
config_root: /etc/hbctl/clusters
remote_user: ops
supervisor:
  username: admin
  password: "${ENV:HBCTL_TEST_SUPERVISOR_PASSWORD}"
packages:
  s3_bucket: artifacts
  prefix: hbctl
polling:
  interval: 5s
`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ConfigRoot != "/etc/hbctl/clusters" {
		t.Errorf("config root = %s", cfg.ConfigRoot)
	}
	if cfg.Supervisor.Password != "s3cret" {
		t.Errorf("supervisor password not resolved: %q", cfg.Supervisor.Password)
	}
	if cfg.Supervisor.Port != 9001 {
		t.Errorf("expected default supervisor port 9001, got %d", cfg.Supervisor.Port)
	}
	if cfg.Polling.Interval != 5*time.Second {
		t.Errorf("interval = %v", cfg.Polling.Interval)
	}
	if cfg.Polling.RestartAttempts != 60 {
		t.Errorf("expected default restart attempts 60, got %d", cfg.Polling.RestartAttempts)
	}
	if cfg.Journal.Database != "hbctl" {
		t.Errorf("expected default journal database hbctl, got %s", cfg.Journal.Database)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Krb5Path() != "/etc/hbctl/clusters/krb5-hadoop.conf" {
		t.Errorf("krb5 path = %s", cfg.Krb5Path())
	}
}

func TestLoadInvalidVersion(t *testing.T) {
	path := writeConfig(t, "version: 99\n")

	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestLoadRejectsNegativePolling(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"restart attempts", "version: 1\npolling:\n  restart_attempts: -1\n", "polling.restart_attempts"},
		{"interval", "version: 1\npolling:\n  interval: -2s\n", "polling.interval"},
		{"supervisor port", "version: 1\nsupervisor:\n  port: 70000\n", "supervisor.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, tt.yaml))
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) || appErr.Field != tt.field {
				t.Errorf("error should name %s: %v", tt.field, err)
			}
		})
	}
}

func TestLoadUnresolvableSecret(t *testing.T) {
	path := writeConfig(t, `version: 1
inventory:
  dsn: "${ENV:HBCTL_TEST_UNSET_DSN}"
`)

	_, err := Load(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "inventory dsn") {
		t.Fatalf("expected inventory dsn error, got %v", err)
	}
}

func TestDefaultExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := Default()
	if cfg.ConfigRoot != filepath.Join(home, ".hbctl/clusters") {
		t.Errorf("config root = %s", cfg.ConfigRoot)
	}
	if strings.HasPrefix(cfg.Logging.Directory, "~") {
		t.Errorf("log directory not expanded: %s", cfg.Logging.Directory)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hbctl.yaml")
	cfg := Default()
	cfg.Packages.S3Bucket = "artifacts"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Packages.S3Bucket != "artifacts" {
		t.Errorf("bucket = %s", loaded.Packages.S3Bucket)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config should be private, mode %v", info.Mode().Perm())
	}
}

func TestResolveEnvSecret(t *testing.T) {
	t.Setenv("TEST_SECRET", "mysecret")
	val, err := ResolveValue(context.Background(), "${ENV:TEST_SECRET}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "mysecret" {
		t.Errorf("expected mysecret, got %s", val)
	}
}

func TestResolvePlainValue(t *testing.T) {
	val, err := ResolveValue(context.Background(), "plaintext")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "plaintext" {
		t.Errorf("expected plaintext, got %s", val)
	}
}
