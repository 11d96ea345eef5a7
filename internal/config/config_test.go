package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIKey, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8090" {
		t.Fatalf("address = %q, want :8090", cfg.Server.Address)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Mode() != ModeLocal {
		t.Fatalf("mode = %q, want local", cfg.Mode())
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIKey, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "payclaw.json")
	content := `{
  "server": {"address": ":9000"},
  "policy": {"path": "policy.yaml"},
  "logging": {
    "level": "debug",
    "audit": {"enabled": true, "path": "logs/audit.log"}
  }
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	// 相对路径折算到配置文件所在目录。
	if cfg.Policy.Path != filepath.Join(dir, "policy.yaml") {
		t.Fatalf("policy path = %q", cfg.Policy.Path)
	}
	if cfg.Logging.Audit.Path != filepath.Join(dir, "logs/audit.log") {
		t.Fatalf("audit path = %q", cfg.Logging.Audit.Path)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payclaw.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payclaw.json")
	content := `{"remote": {"base_url": "https://file.example", "api_key": "file_key"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvAPIURL, "https://env.example")
	t.Setenv(EnvAPIKey, "env_key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.BaseURL != "https://env.example" {
		t.Fatalf("base url = %q, want env value", cfg.Remote.BaseURL)
	}
	if cfg.Remote.APIKey != "env_key" {
		t.Fatalf("api key = %q, want env value", cfg.Remote.APIKey)
	}
}

func TestModeSelection(t *testing.T) {
	cfg := &Config{}
	if cfg.Mode() != ModeLocal {
		t.Fatalf("empty remote config should select local mode")
	}

	cfg.Remote.BaseURL = "https://api.payclaw.io"
	if cfg.Mode() != ModeRemote {
		t.Fatalf("remote endpoint should select remote mode")
	}

	// 仅有凭证而无端点仍是本地模式。
	cfg = &Config{}
	cfg.Remote.APIKey = "pc_key"
	if cfg.Mode() != ModeLocal {
		t.Fatalf("api key alone should not select remote mode")
	}
}

func TestPureEnvDeployment(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://api.payclaw.io")
	t.Setenv(EnvAPIKey, "pc_key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode() != ModeRemote {
		t.Fatalf("mode = %q, want remote", cfg.Mode())
	}
	if cfg.Remote.BaseURL != "https://api.payclaw.io" {
		t.Fatalf("base url = %q", cfg.Remote.BaseURL)
	}
}
