// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate, got: %v", err)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("missing config file must not error, got: %v", err)
	}
	if cfg.Gemini.DefaultModel != "fast" {
		t.Errorf("DefaultModel = %q, want %q", cfg.Gemini.DefaultModel, "fast")
	}
	if cfg.Chat.DefaultPersona != "standard" {
		t.Errorf("DefaultPersona = %q, want %q", cfg.Chat.DefaultPersona, "standard")
	}
}

func TestLoadFromPath_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = "1.0.0"

[gemini]
api_key = "test-key"
default_model = "pro"

[chat]
default_persona = "coder"
web_search = true

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("APIKey = %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.DefaultModel != "pro" {
		t.Errorf("DefaultModel = %q", cfg.Gemini.DefaultModel)
	}
	if cfg.Chat.DefaultPersona != "coder" {
		t.Errorf("DefaultPersona = %q", cfg.Chat.DefaultPersona)
	}
	if !cfg.Chat.WebSearch {
		t.Error("WebSearch should be true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	// Unset fields keep their defaults.
	if cfg.Gemini.MinRequestGapMs != 100 {
		t.Errorf("MinRequestGapMs = %d, want default 100", cfg.Gemini.MinRequestGapMs)
	}
}

func TestLoadFromPath_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[gemini]
default_model = "turbo"

[chat]
default_persona = "pirate"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "gemini.default_model") {
		t.Errorf("error should name the bad model field: %v", err)
	}
	if !strings.Contains(err.Error(), "chat.default_persona") {
		t.Errorf("error should name the bad persona field: %v", err)
	}
}

func TestLoadFromPath_FixesInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`version = "1.0.0"`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NOVA_API_KEY", "env-key")
	t.Setenv("NOVA_MODEL", "pro")
	t.Setenv("NOVA_PERSONA", "writer")
	t.Setenv("NOVA_LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.DefaultModel != "pro" {
		t.Errorf("DefaultModel = %q", cfg.Gemini.DefaultModel)
	}
	if cfg.Chat.DefaultPersona != "writer" {
		t.Errorf("DefaultPersona = %q", cfg.Chat.DefaultPersona)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_GeminiKeyFallback(t *testing.T) {
	t.Setenv("NOVA_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Gemini.APIKey != "fallback-key" {
		t.Errorf("APIKey = %q, want GEMINI_API_KEY fallback", cfg.Gemini.APIKey)
	}

	// NOVA_API_KEY wins when both are set.
	t.Setenv("NOVA_API_KEY", "primary-key")
	cfg = Default()
	cfg.ApplyEnvOverrides()
	if cfg.Gemini.APIKey != "primary-key" {
		t.Errorf("APIKey = %q, want NOVA_API_KEY to take precedence", cfg.Gemini.APIKey)
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Gemini.APIKey = "saved-key"
	cfg.Chat.DefaultPersona = "gen_z"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath after save: %v", err)
	}
	if loaded.Gemini.APIKey != "saved-key" {
		t.Errorf("APIKey = %q", loaded.Gemini.APIKey)
	}
	if loaded.Chat.DefaultPersona != "gen_z" {
		t.Errorf("DefaultPersona = %q", loaded.Chat.DefaultPersona)
	}
}

func TestDataDir_DefaultsUnderConfigDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "custom")

	dir, err := cfg.DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if dir != cfg.Storage.DataDir {
		t.Errorf("dir = %q, want explicit override %q", dir, cfg.Storage.DataDir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data dir was not created: %v", err)
	}
}
