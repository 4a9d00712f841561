// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lawsonmorris/nova-cli/internal/model"
	"github.com/lawsonmorris/nova-cli/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nova configuration.
type Config struct {
	Version string `toml:"version"`

	// Gemini API configuration
	Gemini GeminiConfig `toml:"gemini"`

	// Chat behaviour configuration
	Chat ChatConfig `toml:"chat"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// GeminiConfig contains remote model configuration.
type GeminiConfig struct {
	// APIKey is the Gemini API key. Prefer setting NOVA_API_KEY or
	// GEMINI_API_KEY over storing it in the file.
	APIKey string `toml:"api_key"`
	// DefaultModel selects the model tier for new sessions: "fast" or "pro".
	DefaultModel string `toml:"default_model"`
	// MinRequestGapMs is the minimum spacing between API requests in
	// milliseconds. 0 uses the built-in default.
	MinRequestGapMs int `toml:"min_request_gap_ms"`
	// ThinkingBudget caps reasoning tokens for the pro model. 0 uses the
	// built-in default.
	ThinkingBudget int `toml:"thinking_budget"`
}

// ChatConfig contains conversation behaviour configuration.
type ChatConfig struct {
	// DefaultPersona selects the persona for new sessions:
	// "standard", "gen_z", "writer" or "coder".
	DefaultPersona string `toml:"default_persona"`
	// WebSearch enables search grounding for new turns by default.
	WebSearch bool `toml:"web_search"`
}

// StorageConfig contains local storage configuration.
type StorageConfig struct {
	// DataDir is the directory holding the key-value store and logs
	// (empty = default ~/.nova/data).
	DataDir string `toml:"data_dir"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	Level string `toml:"level"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Gemini: GeminiConfig{
			APIKey:          "",
			DefaultModel:    "fast",
			MinRequestGapMs: 100,
			ThinkingBudget:  1024,
		},

		Chat: ChatConfig{
			DefaultPersona: "standard",
			WebSearch:      false,
		},

		Storage: StorageConfig{
			DataDir: "",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the nova configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nova"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DataDir resolves the effective data directory, creating it if needed.
func (c *Config) DataDir() (string, error) {
	dir := c.Storage.DataDir
	if dir == "" {
		base, err := ConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "data")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("could not create data directory: %w", err)
	}
	return dir, nil
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: The file may hold the API key, so it should be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.nova/config.toml, falling back to
// defaults when the file is absent. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; the defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Writes the file with 0600 permissions to protect the API key.
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# nova configuration file")
	fmt.Fprintln(&buf, "# Generated by nova - edit with care")
	fmt.Fprintln(&buf, "")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Gemini.DefaultModel {
	case "fast", "pro", model.ModelFast.String(), model.ModelPro.String():
	default:
		errs = append(errs, ValidationError{
			Field:   "gemini.default_model",
			Message: fmt.Sprintf("unknown model %q (valid: fast, pro)", c.Gemini.DefaultModel),
		})
	}

	if c.Gemini.MinRequestGapMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "gemini.min_request_gap_ms",
			Message: "must not be negative",
		})
	}

	if c.Gemini.ThinkingBudget < 0 {
		errs = append(errs, ValidationError{
			Field:   "gemini.thinking_budget",
			Message: "must not be negative",
		})
	}

	if !model.Persona(c.Chat.DefaultPersona).Valid() {
		errs = append(errs, ValidationError{
			Field:   "chat.default_persona",
			Message: fmt.Sprintf("unknown persona %q (valid: standard, gen_z, writer, coder)", c.Chat.DefaultPersona),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (valid: debug, info, warn, error)", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - NOVA_API_KEY: overrides gemini.api_key
//   - GEMINI_API_KEY: fallback for NOVA_API_KEY
//   - NOVA_MODEL: overrides gemini.default_model
//   - NOVA_PERSONA: overrides chat.default_persona
//   - NOVA_DATA_DIR: overrides storage.data_dir
//   - NOVA_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("NOVA_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}

	if m := os.Getenv("NOVA_MODEL"); m != "" {
		c.Gemini.DefaultModel = m
	}

	if p := os.Getenv("NOVA_PERSONA"); p != "" {
		c.Chat.DefaultPersona = p
	}

	if dir := os.Getenv("NOVA_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}

	if level := os.Getenv("NOVA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
