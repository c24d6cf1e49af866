// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Provider names accepted in the provider key.
const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderEcho       = "echo"
)

// Config represents the complete parley configuration.
type Config struct {
	// DefaultModel is selected in the store on start
	DefaultModel string `toml:"default_model" json:"default_model"`

	// Provider is the transport: "ollama", "openrouter" or "echo"
	Provider string `toml:"provider" json:"provider"`

	Local LocalConfig `toml:"local" json:"local"`
	Cloud CloudConfig `toml:"cloud" json:"cloud"`
	Chat  ChatConfig  `toml:"chat" json:"chat"`
	UI    UIConfig    `toml:"ui" json:"ui"`
	Log   LogConfig   `toml:"log" json:"log"`

	// Models is the selectable catalog. Empty means the built-in list.
	Models []model.ModelInfo `toml:"models" json:"models,omitempty"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// Think asks thinking-capable models to return their reasoning
	Think bool `toml:"think" json:"think"`
}

// CloudConfig contains OpenRouter configuration.
type CloudConfig struct {
	BaseURL         string `toml:"base_url" json:"base_url"`
	APIKey          string `toml:"api_key" json:"api_key"`
	ReasoningEffort string `toml:"reasoning_effort" json:"reasoning_effort"`
}

// ChatConfig controls the send path.
type ChatConfig struct {
	// HistoryLimit is how many prior messages are sent as context
	HistoryLimit int `toml:"history_limit" json:"history_limit"`
	// TitleMaxRunes bounds automatic session titles
	TitleMaxRunes int `toml:"title_max_runes" json:"title_max_runes"`
	// DegradedTokenDelayMs paces replies when Stream is false
	DegradedTokenDelayMs int `toml:"degraded_token_delay_ms" json:"degraded_token_delay_ms"`
	// Stream uses the transport's native streaming when true
	Stream bool `toml:"stream" json:"stream"`
}

// UIConfig contains terminal rendering options.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme        string `toml:"theme" json:"theme"`
	ShowThinking bool   `toml:"show_thinking" json:"show_thinking"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DefaultModel: model.DefaultModelID,
		Provider:     ProviderEcho,
		Local: LocalConfig{
			OllamaURL: "http://127.0.0.1:11434",
			Think:     true,
		},
		Cloud: CloudConfig{
			BaseURL: "https://openrouter.ai/api/v1",
		},
		Chat: ChatConfig{
			HistoryLimit:         20,
			TitleMaxRunes:        model.DefaultTitleRunes,
			DegradedTokenDelayMs: 15,
			Stream:               true,
		},
		UI: UIConfig{
			Theme:        "auto",
			ShowThinking: true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// TokenDelay returns the degraded-stream token delay as a duration.
func (c *Config) TokenDelay() time.Duration {
	return time.Duration(c.Chat.DegradedTokenDelayMs) * time.Millisecond
}

// Catalog returns the configured models, or the built-in catalog.
func (c *Config) Catalog() model.Catalog {
	if len(c.Models) == 0 {
		return model.Catalog(model.DefaultCatalog)
	}
	return model.Catalog(c.Models)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file. A missing file yields the defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file. Keys absent
// from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	// The model list replaces rather than merges.
	cfg.Models = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero-valued fields that must never be empty.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.Provider == "" {
		c.Provider = defaults.Provider
	}
	c.Provider = strings.ToLower(c.Provider)

	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = defaults.Local.OllamaURL
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = defaults.Cloud.BaseURL
	}

	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = defaults.Chat.HistoryLimit
	}
	if c.Chat.TitleMaxRunes == 0 {
		c.Chat.TitleMaxRunes = defaults.Chat.TitleMaxRunes
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration as TOML. The file is replaced atomically
// with 0600 permissions since it may hold an API key.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# parley configuration file")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
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
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validProviders = map[string]bool{ProviderOllama: true, ProviderOpenRouter: true, ProviderEcho: true}
	validThemes    = map[string]bool{"auto": true, "dark": true, "light": true}
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validEfforts   = map[string]bool{"": true, "low": true, "medium": true, "high": true}
)

// Validate checks every field and returns all problems at once as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if !validProviders[strings.ToLower(c.Provider)] {
		errs = append(errs, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: ollama, openrouter, echo", c.Provider),
		})
	}

	for field, raw := range map[string]string{"local.ollama_url": c.Local.OllamaURL, "cloud.base_url": c.Cloud.BaseURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", raw),
			})
		}
	}

	if !validEfforts[strings.ToLower(c.Cloud.ReasoningEffort)] {
		errs = append(errs, ValidationError{
			Field:   "cloud.reasoning_effort",
			Message: fmt.Sprintf("invalid effort '%s', must be one of: low, medium, high", c.Cloud.ReasoningEffort),
		})
	}

	if c.Chat.HistoryLimit < 0 || c.Chat.HistoryLimit > 1000 {
		errs = append(errs, ValidationError{
			Field:   "chat.history_limit",
			Message: fmt.Sprintf("must be between 0 and 1000, got %d", c.Chat.HistoryLimit),
		})
	}
	if c.Chat.TitleMaxRunes < 1 || c.Chat.TitleMaxRunes > 500 {
		errs = append(errs, ValidationError{
			Field:   "chat.title_max_runes",
			Message: fmt.Sprintf("must be between 1 and 500, got %d", c.Chat.TitleMaxRunes),
		})
	}
	if c.Chat.DegradedTokenDelayMs < 0 || c.Chat.DegradedTokenDelayMs > 5000 {
		errs = append(errs, ValidationError{
			Field:   "chat.degraded_token_delay_ms",
			Message: fmt.Sprintf("must be between 0 and 5000, got %d", c.Chat.DegradedTokenDelayMs),
		})
	}

	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d].id", i)
		switch {
		case strings.TrimSpace(m.ID) == "":
			errs = append(errs, ValidationError{Field: field, Message: "must not be empty"})
		case seen[m.ID]:
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate id '%s'", m.ID)})
		}
		seen[m.ID] = true
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
//   - PARLEY_MODEL: overrides default_model
//   - PARLEY_PROVIDER: overrides provider
//   - PARLEY_OLLAMA_URL: overrides local.ollama_url
//   - OPENROUTER_API_KEY: overrides cloud.api_key
//   - PARLEY_LOG_LEVEL: overrides log.level
//   - PARLEY_STREAM: "0" or "false" disables native streaming
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("PARLEY_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("PARLEY_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Cloud.APIKey = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PARLEY_STREAM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chat.Stream = b
		}
	}
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Models != nil {
		clone.Models = append([]model.ModelInfo(nil), c.Models...)
	}
	return &clone
}

// String returns a JSON rendering for debugging with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Cloud.APIKey != "" {
		safe.Cloud.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
