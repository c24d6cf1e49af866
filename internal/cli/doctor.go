// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Health checks for the configured provider.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/ollama"
)

// doctorTimeout bounds each network check.
const doctorTimeout = 5 * time.Second

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "Pass"
	case CheckWarn:
		return "Warn"
	case CheckFail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // Suggested fix
}

// render formats the check for r.
func (c *HealthCheck) render(r *Renderer) string {
	var symbol string
	switch c.Status {
	case CheckPass:
		symbol = r.paint(AssistantStyle, "[OK]")
	case CheckWarn:
		symbol = r.paint(WarningStyle, "[!!]")
	default:
		symbol = r.paint(ErrorStyle, "[FAIL]")
	}
	line := fmt.Sprintf("%s %s: %s", symbol, c.Name, c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		line += "\n" + r.paint(DimStyle, "    -> "+c.Fix)
	}
	return line
}

// =============================================================================
// DOCTOR COMMAND
// =============================================================================

func newDoctorCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and provider connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(flags.configPath)
			checks := []*HealthCheck{checkConfig(path, err)}
			if err == nil {
				if ferr := applyFlags(cfg, flags); ferr != nil {
					checks[0] = checkConfig(path, ferr)
				} else {
					checks = append(checks, runProviderChecks(cmd.Context(), cfg)...)
				}
			}
			return reportChecks(cmd.OutOrStdout(), checks)
		},
	}
}

// reportChecks prints checks and a summary; failures become the error.
func reportChecks(out io.Writer, checks []*HealthCheck) error {
	r := NewRenderer(out, "auto", false)
	passed, warned, failed := 0, 0, 0
	for _, check := range checks {
		fmt.Fprintln(out, check.render(r))
		switch check.Status {
		case CheckPass:
			passed++
		case CheckWarn:
			warned++
		case CheckFail:
			failed++
		}
	}

	parts := []string{fmt.Sprintf("%d passed", passed)}
	if warned > 0 {
		parts = append(parts, fmt.Sprintf("%d warning", warned))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	fmt.Fprintln(out, r.paint(DimStyle, strings.Join(parts, ", ")))

	if failed > 0 {
		return fmt.Errorf("%d health check(s) failed", failed)
	}
	return nil
}

func checkConfig(path string, err error) *HealthCheck {
	check := &HealthCheck{Name: "Config"}
	switch {
	case err != nil:
		check.Status = CheckFail
		check.Message = err.Error()
		check.Fix = "Fix the file, or recreate it with: parley config init --force"
	case path == "":
		check.Status = CheckPass
		check.Message = "no config file, using defaults"
	default:
		check.Status = CheckPass
		check.Message = "loaded " + path
	}
	return check
}

// runProviderChecks verifies the configured provider can serve the
// default model.
func runProviderChecks(ctx context.Context, cfg *config.Config) []*HealthCheck {
	switch cfg.Provider {
	case config.ProviderOllama:
		return checkOllama(ctx, cfg)
	case config.ProviderOpenRouter:
		return checkOpenRouter(ctx, cfg)
	default:
		return []*HealthCheck{{Name: "Provider", Status: CheckPass, Message: "echo needs no network"}}
	}
}

func checkOllama(ctx context.Context, cfg *config.Config) []*HealthCheck {
	client := newOllamaClient(cfg)
	running := &HealthCheck{Name: "Ollama"}

	cctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	if err := client.CheckRunning(cctx); err != nil {
		running.Status = CheckFail
		running.Message = fmt.Sprintf("not reachable at %s", cfg.Local.OllamaURL)
		running.Fix = "Run: ollama serve"
		return []*HealthCheck{running}
	}
	running.Status = CheckPass
	running.Message = "running at " + cfg.Local.OllamaURL

	available := &HealthCheck{Name: "Model"}
	models, err := client.ListModels(cctx)
	switch {
	case err != nil:
		available.Status = CheckWarn
		available.Message = "could not list models: " + err.Error()
	case hasOllamaModel(models, cfg.DefaultModel):
		available.Status = CheckPass
		available.Message = cfg.DefaultModel + " is installed"
	default:
		available.Status = CheckWarn
		available.Message = cfg.DefaultModel + " is not installed"
		available.Fix = "Run: ollama pull " + cfg.DefaultModel
	}
	return []*HealthCheck{running, available}
}

func hasOllamaModel(models []ollama.ModelInfo, id string) bool {
	for _, m := range models {
		if m.Name == id || strings.TrimSuffix(m.Name, ":latest") == id {
			return true
		}
	}
	return false
}

func checkOpenRouter(ctx context.Context, cfg *config.Config) []*HealthCheck {
	client := newCloudClient(cfg)
	key := &HealthCheck{Name: "API key"}
	if !client.IsConfigured() {
		key.Status = CheckFail
		key.Message = "not set"
		key.Fix = "Set OPENROUTER_API_KEY or cloud.api_key"
		return []*HealthCheck{key}
	}
	key.Status = CheckPass
	key.Message = client.APIKeyMasked()

	reach := &HealthCheck{Name: "OpenRouter"}
	cctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	if _, err := client.ListModels(cctx); err != nil {
		reach.Status = CheckFail
		reach.Message = err.Error()
		reach.Fix = "Check the key and cloud.base_url"
	} else {
		reach.Status = CheckPass
		reach.Message = "reachable at " + client.BaseURL()
	}
	return []*HealthCheck{key, reach}
}
