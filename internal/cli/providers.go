// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/ollama"
	"github.com/jeranaias/parley/internal/provider"
)

// =============================================================================
// PROVIDER FACTORY
// =============================================================================

// completingProvider is a provider that can also answer in one call, so it
// can be replayed at a steady pace when streaming is disabled.
type completingProvider interface {
	provider.Provider
	provider.Completer
}

// NewProvider builds the transport named by cfg.Provider. With chat.stream
// off, the transport is asked for whole replies which are then replayed
// token by token.
func NewProvider(cfg *config.Config) (provider.Provider, error) {
	var p completingProvider

	switch cfg.Provider {
	case config.ProviderEcho:
		return provider.NewEcho(cfg.TokenDelay()), nil

	case config.ProviderOllama:
		p = ollama.NewProvider(newOllamaClient(cfg))

	case config.ProviderOpenRouter:
		client := newCloudClient(cfg)
		if !client.IsConfigured() {
			return nil, fmt.Errorf("openrouter needs an API key (set OPENROUTER_API_KEY or cloud.api_key): %w",
				cloud.ErrNotConfigured)
		}
		p = cloud.NewProvider(client)

	default:
		return nil, NewUsageError("provider", cfg.Provider, "unknown provider", "--provider ollama")
	}

	if !cfg.Chat.Stream {
		return provider.NewPaced(p, cfg.TokenDelay()), nil
	}
	return p, nil
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClient(ollama.ClientConfig{
		BaseURL: cfg.Local.OllamaURL,
		Think:   cfg.Local.Think,
	})
}

func newCloudClient(cfg *config.Config) *cloud.OpenRouterClient {
	c := cloud.DefaultConfig()
	c.BaseURL = cfg.Cloud.BaseURL
	c.APIKey = cfg.Cloud.APIKey
	c.ReasoningEffort = cfg.Cloud.ReasoningEffort
	return cloud.NewClient(c)
}

// =============================================================================
// REMOTE MODEL LISTING
// =============================================================================

// remoteModel is one model reported by a provider.
type remoteModel struct {
	ID     string
	Detail string
}

// listRemoteModels asks the configured provider which models it serves.
func listRemoteModels(ctx context.Context, cfg *config.Config) ([]remoteModel, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.Provider {
	case config.ProviderOllama:
		models, err := newOllamaClient(cfg).ListModels(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]remoteModel, 0, len(models))
		for _, m := range models {
			out = append(out, remoteModel{ID: m.Name, Detail: formatBytes(m.Size)})
		}
		return out, nil

	case config.ProviderOpenRouter:
		models, err := newCloudClient(cfg).ListModels(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]remoteModel, 0, len(models))
		for _, m := range models {
			detail := m.Name
			if m.ContextSize > 0 {
				detail = fmt.Sprintf("%s, %dk context", m.Name, m.ContextSize/1024)
			}
			out = append(out, remoteModel{ID: m.ID, Detail: detail})
		}
		return out, nil

	default:
		return nil, NewUsageError("provider", cfg.Provider, "cannot list remote models", "--provider ollama")
	}
}

// formatBytes formats a size in bytes as a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
