// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/stream"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App is everything a command needs: resolved config, logger, the session
// store and the stream controller driving it.
type App struct {
	Config *config.Config

	// ConfigPath is the file the config came from. Empty when defaults were
	// used because no file exists.
	ConfigPath string

	Logger     *log.Logger
	Store      *session.Store
	Controller *stream.Controller
	Catalog    model.Catalog

	closer io.Closer
}

// newApp loads configuration, applies flag overrides and builds the store,
// provider and controller.
func newApp(flags *globalFlags, stderr io.Writer) (*App, error) {
	cfg, path, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Writer: stderr,
	})
	if err != nil {
		return nil, NewCommandError("config", "load", "cannot open log", err)
	}

	p, err := NewProvider(cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}

	store := session.NewStore(session.Config{
		TitleMaxRunes: cfg.Chat.TitleMaxRunes,
		DefaultModel:  cfg.DefaultModel,
	})
	ctrl := stream.NewController(store, p,
		stream.WithHistoryLimit(cfg.Chat.HistoryLimit),
		stream.WithLogger(logger),
	)

	logger.Debug("app ready",
		"config", path,
		"provider", p.Name(),
		"model", cfg.DefaultModel,
		"history_limit", cfg.Chat.HistoryLimit)

	return &App{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Store:      store,
		Controller: ctrl,
		Catalog:    cfg.Catalog(),
		closer:     closer,
	}, nil
}

// Close cancels any stream still running and releases the log file.
func (a *App) Close() error {
	if open := a.Controller.StreamingSessions(); len(open) > 0 {
		a.Logger.Debug("cancelling streams on exit", "sessions", open)
	}
	a.Controller.Cancel()
	return a.closer.Close()
}

// loadConfig reads an explicit path, or the default location when it
// exists. The returned path is empty when only defaults were used.
func loadConfig(explicit string) (*config.Config, string, error) {
	if explicit != "" {
		cfg, err := config.LoadFromPath(explicit)
		if err != nil {
			return nil, "", fmt.Errorf("config %s: %w", explicit, err)
		}
		return cfg, explicit, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("config: %w", err)
	}
	path, err := config.ConfigPath()
	if err != nil {
		return cfg, "", nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return cfg, path, nil
}

// applyFlags layers the persistent flags over cfg and revalidates.
func applyFlags(cfg *config.Config, flags *globalFlags) error {
	if m := strings.TrimSpace(flags.model); m != "" {
		cfg.DefaultModel = m
	}
	if p := strings.TrimSpace(flags.provider); p != "" {
		cfg.Provider = strings.ToLower(p)
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}
