// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// MODELS COMMAND
// =============================================================================

func newModelsCmd(flags *globalFlags) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List selectable models",
		Long: `List the model catalog. The selected default is marked with *.

With --remote, ask the configured provider which models it serves
instead (ollama: installed models, openrouter: the hosted catalog).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cfg, flags); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !remote {
				NewRenderer(out, cfg.UI.Theme, false).ModelList(cfg.Catalog(), cfg.DefaultModel)
				return nil
			}

			models, err := listRemoteModels(cmd.Context(), cfg)
			if err != nil {
				return NewCommandError("models", "list", "provider "+cfg.Provider+" did not answer", err)
			}
			width := 0
			for _, m := range models {
				if w := util.StringWidth(m.ID); w > width {
					width = w
				}
			}
			for _, m := range models {
				fmt.Fprintf(out, "%s  %s\n", util.PadWidth(m.ID, width), m.Detail)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "List the models the provider serves")
	return cmd
}
