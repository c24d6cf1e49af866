// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMAND TREE
// =============================================================================

// IO bundles the streams a command reads and writes.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdIO returns the process streams.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	model      string
	provider   string
	verbose    bool
}

// NewRootCmd builds the parley command tree. Running it without a
// subcommand starts the interactive chat.
func NewRootCmd(stdio IO) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "parley",
		Short: "Chat with local and cloud models from the terminal",
		Long: `parley keeps a list of chat sessions in memory and streams replies,
including the model's reasoning when it exposes one.

Quick Start:
  parley                         # interactive chat
  parley ask "what is a mutex?"  # one-shot question
  parley models                  # list selectable models

Providers: ollama (local), openrouter (cloud), echo (offline demo).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags)
		},
	}
	root.SetIn(stdio.In)
	root.SetOut(stdio.Out)
	root.SetErr(stdio.Err)
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default ~/.parley/config.toml)")
	pf.StringVarP(&flags.model, "model", "m", "", "Model id to select")
	pf.StringVarP(&flags.provider, "provider", "p", "", "Provider: ollama, openrouter or echo")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newChatCmd(flags),
		newAskCmd(flags),
		newModelsCmd(flags),
		newExportCmd(flags),
		newConfigCmd(flags),
		newDoctorCmd(flags),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against the process streams and returns
// the exit code.
func Execute() int {
	stdio := StdIO()
	root := NewRootCmd(stdio)
	if err := root.Execute(); err != nil {
		DisplayError(stdio.Err, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// SIMPLE COMMANDS
// =============================================================================

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Type a message and press Enter to send it. Lines starting with / are
commands; /help lists them. Ctrl+C cancels a reply in progress, Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parley version %s\n", Version)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
