// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/stream"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

type exportOptions struct {
	format string
	out    string
	title  string
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export [prompts-file]",
		Short: "Run a list of prompts as one chat and export it",
		Long: `Run prompts as consecutive turns of a single chat, then export the chat.

Prompts are read one per line from the file, or from stdin when no file
is given. Blank lines and lines starting with # are skipped. A failed turn
is kept in the transcript and the run continues; the exit code is 1 if
any turn failed.`,
		Example: `  parley export questions.txt --format md --out review.md
  printf 'hi\nand again\n' | parley export --format jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "md", "Export format ("+strings.Join(export.Formats(), ", ")+")")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write to this file, or into this directory when it ends with a separator (default: stdout)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Chat title (default: derived from the first prompt)")
	return cmd
}

func runExport(cmd *cobra.Command, flags *globalFlags, opts *exportOptions, args []string) error {
	exporter, err := export.For(opts.format)
	if err != nil {
		return NewUsageError("format", opts.format, err.Error(), "--format md")
	}

	var src io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return NewCommandError("export", "read", "cannot open prompts", err)
		}
		defer f.Close()
		src = f
	}
	prompts, err := readPrompts(src)
	if err != nil {
		return NewCommandError("export", "read", "cannot read prompts", err)
	}
	if len(prompts) == 0 {
		return NewUsageError("prompts", "", "no prompts to run", "parley export questions.txt")
	}

	app, err := newApp(flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sessionID := app.Store.ActiveID()
	failed, err := runPrompts(ctx, app, sessionID, prompts)
	// After the run, so the first prompt's auto-title does not replace it.
	if t := strings.TrimSpace(opts.title); t != "" {
		app.Store.RenameSession(sessionID, t)
	}
	if err != nil && !errors.Is(err, errCancelled) {
		return err
	}
	if werr := writeTranscript(app, cmd.OutOrStdout(), exporter, opts.out, sessionID); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d turns failed", failed, len(prompts))
	}
	return nil
}

// runPrompts sends each prompt in turn. It stops early only on
// cancellation and returns how many turns errored.
func runPrompts(ctx context.Context, app *App, sessionID string, prompts []string) (int, error) {
	failed := 0
	for i, p := range prompts {
		res, err := app.Controller.SendTo(ctx, sessionID, p, nil)
		if err != nil {
			return failed, err
		}
		app.Logger.Debug("turn done", "turn", i+1, "state", res.State, "events", res.Events)

		switch res.State {
		case stream.StateCancelled:
			return failed, errCancelled
		case stream.StateErrored:
			failed++
		}
	}
	return failed, nil
}

// readPrompts returns the non-blank, non-comment lines of r.
func readPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxAttachmentSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts, sc.Err()
}
