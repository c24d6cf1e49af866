// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/stream"
)

// maxStdinSize caps how much piped input is read.
const maxStdinSize = MaxAttachmentSize

// =============================================================================
// ASK COMMAND
// =============================================================================

type askOptions struct {
	files  []string
	format string
	out    string
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and stream the reply",
		Long: `Ask a single question in a fresh chat and stream the reply.

When stdin is piped, it is read as the question, or attached as a file
named stdin.txt when a question is also given on the command line.

With --format the reply is not streamed to the terminal; the finished
chat is exported instead, to --out or stdout.`,
		Example: `  parley ask "What is a goroutine leak?"
  parley ask --file main.go "Review this"
  git diff | parley ask "Write a commit message"
  parley ask --format json "Explain CRDTs" > crdt.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, flags, opts, args)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "Attach a text file (repeatable)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Export the chat instead of streaming it ("+strings.Join(export.Formats(), ", ")+")")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the export to this file instead of stdout")
	return cmd
}

func runAsk(cmd *cobra.Command, flags *globalFlags, opts *askOptions, args []string) error {
	var exporter export.Exporter
	if opts.format != "" {
		var err error
		if exporter, err = export.For(opts.format); err != nil {
			return NewUsageError("format", opts.format, err.Error(), "--format md")
		}
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	piped, err := readPiped(cmd.InOrStdin())
	if err != nil {
		return NewCommandError("ask", "read", "cannot read stdin", err)
	}
	var stdinFile *model.AttachedFile
	switch {
	case question == "":
		question = piped
	case piped != "":
		stdinFile = &model.AttachedFile{
			Name:     "stdin.txt",
			Size:     int64(len(piped)),
			MimeType: "text/plain",
			Content:  piped,
		}
	}

	files, err := loadAttachments(opts.files)
	if err != nil {
		return NewCommandError("ask", "attach", "cannot attach file", err)
	}
	if stdinFile != nil {
		files = append(files, *stdinFile)
	}
	if question == "" && len(files) == 0 {
		return NewUsageError("question", "", "nothing to ask", `parley ask "What is a mutex?"`)
	}

	app, err := newApp(flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	if exporter == nil {
		return askLive(ctx, app, out, question, files)
	}
	return askExport(ctx, app, out, exporter, opts.out, question, files)
}

// askLive streams the reply to out.
func askLive(ctx context.Context, app *App, out io.Writer, question string, files []model.AttachedFile) error {
	view := NewRenderer(out, app.Config.UI.Theme, app.Config.UI.ShowThinking)
	live := newLiveView(view)
	unsubscribe := app.Store.Subscribe(live.handle)
	defer unsubscribe()

	sessionID := app.Store.ActiveID()
	live.begin(sessionID)
	run, err := app.Controller.Start(ctx, sessionID, question, files)
	if err != nil {
		live.abort()
		return err
	}
	res := run.Wait()
	live.end(res)
	return resultError(res, true)
}

// askExport runs the exchange silently and exports the finished chat.
func askExport(ctx context.Context, app *App, out io.Writer, exporter export.Exporter, path, question string, files []model.AttachedFile) error {
	res, err := app.Controller.Send(ctx, question, files)
	if err != nil {
		return err
	}
	if err := writeTranscript(app, out, exporter, path, res.SessionID); err != nil {
		return err
	}
	return resultError(res, false)
}

// writeTranscript exports sessionID to path, or to out when path is empty.
func writeTranscript(app *App, out io.Writer, exporter export.Exporter, path, sessionID string) error {
	sess, ok := app.Store.Session(sessionID)
	if !ok {
		return fmt.Errorf("chat %s is gone", sessionID)
	}
	t := export.NewTranscript(sess, app.Store.Model(), time.Now())
	if path == "" {
		return exporter.Export(t, out)
	}
	written, err := export.ToFile(t, exporter, path)
	if err != nil {
		return NewCommandError("export", "write", "cannot write transcript", err)
	}
	app.Logger.Info("transcript written", "path", written)
	return nil
}

// resultError maps a terminal state to the command's error. shown is true
// when the failure was already printed inline.
func resultError(res stream.Result, shown bool) error {
	switch res.State {
	case stream.StateCancelled:
		return errCancelled
	case stream.StateErrored:
		if shown {
			return &ReplyError{Err: res.Err}
		}
		return fmt.Errorf("reply failed: %w", res.Err)
	default:
		return nil
	}
}

// readPiped returns trimmed stdin when it is not a terminal.
func readPiped(in io.Reader) (string, error) {
	if in == nil || isTerminal(in) {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(in, maxStdinSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxStdinSize {
		return "", fmt.Errorf("input too large (max %d bytes)", maxStdinSize)
	}
	return strings.TrimSpace(string(data)), nil
}
