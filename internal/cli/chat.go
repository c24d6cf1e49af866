// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL.
//
// Lines are sent to the active session; lines starting with / are
// commands. Ctrl+C cancels the reply in progress, Ctrl+D exits.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/stream"
)

// errQuit ends the REPL loop from a command.
var errQuit = errors.New("quit")

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader supplies input lines. Prompt returns io.EOF at the end of
// input and liner.ErrPromptAborted when the user presses Ctrl+C.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linerReader is a line editor with persistent history.
type linerReader struct {
	state       *liner.State
	historyPath string
}

func newLinerReader(complete func(string) []string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(complete)

	r := &linerReader{state: state}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyPath = filepath.Join(dir, "history")
		if f, err := os.Open(r.historyPath); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	return r.state.Prompt(prompt)
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

// Close saves history and restores the terminal.
func (r *linerReader) Close() error {
	if r.historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyPath), 0700); err == nil {
			if f, err := os.OpenFile(r.historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				r.state.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.state.Close()
}

// scanReader reads plain lines from a pipe or file.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), MaxAttachmentSize*4)
	return &scanReader{sc: sc}
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// CHAT CLI
// =============================================================================

// ChatCLI is the interactive session loop.
type ChatCLI struct {
	app   *App
	flags *globalFlags
	view  *Renderer
	live  *liveView

	input      lineReader
	registry   *commands.Registry
	parser     *commands.Parser
	completer  *commands.Completer
	interrupts <-chan os.Signal

	// reloadMu guards app.Config against the config watcher.
	reloadMu sync.Mutex
}

func newChatCLI(app *App, flags *globalFlags, out io.Writer) *ChatCLI {
	view := NewRenderer(out, app.Config.UI.Theme, app.Config.UI.ShowThinking)
	c := &ChatCLI{
		app:      app,
		flags:    flags,
		view:     view,
		live:     newLiveView(view),
		registry: commands.NewRegistry(),
	}
	c.registerCommands()
	c.parser = commands.NewParser(c.registry)
	c.completer = commands.NewCompleter(c.registry)
	c.completer.ModelsFn = app.Catalog.IDs
	c.completer.SessionsFn = func() []string {
		n := app.Store.Len()
		out := make([]string, n)
		for i := range out {
			out[i] = strconv.Itoa(i + 1)
		}
		return out
	}
	return c
}

// runChat wires the REPL to the command's streams and runs it.
func runChat(cmd *cobra.Command, flags *globalFlags) error {
	app, err := newApp(flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	c := newChatCLI(app, flags, out)

	interactive := isTerminal(in) && isTerminal(out)
	if interactive {
		c.input = newLinerReader(c.completer.Lines)
	} else {
		c.input = newScanReader(in)
	}
	defer c.input.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	c.interrupts = sigs

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	c.watchConfig(ctx)

	if interactive {
		c.banner()
	}
	return c.Run(ctx)
}

// Run reads lines until end of input or /quit.
func (c *ChatCLI) Run(ctx context.Context) error {
	unsubscribe := c.app.Store.Subscribe(c.live.handle)
	defer unsubscribe()

	for {
		line, err := c.input.Prompt(c.prompt())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.input.AppendHistory(line)

		if commands.IsCommand(line) {
			if err := c.parser.Run(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				c.view.Error(err)
			}
			continue
		}
		c.send(ctx, line)
	}
}

func (c *ChatCLI) prompt() string {
	if n := len(c.app.Store.Attachments()); n > 0 {
		return fmt.Sprintf("[%d file(s)] > ", n)
	}
	return "> "
}

func (c *ChatCLI) banner() {
	c.view.Println(c.view.paint(TitleStyle, "parley "+Version))
	c.view.Info("%s | %s | /help for commands, Ctrl+D to exit",
		c.app.Controller.Provider().Name(), c.app.Catalog.Label(c.app.Store.Model()))
}

// =============================================================================
// SENDING
// =============================================================================

// send runs one exchange on the active session and prints it live.
func (c *ChatCLI) send(ctx context.Context, content string) stream.Result {
	sessionID := c.app.Store.ActiveID()
	files := c.app.Store.Attachments()

	c.drainInterrupts()
	c.live.begin(sessionID)
	run, err := c.app.Controller.Start(ctx, sessionID, content, files)
	if err != nil {
		c.live.abort()
		if errors.Is(err, stream.ErrBusy) {
			c.view.Warn("A reply is already streaming in this chat.")
		} else {
			c.view.Error(err)
		}
		return stream.Result{}
	}

	res := c.await(run)
	c.live.end(res)
	return res
}

// await waits for run, cancelling it on Ctrl+C.
func (c *ChatCLI) await(run *stream.Run) stream.Result {
	for {
		select {
		case <-run.Done():
			return run.Wait()
		case <-c.interrupts:
			if elapsed, ok := c.app.Controller.Elapsed(run.SessionID); ok {
				c.app.Logger.Debug("reply interrupted", "session", run.SessionID, "elapsed", elapsed.Round(time.Millisecond))
			}
			run.Cancel()
		}
	}
}

func (c *ChatCLI) drainInterrupts() {
	for {
		select {
		case <-c.interrupts:
		default:
			return
		}
	}
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

// watchConfig follows the config file, if there is one, until ctx ends.
func (c *ChatCLI) watchConfig(ctx context.Context) {
	if c.app.ConfigPath == "" {
		return
	}
	_, err := config.Watch(ctx, c.app.ConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			c.app.Logger.Warn("config reload failed", "path", c.app.ConfigPath, "err", err)
			return
		}
		c.applyConfig(cfg)
	})
	if err != nil {
		c.app.Logger.Warn("config watch unavailable", "err", err)
	}
}

// applyConfig takes over the parts of cfg that can change at runtime:
// the default model, the provider settings and the reasoning display.
func (c *ChatCLI) applyConfig(cfg *config.Config) {
	if err := applyFlags(cfg, c.flags); err != nil {
		c.app.Logger.Warn("config reload rejected", "err", err)
		return
	}

	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()
	prev := c.app.Config

	if cfg.DefaultModel != prev.DefaultModel {
		c.app.Store.SetModel(cfg.DefaultModel)
		c.app.Logger.Info("model changed by config", "model", cfg.DefaultModel)
	}
	if providerChanged(prev, cfg) {
		p, err := NewProvider(cfg)
		if err != nil {
			c.app.Logger.Warn("provider reload failed", "err", err)
			return
		}
		c.app.Controller.SetProvider(p)
		c.app.Logger.Info("provider changed by config", "provider", p.Name())
	}
	c.view.SetShowThinking(cfg.UI.ShowThinking)
	c.app.Config = cfg
}

func providerChanged(a, b *config.Config) bool {
	return a.Provider != b.Provider ||
		a.Local != b.Local ||
		a.Cloud != b.Cloud ||
		a.Chat.Stream != b.Chat.Stream ||
		a.Chat.DegradedTokenDelayMs != b.Chat.DegradedTokenDelayMs
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var helpCategories = []string{"Conversation", "Sessions", "Files", "Model", "Navigation"}

func (c *ChatCLI) registerCommands() {
	reg := c.registry.Register

	reg(&commands.Command{
		Name: "/help", Aliases: []string{"/h", "/?"},
		Description: "Show available commands",
		Category:    "Navigation",
		Handler:     c.cmdHelp,
	})
	reg(&commands.Command{
		Name: "/quit", Aliases: []string{"/q", "/exit"},
		Description: "Exit parley",
		Category:    "Navigation",
		Handler:     func(commands.Invocation) error { return errQuit },
	})

	reg(&commands.Command{
		Name: "/history", Aliases: []string{"/show"},
		Description: "Show the active chat",
		Category:    "Conversation",
		Handler:     c.cmdHistory,
	})
	reg(&commands.Command{
		Name:        "/export",
		Description: "Export the active chat to a file",
		Usage:       "/export <" + strings.Join(export.Formats(), "|") + "> [path]",
		Args: []commands.ArgDef{
			{Name: "format", Required: true, Type: commands.ArgTypeEnum, Values: export.Formats()},
			{Name: "path", Type: commands.ArgTypeFile},
		},
		Category: "Conversation",
		Handler:  c.cmdExport,
	})
	reg(&commands.Command{
		Name:        "/code",
		Description: "Open a code block from the last reply",
		Usage:       "/code [n]",
		Category:    "Conversation",
		Handler:     c.cmdCode,
	})
	reg(&commands.Command{
		Name:        "/close",
		Description: "Close the open code block",
		Category:    "Conversation",
		Handler: func(commands.Invocation) error {
			c.app.Store.CloseSidePanel()
			return nil
		},
	})

	reg(&commands.Command{
		Name: "/new", Aliases: []string{"/n"},
		Description: "Start a new chat",
		Usage:       "/new [title]",
		Category:    "Sessions",
		Handler:     c.cmdNew,
	})
	reg(&commands.Command{
		Name: "/list", Aliases: []string{"/ls", "/sessions"},
		Description: "List chats, newest first",
		Category:    "Sessions",
		Handler: func(commands.Invocation) error {
			c.view.SessionList(c.app.Store.Sessions(), c.app.Store.ActiveID())
			return nil
		},
	})
	reg(&commands.Command{
		Name: "/switch", Aliases: []string{"/s"},
		Description: "Switch to a chat by number",
		Usage:       "/switch <n>",
		Args:        []commands.ArgDef{{Name: "n", Required: true, Type: commands.ArgTypeSession}},
		Category:    "Sessions",
		Handler:     c.cmdSwitch,
	})
	reg(&commands.Command{
		Name: "/delete", Aliases: []string{"/rm"},
		Description: "Delete a chat (default: the active one)",
		Usage:       "/delete [n]",
		Args:        []commands.ArgDef{{Name: "n", Type: commands.ArgTypeSession}},
		Category:    "Sessions",
		Handler:     c.cmdDelete,
	})
	reg(&commands.Command{
		Name:        "/rename",
		Description: "Rename the active chat",
		Usage:       "/rename <title>",
		Args:        []commands.ArgDef{{Name: "title", Required: true}},
		Category:    "Sessions",
		Handler:     c.cmdRename,
	})
	reg(&commands.Command{
		Name: "/search", Aliases: []string{"/find"},
		Description: "Find chats by title or content",
		Usage:       "/search <text>",
		Args:        []commands.ArgDef{{Name: "text", Required: true}},
		Category:    "Sessions",
		Handler:     c.cmdSearch,
	})

	reg(&commands.Command{
		Name: "/attach", Aliases: []string{"/a"},
		Description: "Attach text files to the next message",
		Usage:       "/attach <path>...",
		Args:        []commands.ArgDef{{Name: "path", Required: true, Type: commands.ArgTypeFile}},
		Category:    "Files",
		Handler:     c.cmdAttach,
	})
	reg(&commands.Command{
		Name:        "/detach",
		Description: "Remove a pending attachment, or all of them",
		Usage:       "/detach <n|all>",
		Args:        []commands.ArgDef{{Name: "n", Required: true}},
		Category:    "Files",
		Handler:     c.cmdDetach,
	})
	reg(&commands.Command{
		Name:        "/files",
		Description: "List pending attachments",
		Category:    "Files",
		Handler: func(commands.Invocation) error {
			c.view.Attachments(c.app.Store.Attachments())
			return nil
		},
	})

	reg(&commands.Command{
		Name: "/model", Aliases: []string{"/m"},
		Description: "Show or select the model",
		Usage:       "/model [id]",
		Args:        []commands.ArgDef{{Name: "id", Type: commands.ArgTypeModel}},
		Category:    "Model",
		Handler:     c.cmdModel,
	})
	reg(&commands.Command{
		Name:        "/models",
		Description: "List selectable models",
		Category:    "Model",
		Handler: func(commands.Invocation) error {
			c.view.ModelList(c.app.Catalog, c.app.Store.Model())
			return nil
		},
	})
	reg(&commands.Command{
		Name:        "/thinking",
		Description: "Show or hide model reasoning",
		Usage:       "/thinking [on|off]",
		Args:        []commands.ArgDef{{Name: "state", Type: commands.ArgTypeEnum, Values: []string{"on", "off"}}},
		Category:    "Model",
		Handler:     c.cmdThinking,
	})
}

func (c *ChatCLI) cmdHelp(commands.Invocation) error {
	byCategory := c.registry.ByCategory()
	for _, cat := range helpCategories {
		cmds := byCategory[cat]
		if len(cmds) == 0 {
			continue
		}
		c.view.Println(c.view.paint(TitleStyle, cat))
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			c.view.Println(fmt.Sprintf("  %-28s %s", usage, cmd.Description))
		}
	}
	return nil
}

func (c *ChatCLI) cmdHistory(commands.Invocation) error {
	c.view.Transcript(c.app.Store.Active())
	return nil
}

func (c *ChatCLI) cmdNew(inv commands.Invocation) error {
	sess := c.app.Store.CreateSession(strings.Join(inv.Args, " "))
	c.view.Info("Started %q.", sess.Title)
	return nil
}

// sessionAt resolves a 1-based number from the session list.
func (c *ChatCLI) sessionAt(arg string) (*model.Session, error) {
	sessions := c.app.Store.Sessions()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(sessions) {
		return nil, fmt.Errorf("no chat number %s (1-%d)", arg, len(sessions))
	}
	return sessions[n-1], nil
}

func (c *ChatCLI) cmdSwitch(inv commands.Invocation) error {
	sess, err := c.sessionAt(inv.Arg(0))
	if err != nil {
		return err
	}
	c.app.Store.SetActive(sess.ID)
	c.view.Transcript(sess)
	return nil
}

func (c *ChatCLI) cmdDelete(inv commands.Invocation) error {
	sess := c.app.Store.Active()
	if arg := inv.Arg(0); arg != "" {
		var err error
		if sess, err = c.sessionAt(arg); err != nil {
			return err
		}
	}
	id, title := sess.ID, sess.Title

	c.app.Controller.CancelSession(id)
	if !c.app.Store.DeleteSession(id) {
		return errors.New("chat not found")
	}
	c.view.Info("Deleted %q.", title)
	return nil
}

func (c *ChatCLI) cmdRename(inv commands.Invocation) error {
	title := strings.TrimSpace(strings.Join(inv.Args, " "))
	if title == "" {
		return NewUsageError("title", "", "cannot be blank", "/rename Release notes")
	}
	if !c.app.Store.RenameSession(c.app.Store.ActiveID(), title) {
		return errors.New("chat not found")
	}
	c.view.Info("Renamed to %q.", title)
	return nil
}

func (c *ChatCLI) cmdSearch(inv commands.Invocation) error {
	query := strings.Join(inv.Args, " ")
	matches := c.app.Store.Search(query)
	if len(matches) == 0 {
		c.view.Info("No chats match %q.", query)
		return nil
	}
	index := make(map[string]int)
	for i, sess := range c.app.Store.Sessions() {
		index[sess.ID] = i + 1
	}
	for _, sess := range matches {
		c.view.Println(fmt.Sprintf("%4d  %s", index[sess.ID], sess.Title))
	}
	return nil
}

func (c *ChatCLI) cmdAttach(inv commands.Invocation) error {
	files, err := loadAttachments(inv.Args)
	if err != nil {
		return err
	}
	c.app.Store.AttachFiles(files...)
	for _, f := range files {
		c.view.Info("Attached %s (%s).", f.Name, formatBytes(f.Size))
	}
	return nil
}

func (c *ChatCLI) cmdDetach(inv commands.Invocation) error {
	if strings.EqualFold(inv.Arg(0), "all") {
		c.app.Store.ClearAttachments()
		return nil
	}
	n, err := strconv.Atoi(inv.Arg(0))
	if err != nil || !c.app.Store.RemoveAttachment(n-1) {
		return fmt.Errorf("no attachment number %s", inv.Arg(0))
	}
	return nil
}

func (c *ChatCLI) cmdModel(inv commands.Invocation) error {
	arg := strings.TrimSpace(inv.RawArgs)
	if arg == "" {
		id := c.app.Store.Model()
		c.view.Println(fmt.Sprintf("%s (%s)", c.app.Catalog.Label(id), id))
		return nil
	}
	id := arg
	if info, ok := c.app.Catalog.Find(arg); ok {
		id = info.ID
	} else {
		c.view.Warn("%s is not in the catalog; using it as given.", arg)
	}
	c.app.Store.SetModel(id)
	c.view.Info("Model: %s", c.app.Catalog.Label(id))
	return nil
}

func (c *ChatCLI) cmdThinking(inv commands.Invocation) error {
	on := !c.view.ShowThinking()
	switch strings.ToLower(inv.Arg(0)) {
	case "on":
		on = true
	case "off":
		on = false
	}
	c.view.SetShowThinking(on)
	if on {
		c.view.Info("Reasoning shown.")
	} else {
		c.view.Info("Reasoning hidden.")
	}
	return nil
}

func (c *ChatCLI) cmdCode(inv commands.Invocation) error {
	msg := lastAssistant(c.app.Store.Active())
	if msg == nil {
		return errors.New("no reply yet")
	}
	blocks := extractCodeBlocks(msg.Content)
	if len(blocks) == 0 {
		return errors.New("the last reply has no code blocks")
	}

	n := len(blocks)
	if arg := inv.Arg(0); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 || v > len(blocks) {
			return fmt.Errorf("no code block %s (1-%d)", arg, len(blocks))
		}
		n = v
	}
	block := blocks[n-1]
	c.app.Store.OpenSidePanel(session.SidePanel{
		Title:    "code." + block.Language,
		Language: block.Language,
		Code:     block.Code,
	})
	if p, ok := c.app.Store.SidePanel(); ok {
		c.view.SidePanel(p)
	}
	return nil
}

func (c *ChatCLI) cmdExport(inv commands.Invocation) error {
	exporter, err := export.For(inv.Arg(0))
	if err != nil {
		return err
	}
	sess := c.app.Store.Active()
	path, err := export.ToFile(export.NewTranscript(sess, c.app.Store.Model(), time.Now()), exporter, inv.Arg(1))
	if err != nil {
		return NewCommandError("export", "write", "cannot write transcript", err)
	}
	c.view.Info("Exported to %s", path)
	return nil
}
