// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/stream"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer writes sessions, lists and live replies to a terminal or pipe.
// Styling and markdown rendering are used only when out is a color
// terminal.
type Renderer struct {
	out   io.Writer
	color bool
	width int
	md    *glamour.TermRenderer

	mu           sync.Mutex
	showThinking bool
}

// NewRenderer creates a renderer for out.
func NewRenderer(out io.Writer, theme string, showThinking bool) *Renderer {
	r := &Renderer{
		out:          out,
		color:        ColorsEnabled() && isTerminal(out),
		width:        terminalWidth(out),
		showThinking: showThinking,
	}
	if r.color {
		style := "light"
		if darkBackground(theme) {
			style = "dark"
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(r.width-4),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

// ShowThinking reports whether reasoning is printed.
func (r *Renderer) ShowThinking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showThinking
}

// SetShowThinking toggles reasoning output.
func (r *Renderer) SetShowThinking(on bool) {
	r.mu.Lock()
	r.showThinking = on
	r.mu.Unlock()
}

// paint styles s line by line so partial deltas never get padded.
func (r *Renderer) paint(style lipgloss.Style, s string) string {
	if !r.color || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// markdown renders content through glamour when available.
func (r *Renderer) markdown(content string) string {
	if r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// Println writes one line.
func (r *Renderer) Println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

// Info writes a dimmed notice.
func (r *Renderer) Info(format string, a ...any) {
	fmt.Fprintln(r.out, r.paint(DimStyle, fmt.Sprintf(format, a...)))
}

// Warn writes a warning line.
func (r *Renderer) Warn(format string, a ...any) {
	fmt.Fprintln(r.out, r.paint(WarningStyle, fmt.Sprintf(format, a...)))
}

// Error writes an error line.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.out, r.paint(ErrorStyle, "Error: "+err.Error()))
}

// =============================================================================
// SESSION VIEWS
// =============================================================================

// roleLabel returns the styled speaker name for a message.
func (r *Renderer) roleLabel(role model.Role) string {
	if role == model.RoleUser {
		return r.paint(UserStyle, role.DisplayName())
	}
	return r.paint(AssistantStyle, role.DisplayName())
}

// Transcript prints every message of sess.
func (r *Renderer) Transcript(sess *model.Session) {
	fmt.Fprintln(r.out, r.paint(TitleStyle, sess.Title))
	if sess.IsEmpty() {
		r.Info("No messages yet.")
		return
	}
	for i := range sess.Messages {
		r.Message(&sess.Messages[i])
	}
}

// Message prints one finished message.
func (r *Renderer) Message(msg *model.Message) {
	fmt.Fprintf(r.out, "\n%s %s\n", r.roleLabel(msg.Role), r.paint(DimStyle, msg.Timestamp.Local().Format("15:04")))
	for _, f := range msg.Files {
		r.Info("[attached: %s, %s]", f.Name, formatBytes(f.Size))
	}
	if msg.Reasoning != "" && r.ShowThinking() {
		header := "Reasoning"
		if msg.Duration != nil {
			header = model.FormatDuration(*msg.Duration)
		}
		fmt.Fprintln(r.out, r.paint(DimStyle, header))
		fmt.Fprintln(r.out, r.paint(ReasoningStyle, msg.Reasoning))
	}
	if msg.Content != "" {
		if msg.Role == model.RoleAssistant {
			fmt.Fprintln(r.out, r.markdown(msg.Content))
		} else {
			fmt.Fprintln(r.out, msg.Content)
		}
	}
	if msg.HasError() {
		fmt.Fprintln(r.out, r.paint(ErrorStyle, msg.Error))
	}
}

// SessionList prints sessions numbered from 1, marking the active one.
func (r *Renderer) SessionList(sessions []*model.Session, activeID string) {
	if len(sessions) == 0 {
		r.Info("No sessions.")
		return
	}
	titleWidth := r.width - 28
	if titleWidth < 20 {
		titleWidth = 20
	}
	for i, sess := range sessions {
		marker := " "
		if sess.ID == activeID {
			marker = "*"
		}
		title := util.PadWidth(util.FitWidth(util.SingleLine(sess.Title), titleWidth), titleWidth)
		line := fmt.Sprintf("%s %3d  %s  %3d msgs  %s",
			marker, i+1, title, sess.MessageCount(), sess.UpdatedAt.Local().Format("Jan 02 15:04"))
		if sess.ID == activeID {
			line = r.paint(HighlightStyle, line)
		}
		fmt.Fprintln(r.out, line)
	}
}

// ModelList prints the catalog, marking the selected model.
func (r *Renderer) ModelList(catalog model.Catalog, selected string) {
	idWidth := 0
	for _, m := range catalog {
		if w := util.StringWidth(m.ID); w > idWidth {
			idWidth = w
		}
	}
	for _, m := range catalog {
		marker := " "
		if m.ID == selected {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s  %-20s %s", marker, util.PadWidth(m.ID, idWidth), m.Label, m.Description)
		if m.ID == selected {
			line = r.paint(HighlightStyle, line)
		}
		fmt.Fprintln(r.out, strings.TrimRight(line, " "))
	}
}

// Attachments prints the pending attachment buffer.
func (r *Renderer) Attachments(files []model.AttachedFile) {
	if len(files) == 0 {
		r.Info("No files attached.")
		return
	}
	for i, f := range files {
		fmt.Fprintf(r.out, "  %d  %s  %s  %s\n", i+1, f.Name, formatBytes(f.Size), r.paint(DimStyle, f.MimeType))
	}
}

// SidePanel prints an opened code snippet.
func (r *Renderer) SidePanel(p session.SidePanel) {
	fmt.Fprintln(r.out, r.paint(TitleStyle, p.Title))
	fmt.Fprintln(r.out, RenderSeparator(min(r.width-4, 70)))
	if r.md != nil {
		fmt.Fprintln(r.out, r.markdown("```"+p.Language+"\n"+p.Code+"\n```"))
	} else {
		fmt.Fprintln(r.out, p.Code)
	}
	fmt.Fprintln(r.out, RenderSeparator(min(r.width-4, 70)))
}

// =============================================================================
// LIVE REPLY
// =============================================================================

type livePhase int

const (
	phaseWaiting livePhase = iota
	phaseReasoning
	phaseText
)

// liveView prints deltas for one session as the store applies them.
type liveView struct {
	r *Renderer

	mu       sync.Mutex
	target   string
	phase    livePhase
	headed   bool
	errText  string
	trailing bool // last write ended without a newline
}

func newLiveView(r *Renderer) *liveView {
	return &liveView{r: r}
}

// begin starts following sessionID.
func (v *liveView) begin(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.target = sessionID
	v.phase = phaseWaiting
	v.headed = false
	v.errText = ""
	v.trailing = false
}

// abort stops following without printing anything.
func (v *liveView) abort() {
	v.mu.Lock()
	v.target = ""
	v.mu.Unlock()
}

// handle is a store listener.
func (v *liveView) handle(ch session.Change) {
	if ch.Kind != session.MessageUpdated {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.target == "" || ch.SessionID != v.target {
		return
	}

	if ch.ReasoningDelta != "" && v.r.ShowThinking() {
		v.header()
		if v.phase != phaseReasoning {
			v.phase = phaseReasoning
			v.write(v.r.paint(DimStyle, "Thinking...") + "\n")
		}
		v.write(v.r.paint(ReasoningStyle, ch.ReasoningDelta))
	}
	if ch.ContentDelta != "" {
		v.header()
		if v.phase == phaseReasoning {
			v.write("\n\n")
		}
		v.phase = phaseText
		v.write(ch.ContentDelta)
	}
	if ch.Error != "" {
		v.errText = ch.Error
	}
}

// end prints the footer for res and stops following.
func (v *liveView) end(res stream.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if res.Ignored() {
		v.target = ""
		return
	}
	v.header()
	if v.trailing {
		v.write("\n")
	}

	switch res.State {
	case stream.StateFinalized:
		if res.Duration != nil {
			v.write(v.r.paint(DimStyle, model.FormatDuration(*res.Duration)) + "\n")
		}
	case stream.StateCancelled:
		v.write(v.r.paint(WarningStyle, "[cancelled]") + "\n")
	case stream.StateErrored:
		text := v.errText
		if text == "" {
			text = stream.GenericErrorText
		}
		v.write(v.r.paint(ErrorStyle, text) + "\n")
	}
	v.target = ""
}

// header prints the speaker label once per reply.
func (v *liveView) header() {
	if v.headed {
		return
	}
	v.headed = true
	v.write("\n" + v.r.roleLabel(model.RoleAssistant) + "\n")
}

func (v *liveView) write(s string) {
	if s == "" {
		return
	}
	io.WriteString(v.r.out, s)
	v.trailing = !strings.HasSuffix(s, "\n")
}
