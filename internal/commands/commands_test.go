// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func testRegistry(calls *[]Invocation) *Registry {
	record := func(inv Invocation) error {
		*calls = append(*calls, inv)
		return nil
	}
	r := NewRegistry()
	r.Register(&Command{Name: "/help", Aliases: []string{"/h", "/?"}, Category: "Navigation", Handler: record})
	r.Register(&Command{Name: "/quit", Aliases: []string{"/q", "/exit"}, Category: "Navigation", Handler: record})
	r.Register(&Command{
		Name:     "/model",
		Usage:    "/model [id]",
		Args:     []ArgDef{{Name: "id", Type: ArgTypeModel}},
		Category: "Model",
		Handler:  record,
	})
	r.Register(&Command{
		Name:     "/export",
		Usage:    "/export <format> [path]",
		Args:     []ArgDef{{Name: "format", Required: true, Type: ArgTypeEnum, Values: []string{"md", "json"}}, {Name: "path", Type: ArgTypeFile}},
		Category: "Conversation",
		Handler:  record,
	})
	r.Register(&Command{Name: "/switch", Args: []ArgDef{{Name: "n", Required: true, Type: ArgTypeSession}}, Handler: record})
	r.Register(&Command{Name: "/debug", Hidden: true, Handler: record})
	return r
}

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/model gpt-4o", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
	}

	for _, tc := range tests {
		if got := IsCommand(tc.input); got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestExtractCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/model gpt-4o", "/model"},
		{"/rename my chat", "/rename"},
		{"  /help  ", "/help"},
		{"hello", ""},
		{"/", "/"},
	}

	for _, tc := range tests {
		if got := ExtractCommandName(tc.input); got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"gpt-4o", []string{"gpt-4o"}},
		{`"my session"`, []string{"my session"}},
		{`'my session' next`, []string{"my session", "next"}},
		{`md "file with spaces.md"`, []string{"md", "file with spaces.md"}},
		{`"say \"hi\""`, []string{`say "hi"`}},
		{`""`, []string{""}},
		{"héllo wörld", []string{"héllo", "wörld"}},
	}

	for _, tc := range tests {
		if got := ParseArgs(tc.input); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseArgs(%q) = %#v, want %#v", tc.input, got, tc.want)
		}
	}
}

func TestParser_Parse(t *testing.T) {
	var calls []Invocation
	p := NewParser(testRegistry(&calls))

	res := p.Parse(`/export md "out dir/chat.md"`)
	if !res.IsCommand || res.Command == nil || res.Command.Name != "/export" {
		t.Fatalf("Parse did not resolve /export: %+v", res)
	}
	if want := []string{"md", "out dir/chat.md"}; !reflect.DeepEqual(res.Args, want) {
		t.Errorf("Args = %#v, want %#v", res.Args, want)
	}
	if res.RawArgs != `md "out dir/chat.md"` {
		t.Errorf("RawArgs = %q", res.RawArgs)
	}

	if res := p.Parse("/q"); res.Command == nil || res.Command.Name != "/quit" {
		t.Errorf("alias /q did not resolve to /quit")
	}
	if res := p.Parse("just text"); res.IsCommand {
		t.Errorf("plain text parsed as a command")
	}
}

func TestParser_Run(t *testing.T) {
	var calls []Invocation
	p := NewParser(testRegistry(&calls))

	if err := p.Run("/model gpt-4o"); err != nil {
		t.Fatalf("Run(/model) = %v", err)
	}
	if len(calls) != 1 || calls[0].Arg(0) != "gpt-4o" || calls[0].Arg(1) != "" {
		t.Fatalf("handler got %+v", calls)
	}

	var verr *ValidationError
	if err := p.Run("/export"); !errors.As(err, &verr) {
		t.Errorf("missing required arg: got %v", err)
	}
	if err := p.Run("/export pdf"); !errors.As(err, &verr) || verr.Got != "pdf" {
		t.Errorf("bad enum: got %v", err)
	}
	if err := p.Run("/export JSON"); err != nil {
		t.Errorf("enum match should be case-insensitive: %v", err)
	}

	var unknown *UnknownCommandError
	err := p.Run("/hlp")
	if !errors.As(err, &unknown) {
		t.Fatalf("unknown command: got %v", err)
	}
	if unknown.Suggestion != "/help" {
		t.Errorf("Suggestion = %q, want /help", unknown.Suggestion)
	}
	if !strings.Contains(err.Error(), "did you mean /help") {
		t.Errorf("Error() = %q", err.Error())
	}

	if err := p.Run("hello"); err == nil {
		t.Error("Run on plain text should fail")
	}
}

func TestParser_RunPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register(&Command{Name: "/fail", Handler: func(Invocation) error { return boom }})

	if err := NewParser(r).Run("/fail"); !errors.Is(err, boom) {
		t.Errorf("Run = %v, want boom", err)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_AllSorted(t *testing.T) {
	var calls []Invocation
	r := testRegistry(&calls)

	var names []string
	for _, cmd := range r.All() {
		names = append(names, cmd.Name)
	}
	want := []string{"/debug", "/export", "/help", "/model", "/quit", "/switch"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("All() = %v, want %v", names, want)
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	var calls []Invocation
	byCategory := testRegistry(&calls).ByCategory()

	for _, cat := range []string{"Navigation", "Conversation", "Model", "General"} {
		if _, ok := byCategory[cat]; !ok {
			t.Errorf("category %q missing", cat)
		}
	}
	for _, cmds := range byCategory {
		for _, cmd := range cmds {
			if cmd.Hidden {
				t.Errorf("hidden command %s listed", cmd.Name)
			}
		}
	}
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestCompleter_Commands(t *testing.T) {
	var calls []Invocation
	c := NewCompleter(testRegistry(&calls))

	got := c.Lines("/he")
	if !reflect.DeepEqual(got, []string{"/help"}) {
		t.Errorf("Lines(/he) = %v", got)
	}

	for _, line := range c.Lines("/") {
		if line == "/debug" {
			t.Error("hidden command offered")
		}
	}

	// /e only matches the /exit alias and /export.
	got = c.Lines("/ex")
	if !reflect.DeepEqual(got, []string{"/export", "/exit"}) {
		t.Errorf("Lines(/ex) = %v", got)
	}
}

func TestCompleter_Args(t *testing.T) {
	var calls []Invocation
	c := NewCompleter(testRegistry(&calls))
	c.ModelsFn = func() []string { return []string{"gpt-4o", "gpt-4o-mini", "claude-opus-4-6"} }
	c.SessionsFn = func() []string { return []string{"1", "2", "10"} }

	if got := c.Lines("/model gpt"); !reflect.DeepEqual(got, []string{"/model gpt-4o", "/model gpt-4o-mini"}) {
		t.Errorf("Lines(/model gpt) = %v", got)
	}
	if got := c.Lines("/export "); !reflect.DeepEqual(got, []string{"/export md", "/export json"}) &&
		!reflect.DeepEqual(got, []string{"/export json", "/export md"}) {
		t.Errorf("Lines(/export ) = %v", got)
	}
	if got := c.Lines("/switch 1"); len(got) != 2 || got[0] != "/switch 1" {
		t.Errorf("Lines(/switch 1) = %v", got)
	}
	if got := c.Lines("/quit x"); got != nil {
		t.Errorf("command without args completed: %v", got)
	}
	if got := c.Lines("hello"); got != nil {
		t.Errorf("plain text completed: %v", got)
	}
}

func TestCompleter_Files(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	var calls []Invocation
	c := NewCompleter(testRegistry(&calls))

	got := c.Complete("/export md " + dir + string(os.PathSeparator))
	if len(got) != 2 {
		t.Fatalf("Complete = %+v, want 2 entries", got)
	}
	if got[0].Display != "nested" {
		t.Errorf("directories should rank first, got %q", got[0].Display)
	}
	if got[1].Description != "2 B" {
		t.Errorf("file description = %q", got[1].Description)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		512:         "512 B",
		1024:        "1 KB",
		1536:        "1.5 KB",
		5 * 1 << 20: "5 MB",
	}
	for size, want := range tests {
		if got := formatFileSize(size); got != want {
			t.Errorf("formatFileSize(%d) = %q, want %q", size, got, want)
		}
	}
}
