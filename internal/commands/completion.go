// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// maxFileCompletions caps file suggestions per request.
const maxFileCompletions = 20

// Completion is one candidate for the word being typed.
type Completion struct {
	Value       string
	Display     string
	Description string
	Score       int
}

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// Callbacks for dynamic completion, set by the application.
	ModelsFn   func() []string              // Returns selectable model ids
	SessionsFn func() []string              // Returns session numbers
	FilesFn    func(prefix string) []string // Returns matching paths
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns completions for the last word of input.
func (c *Completer) Complete(input string) []Completion {
	input = strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := splitCommandLine(input)
	trailingSpace := strings.HasSuffix(input, " ")

	if len(parts) == 1 && !trailingSpace {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(parts) - 2
	partial := ""
	if trailingSpace {
		argIndex++
	} else {
		partial = parts[len(parts)-1]
	}
	return c.completeArg(cmd, argIndex, partial)
}

// Lines returns whole-line candidates for a line editor: input with its
// last word replaced by each completion.
func (c *Completer) Lines(input string) []string {
	completions := c.Complete(input)
	if len(completions) == 0 {
		return nil
	}

	head := input
	if !strings.HasSuffix(input, " ") {
		if i := strings.LastIndexAny(input, " \t"); i >= 0 {
			head = input[:i+1]
		} else {
			head = ""
		}
	}

	lines := make([]string, 0, len(completions))
	for _, comp := range completions {
		lines = append(lines, head+comp.Value)
	}
	return lines
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

// completeCommands returns completions for command names.
func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(strings.ToLower(cmd.Name), partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
		for _, alias := range cmd.Aliases {
			// A lone alias match only matters when the primary name missed.
			if strings.HasPrefix(strings.ToLower(alias), partial) &&
				!strings.HasPrefix(strings.ToLower(cmd.Name), partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

// completeArg returns completions for a command argument.
func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]
	switch arg.Type {
	case ArgTypeModel:
		if c.ModelsFn == nil {
			return nil
		}
		return completeFromList(c.ModelsFn(), partial)
	case ArgTypeSession:
		if c.SessionsFn == nil {
			return nil
		}
		return completeFromList(c.SessionsFn(), partial)
	case ArgTypeFile:
		if c.FilesFn != nil {
			return completeFromList(c.FilesFn(partial), partial)
		}
		return defaultFileCompletion(partial)
	case ArgTypeEnum:
		return completeFromList(arg.Values, partial)
	default:
		return nil
	}
}

// defaultFileCompletion lists directory entries matching partial.
func defaultFileCompletion(partial string) []Completion {
	dir, prefix := filepath.Split(partial)
	listDir := dir
	if listDir == "" {
		listDir = "."
	}

	entries, err := os.ReadDir(listDir)
	if err != nil {
		return nil
	}

	lower := strings.ToLower(prefix)
	var completions []Completion
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), lower) {
			continue
		}
		// Skip hidden files unless asked for
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}

		value := dir + name
		score := calculateScore(name, prefix)
		desc := "directory"
		if entry.IsDir() {
			value += string(os.PathSeparator)
			score += 5
		} else if info, err := entry.Info(); err == nil {
			desc = formatFileSize(info.Size())
		}

		completions = append(completions, Completion{
			Value:       value,
			Display:     name,
			Description: desc,
			Score:       score,
		})
	}

	sortCompletions(completions)
	if len(completions) > maxFileCompletions {
		completions = completions[:maxFileCompletions]
	}
	return completions
}

// completeFromList returns completions from a list of strings.
func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)

	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), lower) {
			completions = append(completions, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, partial),
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore calculates a match score for completion ranking.
// Higher score = better match.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100
	if value == partial {
		return score + 100
	}
	if strings.HasPrefix(value, partial) {
		score += 50
		score += 20 - len(value)
	}
	score -= len(value) / 2
	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// formatFileSize formats a file size in human-readable form.
func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case size >= MB:
		return formatTenths(float64(size)/MB) + " MB"
	case size >= KB:
		return formatTenths(float64(size)/KB) + " KB"
	default:
		return formatTenths(float64(size)) + " B"
	}
}

// formatTenths prints f with at most one decimal, dropping a trailing ".0".
func formatTenths(f float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(f, 'f', 1, 64), ".0")
}
