// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// STORE
// =============================================================================

// Store holds every session and the id of the active one.
// All methods are safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	// Newest first; CreateSession prepends.
	sessions []*model.Session
	activeID string

	selectedModel string
	attachments   []model.AttachedFile
	sidePanel     *SidePanel

	titleMaxRunes int

	subs listeners
}

// Config holds configuration for the store.
type Config struct {
	// TitleMaxRunes is the auto-title length before the ellipsis (default: 50)
	TitleMaxRunes int

	// DefaultModel is the initially selected model id
	DefaultModel string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		TitleMaxRunes: model.DefaultTitleRunes,
		DefaultModel:  model.DefaultModelID,
	}
}

// NewStore creates a store seeded with one empty session, which is active.
func NewStore(cfg Config) *Store {
	if cfg.TitleMaxRunes <= 0 {
		cfg.TitleMaxRunes = model.DefaultTitleRunes
	}
	if strings.TrimSpace(cfg.DefaultModel) == "" {
		cfg.DefaultModel = model.DefaultModelID
	}
	seed := model.NewSession("")
	return &Store{
		sessions:      []*model.Session{seed},
		activeID:      seed.ID,
		selectedModel: cfg.DefaultModel,
		attachments:   []model.AttachedFile{},
		titleMaxRunes: cfg.TitleMaxRunes,
	}
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. Listeners run on the mutating goroutine after the store
// lock is released, so they may read from the store.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	return s.subs.add(fn)
}

// find returns the session and its index. Caller must hold s.mu.
func (s *Store) find(id string) (*model.Session, int) {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return sess, i
		}
	}
	return nil, -1
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// CreateSession prepends a new session, makes it active, and closes the side
// panel. A blank title becomes model.DefaultTitle.
func (s *Store) CreateSession(title string) *model.Session {
	sess := model.NewSession(title)

	s.mu.Lock()
	s.sessions = append([]*model.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	changes := []Change{
		{Kind: SessionCreated, SessionID: sess.ID},
		{Kind: ActiveChanged, SessionID: sess.ID},
	}
	if s.sidePanel != nil {
		s.sidePanel = nil
		changes = append(changes, Change{Kind: SidePanelChanged})
	}
	out := sess.Clone()
	s.mu.Unlock()

	s.subs.emit(changes)
	return out
}

// SetActive switches the active session and closes the side panel.
// Unknown ids leave the store untouched and return false.
func (s *Store) SetActive(id string) bool {
	s.mu.Lock()
	if sess, _ := s.find(id); sess == nil {
		s.mu.Unlock()
		return false
	}
	var changes []Change
	if s.activeID != id {
		s.activeID = id
		changes = append(changes, Change{Kind: ActiveChanged, SessionID: id})
	}
	if s.sidePanel != nil {
		s.sidePanel = nil
		changes = append(changes, Change{Kind: SidePanelChanged})
	}
	s.mu.Unlock()

	s.subs.emit(changes)
	return true
}

// DeleteSession removes a session. If it was active, the first remaining
// session becomes active. Deleting the last session replaces it with a fresh
// empty one. Unknown ids are ignored.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	_, idx := s.find(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	changes := []Change{{Kind: SessionDeleted, SessionID: id}}

	if len(s.sessions) == 0 {
		fresh := model.NewSession("")
		s.sessions = []*model.Session{fresh}
		changes = append(changes, Change{Kind: SessionCreated, SessionID: fresh.ID})
	}
	if s.activeID == id {
		s.activeID = s.sessions[0].ID
		changes = append(changes, Change{Kind: ActiveChanged, SessionID: s.activeID})
	}
	s.mu.Unlock()

	s.subs.emit(changes)
	return true
}

// RenameSession overwrites a session title. Messages are untouched.
func (s *Store) RenameSession(id, title string) bool {
	s.mu.Lock()
	sess, _ := s.find(id)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Title = title
	sess.Touch()
	s.mu.Unlock()

	s.subs.emit([]Change{{Kind: SessionRenamed, SessionID: id}})
	return true
}

// =============================================================================
// MESSAGE LEDGER
// =============================================================================

// AppendMessage appends a message to the given session's ledger, bumps
// UpdatedAt and applies the auto-title rule. Returns a copy of the new
// message, or nil when the session does not exist or role is invalid.
func (s *Store) AppendMessage(sessionID string, role model.Role, content string, files []model.AttachedFile) *model.Message {
	if !role.Valid() {
		return nil
	}
	msg := model.NewMessage(role, content, cloneFiles(files))

	s.mu.Lock()
	sess, _ := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return nil
	}
	changes := s.appendLocked(sess, msg)
	out := msg.Clone()
	s.mu.Unlock()

	s.subs.emit(changes)
	return &out
}

// appendLocked appends msg and retitles the session when it is the first
// user message with non-blank content. Caller must hold s.mu.
func (s *Store) appendLocked(sess *model.Session, msg *model.Message) []Change {
	var changes []Change
	if sess.IsEmpty() && msg.Role == model.RoleUser {
		if title := model.AutoTitle(msg.Content, s.titleMaxRunes); title != "" {
			sess.Title = title
			changes = append(changes, Change{Kind: SessionRenamed, SessionID: sess.ID})
		}
	}
	sess.Messages = append(sess.Messages, *msg)
	sess.Touch()
	return append(changes, Change{Kind: MessageAppended, SessionID: sess.ID, MessageID: msg.ID})
}

// Exchange is the result of AppendExchange.
type Exchange struct {
	SessionID   string
	User        model.Message
	Placeholder model.Message

	// History is the ledger before the two new messages, already truncated.
	History []model.HistoryEntry
}

// AppendExchange appends a user message and an empty assistant placeholder
// as one unit and returns both together with the prior history, truncated to
// the trailing historyLimit entries. Returns false for unknown sessions.
func (s *Store) AppendExchange(sessionID, content string, files []model.AttachedFile, historyLimit int) (Exchange, bool) {
	user := model.NewMessage(model.RoleUser, content, cloneFiles(files))
	placeholder := model.NewPlaceholder()

	s.mu.Lock()
	sess, _ := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return Exchange{}, false
	}
	history := model.BuildHistory(sess.Messages, historyLimit)
	changes := s.appendLocked(sess, user)
	changes = append(changes, s.appendLocked(sess, placeholder)...)
	ex := Exchange{
		SessionID:   sess.ID,
		User:        user.Clone(),
		Placeholder: placeholder.Clone(),
		History:     history,
	}
	s.mu.Unlock()

	s.subs.emit(changes)
	return ex, true
}

// MutateLastAssistant applies patch to the session's trailing message if and
// only if it is an assistant message. Anything else is silently dropped.
// Returns whether the patch was applied.
func (s *Store) MutateLastAssistant(sessionID string, patch model.Patch) bool {
	return s.mutateLast(context.Background(), sessionID, "", patch)
}

// MutateMessage is MutateLastAssistant pinned to one placeholder: the patch
// lands only while messageID is still the trailing assistant message and ctx
// is not done. ctx is checked under the store lock, so a stream cancelled
// before the write can never reach the ledger.
func (s *Store) MutateMessage(ctx context.Context, sessionID, messageID string, patch model.Patch) bool {
	return s.mutateLast(ctx, sessionID, messageID, patch)
}

func (s *Store) mutateLast(ctx context.Context, sessionID, messageID string, patch model.Patch) bool {
	if patch.IsZero() {
		return false
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	sess, _ := s.find(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	last := sess.LastMessage()
	if last == nil || last.Role != model.RoleAssistant || (messageID != "" && last.ID != messageID) {
		s.mu.Unlock()
		return false
	}
	last.Apply(patch)
	sess.Touch()
	change := Change{
		Kind:           MessageUpdated,
		SessionID:      sess.ID,
		MessageID:      last.ID,
		ContentDelta:   patch.ContentDelta,
		ReasoningDelta: patch.ReasoningDelta,
	}
	if patch.Error != nil {
		change.Error = *patch.Error
	}
	s.mu.Unlock()

	s.subs.emit([]Change{change})
	return true
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Sessions returns copies of all sessions, newest first.
func (s *Store) Sessions() []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (*model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, _ := s.find(id)
	if sess == nil {
		return nil, false
	}
	return sess.Clone(), true
}

// ActiveID returns the id of the active session.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active session. It always exists.
func (s *Store) Active() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, _ := s.find(s.activeID)
	if sess == nil {
		// Unreachable while the invariants hold.
		return s.sessions[0].Clone()
	}
	return sess.Clone()
}

// Search returns copies of sessions whose title or message content contains
// query, case-insensitively. A blank query returns every session.
func (s *Store) Search(query string) []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Session
	for _, sess := range s.sessions {
		if sess.Matches(query) {
			out = append(out, sess.Clone())
		}
	}
	return out
}

func cloneFiles(files []model.AttachedFile) []model.AttachedFile {
	out := make([]model.AttachedFile, len(files))
	copy(out, files)
	return out
}
