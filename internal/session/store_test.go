// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(DefaultConfig())
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestNewStore_SeedsOneActiveSession(t *testing.T) {
	s := newTestStore(t)

	require.Equal(t, 1, s.Len())
	active := s.Active()
	assert.Equal(t, s.ActiveID(), active.ID)
	assert.Equal(t, model.DefaultTitle, active.Title)
	assert.Equal(t, model.DefaultModelID, s.Model())
}

func TestCreateSession_PrependsAndActivates(t *testing.T) {
	s := newTestStore(t)
	first := s.ActiveID()

	created := s.CreateSession("Second")

	sessions := s.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, created.ID, sessions[0].ID)
	assert.Equal(t, first, sessions[1].ID)
	assert.Equal(t, created.ID, s.ActiveID())
	assert.Equal(t, "Second", created.Title)
}

func TestCreateSession_ClosesSidePanel(t *testing.T) {
	s := newTestStore(t)
	s.OpenSidePanel(SidePanel{Title: "main.go", Language: "go", Code: "package main"})

	s.CreateSession("")

	_, open := s.SidePanel()
	assert.False(t, open)
}

func TestSetActive(t *testing.T) {
	s := newTestStore(t)
	first := s.ActiveID()
	s.CreateSession("")

	s.OpenSidePanel(SidePanel{Title: "x"})
	assert.True(t, s.SetActive(first))
	assert.Equal(t, first, s.ActiveID())
	_, open := s.SidePanel()
	assert.False(t, open)

	s.OpenSidePanel(SidePanel{Title: "y"})
	assert.False(t, s.SetActive("does-not-exist"))
	assert.Equal(t, first, s.ActiveID())
	_, open = s.SidePanel()
	assert.True(t, open, "invalid id must leave the side panel alone")
}

func TestDeleteSession_NeverEmpties(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 4; i++ {
		s.CreateSession("")
	}

	for i := 0; i < 10; i++ {
		s.DeleteSession(s.ActiveID())
		require.GreaterOrEqual(t, s.Len(), 1)
		_, ok := s.Session(s.ActiveID())
		require.True(t, ok, "active id must resolve after delete %d", i)
	}
}

func TestDeleteSession_LastOneIsReplaced(t *testing.T) {
	s := newTestStore(t)
	only := s.ActiveID()

	assert.True(t, s.DeleteSession(only))

	require.Equal(t, 1, s.Len())
	assert.NotEqual(t, only, s.ActiveID())
	assert.True(t, s.Active().IsEmpty())
}

func TestDeleteSession_InactiveKeepsActive(t *testing.T) {
	s := newTestStore(t)
	old := s.ActiveID()
	current := s.CreateSession("").ID

	s.DeleteSession(old)

	assert.Equal(t, current, s.ActiveID())
	assert.Equal(t, 1, s.Len())
}

func TestDeleteSession_ActiveFallsBackToFirst(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("b")
	c := s.CreateSession("c")
	s.SetActive(s.Sessions()[1].ID)
	active := s.ActiveID()

	s.DeleteSession(active)

	assert.Equal(t, c.ID, s.ActiveID())
}

func TestDeleteSession_UnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	before := s.Sessions()

	assert.False(t, s.DeleteSession("ghost"))
	assert.Equal(t, before, s.Sessions())
}

func TestRenameSession(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()
	s.AppendMessage(id, model.RoleUser, "hello", nil)

	assert.True(t, s.RenameSession(id, "Renamed"))
	sess, _ := s.Session(id)
	assert.Equal(t, "Renamed", sess.Title)
	assert.Len(t, sess.Messages, 1)

	assert.False(t, s.RenameSession("ghost", "x"))
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestAppendMessage_TargetsGivenSession(t *testing.T) {
	s := newTestStore(t)
	background := s.ActiveID()
	s.CreateSession("")

	msg := s.AppendMessage(background, model.RoleUser, "hi", nil)
	require.NotNil(t, msg)

	bg, _ := s.Session(background)
	assert.Len(t, bg.Messages, 1)
	assert.True(t, s.Active().IsEmpty())
}

func TestAppendMessage_UnknownSessionOrRole(t *testing.T) {
	s := newTestStore(t)
	assert.Nil(t, s.AppendMessage("ghost", model.RoleUser, "hi", nil))
	assert.Nil(t, s.AppendMessage(s.ActiveID(), model.Role("system"), "hi", nil))
	assert.True(t, s.Active().IsEmpty())
}

func TestAppendMessage_DefaultsFiles(t *testing.T) {
	s := newTestStore(t)
	msg := s.AppendMessage(s.ActiveID(), model.RoleUser, "hi", nil)
	assert.NotNil(t, msg.Files)
	assert.Empty(t, msg.Files)
}

func TestAppendMessage_BumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	before := s.Active().UpdatedAt
	s.AppendMessage(s.ActiveID(), model.RoleUser, "hi", nil)
	assert.False(t, s.Active().UpdatedAt.Before(before))
}

func TestAutoTitle_FirstUserMessageOnly(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()
	long := "Explain recursion in simple terms with an example that is quite long"

	s.AppendMessage(id, model.RoleUser, long, nil)
	want := string([]rune(long)[:50]) + "…"
	assert.Equal(t, want, s.Active().Title)

	s.AppendMessage(id, model.RoleUser, "Another question", nil)
	assert.Equal(t, want, s.Active().Title)
}

func TestAutoTitle_SkipsBlankAndAssistant(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()

	s.AppendMessage(id, model.RoleUser, "   ", []model.AttachedFile{{Name: "a.txt"}})
	assert.Equal(t, model.DefaultTitle, s.Active().Title)

	other := s.CreateSession("").ID
	s.AppendMessage(other, model.RoleAssistant, "hello", nil)
	s.AppendMessage(other, model.RoleUser, "late", nil)
	assert.Equal(t, model.DefaultTitle, s.Active().Title)
}

func TestAutoTitle_CustomLength(t *testing.T) {
	s := NewStore(Config{TitleMaxRunes: 5})
	s.AppendMessage(s.ActiveID(), model.RoleUser, "abcdefgh", nil)
	assert.Equal(t, "abcde…", s.Active().Title)
}

func TestMutateLastAssistant_AppliesToPlaceholder(t *testing.T) {
	s := newTestStore(t)
	ex, ok := s.AppendExchange(s.ActiveID(), "hi", nil, 20)
	require.True(t, ok)

	assert.True(t, s.MutateLastAssistant(ex.SessionID, model.ReasoningPatch("hmm")))
	assert.True(t, s.MutateLastAssistant(ex.SessionID, model.ContentPatch("Hel")))
	assert.True(t, s.MutateLastAssistant(ex.SessionID, model.ContentPatch("lo")))

	last := s.Active().LastMessage()
	assert.Equal(t, ex.Placeholder.ID, last.ID)
	assert.Equal(t, "Hello", last.Content)
	assert.Equal(t, "hmm", last.Reasoning)
}

func TestMutateLastAssistant_DropsWhenLastIsUser(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()
	s.AppendExchange(id, "first", nil, 20)
	s.AppendMessage(id, model.RoleUser, "second", nil)
	before, _ := s.Session(id)

	assert.False(t, s.MutateLastAssistant(id, model.ContentPatch("late token")))

	after, _ := s.Session(id)
	assert.Equal(t, before.Messages, after.Messages)
}

func TestMutateLastAssistant_UnknownOrEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.MutateLastAssistant("ghost", model.ContentPatch("x")))
	assert.False(t, s.MutateLastAssistant(s.ActiveID(), model.ContentPatch("x")))
	assert.False(t, s.MutateLastAssistant(s.ActiveID(), model.Patch{}))
}

func TestMutateLastAssistant_AfterDeleteIsNoop(t *testing.T) {
	s := newTestStore(t)
	ex, _ := s.AppendExchange(s.ActiveID(), "hi", nil, 20)
	s.DeleteSession(ex.SessionID)

	assert.False(t, s.MutateLastAssistant(ex.SessionID, model.ContentPatch("x")))
	require.Equal(t, 1, s.Len())
	assert.True(t, s.Active().IsEmpty())
}

func TestMutateMessage_OnlyTargetsItsPlaceholder(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()
	first, ok := s.AppendExchange(id, "one", nil, 20)
	require.True(t, ok)
	second, ok := s.AppendExchange(id, "two", nil, 20)
	require.True(t, ok)

	ctx := context.Background()
	assert.False(t, s.MutateMessage(ctx, id, first.Placeholder.ID, model.ContentPatch("stale")),
		"an older placeholder is no longer trailing")
	assert.True(t, s.MutateMessage(ctx, id, second.Placeholder.ID, model.ContentPatch("fresh")))

	done, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, s.MutateMessage(done, id, second.Placeholder.ID, model.ContentPatch(" late")))

	sess, _ := s.Session(id)
	require.Len(t, sess.Messages, 4)
	assert.Empty(t, sess.Messages[1].Content)
	assert.Equal(t, "fresh", sess.Messages[3].Content)
}

func TestMutateMessage_KeepsRoleRule(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()
	ex, ok := s.AppendExchange(id, "q", nil, 20)
	require.True(t, ok)
	s.AppendMessage(id, model.RoleUser, "interjection", nil)

	assert.False(t, s.MutateMessage(context.Background(), id, ex.Placeholder.ID, model.ContentPatch("x")))
}

func TestAppendExchange_HistoryExcludesNewPair(t *testing.T) {
	s := newTestStore(t)
	id := s.ActiveID()
	for i := 0; i < 25; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		s.AppendMessage(id, role, strings.Repeat("m", i+1), nil)
	}

	ex, ok := s.AppendExchange(id, "new question", nil, 20)
	require.True(t, ok)

	require.Len(t, ex.History, 20)
	assert.Equal(t, strings.Repeat("m", 6), ex.History[0].Content)
	assert.Equal(t, strings.Repeat("m", 25), ex.History[19].Content)
	for _, h := range ex.History {
		assert.NotEqual(t, "new question", h.Content)
	}

	sess, _ := s.Session(id)
	require.Len(t, sess.Messages, 27)
	assert.Equal(t, ex.User.ID, sess.Messages[25].ID)
	assert.Equal(t, ex.Placeholder.ID, sess.Messages[26].ID)
	assert.Equal(t, model.RoleAssistant, sess.Messages[26].Role)
}

func TestAppendExchange_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.AppendExchange("ghost", "hi", nil, 20)
	assert.False(t, ok)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	s.AppendMessage(s.ActiveID(), model.RoleUser, "hi", nil)

	snap := s.Active()
	snap.Messages[0].Content = "tampered"
	snap.Title = "tampered"

	assert.Equal(t, "hi", s.Active().Messages[0].Content)
	assert.NotEqual(t, "tampered", s.Active().Title)
}

// =============================================================================
// SEARCH, MODEL, ATTACHMENTS
// =============================================================================

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	s.AppendMessage(s.ActiveID(), model.RoleUser, "How do goroutines work?", nil)
	s.CreateSession("Recipes")
	s.CreateSession("")

	assert.Len(t, s.Search(""), 3)
	assert.Len(t, s.Search("GOROUTINES"), 1)
	assert.Len(t, s.Search("recipe"), 1)
	assert.Empty(t, s.Search("nothing matches"))
}

func TestSetModel(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.SetModel("gpt-4o"))
	assert.Equal(t, "gpt-4o", s.Model())

	assert.False(t, s.SetModel("   "))
	assert.Equal(t, "gpt-4o", s.Model())
}

func TestAttachments(t *testing.T) {
	s := newTestStore(t)
	s.AttachFiles(model.AttachedFile{Name: "a"}, model.AttachedFile{Name: "b"}, model.AttachedFile{Name: "c"})

	assert.False(t, s.RemoveAttachment(5))
	assert.False(t, s.RemoveAttachment(-1))
	assert.True(t, s.RemoveAttachment(1))

	names := []string{}
	for _, f := range s.Attachments() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)

	s.ClearAttachments()
	assert.Empty(t, s.Attachments())
}

// =============================================================================
// SUBSCRIPTION TESTS
// =============================================================================

func TestSubscribe_ReceivesChangesInOrder(t *testing.T) {
	s := newTestStore(t)
	var got []ChangeKind
	unsubscribe := s.Subscribe(func(c Change) {
		got = append(got, c.Kind)
		// Listeners run outside the lock and may read.
		_ = s.Active()
	})

	ex, _ := s.AppendExchange(s.ActiveID(), "hello", nil, 20)
	s.MutateLastAssistant(ex.SessionID, model.ContentPatch("hi"))

	assert.Equal(t, []ChangeKind{SessionRenamed, MessageAppended, MessageAppended, MessageUpdated}, got)

	unsubscribe()
	unsubscribe()
	s.CreateSession("")
	assert.Len(t, got, 4)
}

func TestSubscribe_DeltaPayload(t *testing.T) {
	s := newTestStore(t)
	ex, _ := s.AppendExchange(s.ActiveID(), "hello", nil, 20)

	var updates []Change
	s.Subscribe(func(c Change) {
		if c.Kind == MessageUpdated {
			updates = append(updates, c)
		}
	})
	s.MutateLastAssistant(ex.SessionID, model.ReasoningPatch("r"))
	s.MutateLastAssistant(ex.SessionID, model.ContentPatch("c"))

	require.Len(t, updates, 2)
	assert.Equal(t, "r", updates[0].ReasoningDelta)
	assert.Equal(t, "c", updates[1].ContentDelta)
	assert.Equal(t, ex.Placeholder.ID, updates[1].MessageID)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t)
	ids := []string{s.ActiveID()}
	for i := 0; i < 3; i++ {
		ids = append(ids, s.CreateSession("").ID)
	}
	for _, id := range ids {
		s.AppendExchange(id, "q", nil, 20)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.MutateLastAssistant(id, model.ContentPatch("x"))
				_ = s.Sessions()
			}
		}(id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.SetActive(ids[i%len(ids)])
			_ = s.Search("q")
		}
	}()
	wg.Wait()

	for _, id := range ids {
		sess, ok := s.Session(id)
		require.True(t, ok)
		assert.Equal(t, strings.Repeat("x", 100), sess.LastMessage().Content)
	}
}
