// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
	"github.com/jeranaias/parley/internal/session"
)

// DefaultHistoryLimit is the number of prior messages sent as context.
const DefaultHistoryLimit = 20

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs sends against a session store.
type Controller struct {
	store    *session.Store
	registry *Registry

	mu       sync.RWMutex
	provider provider.Provider

	historyLimit int
	logger       *log.Logger
	now          func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithHistoryLimit sets how many prior messages are sent as context.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for reasoning timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a controller that writes into store and reads from p.
func NewController(store *session.Store, p provider.Provider, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		registry:     NewRegistry(),
		provider:     p,
		historyLimit: DefaultHistoryLimit,
		logger:       log.New(io.Discard),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the current provider.
func (c *Controller) Provider() provider.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// SetProvider swaps the provider used by subsequent sends.
func (c *Controller) SetProvider(p provider.Provider) {
	c.mu.Lock()
	c.provider = p
	c.mu.Unlock()
}

// IsStreaming reports whether any session has a stream in flight.
func (c *Controller) IsStreaming() bool {
	return c.registry.Len() > 0
}

// IsStreamingSession reports whether sessionID has a stream in flight.
func (c *Controller) IsStreamingSession(sessionID string) bool {
	return c.registry.Has(sessionID)
}

// StreamingSessions returns the ids of sessions with a stream in flight.
func (c *Controller) StreamingSessions() []string {
	return c.registry.Sessions()
}

// Elapsed returns how long the stream for sessionID has been running.
func (c *Controller) Elapsed(sessionID string) (time.Duration, bool) {
	return c.registry.Elapsed(sessionID)
}

// Cancel stops every in-flight stream. Calling it with nothing in flight
// does nothing.
func (c *Controller) Cancel() {
	if n := c.registry.CancelAll(); n > 0 {
		c.logger.Debug("cancel requested", "streams", n)
	}
}

// CancelSession stops the stream for one session.
func (c *Controller) CancelSession(sessionID string) bool {
	ok := c.registry.Cancel(sessionID)
	if ok {
		c.logger.Debug("cancel requested", "session", sessionID)
	}
	return ok
}

// =============================================================================
// SEND
// =============================================================================

// Send runs an exchange on the active session and waits for it to end.
func (c *Controller) Send(ctx context.Context, content string, files []model.AttachedFile) (Result, error) {
	return c.SendTo(ctx, c.store.ActiveID(), content, files)
}

// SendTo runs an exchange on sessionID and waits for it to end.
func (c *Controller) SendTo(ctx context.Context, sessionID, content string, files []model.AttachedFile) (Result, error) {
	run, err := c.Start(ctx, sessionID, content, files)
	if err != nil {
		return Result{}, err
	}
	return run.Wait(), nil
}

// Start prepares an exchange on sessionID and streams it in the background.
// Both messages are in the store when Start returns. Blank content with no
// files is ignored: the returned Run is already done with StateIdle.
func (c *Controller) Start(ctx context.Context, sessionID, content string, files []model.AttachedFile) (*Run, error) {
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		return finishedRun(Result{State: StateIdle, SessionID: sessionID}), nil
	}
	p := c.Provider()
	if p == nil {
		return nil, ErrNoProvider
	}

	streamCtx, cancel := context.WithCancel(ctx)
	token, ok := c.registry.Acquire(sessionID, cancel)
	if !ok {
		cancel()
		return nil, ErrBusy
	}

	ex, ok := c.store.AppendExchange(sessionID, content, files, c.historyLimit)
	if !ok {
		c.registry.Release(sessionID, token)
		c.logger.Debug("send dropped, session gone", "session", sessionID)
		return finishedRun(Result{State: StateIdle, SessionID: sessionID}), nil
	}
	c.store.ClearAttachments()

	req := provider.Request{
		Prompt:  model.BuildPrompt(content, files),
		Model:   c.store.Model(),
		History: ex.History,
	}

	run := &Run{
		SessionID: sessionID,
		MessageID: ex.Placeholder.ID,
		done:      make(chan struct{}),
		cancel:    func() { c.registry.Release(sessionID, token) },
	}

	c.logger.Debug("send started",
		"session", sessionID,
		"provider", p.Name(),
		"model", req.Model,
		"history", len(req.History),
		"files", len(files))

	go func() {
		defer close(run.done)
		defer c.registry.Release(sessionID, token)

		res := c.consume(streamCtx, p, target{sessionID, ex.Placeholder.ID}, req)
		res.SessionID = sessionID
		res.UserID = ex.User.ID
		res.MessageID = ex.Placeholder.ID
		run.result = res
		c.logResult(res)
	}()

	return run, nil
}

// =============================================================================
// STREAM CONSUMPTION
// =============================================================================

// reasoningClock tracks the reasoning interval of one stream.
type reasoningClock struct {
	start time.Time
	end   time.Time
	last  time.Time
}

func (r *reasoningClock) started() bool { return !r.start.IsZero() }

// seconds returns the interval, closing an open interval at the last
// reasoning event.
func (r *reasoningClock) seconds() (float64, bool) {
	if !r.started() {
		return 0, false
	}
	end := r.end
	if end.IsZero() {
		end = r.last
	}
	return model.ReasoningSeconds(r.start, end), true
}

// consume pulls events until the stream ends, is cancelled or fails.
// Every event is applied to the trailing assistant message of sessionID.
// target is the placeholder one stream writes into.
type target struct {
	sessionID string
	messageID string
}

func (c *Controller) consume(ctx context.Context, p provider.Provider, to target, req provider.Request) Result {
	res := Result{State: StateStreaming}

	s, err := p.Stream(ctx, req)
	if err != nil {
		return c.fail(ctx, to, res, err)
	}
	defer s.Close()

	var clock reasoningClock
	for {
		if ctx.Err() != nil {
			res.State = StateCancelled
			return res
		}

		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.fail(ctx, to, res, err)
		}
		if c.apply(ctx, to, ev, &clock) {
			res.Events++
		}
	}

	if ctx.Err() != nil {
		res.State = StateCancelled
		return res
	}
	res.State = StateFinalized
	if secs, ok := clock.seconds(); ok {
		if !c.store.MutateMessage(ctx, to.sessionID, to.messageID, model.DurationPatch(secs)) && ctx.Err() != nil {
			res.State = StateCancelled
			return res
		}
		res.Duration = &secs
	}
	return res
}

// apply writes one event to the placeholder, reasoning before text. Writes
// are dropped once ctx is done or the placeholder is no longer trailing.
func (c *Controller) apply(ctx context.Context, to target, ev provider.Event, clock *reasoningClock) bool {
	applied := false
	if ev.Reasoning != "" {
		now := c.now()
		if !clock.started() {
			clock.start = now
		}
		clock.last = now
		applied = c.store.MutateMessage(ctx, to.sessionID, to.messageID, model.ReasoningPatch(ev.Reasoning))
	}
	if ev.Text != "" {
		if clock.started() && clock.end.IsZero() {
			clock.end = c.now()
		}
		applied = c.store.MutateMessage(ctx, to.sessionID, to.messageID, model.ContentPatch(ev.Text)) || applied
	}
	return applied
}

// fail classifies err. Cancellation ends quietly; anything else is written
// to the placeholder as is, keeping the partial content.
func (c *Controller) fail(ctx context.Context, to target, res Result, err error) Result {
	if provider.IsCancellation(err) || ctx.Err() != nil {
		res.State = StateCancelled
		return res
	}
	text := err.Error()
	if strings.TrimSpace(text) == "" {
		text = GenericErrorText
	}
	if !c.store.MutateMessage(ctx, to.sessionID, to.messageID, model.ErrorPatch(text)) && ctx.Err() != nil {
		res.State = StateCancelled
		return res
	}
	res.State = StateErrored
	res.Err = err
	return res
}

func (c *Controller) logResult(res Result) {
	switch res.State {
	case StateErrored:
		c.logger.Debug("send errored", "session", res.SessionID, "events", res.Events, "err", res.Err)
	case StateCancelled:
		c.logger.Debug("send cancelled", "session", res.SessionID, "events", res.Events)
	default:
		kv := []interface{}{"session", res.SessionID, "events", res.Events}
		if res.Duration != nil {
			kv = append(kv, "reasoning_seconds", *res.Duration)
		}
		c.logger.Debug("send finalized", kv...)
	}
}

// =============================================================================
// RUN HANDLE
// =============================================================================

// Run is a send in progress.
type Run struct {
	SessionID string
	MessageID string

	done   chan struct{}
	result Result
	cancel func()
}

func finishedRun(res Result) *Run {
	r := &Run{SessionID: res.SessionID, done: make(chan struct{}), result: res, cancel: func() {}}
	close(r.done)
	return r
}

// Done is closed when the send reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the send ends and returns its result.
func (r *Run) Wait() Result {
	<-r.done
	return r.result
}

// Cancel stops this send. It is idempotent.
func (r *Run) Cancel() {
	r.cancel()
}
