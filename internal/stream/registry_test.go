// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AcquireIsExclusivePerSession(t *testing.T) {
	r := NewRegistry()

	tok, ok := r.Acquire("a", func() {})
	require.True(t, ok)
	assert.NotEmpty(t, tok)

	_, ok = r.Acquire("a", func() {})
	assert.False(t, ok)

	_, ok = r.Acquire("b", func() {})
	assert.True(t, ok)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Sessions())
}

func TestRegistry_ReleaseIgnoresStaleToken(t *testing.T) {
	r := NewRegistry()
	var cancelled int32

	old, _ := r.Acquire("a", func() { atomic.AddInt32(&cancelled, 1) })
	r.Cancel("a")
	_, ok := r.Acquire("a", func() { atomic.AddInt32(&cancelled, 10) })
	require.True(t, ok)

	r.Release("a", old)
	assert.True(t, r.Has("a"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

func TestRegistry_CancelAll(t *testing.T) {
	r := NewRegistry()
	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	r.Acquire("a", cancelA)
	r.Acquire("b", cancelB)

	assert.Equal(t, 2, r.CancelAll())
	assert.Error(t, ctxA.Err())
	assert.Error(t, ctxB.Err())
	assert.Zero(t, r.Len())
	assert.Zero(t, r.CancelAll())
}

func TestRegistry_Elapsed(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Elapsed("a")
	assert.False(t, ok)

	r.Acquire("a", func() {})
	d, ok := r.Elapsed("a")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
}
