// SPDX-License-Identifier: GPL-2.0-or-later

package edict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocGrows(t *testing.T) {
	a := NewArena(8)
	a.Reset(2)
	assert.Equal(t, 3, a.Num())

	h, e, err := a.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Index)
	assert.False(t, e.Free)
	assert.Equal(t, 4, a.Num())
}

func TestAllocLimit(t *testing.T) {
	a := NewArena(4)
	a.Reset(1)
	_, _, err := a.Alloc(0)
	require.NoError(t, err)
	_, _, err = a.Alloc(0)
	require.NoError(t, err)
	_, _, err = a.Alloc(0)
	assert.ErrorIs(t, err, ErrNoFreeEdicts)
	assert.Equal(t, 4, a.Num())
}

func TestReusePolicy(t *testing.T) {
	a := NewArena(16)
	a.Reset(1)
	h, _, err := a.Alloc(0)
	require.NoError(t, err)

	// freed early in the level, reused at once
	require.NoError(t, a.Free(h, time.Second))
	h2, _, err := a.Alloc(time.Second)
	require.NoError(t, err)
	assert.Equal(t, h.Index, h2.Index)

	// freed later, kept for half a second
	require.NoError(t, a.Free(h2, 10*time.Second))
	h3, _, err := a.Alloc(10*time.Second + 100*time.Millisecond)
	require.NoError(t, err)
	assert.NotEqual(t, h2.Index, h3.Index)

	h4, _, err := a.Alloc(11 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, h2.Index, h4.Index)
}

func TestStaleHandle(t *testing.T) {
	a := NewArena(16)
	a.Reset(1)
	h, e, err := a.Alloc(0)
	require.NoError(t, err)
	e.ClassName = "monster"

	got, err := a.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "monster", got.ClassName)

	require.NoError(t, a.Free(h, 0))
	_, err = a.Get(h)
	assert.ErrorIs(t, err, ErrStale)
	assert.ErrorIs(t, a.Free(h, 0), ErrStale)

	h2, _, err := a.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, h.Index, h2.Index)
	_, err = a.Get(h)
	assert.ErrorIs(t, err, ErrStale)

	a.Reset(1)
	_, err = a.Get(a.Handle(0))
	assert.NoError(t, err)
	_, err = a.Get(h2)
	assert.ErrorIs(t, err, ErrStale)
}

func TestWorldNotFreed(t *testing.T) {
	a := NewArena(4)
	a.Reset(0)
	assert.ErrorIs(t, a.Free(a.Handle(0), 0), ErrWorld)
}

func TestCounts(t *testing.T) {
	a := NewArena(8)
	a.Reset(0)
	a.At(0).Model = "maps/e1m1.bsp"
	h, _, _ := a.Alloc(0)
	a.Alloc(0)
	a.Free(h, 0)
	active, models, free := a.Counts()
	assert.Equal(t, 2, active)
	assert.Equal(t, 1, models)
	assert.Equal(t, 1, free)
}
