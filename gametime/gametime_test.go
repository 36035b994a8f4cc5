// SPDX-License-Identifier: GPL-2.0-or-later

package gametime

import (
	"testing"
	"time"

	"netquake/qtime"

	"github.com/stretchr/testify/assert"
)

func TestUpdateTimeLimitsFPS(t *testing.T) {
	c := &qtime.Manual{}
	gt := New(c)
	r := Rates{MaxFPS: 72}

	c.Advance(time.Millisecond)
	assert.False(t, gt.UpdateTime(r), "1ms is above 72 fps")

	c.Advance(20 * time.Millisecond)
	assert.True(t, gt.UpdateTime(r))
	assert.InDelta(t, 0.021, gt.FrameTime(), 1e-9)
}

func TestUpdateTimeClamps(t *testing.T) {
	c := &qtime.Manual{}
	gt := New(c)
	c.Advance(5 * time.Second)
	assert.True(t, gt.UpdateTime(Rates{MaxFPS: 72}))
	assert.Equal(t, 0.1, gt.FrameTime())
}

func TestUpdateTimeFixedRate(t *testing.T) {
	c := &qtime.Manual{}
	gt := New(c)
	c.Advance(time.Second)
	assert.True(t, gt.UpdateTime(Rates{MaxFPS: 72, FrameRate: 0.05}))
	assert.Equal(t, 0.05, gt.FrameTime())
}
