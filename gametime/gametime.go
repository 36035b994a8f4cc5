// SPDX-License-Identifier: GPL-2.0-or-later

package gametime

import (
	"netquake/math"
	"netquake/qtime"
)

// Rates holds the frame rate tunables, read every frame.
type Rates struct {
	MaxFPS    float64
	TimeScale float64
	FrameRate float64
}

type GameTime struct {
	clock      qtime.Clock
	time       float64
	oldTime    float64
	frameTime  float64
	frameCount int
}

func New(c qtime.Clock) *GameTime {
	return &GameTime{clock: c, frameTime: 0.1}
}

func (h *GameTime) Reset() {
	h.frameTime = 0.1
}

func (h *GameTime) Time() float64      { return h.time }
func (h *GameTime) OldTime() float64   { return h.oldTime }
func (h *GameTime) FrameTime() float64 { return h.frameTime }
func (h *GameTime) FrameCount() int    { return h.frameCount }
func (h *GameTime) FrameIncrease()     { h.frameCount++ }

// UpdateTime updates the host time.
// Returns false if it would exceed max fps
func (h *GameTime) UpdateTime(r Rates) bool {
	h.time = h.clock.Now().Seconds()
	maxFPS := math.Clamp(10.0, r.MaxFPS, 1000.0)
	if h.time-h.oldTime < 1/maxFPS {
		return false
	}
	h.frameTime = h.time - h.oldTime
	h.oldTime = h.time

	if r.TimeScale > 0 {
		h.frameTime *= r.TimeScale
	} else if r.FrameRate > 0 {
		h.frameTime = r.FrameRate
	} else {
		h.frameTime = math.Clamp(0.001, h.frameTime, 0.1)
	}
	return true
}
