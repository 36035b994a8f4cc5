// SPDX-License-Identifier: GPL-2.0-or-later

package qtime

import (
	"time"
)

// Clock reports the time elapsed since some fixed start.
type Clock interface {
	Now() time.Duration
}

type realClock struct {
	start time.Time
}

func (c realClock) Now() time.Duration {
	return time.Since(c.start)
}

// Real returns a wall clock starting at zero.
func Real() Clock {
	return realClock{time.Now()}
}

// Manual is a clock that only moves when told to.
type Manual struct {
	t time.Duration
}

func (m *Manual) Now() time.Duration {
	return m.t
}

func (m *Manual) Advance(d time.Duration) {
	m.t += d
}

func (m *Manual) Set(d time.Duration) {
	m.t = d
}
