// SPDX-License-Identifier: GPL-2.0-or-later

package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	NULL = Vec3{}
)

func TestLength(t *testing.T) {
	assert.Equal(t, float32(0), NULL.Length())
	for _, v := range []Vec3{{2, 2, 1}, {2, 1, 2}, {1, 2, 2}} {
		assert.Equal(t, float32(3), v.Length(), "%v", v)
	}
}

func TestAddSub(t *testing.T) {
	v := Vec3{1, 2, 3}
	assert.Equal(t, v, Add(NULL, v))
	assert.Equal(t, Vec3{2, 4, 6}, Add(v, v))
	assert.Equal(t, NULL, Sub(v, v))
}

func TestLerp(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{10, 20, -40}
	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, Vec3{5, 10, -20}, Lerp(a, b, 0.5))
}

func TestFMA(t *testing.T) {
	assert.Equal(t, Vec3{3, 5, 7}, FMA(Vec3{1, 1, 1}, 2, Vec3{1, 2, 3}))
}

func TestMaxAbsComponent(t *testing.T) {
	assert.Equal(t, float32(120), Vec3{1, -120, 100}.MaxAbsComponent())
}

func TestAngleVectors(t *testing.T) {
	f, _, _ := AngleVectors(Vec3{0, 0, 0})
	assert.InDelta(t, 1, f[0], 1e-6)
	f, _, _ = AngleVectors(Vec3{0, 90, 0})
	assert.InDelta(t, 0, f[0], 1e-6)
	assert.InDelta(t, 1, f[1], 1e-6)
}
