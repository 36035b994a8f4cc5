// SPDX-License-Identifier: GPL-2.0-or-later

package lerp

import (
	"testing"

	"netquake/math/vec"
	"netquake/mdl"

	"github.com/stretchr/testify/assert"
)

func testModel(flags int) *mdl.Model {
	return mdl.New("progs/test.mdl", flags,
		mdl.SingleFrame("stand1"),
		mdl.SingleFrame("stand2"),
		mdl.GroupFrame("run", 4, 0.2),
		mdl.SingleFrame("pain"),
	)
}

func TestBlendBounds(t *testing.T) {
	m := testModel(0)
	s := &State{Flags: ResetAnim}
	var r Result
	s.SetupAliasFrame(&r, 0, m, 0.5, DefaultOptions())
	assert.Equal(t, 0, r.Pose1)
	assert.Equal(t, 0, r.Pose2)

	// pose change, blend starts at exactly 0
	s.SetupAliasFrame(&r, 1, m, 1, DefaultOptions())
	assert.Equal(t, 0.0, r.Blend)
	assert.Equal(t, 0, r.Pose1)
	assert.Equal(t, 1, r.Pose2)

	s.SetupAliasFrame(&r, 1, m, 1.05, DefaultOptions())
	assert.InDelta(t, 0.5, r.Blend, 1e-9)

	for _, elapsed := range []float64{0.1, 0.2, 5} {
		s.SetupAliasFrame(&r, 1, m, 1+elapsed, DefaultOptions())
		assert.Equal(t, 1.0, r.Blend, "elapsed %v", elapsed)
	}
}

func TestRedundantUpdateKeepsPoses(t *testing.T) {
	m := testModel(0)
	s := &State{Flags: ResetAnim}
	var r Result
	s.SetupAliasFrame(&r, 0, m, 0, DefaultOptions())
	s.SetupAliasFrame(&r, 3, m, 1, DefaultOptions())
	start := s.LerpStart
	s.SetupAliasFrame(&r, 3, m, 1.02, DefaultOptions())
	s.SetupAliasFrame(&r, 3, m, 1.04, DefaultOptions())
	assert.Equal(t, start, s.LerpStart)
	assert.Equal(t, 0, r.Pose1)
	// poses of stand1, stand2 and run come first
	assert.Equal(t, 6, r.Pose2)
}

func TestGroupFrameCycles(t *testing.T) {
	m := testModel(0)
	s := &State{}
	var r Result
	tests := []struct {
		now  float64
		pose int
	}{
		{0, 2},
		{0.25, 3},
		{0.45, 4},
		{0.65, 5},
		{0.85, 2},
	}
	for _, tc := range tests {
		s.SetupAliasFrame(&r, 2, m, tc.now, DefaultOptions())
		assert.Equal(t, tc.pose, s.CurrentPose, "now %v", tc.now)
		assert.InDelta(t, 0.2, s.LerpTime, 1e-6)
	}
}

func TestOutOfRangeFrame(t *testing.T) {
	m := testModel(0)
	s := &State{Flags: ResetAnim}
	var r Result
	s.SetupAliasFrame(&r, 42, m, 3, DefaultOptions())
	assert.Equal(t, 0, r.Pose2)
	s.SetupAliasFrame(&r, -1, m, 3, DefaultOptions())
	assert.Equal(t, 0, r.Pose2)
}

func TestEmptyModel(t *testing.T) {
	s := &State{}
	var r Result
	s.SetupAliasFrame(&r, 0, mdl.New("empty", 0), 1, DefaultOptions())
	assert.Equal(t, 1.0, r.Blend)
}

func TestNoLerp(t *testing.T) {
	m := testModel(mdl.NoLerp)
	s := &State{Flags: ResetAnim}
	var r Result
	s.SetupAliasFrame(&r, 0, m, 0, DefaultOptions())
	s.SetupAliasFrame(&r, 1, m, 1, DefaultOptions())
	assert.Equal(t, 1.0, r.Blend)
	assert.Equal(t, 1, r.Pose1)
	assert.Equal(t, 1, r.Pose2)

	// 2 forces lerping even for NoLerp models
	s.SetupAliasFrame(&r, 0, m, 2, Options{LerpModels: 2, LerpMove: true})
	assert.Equal(t, 0.0, r.Blend)
	assert.Equal(t, 1, r.Pose1)
	assert.Equal(t, 0, r.Pose2)

	s.SetupAliasFrame(&r, 1, m, 3, Options{LerpModels: 0})
	assert.Equal(t, 1.0, r.Blend)
}

func TestResetAnim2(t *testing.T) {
	m := testModel(0)
	s := &State{Flags: ResetAnim | ResetAnim2}
	var r Result
	s.SetupAliasFrame(&r, 0, m, 0, DefaultOptions())
	s.SetupAliasFrame(&r, 1, m, 1, DefaultOptions())
	assert.Equal(t, 1, r.Pose1)
	assert.Equal(t, 1.0, r.Blend)
	s.SetupAliasFrame(&r, 0, m, 2, DefaultOptions())
	assert.Equal(t, 1, r.Pose1)
	assert.Equal(t, 0.0, r.Blend)
}

func TestLerpFinish(t *testing.T) {
	m := testModel(0)
	s := &State{Flags: ResetAnim}
	var r Result
	s.SetupAliasFrame(&r, 0, m, 0, DefaultOptions())
	s.Flags |= Finish
	s.LerpFinish = 1.4
	s.SetupAliasFrame(&r, 1, m, 1, DefaultOptions())
	s.SetupAliasFrame(&r, 1, m, 1.2, DefaultOptions())
	assert.InDelta(t, 0.5, r.Blend, 1e-9)
}

func TestMoveStep(t *testing.T) {
	s := &State{Flags: ResetMove | MoveStep}
	var r Result
	o := DefaultOptions()
	s.SetupEntityTransform(&r, vec.Vec3{0, 0, 0}, vec.Vec3{0, 170, 0}, 0, o)
	assert.Equal(t, vec.Vec3{0, 0, 0}, r.Origin)

	s.SetupEntityTransform(&r, vec.Vec3{10, 0, 0}, vec.Vec3{0, -170, 0}, 1, o)
	assert.Equal(t, vec.Vec3{0, 0, 0}, r.Origin)

	s.SetupEntityTransform(&r, vec.Vec3{10, 0, 0}, vec.Vec3{0, -170, 0}, 1.05, o)
	assert.InDelta(t, 5, r.Origin[0], 1e-4)
	// the short way round across 180
	assert.InDelta(t, 180, r.Angles[1], 1e-3)

	s.SetupEntityTransform(&r, vec.Vec3{10, 0, 0}, vec.Vec3{0, -170, 0}, 2, o)
	assert.InDelta(t, 10, r.Origin[0], 1e-4)
	assert.InDelta(t, 190, r.Angles[1], 1e-3)
}

func TestNoMoveStep(t *testing.T) {
	s := &State{Flags: ResetMove}
	var r Result
	s.SetupEntityTransform(&r, vec.Vec3{1, 2, 3}, vec.Vec3{}, 0, DefaultOptions())
	s.SetupEntityTransform(&r, vec.Vec3{4, 5, 6}, vec.Vec3{}, 0.01, DefaultOptions())
	assert.Equal(t, vec.Vec3{4, 5, 6}, r.Origin)
}
