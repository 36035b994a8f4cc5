// SPDX-License-Identifier: GPL-2.0-or-later

// Package lerp computes the pose blend and the smoothed transform of alias
// model entities between network updates.
package lerp

import (
	"netquake/conlog"
	qmath "netquake/math"
	"netquake/math/vec"
	"netquake/mdl"
)

type Flags int

const (
	// ResetAnim disables anim lerping until the next anim frame.
	ResetAnim Flags = 1 << iota
	// ResetAnim2 together with ResetAnim disables anim lerping for two
	// anim frames.
	ResetAnim2
	// ResetMove disables movement lerping until the next origin/angles change.
	ResetMove
	// MoveStep enables movement lerping of MOVETYPE_STEP entities.
	MoveStep
	// Finish uses the finish time from the server update instead of
	// assuming an interval of 0.1s.
	Finish
)

// stepInterval is the assumed think time of step moving entities.
const stepInterval = 0.1

type Options struct {
	// LerpModels 0 disables pose blending, 2 blends even NoLerp models.
	LerpModels float32
	LerpMove   bool
}

func DefaultOptions() Options {
	return Options{LerpModels: 1, LerpMove: true}
}

// State is the per entity interpolation state. Times are client seconds.
type State struct {
	Flags      Flags
	LerpStart  float64
	LerpFinish float64
	LerpTime   float64

	PreviousPose int
	CurrentPose  int

	MoveLerpStart  float64
	PreviousOrigin vec.Vec3
	CurrentOrigin  vec.Vec3
	PreviousAngles vec.Vec3
	CurrentAngles  vec.Vec3
}

// Result is handed to the renderer.
type Result struct {
	Pose1  int // lerp between pose1 and pose2
	Pose2  int
	Blend  float64
	Origin vec.Vec3
	Angles vec.Vec3
}

// SetupAliasFrame resolves frame at time now into two poses and their blend.
func (s *State) SetupAliasFrame(r *Result, frame int, m *mdl.Model, now float64, o Options) {
	if len(m.Frames) == 0 {
		r.Pose1, r.Pose2, r.Blend = 0, 0, 1
		return
	}
	if frame >= len(m.Frames) || frame < 0 {
		conlog.DPrintf("SetupAliasFrame: no such frame %d for '%s'\n", frame, m.Name)
		frame = 0
	}
	poseNum := 0
	for i := 0; i < frame; i++ {
		poseNum += len(m.Frames[i].Group)
	}
	f := &m.Frames[frame]
	numPoses := len(f.Group)
	s.LerpTime = float64(f.Interval)
	if numPoses <= 1 || s.LerpTime <= 0 {
		s.LerpTime = mdl.DefaultInterval
	}
	if numPoses > 1 {
		poseNum += int(now/s.LerpTime) % numPoses
	}

	if s.Flags&ResetAnim != 0 {
		s.LerpStart = 0
		s.PreviousPose = poseNum
		s.CurrentPose = poseNum
		s.Flags &^= ResetAnim
	} else if s.CurrentPose != poseNum {
		if s.Flags&ResetAnim2 != 0 {
			s.LerpStart = 0
			s.PreviousPose = poseNum
			s.CurrentPose = poseNum
			s.Flags &^= ResetAnim2
		} else {
			s.LerpStart = now
			s.PreviousPose = s.CurrentPose
			s.CurrentPose = poseNum
		}
	}

	if o.LerpModels != 0 && !(o.LerpModels != 2 && m.Flags()&mdl.NoLerp != 0) {
		if s.Flags&Finish != 0 && numPoses == 1 && s.LerpFinish > s.LerpStart {
			r.Blend = qmath.Clamp(0, (now-s.LerpStart)/(s.LerpFinish-s.LerpStart), 1)
		} else {
			r.Blend = qmath.Clamp(0, (now-s.LerpStart)/s.LerpTime, 1)
		}
		r.Pose1 = s.PreviousPose
		r.Pose2 = s.CurrentPose
	} else {
		r.Blend = 1
		r.Pose1 = poseNum
		r.Pose2 = poseNum
	}
}

// SetupEntityTransform smooths origin and angles of step moving entities.
func (s *State) SetupEntityTransform(r *Result, origin, angles vec.Vec3, now float64, o Options) {
	if s.Flags&ResetMove != 0 {
		s.MoveLerpStart = 0
		s.PreviousOrigin = origin
		s.CurrentOrigin = origin
		s.PreviousAngles = angles
		s.CurrentAngles = angles
		s.Flags &^= ResetMove
	} else if origin != s.CurrentOrigin || angles != s.CurrentAngles {
		s.MoveLerpStart = now
		s.PreviousOrigin = s.CurrentOrigin
		s.CurrentOrigin = origin
		s.PreviousAngles = s.CurrentAngles
		s.CurrentAngles = angles
	}

	if !o.LerpMove || s.Flags&MoveStep == 0 {
		r.Origin = origin
		r.Angles = angles
		return
	}
	blend := now - s.MoveLerpStart
	if s.Flags&Finish != 0 && s.LerpFinish > s.MoveLerpStart {
		blend /= s.LerpFinish - s.MoveLerpStart
	} else {
		blend /= stepInterval
	}
	blend = qmath.Clamp(0, blend, 1)

	d := vec.Sub(s.CurrentOrigin, s.PreviousOrigin)
	r.Origin = vec.FMA(s.PreviousOrigin, float32(blend), d)

	d = vec.Sub(s.CurrentAngles, s.PreviousAngles)
	for i := range d {
		d[i] = qmath.AngleDelta(d[i])
	}
	r.Angles = vec.FMA(s.PreviousAngles, float32(blend), d)
}
