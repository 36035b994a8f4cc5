// SPDX-License-Identifier: GPL-2.0-or-later

// Package mdl describes alias models as far as animation needs them:
// frames made of one or more poses and the interval between poses.
package mdl

const (
	ST_SYNC = iota
	ST_RAND
)

// Model flags
const (
	EntityEffectRocket  = 1 << 0
	EntityEffectGrenade = 1 << 1
	EntityEffectGib     = 1 << 2
	EntityEffectRotate  = 1 << 3
	EntityEffectTracer  = 1 << 4
	EntityEffectZomGib  = 1 << 5
	EntityEffectTracer2 = 1 << 6
	EntityEffectTracer3 = 1 << 7
	NoLerp              = 1 << 8
	NoShadow            = 1 << 9
	FullBrightHack      = 1 << 10
)

// DefaultInterval is used for frames of a single pose.
const DefaultInterval = 0.1

type Vertex struct { // trivertx_t
	PackedPosition   [3]byte // final is (Scale * PackedPosition)+ScaleOrigin
	LightNormalIndex byte
}

type Pose struct {
	Vertices []Vertex
}

type Frame struct {
	Name string
	// Interval between the poses of a group frame.
	Interval float32
	Group    []Pose
}

type Model struct {
	Name     string
	Frames   []Frame
	SyncType int
	flags    int
}

func New(name string, flags int, frames ...Frame) *Model {
	return &Model{
		Name:   name,
		Frames: frames,
		flags:  flags,
	}
}

func (m *Model) Flags() int {
	return m.flags
}

// NumPoses returns the total number of poses over all frames.
func (m *Model) NumPoses() int {
	n := 0
	for i := range m.Frames {
		n += len(m.Frames[i].Group)
	}
	return n
}

// SingleFrame returns a frame of one pose.
func SingleFrame(name string) Frame {
	return Frame{
		Name:     name,
		Interval: DefaultInterval,
		Group:    make([]Pose, 1),
	}
}

// GroupFrame returns a frame cycling through n poses.
func GroupFrame(name string, n int, interval float32) Frame {
	return Frame{
		Name:     name,
		Interval: interval,
		Group:    make([]Pose, n),
	}
}
