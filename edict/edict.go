// SPDX-License-Identifier: GPL-2.0-or-later

// Package edict holds the server side entities. Entities live in an arena
// and are referenced by generation-checked handles, a handle kept across a
// free or a level change reports ErrStale instead of aliasing the new
// occupant of the slot.
package edict

import (
	"time"

	"netquake/math/vec"
	"netquake/protocol/items"

	"github.com/pkg/errors"
)

var (
	ErrStale        = errors.New("stale edict handle")
	ErrNoFreeEdicts = errors.New("no free edicts")
	ErrWorld        = errors.New("world edict can not be freed")
)

// Entity flags.
const (
	FlagFly = 1 << iota
	FlagSwim
	FlagConveyor
	FlagClient
	FlagInWater
	FlagMonster
	FlagGodMode
	FlagNoTarget
	FlagItem
	FlagOnGround
	FlagPartialGround
	FlagWaterJump
	FlagJumpReleased
)

// AlphaDefault means opaque for protocols supporting alpha.
const AlphaDefault = 0

// State is what clients see of an entity, sent as baseline and delta
// encoded against it.
type State struct {
	Origin     vec.Vec3
	Angles     vec.Vec3
	ModelIndex int
	Frame      int
	ColorMap   int
	Skin       int
	Effects    int
	Alpha      byte
}

type Edict struct {
	Free     bool
	FreeTime time.Duration
	Baseline State

	ClassName  string
	NetName    string
	Model      string
	ModelIndex int
	Origin     vec.Vec3
	OldOrigin  vec.Vec3
	Angles     vec.Vec3
	Velocity   vec.Vec3
	AVelocity  vec.Vec3
	Mins       vec.Vec3
	Maxs       vec.Vec3
	Frame      int
	Skin       int
	Effects    int
	ColorMap   int
	Team       int
	Alpha      byte

	Items       items.Items
	Health      float32
	Frags       float32
	ArmorValue  float32
	CurrentAmmo float32
	AmmoShells  float32
	AmmoNails   float32
	AmmoRockets float32
	AmmoCells   float32
	Weapon      int
	WeaponModel string
	WeaponFrame int

	ViewOfs    vec.Vec3
	IdealPitch float32
	PunchAngle vec.Vec3
	VAngle     vec.Vec3
	Flags      int
	WaterLevel int
	FixAngle   bool

	// NextThink is the server time of the next animation step.
	NextThink time.Duration
	// SendInterval is set when the think interval differs from 0.1s
	// so clients need an explicit lerp finish time.
	SendInterval bool

	generation uint32
}

// Handle references a slot in an Arena.
type Handle struct {
	Index      int
	Generation uint32
}

// Arena is a bounded table of edicts. Index 0 is the world, the reserved
// slots following it belong to the clients.
type Arena struct {
	edicts   []Edict
	num      int
	reserved int
}

func NewArena(max int) *Arena {
	return &Arena{
		edicts: make([]Edict, max),
		num:    1,
	}
}

// Reset clears every slot for a new level. reserved is the number of
// slots after the world that Alloc never hands out.
func (a *Arena) Reset(reserved int) {
	for i := range a.edicts {
		g := a.edicts[i].generation + 1
		a.edicts[i] = Edict{generation: g}
	}
	a.reserved = reserved
	a.num = 1 + reserved
	if a.num > len(a.edicts) {
		a.num = len(a.edicts)
	}
}

// Num returns the number of slots in use, free ones included.
func (a *Arena) Num() int {
	return a.num
}

func (a *Arena) Max() int {
	return len(a.edicts)
}

// At returns the edict at index i without generation check.
func (a *Arena) At(i int) *Edict {
	return &a.edicts[i]
}

func (a *Arena) Handle(i int) Handle {
	return Handle{Index: i, Generation: a.edicts[i].generation}
}

func (a *Arena) Get(h Handle) (*Edict, error) {
	if h.Index < 0 || h.Index >= a.num {
		return nil, errors.Wrapf(ErrStale, "index %d of %d", h.Index, a.num)
	}
	e := &a.edicts[h.Index]
	if e.generation != h.Generation {
		return nil, errors.Wrapf(ErrStale, "index %d generation %d != %d", h.Index, h.Generation, e.generation)
	}
	return e, nil
}

// Alloc returns a cleared edict. Free slots are only reused when they were
// freed more than half a second ago so clients do not interpolate a new
// entity from the position of the old one. The first two seconds of a
// level see a lot of churn and reuse immediately.
func (a *Arena) Alloc(now time.Duration) (Handle, *Edict, error) {
	for i := 1 + a.reserved; i < a.num; i++ {
		e := &a.edicts[i]
		if e.Free && (e.FreeTime < 2*time.Second || now-e.FreeTime > 500*time.Millisecond) {
			a.clear(i)
			return a.Handle(i), e, nil
		}
	}
	if a.num == len(a.edicts) {
		return Handle{}, nil, errors.Wrapf(ErrNoFreeEdicts, "max_edicts is %d", len(a.edicts))
	}
	i := a.num
	a.num++
	a.clear(i)
	return a.Handle(i), &a.edicts[i], nil
}

// Clear zeroes slot i in place. Handles to it stay valid.
func (a *Arena) Clear(i int) *Edict {
	a.clear(i)
	return &a.edicts[i]
}

func (a *Arena) clear(i int) {
	g := a.edicts[i].generation
	a.edicts[i] = Edict{generation: g}
}

// Restore puts e into slot i, growing the arena to include it. Slots
// skipped over are marked free. The generation of the slot is kept.
func (a *Arena) Restore(i int, e Edict) (*Edict, error) {
	if i <= 0 || i >= len(a.edicts) {
		return nil, errors.Wrapf(ErrNoFreeEdicts, "slot %d of %d", i, len(a.edicts))
	}
	for ; a.num <= i; a.num++ {
		a.clear(a.num)
		a.edicts[a.num].Free = true
	}
	e.generation = a.edicts[i].generation
	a.edicts[i] = e
	return &a.edicts[i], nil
}

// Free marks the edict free. Existing handles become stale.
func (a *Arena) Free(h Handle, now time.Duration) error {
	if h.Index == 0 {
		return ErrWorld
	}
	e, err := a.Get(h)
	if err != nil {
		return err
	}
	g := e.generation + 1
	*e = Edict{
		Free:       true,
		FreeTime:   now,
		NextThink:  -1,
		generation: g,
	}
	return nil
}

// Each calls f for every edict in use.
func (a *Arena) Each(f func(i int, e *Edict)) {
	for i := 0; i < a.num; i++ {
		if !a.edicts[i].Free {
			f(i, &a.edicts[i])
		}
	}
}

// Counts reports used, model carrying and freed edicts.
func (a *Arena) Counts() (active, models, free int) {
	for i := 0; i < a.num; i++ {
		e := &a.edicts[i]
		if e.Free {
			free++
			continue
		}
		active++
		if e.Model != "" {
			models++
		}
	}
	return active, models, free
}
