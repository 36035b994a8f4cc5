// SPDX-License-Identifier: GPL-2.0-or-later

package client

import (
	"netquake/lerp"
	qmath "netquake/math"
	"netquake/math/vec"
	svc "netquake/protocol/server"

	"github.com/chewxy/math32"
)

// teleportDistance is the per axis jump in origin between two updates
// that is not interpolated.
const teleportDistance = 100

// Entity is the client side of a server entity.
type Entity struct {
	Baseline svc.Baseline

	// MsgTime is the server time of the last update naming the entity.
	MsgTime float64
	// MsgOrigins and MsgAngles hold the last two received values, most
	// recent first.
	MsgOrigins [2]vec.Vec3
	MsgAngles  [2]vec.Vec3

	Origin     vec.Vec3
	Angles     vec.Vec3
	ModelIndex int
	Frame      int
	Skin       int
	ColorMap   int
	Effects    int
	Alpha      int
	ForceLink  bool
	// Visible is set by the relink when the entity has a model and was
	// part of the last update.
	Visible bool

	Lerp   lerp.State
	Result lerp.Result
}

// LerpPoint determines the fraction between the last two messages that
// entities should be put at.
func (c *Client) LerpPoint() float32 {
	f := c.mtime[0] - c.mtime[1]

	if f == 0 || c.localServer {
		c.time = c.mtime[0]
		return 1
	}

	// dropped packet, or start of demo
	if f > 0.1 {
		c.mtime[1] = c.mtime[0] - 0.1
		f = 0.1
	}

	frac := (c.time - c.mtime[1]) / f
	if frac < 0 {
		if frac < -0.01 {
			c.time = c.mtime[1]
		}
		frac = 0
	} else if frac > 1 {
		if frac > 1.01 {
			c.time = c.mtime[0]
		}
		frac = 1
	}

	if c.noLerp.Bool() {
		return 1
	}
	return float32(frac)
}

func (c *Client) modelName(i int) string {
	if i < 1 || i > len(c.modelPrecache) {
		return ""
	}
	return c.modelPrecache[i-1]
}

// relinkEntities places every entity between its last two network states
// and updates its interpolation state.
func (c *Client) relinkEntities(frac float32) {
	o := c.lerpOptions()
	for i, e := range c.entities {
		if i == 0 || e == nil {
			continue
		}
		if e.MsgTime != c.mtime[0] {
			// not in the last update
			e.Visible = false
			e.Lerp.Flags |= lerp.ResetMove
			continue
		}
		if e.ModelIndex == 0 {
			e.Visible = false
			continue
		}
		if e.ForceLink {
			e.Origin = e.MsgOrigins[0]
			e.Angles = e.MsgAngles[0]
		} else {
			f := frac
			delta := vec.Sub(e.MsgOrigins[0], e.MsgOrigins[1])
			for j := range delta {
				if math32.Abs(delta[j]) > teleportDistance {
					// teleported, no lerp
					f = 1
					e.Lerp.Flags |= lerp.ResetMove
					break
				}
			}
			e.Origin = vec.FMA(e.MsgOrigins[1], f, delta)
			d := vec.Sub(e.MsgAngles[0], e.MsgAngles[1])
			for j := range d {
				d[j] = qmath.AngleDelta(d[j])
			}
			e.Angles = vec.FMA(e.MsgAngles[1], f, d)
		}
		e.ForceLink = false
		e.Visible = true

		if m := c.models[c.modelName(e.ModelIndex)]; m != nil {
			e.Lerp.SetupAliasFrame(&e.Result, e.Frame, m, c.time, o)
		}
		e.Lerp.SetupEntityTransform(&e.Result, e.Origin, e.Angles, c.time, o)
	}
}
