// SPDX-License-Identifier: GPL-2.0-or-later

package client

import (
	"context"
	"testing"
	"time"

	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"
	"netquake/cvar"
	"netquake/lerp"
	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"
	clc "netquake/protocol/client"
	svc "netquake/protocol/server"
	"netquake/qtime"
	"netquake/server"
	"netquake/sim"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = 100 * time.Millisecond

type localGame struct {
	c  *Client
	s  *server.Server
	cb *cbuf.CommandBuffer
}

func newLocalGame(t *testing.T) *localGame {
	t.Helper()
	conlog.SetPrintf(func(string, ...any) {})
	t.Cleanup(func() { conlog.SetPrintf(nil) })

	cvars := cvar.NewRegistry()
	n := net.New(net.DefaultConfig(), &qtime.Manual{})
	sm := sim.New(map[string]sim.Level{
		"dm1": {Entities: []sim.Entity{{ClassName: "item_shells", Origin: vec.Vec3{200, 0, 0}}}},
	})
	s := server.New(n, sm, cvars, server.Options{MaxClientsLimit: 4, Protocol: protocol.FitzQuake})
	require.NoError(t, s.SetMaxClients(2))
	require.NoError(t, s.SpawnServer(server.Level{Name: "dm1"}))

	cb := cbuf.New()
	c := New(n, cb, cvars)
	c.SetLocalServer(true)
	require.NoError(t, c.Connect(context.Background(), "local"))
	return &localGame{c: c, s: s, cb: cb}
}

func (g *localGame) run(t *testing.T, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		g.s.Frame(frame)
		require.NoError(t, g.c.ReadFromServer(frame.Seconds()))
		require.NoError(t, g.c.SendCmd())
	}
}

// consoleFor returns a command buffer running the client commands.
func consoleFor(t *testing.T, c *Client) *cbuf.CommandBuffer {
	t.Helper()
	cmds := cmd.New()
	require.NoError(t, c.Register(cmds))
	return cbuf.New(cmds.Execute())
}

func TestSignonOverLoopback(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)

	assert.Equal(t, SignonStages, g.c.Signon())
	assert.True(t, g.s.Client(0).Spawned())
	assert.Equal(t, "player", g.s.Client(0).Name())
	assert.Equal(t, protocol.FitzQuake, g.c.Protocol())
	assert.Equal(t, 2, g.c.MaxClients())
	assert.Equal(t, 1, g.c.ViewEntity())
	assert.Equal(t, "m", g.c.LightStyle(0))

	p, ok := g.c.Player(0)
	require.True(t, ok)
	assert.Equal(t, "player", p.Name)

	// world, two client slots, the item
	item := g.c.Entity(3)
	require.NotNil(t, item)
	assert.True(t, item.Visible)
	assert.Equal(t, "maps/b_shell0.bsp", g.c.modelName(item.ModelIndex))
	assert.Equal(t, vec.Vec3{200, 0, 0}, item.Origin)
	assert.Equal(t, item.ModelIndex, item.Baseline.ModelIndex)
}

func TestStuffTextGoesToCommandBuffer(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)
	require.True(t, g.cb.Empty())

	g.s.Client(0).StuffText("echo hi\n")
	g.run(t, 2)
	assert.False(t, g.cb.Empty())
}

func TestStringCommandsReachServer(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)

	console := consoleFor(t, g.c)
	require.NoError(t, console.ExecuteText("name Ranger"))
	g.run(t, 3)
	assert.Equal(t, "Ranger", g.s.Client(0).Name())

	require.NoError(t, console.ExecuteText("color 4 11"))
	g.run(t, 3)
	assert.Equal(t, 4<<4|11, g.s.Client(0).Colors())
	p, _ := g.c.Player(0)
	assert.Equal(t, 4<<4|11, p.Colors)
}

func TestMovesReachServer(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)

	g.c.SetViewAngles(vec.Vec3{0, 90, 0})
	g.c.SetMove(clc.CmdMove{Forward: 200})
	g.run(t, 2)
	m := g.s.Client(0).Move()
	assert.Equal(t, float32(200), m.Forward)
	assert.InDelta(t, 90, m.Angles[1], 0.01)
}

func TestClientDisconnect(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)

	g.c.Disconnect()
	assert.Equal(t, Disconnected, g.c.State())
	assert.Zero(t, g.c.Signon())
	g.s.Frame(frame)
	assert.False(t, g.s.Client(0).Active())
}

func TestServerShutdownDisconnects(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)

	g.s.Shutdown(false)
	err := g.c.ReadFromServer(frame.Seconds())
	assert.Error(t, err)
	assert.Equal(t, Disconnected, g.c.State())
}

func TestLevelChangeRestartsSignon(t *testing.T) {
	g := newLocalGame(t)
	g.run(t, 8)

	require.NoError(t, g.s.SpawnServer(server.Level{Name: "e1m2"}))
	assert.False(t, g.s.Client(0).Spawned())

	g.run(t, 10)
	assert.False(t, g.cb.Empty(), "reconnect was stuffed")
	assert.Equal(t, "e1m2", g.c.LevelName())
	assert.Equal(t, SignonStages, g.c.Signon())
	assert.True(t, g.s.Client(0).Spawned())
}

func TestUnknownCommandDisconnects(t *testing.T) {
	c := New(nil, cbuf.New(), cvar.NewRegistry())
	err := c.parseServerMessage([]byte{svc.Nop, 0x7f})
	assert.True(t, errors.Is(err, net.ErrProtocol))
	assert.True(t, errors.Is(err, svc.ErrIllegible))
}

func TestSignonOrder(t *testing.T) {
	c := New(nil, cbuf.New(), cvar.NewRegistry())
	require.NoError(t, c.handle(svc.SignonNumCmd(1)))
	require.Len(t, c.out, 1)
	assert.Equal(t, clc.CmdString{Text: "prespawn"}, c.out[0])

	require.NoError(t, c.handle(svc.SignonNumCmd(2)))
	require.Len(t, c.out, 4)
	assert.Equal(t, clc.CmdString{Text: "name \"player\""}, c.out[1])
	assert.Equal(t, clc.CmdString{Text: "color 0 0"}, c.out[2])
	assert.Equal(t, clc.CmdString{Text: "spawn "}, c.out[3])

	err := c.handle(svc.SignonNumCmd(2))
	assert.True(t, errors.Is(err, net.ErrProtocol))

	require.NoError(t, c.handle(svc.SignonNumCmd(3)))
	assert.Equal(t, clc.CmdString{Text: "begin"}, c.out[4])
	require.NoError(t, c.handle(svc.EntityUpdate{Entity: 1}))
	assert.Equal(t, SignonStages, c.Signon())
}

func TestLerpPoint(t *testing.T) {
	c := New(nil, cbuf.New(), cvar.NewRegistry())
	c.mtime = [2]float64{1.1, 1.0}
	c.time = 1.05
	assert.InDelta(t, 0.5, c.LerpPoint(), 1e-5)

	c.time = 2
	assert.Equal(t, float32(1), c.LerpPoint())
	assert.Equal(t, 1.1, c.time, "time is pulled back to the last message")

	// dropped packets lerp over the last 0.1s only
	c.mtime = [2]float64{2, 1}
	c.time = 1.95
	assert.InDelta(t, 0.5, c.LerpPoint(), 1e-5)
	assert.InDelta(t, 1.9, c.mtime[1], 1e-9)

	require.NoError(t, c.noLerp.SetValue(1))
	c.time = 1.95
	assert.Equal(t, float32(1), c.LerpPoint())

	c.SetLocalServer(true)
	require.NoError(t, c.noLerp.SetValue(0))
	assert.Equal(t, float32(1), c.LerpPoint())
	assert.Equal(t, 2.0, c.time)
}

func TestRelinkInterpolatesAndTeleports(t *testing.T) {
	c := New(nil, cbuf.New(), cvar.NewRegistry())
	c.modelPrecache = []string{"maps/e1m1.bsp", "progs/soldier.mdl"}
	c.mtime = [2]float64{1.1, 1.0}

	e, err := c.entity(2)
	require.NoError(t, err)
	e.MsgTime = 1.1
	e.ModelIndex = 2
	e.MsgOrigins = [2]vec.Vec3{{10, 0, 0}, {0, 0, 0}}
	e.MsgAngles = [2]vec.Vec3{{0, -170, 0}, {0, 170, 0}}
	c.relinkEntities(0.5)
	assert.True(t, e.Visible)
	assert.InDelta(t, 5, e.Origin[0], 1e-4)
	// the short way around
	assert.InDelta(t, 180, e.Angles[1], 1e-4)

	e.MsgOrigins = [2]vec.Vec3{{300, 0, 0}, {0, 0, 0}}
	e.Lerp.Flags = 0
	c.relinkEntities(0.5)
	assert.Equal(t, vec.Vec3{300, 0, 0}, e.Origin)
	assert.Equal(t, e.Origin, e.Result.Origin)

	e.MsgTime = 1.0
	c.relinkEntities(0.5)
	assert.False(t, e.Visible, "missing from the last update")
	assert.NotZero(t, e.Lerp.Flags&lerp.ResetMove)
}

func TestEntityUpdateForceLink(t *testing.T) {
	c := New(nil, cbuf.New(), cvar.NewRegistry())
	c.protocol = protocol.FitzQuake
	c.modelPrecache = []string{"maps/e1m1.bsp", "progs/soldier.mdl"}
	c.mtime = [2]float64{1.0, 0.9}
	require.NoError(t, c.handle(svc.SpawnBaselineCmd{Index: 4, Baseline: svc.Baseline{ModelIndex: 2, Frame: 3}}))

	require.NoError(t, c.handle(svc.EntityUpdate{
		Entity:     4,
		Bits:       svc.U_ORIGIN1 | svc.U_LERPFINISH,
		Origin:     vec.Vec3{64, 0, 0},
		LerpFinish: 51,
	}))
	e := c.Entity(4)
	assert.Equal(t, 2, e.ModelIndex)
	assert.Equal(t, 3, e.Frame)
	assert.True(t, e.ForceLink, "first update snaps")
	assert.Equal(t, vec.Vec3{64, 0, 0}, e.Origin)
	assert.InDelta(t, 1.2, e.Lerp.LerpFinish, 1e-9)
	assert.NotZero(t, e.Lerp.Flags&lerp.Finish)

	c.mtime = [2]float64{1.1, 1.0}
	e.ForceLink = false
	require.NoError(t, c.handle(svc.EntityUpdate{Entity: 4, Bits: svc.U_ORIGIN1, Origin: vec.Vec3{80, 0, 0}}))
	assert.False(t, e.ForceLink)
	assert.Equal(t, [2]vec.Vec3{{80, 0, 0}, {64, 0, 0}}, e.MsgOrigins)
	assert.Zero(t, e.Lerp.Flags&lerp.Finish)
}
