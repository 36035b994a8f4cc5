// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"testing"

	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"
	"netquake/protocol/flags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignonRoundTrip(t *testing.T) {
	cmds := []Cmd{
		PrintCmd("welcome\n"),
		ServerInfoCmd{
			Protocol:      protocol.RMQ,
			Flags:         flags.Default,
			MaxClients:    4,
			GameType:      GameDeathmatch,
			LevelName:     "The Slipgate Complex",
			ModelPrecache: []string{"maps/e1m1.bsp", "*1", "progs/player.mdl"},
			SoundPrecache: []string{"weapons/r_exp3.wav"},
		},
		// coords after the server info use the RMQ float encoding
		SpawnBaselineCmd{Index: 1, Baseline: Baseline{
			ModelIndex: 3,
			Origin:     vec.Vec3{1.25, -2.5, 1000.125},
			Angles:     vec.Vec3{0, 90, 0},
		}},
		SetViewCmd(1),
		SignonNumCmd(1),
	}
	m := net.NewMessage(net.NetMaxMessage)
	require.NoError(t, Write(m, protocol.NetQuake, 0, cmds[:2]...))
	require.NoError(t, Write(m, protocol.RMQ, flags.Default, cmds[2:]...))

	got, err := Parse(m.Bytes(), protocol.NetQuake, 0)
	require.NoError(t, err)
	assert.Equal(t, cmds, got)
}

func TestEntityUpdateExtensions(t *testing.T) {
	eu := EntityUpdate{
		Entity: 300,
		Bits:   U_MODEL | U_FRAME | U_ORIGIN1 | U_ALPHA,
		Model:  0x123,
		Frame:  7,
		Origin: vec.Vec3{64, 0, 0},
		Alpha:  128,
	}

	m := net.NewMessage(64)
	require.NoError(t, Write(m, protocol.FitzQuake, 0, eu))
	got, err := Parse(m.Bytes(), protocol.FitzQuake, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	g := got[0].(EntityUpdate)
	assert.Equal(t, 300, g.Entity)
	assert.Equal(t, 0x123, g.Model)
	assert.Equal(t, 128, g.Alpha)
	assert.Equal(t, float32(64), g.Origin[0])
	assert.NotZero(t, g.Bits&U_MODEL2)
	assert.NotZero(t, g.Bits&U_LONGENTITY)

	// NetQuake knows neither alpha nor large models
	m.Clear()
	require.NoError(t, Write(m, protocol.NetQuake, 0, eu))
	got, err = Parse(m.Bytes(), protocol.NetQuake, 0)
	require.NoError(t, err)
	g = got[0].(EntityUpdate)
	assert.Equal(t, 0x23, g.Model)
	assert.Zero(t, g.Alpha)
	assert.Zero(t, g.Bits&U_ALPHA)
}

func TestClientDataDefaults(t *testing.T) {
	cd := ClientDataCmd{
		ViewHeight: protocol.DefaultViewHeight,
		Items:      1 << 31,
		OnGround:   true,
		Health:     100,
		Shells:     25,
		Weapon:     2,
		Velocity:   [3]int{0, -3, 0},
	}
	m := net.NewMessage(64)
	require.NoError(t, Write(m, protocol.NetQuake, 0, cd))
	// no view height, no punch, one velocity byte
	assert.Equal(t, 1+2+1+4+1+2+6, m.Len())
	got, err := Parse(m.Bytes(), protocol.NetQuake, 0)
	require.NoError(t, err)
	assert.Equal(t, []Cmd{cd}, got)
}

func TestClientDataLargeAmmo(t *testing.T) {
	cd := ClientDataCmd{ViewHeight: 10, Health: 250, Cells: 400, Weapon: 300}
	m := net.NewMessage(64)
	require.NoError(t, Write(m, protocol.FitzQuake, 0, cd))
	got, err := Parse(m.Bytes(), protocol.FitzQuake, 0)
	require.NoError(t, err)
	assert.Equal(t, []Cmd{cd}, got)
}

func TestSoundDefaults(t *testing.T) {
	s := SoundCmd{Entity: 5, Channel: 2, SoundNum: 3, Volume: 255, Attenuation: 1, Origin: vec.Vec3{8, 16, 24}}
	m := net.NewMessage(64)
	require.NoError(t, Write(m, protocol.NetQuake, 0, s))
	// no volume, no attenuation
	assert.Equal(t, 1+1+2+1+6, m.Len())
	got, err := Parse(m.Bytes(), protocol.NetQuake, 0)
	require.NoError(t, err)
	assert.Equal(t, []Cmd{s}, got)

	m.Clear()
	s.Entity = 9000
	require.NoError(t, Write(m, protocol.NetQuake, 0, s))
	assert.Zero(t, m.Len())
}

func TestWriteIsAtomic(t *testing.T) {
	m := net.NewMessage(8)
	require.NoError(t, Write(m, protocol.NetQuake, 0, NopCmd{}))
	err := Write(m, protocol.NetQuake, 0, PrintCmd("much too long"))
	assert.ErrorIs(t, err, net.ErrOverflow)
	assert.Equal(t, []byte{Nop}, m.Bytes())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte{Nop, 99}, protocol.NetQuake, 0)
	assert.ErrorIs(t, err, ErrIllegible)
	assert.Contains(t, err.Error(), "previous was svc_nop")

	_, err = Parse([]byte{Print, 'a'}, protocol.NetQuake, 0)
	assert.Error(t, err)

	_, err = Parse([]byte{ServerInfo, 1, 0, 0, 0}, protocol.NetQuake, 0)
	assert.ErrorIs(t, err, ErrBadProtocol)
}
