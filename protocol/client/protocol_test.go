// SPDX-License-Identifier: GPL-2.0-or-later

package client

import (
	"testing"

	"netquake/math/vec"
	"netquake/net"
	ptcl "netquake/protocol"
	"netquake/protocol/flags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	cmds := []Cmd{
		CmdNop{},
		CmdString{Text: "prespawn"},
		CmdMove{
			MessageTime: 1.5,
			Angles:      vec.Vec3{10, 90, 0},
			Forward:     200,
			Side:        -100,
			Attack:      true,
			Impulse:     7,
		},
		CmdDisconnect{},
	}
	for _, p := range []int{ptcl.NetQuake, ptcl.FitzQuake} {
		m := net.NewMessage(128)
		require.NoError(t, Encode(m, cmds, p, 0))
		got, err := Decode(m.Bytes(), p, 0)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, cmds[:2], got[:2])
		assert.Equal(t, cmds[3], got[3])
		mv := got[2].(CmdMove)
		assert.Equal(t, float32(200), mv.Forward)
		assert.Equal(t, float32(-100), mv.Side)
		assert.True(t, mv.Attack)
		assert.False(t, mv.Jump)
		assert.Equal(t, byte(7), mv.Impulse)
		assert.InDelta(t, 90, mv.Angles[1], 1.5)
	}
}

func TestMoveSizePerProtocol(t *testing.T) {
	mv := []Cmd{CmdMove{}}
	m := net.NewMessage(64)
	require.NoError(t, Encode(m, mv, ptcl.NetQuake, 0))
	assert.Equal(t, 1+4+3+6+2, m.Len())

	m.Clear()
	require.NoError(t, Encode(m, mv, ptcl.RMQ, flags.ANGLEFLOAT))
	assert.Equal(t, 1+4+12+6+2, m.Len())
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{9}, ptcl.NetQuake, 0)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Decode([]byte{Move, 0, 0}, ptcl.NetQuake, 0)
	assert.Error(t, err)
}

func TestEncodeOverflowKeepsMessage(t *testing.T) {
	m := net.NewMessage(10)
	require.NoError(t, Encode(m, []Cmd{CmdNop{}}, ptcl.NetQuake, 0))
	assert.ErrorIs(t, Encode(m, []Cmd{CmdMove{}}, ptcl.NetQuake, 0), net.ErrOverflow)
	assert.Equal(t, []byte{Nop}, m.Bytes())
}
