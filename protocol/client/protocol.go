// SPDX-License-Identifier: GPL-2.0-or-later

// Package client holds the client to server (clc) message codec.
package client

import (
	"netquake/math/vec"
	"netquake/net"
	ptcl "netquake/protocol"
	pflags "netquake/protocol/flags"

	"github.com/pkg/errors"
)

const (
	//
	// client to server
	//
	Bad        = 0
	Nop        = 1
	Disconnect = 2
	// [usercmd_t]
	Move = 3
	// [string] message
	StringCmd = 4
)

var ErrUnknownCommand = errors.New("unknown command char")

// Cmd is one of CmdNop, CmdDisconnect, CmdString or CmdMove.
type Cmd interface {
	isCmd()
}

type CmdNop struct{}

type CmdDisconnect struct{}

type CmdString struct {
	Text string
}

type CmdMove struct {
	// MessageTime is the server time of the last received message, used
	// by the server to measure the ping.
	MessageTime float32
	Angles      vec.Vec3
	Forward     float32
	Side        float32
	Up          float32
	Attack      bool
	Jump        bool
	Impulse     byte
}

func (CmdNop) isCmd()        {}
func (CmdDisconnect) isCmd() {}
func (CmdString) isCmd()     {}
func (CmdMove) isCmd()       {}

// Encode appends cmds to m. NetQuake sends byte angles, the other
// protocols 16 bit ones.
func Encode(m *net.Message, cmds []Cmd, protocol int, flags uint32) error {
	writeAngle := m.WriteAngle16
	angleSize := 2
	if protocol == ptcl.NetQuake {
		writeAngle = m.WriteAngle
		angleSize = 1
	}
	if flags&pflags.ANGLEFLOAT != 0 {
		angleSize = 4
	}
	for _, c := range cmds {
		var err error
		switch mc := c.(type) {
		case CmdNop:
			err = m.WriteByte(Nop)
		case CmdDisconnect:
			err = m.WriteByte(Disconnect)
		case CmdString:
			if err = m.WriteByte(StringCmd); err == nil {
				err = m.WriteString(mc.Text)
			}
		case CmdMove:
			err = encodeMove(m, mc, writeAngle, angleSize, flags)
		default:
			err = errors.Errorf("cannot encode %T", c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func encodeMove(m *net.Message, mc CmdMove, writeAngle func(float32, uint32) error, angleSize int, flags uint32) error {
	if m.Free() < 1+4+3*angleSize+3*2+2 {
		// keep the message free of a partial move
		return errors.Wrap(net.ErrOverflow, "move command")
	}
	m.WriteByte(Move)
	m.WriteFloat(mc.MessageTime)
	for _, a := range mc.Angles {
		writeAngle(a, flags)
	}
	m.WriteShort(int(mc.Forward))
	m.WriteShort(int(mc.Side))
	m.WriteShort(int(mc.Up))

	bits := byte(0)
	if mc.Attack {
		bits |= 1
	}
	if mc.Jump {
		bits |= 2
	}
	m.WriteByte(bits)
	return m.WriteByte(mc.Impulse)
}

// Decode parses a complete client message.
func Decode(data []byte, protocol int, flags uint32) ([]Cmd, error) {
	r := net.NewQReader(data)
	readAngle := r.ReadAngle16
	if protocol == ptcl.NetQuake {
		readAngle = r.ReadAngle
	}
	var cmds []Cmd
	for r.Len() != 0 {
		ccmd, _ := r.ReadByte()
		switch ccmd {
		default:
			return nil, errors.Wrapf(ErrUnknownCommand, "%d", ccmd)
		case Nop:
			cmds = append(cmds, CmdNop{})
		case Disconnect:
			cmds = append(cmds, CmdDisconnect{})
		case StringCmd:
			s, err := r.ReadString()
			if err != nil {
				return nil, errors.Wrap(err, "badread")
			}
			cmds = append(cmds, CmdString{Text: s})
		case Move:
			mc, err := decodeMove(r, readAngle, flags)
			if err != nil {
				return nil, errors.Wrap(err, "badread")
			}
			cmds = append(cmds, mc)
		}
	}
	return cmds, nil
}

func decodeMove(r *net.QReader, readAngle func(uint32) (float32, error), flags uint32) (CmdMove, error) {
	var mc CmdMove
	var err error
	if mc.MessageTime, err = r.ReadFloat32(); err != nil {
		return mc, err
	}
	for i := range mc.Angles {
		if mc.Angles[i], err = readAngle(flags); err != nil {
			return mc, err
		}
	}
	var v [3]int16
	for i := range v {
		if v[i], err = r.ReadInt16(); err != nil {
			return mc, err
		}
	}
	mc.Forward, mc.Side, mc.Up = float32(v[0]), float32(v[1]), float32(v[2])

	bits, err := r.ReadByte()
	if err != nil {
		return mc, err
	}
	mc.Attack = bits&1 != 0
	mc.Jump = bits&2 != 0
	if mc.Impulse, err = r.ReadByte(); err != nil {
		return mc, err
	}
	return mc, nil
}
