// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// controlPacket frames the body written by fill into a control packet.
// A body that does not fit is an error, no partial packet is returned.
func controlPacket(fill func(m *Message) error) ([]byte, error) {
	m := NewMessage(NetDatagramSize)
	m.Write([]byte{0, 0, 0, 0})
	if err := fill(m); err != nil {
		return nil, err
	}
	if m.Overflowed() {
		return nil, errors.Wrap(ErrOverflow, "control packet")
	}
	b := m.Bytes()
	binary.BigEndian.PutUint32(b, NETFLAG_CTL|uint32(len(b)))
	return b, nil
}

// parseControl validates the control header and returns the body
// starting with the command byte.
func parseControl(pkt []byte) (*QReader, byte, error) {
	if len(pkt) < 5 {
		return nil, 0, errors.Wrap(ErrProtocol, "short control packet")
	}
	h := binary.BigEndian.Uint32(pkt)
	if h&NETFLAG_FLAG_MASK != NETFLAG_CTL {
		return nil, 0, errors.Wrap(ErrProtocol, "not a control packet")
	}
	if int(h&NETFLAG_LENGTH_MASK) != len(pkt) {
		return nil, 0, errors.Wrap(ErrProtocol, "control packet length mismatch")
	}
	return NewQReader(pkt[5:]), pkt[4], nil
}

func connectRequest() ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREQ_CONNECT)
		m.WriteString(controlGameName)
		return m.WriteByte(NetProtocolVersion)
	})
}

func serverInfoRequest() ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREQ_SERVER_INFO)
		m.WriteString(controlGameName)
		return m.WriteByte(NetProtocolVersion)
	})
}

func acceptReply(port int) ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREP_ACCEPT)
		return m.WriteLong(port)
	})
}

func rejectReply(reason string) ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREP_REJECT)
		return m.WriteString(reason)
	})
}

func serverInfoReply(i ServerInfo) ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREP_SERVER_INFO)
		m.WriteString(i.Address)
		m.WriteString(i.HostName)
		m.WriteString(i.LevelName)
		m.WriteByte(byte(i.Players))
		m.WriteByte(byte(i.MaxPlayers))
		return m.WriteByte(NetProtocolVersion)
	})
}

func parseServerInfoReply(r *QReader) (ServerInfo, error) {
	var i ServerInfo
	var err error
	if i.Address, err = r.ReadString(); err != nil {
		return i, err
	}
	if i.HostName, err = r.ReadString(); err != nil {
		return i, err
	}
	if i.LevelName, err = r.ReadString(); err != nil {
		return i, err
	}
	p, err := r.ReadByte()
	if err != nil {
		return i, err
	}
	mp, err := r.ReadByte()
	if err != nil {
		return i, err
	}
	v, err := r.ReadByte()
	if err != nil {
		return i, err
	}
	i.Players = int(p)
	i.MaxPlayers = int(mp)
	i.Protocol = int(v)
	return i, nil
}

func playerInfoReply(slot int, p PlayerInfo) ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREP_PLAYER_INFO)
		m.WriteByte(byte(slot))
		m.WriteString(p.Name)
		m.WriteLong(p.Colors)
		m.WriteLong(p.Frags)
		m.WriteLong(int(p.ConnectTime / time.Second))
		return m.WriteString(p.Address)
	})
}

func ruleInfoReply(name, value string) ([]byte, error) {
	return controlPacket(func(m *Message) error {
		m.WriteByte(CCREP_RULE_INFO)
		if name == "" {
			return nil
		}
		m.WriteString(name)
		return m.WriteString(value)
	})
}

// checkGameName reads the game name and protocol version of a request.
func checkGameName(r *QReader) (bool, byte) {
	name, err := r.ReadString()
	if err != nil || name != controlGameName {
		return false, 0
	}
	v, err := r.ReadByte()
	if err != nil {
		return false, 0
	}
	return true, v
}
