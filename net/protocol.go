// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"netquake/protocol"

	"github.com/pkg/errors"
)

// Packet header flags. The header is two big-endian longs: flags|length
// and the sequence number.
const (
	NETFLAG_LENGTH_MASK = 0x0000ffff
	NETFLAG_DATA        = 0x00010000
	NETFLAG_ACK         = 0x00020000
	NETFLAG_NAK         = 0x00040000
	NETFLAG_EOM         = 0x00080000
	NETFLAG_UNRELIABLE  = 0x00100000
	NETFLAG_CTL         = 0x80000000
	NETFLAG_FLAG_MASK   = ^uint32(NETFLAG_LENGTH_MASK)
)

const (
	NetHeaderSize      = 8
	NetProtocolVersion = 3
	NetMaxMessage      = 8192
	NetDatagramSize    = protocol.MaxDatagram + NetHeaderSize
	// DefaultPort is used when neither config nor the host address names one.
	DefaultPort = 26000
)

// Control requests and replies.
const (
	CCREQ_CONNECT     = 0x01
	CCREQ_SERVER_INFO = 0x02
	CCREQ_PLAYER_INFO = 0x03
	CCREQ_RULE_INFO   = 0x04

	CCREP_ACCEPT      = 0x81
	CCREP_REJECT      = 0x82
	CCREP_SERVER_INFO = 0x83
	CCREP_PLAYER_INFO = 0x84
	CCREP_RULE_INFO   = 0x85
)

const controlGameName = "QUAKE"

var (
	ErrOverflow     = errors.New("message overflow")
	ErrDisconnected = errors.New("socket disconnected")
	ErrTimeout      = errors.Wrap(ErrDisconnected, "connection timed out")
	ErrProtocol     = errors.New("protocol violation")
	ErrSendPending  = errors.New("reliable message still in flight")
	ErrWouldBlock   = errors.New("send would block")
	ErrUnknownHost  = errors.New("no driver could resolve host")
)

// ConnectionError is returned by Connect when the server rejected the
// request or never answered.
type ConnectionError struct {
	Host   string
	Reason string
}

func (e *ConnectionError) Error() string {
	return "connect to " + e.Host + ": " + e.Reason
}

type violation struct {
	err error
}

// Violation marks err as a protocol violation. The result matches
// ErrProtocol as well as everything err matches.
func Violation(err error) error {
	if err == nil {
		return nil
	}
	return &violation{err: err}
}

func (v *violation) Error() string {
	return ErrProtocol.Error() + ": " + v.err.Error()
}

func (v *violation) Unwrap() []error {
	return []error{ErrProtocol, v.err}
}
