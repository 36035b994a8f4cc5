// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"github.com/pkg/errors"
)

// loopQueue is the number of packets a loopback direction buffers.
const loopQueue = 256

const loopAddress = "localhost"

type loopTransport struct {
	out    chan []byte
	closed bool
}

func (l *loopTransport) writePacket(p []byte) error {
	if l.closed {
		return ErrDisconnected
	}
	select {
	case l.out <- append([]byte(nil), p...):
		return nil
	default:
		return errors.Wrap(ErrWouldBlock, "loopback queue full")
	}
}

func (l *loopTransport) close() error {
	if !l.closed {
		l.closed = true
		close(l.out)
	}
	return nil
}

// loopDriver connects a client and a server inside the same process. Both
// ends run the full datagram protocol over buffered channels.
type loopDriver struct {
	n       *Net
	client  *Socket
	server  *Socket
	pending bool
}

func newLoopDriver(n *Net) *loopDriver {
	return &loopDriver{n: n}
}

func (l *loopDriver) connect() (*Socket, error) {
	if l.client != nil {
		l.client.Close()
	}
	if l.server != nil {
		l.server.Close()
	}
	toServer := make(chan []byte, loopQueue)
	toClient := make(chan []byte, loopQueue)
	c := newSocket("loopback", loopAddress, l.n.clock, 0, &loopTransport{out: toServer}, toClient)
	s := newSocket("loopback", loopAddress, l.n.clock, 0, &loopTransport{out: toClient}, toServer)
	c.state = StateConnecting
	l.n.addSocket(c)
	l.client = c
	l.server = s
	l.pending = true
	return c, nil
}

func (l *loopDriver) checkNewConnections() *Socket {
	if !l.pending {
		return nil
	}
	l.pending = false
	if l.client == nil || l.client.disconnected {
		l.server = nil
		return nil
	}
	l.client.state = StateConnected
	l.n.addSocket(l.server)
	return l.server
}
