// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"encoding/binary"
	"time"

	"netquake/protocol"
	"netquake/qtime"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Kind classifies the result of Socket.GetMessage.
type Kind int

const (
	MessageNone Kind = iota
	MessageReliable
	MessageUnreliable
)

// resendInterval is the time an unacknowledged reliable fragment waits
// before it is sent again.
const resendInterval = time.Second

// transport carries whole packets to exactly one peer.
type transport interface {
	writePacket(p []byte) error
	close() error
}

type Stats struct {
	PacketsSent              int
	PacketsResent            int
	PacketsReceived          int
	ReceivedDuplicateCount   int
	ShortPacketCount         int
	DroppedDatagrams         int
	StaleDatagrams           int
	MessagesSent             int
	MessagesReceived         int
	UnreliableMessagesSent   int
	UnreliableMessagesRecved int
}

// Socket is one end of a virtual connection. It is not safe for concurrent
// use: inbound packets are queued by the driver and only processed by
// GetMessage on the owning goroutine.
type Socket struct {
	id      uuid.UUID
	driver  string
	address string
	clock   qtime.Clock
	timeout time.Duration

	state           State
	disconnected    bool
	connectTime     time.Duration
	lastMessageTime time.Duration
	lastSendTime    time.Duration

	canSend  bool
	sendNext bool

	ackSequence               uint32
	sendSequence              uint32
	unreliableSendSequence    uint32
	receiveSequence           uint32
	unreliableReceiveSequence uint32

	sendMessage          [NetMaxMessage]byte
	sendMessageLength    int
	receiveMessage       [NetMaxMessage]byte
	receiveMessageLength int
	packet               [NetDatagramSize]byte

	conn    transport
	in      <-chan []byte
	onClose func(*Socket)

	stats Stats
}

func newSocket(driver, address string, clock qtime.Clock, timeout time.Duration, conn transport, in <-chan []byte) *Socket {
	now := clock.Now()
	return &Socket{
		id:              uuid.New(),
		driver:          driver,
		address:         address,
		clock:           clock,
		timeout:         timeout,
		state:           StateConnected,
		connectTime:     now,
		lastMessageTime: now,
		canSend:         true,
		conn:            conn,
		in:              in,
	}
}

// ID identifies the socket in logs.
func (s *Socket) ID() uuid.UUID {
	return s.id
}

func (s *Socket) Address() string {
	return s.address
}

func (s *Socket) Driver() string {
	return s.driver
}

func (s *Socket) State() State {
	return s.state
}

func (s *Socket) Stats() Stats {
	return s.stats
}

func (s *Socket) Disconnected() bool {
	return s.disconnected
}

// ConnectTime is the clock value at which the socket was created.
func (s *Socket) ConnectTime() time.Duration {
	return s.connectTime
}

// LastMessageTime is the clock value of the last full message received.
func (s *Socket) LastMessageTime() time.Duration {
	return s.lastMessageTime
}

func (s *Socket) write(p []byte) error {
	s.stats.PacketsSent++
	if err := s.conn.writePacket(p); err != nil {
		return err
	}
	return nil
}

func (s *Socket) header(flags uint32, length int, sequence uint32) []byte {
	binary.BigEndian.PutUint32(s.packet[0:], flags|uint32(length))
	binary.BigEndian.PutUint32(s.packet[4:], sequence)
	return s.packet[:NetHeaderSize]
}

func (s *Socket) sendFragment(sequence uint32) error {
	dataLen := s.sendMessageLength
	eom := uint32(NETFLAG_EOM)
	if dataLen > protocol.MaxDatagram {
		dataLen = protocol.MaxDatagram
		eom = 0
	}
	packetLen := NetHeaderSize + dataLen
	s.header(NETFLAG_DATA|eom, packetLen, sequence)
	copy(s.packet[NetHeaderSize:], s.sendMessage[:dataLen])
	s.lastSendTime = s.clock.Now()
	return s.write(s.packet[:packetLen])
}

// SendMessage queues a reliable message. Only one reliable message may be
// in flight, callers must check CanSendMessage first.
func (s *Socket) SendMessage(data []byte) error {
	if s.disconnected {
		return ErrDisconnected
	}
	if !s.canSend {
		return errors.Wrapf(ErrSendPending, "SendMessage to %s", s.address)
	}
	if len(data) > NetMaxMessage {
		return errors.Wrapf(ErrOverflow, "reliable message of %d bytes", len(data))
	}
	s.sendMessageLength = copy(s.sendMessage[:], data)
	s.canSend = false
	seq := s.sendSequence
	s.sendSequence++
	s.stats.MessagesSent++
	return s.sendFragment(seq)
}

func (s *Socket) sendMessageNext() error {
	s.sendNext = false
	seq := s.sendSequence
	s.sendSequence++
	return s.sendFragment(seq)
}

func (s *Socket) resendMessage() error {
	s.sendNext = false
	s.stats.PacketsResent++
	return s.sendFragment(s.sendSequence - 1)
}

// SendUnreliableMessage sends data in a single datagram. A full outgoing
// queue drops the datagram and returns ErrWouldBlock.
func (s *Socket) SendUnreliableMessage(data []byte) error {
	if s.disconnected {
		return ErrDisconnected
	}
	if len(data) > protocol.MaxDatagram {
		return errors.Wrapf(ErrOverflow, "unreliable message of %d bytes", len(data))
	}
	packetLen := NetHeaderSize + len(data)
	s.header(NETFLAG_UNRELIABLE, packetLen, s.unreliableSendSequence)
	s.unreliableSendSequence++
	copy(s.packet[NetHeaderSize:], data)
	s.stats.UnreliableMessagesSent++
	return s.write(s.packet[:packetLen])
}

// CanSendMessage reports whether a new reliable message can be queued.
// It also pushes out the next fragment of a partially acknowledged message.
func (s *Socket) CanSendMessage() bool {
	if s.disconnected {
		return false
	}
	if s.sendNext {
		if err := s.sendMessageNext(); err != nil {
			log.Debug().Err(err).Str("addr", s.address).Msg("send next fragment")
		}
	}
	return s.canSend
}

func (s *Socket) sendAck(sequence uint32) {
	var ack [NetHeaderSize]byte
	binary.BigEndian.PutUint32(ack[0:], NETFLAG_ACK|NetHeaderSize)
	binary.BigEndian.PutUint32(ack[4:], sequence)
	if err := s.write(ack[:]); err != nil {
		log.Debug().Err(err).Str("addr", s.address).Msg("send ack")
	}
}

// GetMessage processes queued packets and returns the first complete
// message. It returns MessageNone without error if nothing arrived. An
// error means the socket is now closed. The next fragment of a partially
// acknowledged reliable message is sent before it returns.
func (s *Socket) GetMessage() (Kind, *QReader, error) {
	if s.disconnected {
		return MessageNone, nil, ErrDisconnected
	}
	now := s.clock.Now()
	if !s.canSend && !s.sendNext && now-s.lastSendTime > resendInterval {
		if err := s.resendMessage(); err != nil {
			log.Debug().Err(err).Str("addr", s.address).Msg("resend")
		}
	}
	kind, data, err := s.receive(now)
	if err != nil {
		return MessageNone, nil, err
	}
	if s.sendNext {
		if err := s.sendMessageNext(); err != nil {
			log.Debug().Err(err).Str("addr", s.address).Msg("send next fragment")
		}
	}
	if kind == MessageNone {
		return MessageNone, nil, nil
	}
	return kind, NewQReader(data), nil
}

func (s *Socket) receive(now time.Duration) (Kind, []byte, error) {
	for {
		var pkt []byte
		select {
		case p, ok := <-s.in:
			if !ok {
				s.Close()
				return MessageNone, nil, errors.Wrapf(ErrDisconnected, "peer %s closed", s.address)
			}
			pkt = p
		default:
			if s.timeout > 0 && now-s.lastMessageTime > s.timeout {
				s.Close()
				return MessageNone, nil, errors.Wrapf(ErrTimeout, "%s", s.address)
			}
			return MessageNone, nil, nil
		}
		kind, data, err := s.processPacket(pkt)
		if err != nil {
			s.Close()
			return MessageNone, nil, err
		}
		if kind != MessageNone {
			s.lastMessageTime = now
			return kind, data, nil
		}
	}
}

func (s *Socket) processPacket(pkt []byte) (Kind, []byte, error) {
	s.stats.PacketsReceived++
	if len(pkt) < NetHeaderSize {
		s.stats.ShortPacketCount++
		return MessageNone, nil, nil
	}
	h := binary.BigEndian.Uint32(pkt[0:])
	sequence := binary.BigEndian.Uint32(pkt[4:])
	flags := h & NETFLAG_FLAG_MASK
	length := int(h & NETFLAG_LENGTH_MASK)
	if length != len(pkt) {
		s.stats.ShortPacketCount++
		log.Debug().Int("header", length).Int("got", len(pkt)).Str("addr", s.address).Msg("bad packet length")
		return MessageNone, nil, nil
	}
	if flags&NETFLAG_CTL != 0 {
		return MessageNone, nil, nil
	}

	switch {
	case flags&NETFLAG_UNRELIABLE != 0:
		if sequence < s.unreliableReceiveSequence {
			s.stats.StaleDatagrams++
			log.Debug().Str("addr", s.address).Msg("got a stale datagram")
			return MessageNone, nil, nil
		}
		if sequence != s.unreliableReceiveSequence {
			s.stats.DroppedDatagrams += int(sequence - s.unreliableReceiveSequence)
		}
		s.unreliableReceiveSequence = sequence + 1
		s.stats.UnreliableMessagesRecved++
		return MessageUnreliable, pkt[NetHeaderSize:], nil

	case flags&NETFLAG_ACK != 0:
		if sequence >= s.sendSequence {
			return MessageNone, nil, errors.Wrapf(ErrProtocol, "ack %d for unsent sequence from %s", sequence, s.address)
		}
		if sequence != s.sendSequence-1 || sequence != s.ackSequence {
			log.Debug().Uint32("seq", sequence).Str("addr", s.address).Msg("stale ACK")
			return MessageNone, nil, nil
		}
		s.ackSequence++
		s.sendMessageLength -= protocol.MaxDatagram
		if s.sendMessageLength > 0 {
			copy(s.sendMessage[:], s.sendMessage[protocol.MaxDatagram:protocol.MaxDatagram+s.sendMessageLength])
			s.sendNext = true
		} else {
			s.sendMessageLength = 0
			s.canSend = true
		}
		return MessageNone, nil, nil

	case flags&NETFLAG_DATA != 0:
		if sequence > s.receiveSequence {
			return MessageNone, nil, errors.Wrapf(ErrProtocol, "reliable sequence %d from %s, expected %d", sequence, s.address, s.receiveSequence)
		}
		s.sendAck(sequence)
		if sequence != s.receiveSequence {
			s.stats.ReceivedDuplicateCount++
			return MessageNone, nil, nil
		}
		s.receiveSequence++
		n := length - NetHeaderSize
		if s.receiveMessageLength+n > NetMaxMessage {
			return MessageNone, nil, errors.Wrapf(ErrProtocol, "reliable message from %s exceeds %d bytes", s.address, NetMaxMessage)
		}
		copy(s.receiveMessage[s.receiveMessageLength:], pkt[NetHeaderSize:])
		s.receiveMessageLength += n
		if flags&NETFLAG_EOM != 0 {
			data := make([]byte, s.receiveMessageLength)
			copy(data, s.receiveMessage[:s.receiveMessageLength])
			s.receiveMessageLength = 0
			s.stats.MessagesReceived++
			return MessageReliable, data, nil
		}
	}
	return MessageNone, nil, nil
}

// Close disconnects the socket. Closing twice is a no-op.
func (s *Socket) Close() {
	if s.disconnected {
		return
	}
	s.disconnected = true
	s.state = StateDisconnected
	s.canSend = false
	s.sendNext = false
	s.sendMessageLength = 0
	s.receiveMessageLength = 0
	if err := s.conn.close(); err != nil {
		log.Debug().Err(err).Str("addr", s.address).Msg("close")
	}
	if s.onClose != nil {
		s.onClose(s)
	}
}
