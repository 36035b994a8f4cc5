// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"netquake/protocol"
	"netquake/qtime"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type packetSink struct {
	packets [][]byte
	closed  bool
}

func (p *packetSink) writePacket(b []byte) error {
	p.packets = append(p.packets, append([]byte(nil), b...))
	return nil
}

func (p *packetSink) close() error {
	p.closed = true
	return nil
}

func (p *packetSink) take() [][]byte {
	r := p.packets
	p.packets = nil
	return r
}

func newTestSocket(clock qtime.Clock, timeout time.Duration) (*Socket, *packetSink, chan []byte) {
	sink := &packetSink{}
	in := make(chan []byte, 16)
	return newSocket("test", "test", clock, timeout, sink, in), sink, in
}

func packet(flags uint32, sequence uint32, data ...byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, flags|uint32(NetHeaderSize+len(data)))
	binary.Write(&buf, binary.BigEndian, sequence)
	buf.Write(data)
	return buf.Bytes()
}

func TestReadAck(t *testing.T) {
	s, _, in := newTestSocket(&qtime.Manual{}, 0)
	require.NoError(t, s.SendMessage([]byte{1, 2, 3}))
	assert.False(t, s.CanSendMessage())

	in <- packet(NETFLAG_ACK, 0)
	kind, _, err := s.GetMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageNone, kind)
	assert.True(t, s.CanSendMessage())
}

func TestReadUnreliable(t *testing.T) {
	s, _, in := newTestSocket(&qtime.Manual{}, 0)

	// With unreliable we can start with an arbitrary sequence number
	// as we might have missed the previous ones
	in <- packet(NETFLAG_UNRELIABLE, 42, 1, 2, 45, 5)
	kind, r, err := s.GetMessage()
	require.NoError(t, err)
	require.Equal(t, MessageUnreliable, kind)
	assert.Equal(t, []byte{1, 2, 45, 5}, r.Bytes())

	// A packet we already know of should not cause a message
	in <- packet(NETFLAG_UNRELIABLE, 42, 1, 2, 45, 5)
	kind, _, err = s.GetMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageNone, kind)

	in <- packet(NETFLAG_UNRELIABLE, 44, 83, 212, 43)
	kind, r, err = s.GetMessage()
	require.NoError(t, err)
	require.Equal(t, MessageUnreliable, kind)
	assert.Equal(t, []byte{83, 212, 43}, r.Bytes())

	// An old packet is stale
	in <- packet(NETFLAG_UNRELIABLE, 30, 11, 21, 3)
	in <- packet(NETFLAG_UNRELIABLE, 45, 25, 11, 53)
	kind, r, err = s.GetMessage()
	require.NoError(t, err)
	require.Equal(t, MessageUnreliable, kind)
	assert.Equal(t, []byte{25, 11, 53}, r.Bytes())

	st := s.Stats()
	assert.Equal(t, 2, st.StaleDatagrams)
	assert.Equal(t, 1, st.DroppedDatagrams)
}

func TestUnreliableSequence(t *testing.T) {
	s, _, in := newTestSocket(&qtime.Manual{}, 0)
	for _, tc := range []struct {
		sequence uint32
		want     Kind
		stale    int
	}{
		{5, MessageUnreliable, 0},
		{6, MessageUnreliable, 0},
		{3, MessageNone, 1},
		{7, MessageUnreliable, 1},
	} {
		in <- packet(NETFLAG_UNRELIABLE, tc.sequence, byte(tc.sequence))
		kind, r, err := s.GetMessage()
		require.NoError(t, err)
		if kind != tc.want {
			t.Errorf("sequence %d: got %v, want %v", tc.sequence, kind, tc.want)
		}
		if kind == MessageUnreliable {
			assert.Equal(t, []byte{byte(tc.sequence)}, r.Bytes())
		}
		assert.Equal(t, tc.stale, s.Stats().StaleDatagrams, "sequence %d", tc.sequence)
	}
	assert.Equal(t, 3, s.Stats().UnreliableMessagesRecved)
}

func TestReadReliableSinglePacket(t *testing.T) {
	s, sink, in := newTestSocket(&qtime.Manual{}, 0)

	// With reliable we have to start with sequence number 0
	in <- packet(NETFLAG_DATA|NETFLAG_EOM, 0, 1, 2, 45, 5)
	kind, r, err := s.GetMessage()
	require.NoError(t, err)
	require.Equal(t, MessageReliable, kind)
	assert.Equal(t, []byte{1, 2, 45, 5}, r.Bytes())
	// ACK(2), len(8), seq(0)
	assert.Equal(t, [][]byte{{0, 2, 0, 8, 0, 0, 0, 0}}, sink.take())

	// A packet we already know of should not cause a message but still an ACK
	in <- packet(NETFLAG_DATA|NETFLAG_EOM, 0, 1, 2, 45, 5)
	kind, _, err = s.GetMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageNone, kind)
	assert.Equal(t, [][]byte{{0, 2, 0, 8, 0, 0, 0, 0}}, sink.take())
	assert.Equal(t, 1, s.Stats().ReceivedDuplicateCount)

	in <- packet(NETFLAG_DATA|NETFLAG_EOM, 1, 83, 212, 43)
	kind, r, err = s.GetMessage()
	require.NoError(t, err)
	require.Equal(t, MessageReliable, kind)
	assert.Equal(t, []byte{83, 212, 43}, r.Bytes())
	assert.Equal(t, [][]byte{{0, 2, 0, 8, 0, 0, 0, 1}}, sink.take())
}

func TestReadReliableMultiPacket(t *testing.T) {
	s, sink, in := newTestSocket(&qtime.Manual{}, 0)

	in <- packet(NETFLAG_DATA, 0, 1, 2, 45, 5)
	kind, _, err := s.GetMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageNone, kind)

	in <- packet(NETFLAG_DATA|NETFLAG_EOM, 1, 83, 212, 43)
	kind, r, err := s.GetMessage()
	require.NoError(t, err)
	require.Equal(t, MessageReliable, kind)
	assert.Equal(t, []byte{1, 2, 45, 5, 83, 212, 43}, r.Bytes())
	assert.Equal(t, [][]byte{
		{0, 2, 0, 8, 0, 0, 0, 0},
		{0, 2, 0, 8, 0, 0, 0, 1},
	}, sink.take())
}

func TestReadReliableOutOfOrder(t *testing.T) {
	s, sink, in := newTestSocket(&qtime.Manual{}, 0)

	in <- packet(NETFLAG_DATA|NETFLAG_EOM, 3, 1)
	_, _, err := s.GetMessage()
	assert.ErrorIs(t, err, ErrProtocol)
	assert.True(t, s.Disconnected())
	assert.True(t, sink.closed)
}

func TestReadBadLength(t *testing.T) {
	s, _, in := newTestSocket(&qtime.Manual{}, 0)
	p := packet(NETFLAG_UNRELIABLE, 0, 1, 2, 3)
	in <- p[:len(p)-1]
	in <- []byte{0, 1}
	kind, _, err := s.GetMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageNone, kind)
	assert.Equal(t, 2, s.Stats().ShortPacketCount)
}

func TestWriteUnreliable(t *testing.T) {
	s, sink, _ := newTestSocket(&qtime.Manual{}, 0)
	require.NoError(t, s.SendUnreliableMessage([]byte{1, 2, 45, 5}))
	require.NoError(t, s.SendUnreliableMessage([]byte{84, 212, 43}))
	assert.Equal(t, [][]byte{
		{0, 0x10, 0, 12, 0, 0, 0, 0, 1, 2, 45, 5},
		{0, 0x10, 0, 11, 0, 0, 0, 1, 84, 212, 43},
	}, sink.take())

	err := s.SendUnreliableMessage(make([]byte, 1025))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestWriteReliable(t *testing.T) {
	s, sink, in := newTestSocket(&qtime.Manual{}, 0)
	require.NoError(t, s.SendMessage([]byte{1, 2, 45, 5}))
	// 0x00 0x09 == NETFLAG_DATA + NETFLAG_EOM
	assert.Equal(t, [][]byte{{0, 0x09, 0, 12, 0, 0, 0, 0, 1, 2, 45, 5}}, sink.take())

	assert.ErrorIs(t, s.SendMessage([]byte{1}), ErrSendPending)

	in <- packet(NETFLAG_ACK, 0)
	s.GetMessage()
	require.True(t, s.CanSendMessage())

	require.NoError(t, s.SendMessage([]byte{84, 212, 43}))
	assert.Equal(t, [][]byte{{0, 0x09, 0, 11, 0, 0, 0, 1, 84, 212, 43}}, sink.take())
}

func TestWriteReliableFragments(t *testing.T) {
	s, sink, in := newTestSocket(&qtime.Manual{}, 0)
	msg := make([]byte, 2500)
	for i := range msg {
		msg[i] = byte(i)
	}
	require.NoError(t, s.SendMessage(msg))
	got := sink.take()
	require.Len(t, got, 1)
	assert.Len(t, got[0], NetDatagramSize)
	assert.Equal(t, uint32(NETFLAG_DATA|NetDatagramSize), binary.BigEndian.Uint32(got[0]))

	var joined []byte
	joined = append(joined, got[0][NetHeaderSize:]...)
	for seq := uint32(0); seq < 2; seq++ {
		in <- packet(NETFLAG_ACK, seq)
		s.GetMessage()
		assert.False(t, s.CanSendMessage())
		got = sink.take()
		require.Len(t, got, 1)
		assert.Equal(t, seq+1, binary.BigEndian.Uint32(got[0][4:]))
		joined = append(joined, got[0][NetHeaderSize:]...)
	}
	assert.NotZero(t, binary.BigEndian.Uint32(got[0])&NETFLAG_EOM)
	assert.Equal(t, msg, joined)

	in <- packet(NETFLAG_ACK, 2)
	s.GetMessage()
	assert.True(t, s.CanSendMessage())
}

func TestFragmentsFollowAcks(t *testing.T) {
	clock := &qtime.Manual{}
	s, sink, in := newTestSocket(clock, 0)
	msg := bytes.Repeat([]byte{9}, 2*protocol.MaxDatagram+10)
	require.NoError(t, s.SendMessage(msg))
	require.Len(t, sink.take(), 1)

	var joined []byte
	for seq := uint32(0); seq < 2; seq++ {
		clock.Advance(100 * time.Millisecond)
		in <- packet(NETFLAG_ACK, seq)
		_, _, err := s.GetMessage()
		require.NoError(t, err)
		got := sink.take()
		require.Len(t, got, 1, "fragment after ack %d", seq)
		assert.Equal(t, seq+1, binary.BigEndian.Uint32(got[0][4:]))
		joined = append(joined, got[0][NetHeaderSize:]...)
	}
	assert.Len(t, joined, protocol.MaxDatagram+10)

	// resend waits for the ack of the last fragment
	clock.Advance(2 * time.Second)
	_, _, err := s.GetMessage()
	require.NoError(t, err)
	got := sink.take()
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(got[0][4:]))
	assert.Equal(t, 1, s.Stats().PacketsResent)

	in <- packet(NETFLAG_ACK, 2)
	_, _, err = s.GetMessage()
	require.NoError(t, err)
	assert.True(t, s.CanSendMessage())
}

func TestAckForUnsentSequence(t *testing.T) {
	s, _, in := newTestSocket(&qtime.Manual{}, 0)
	in <- packet(NETFLAG_ACK, 5)
	_, _, err := s.GetMessage()
	assert.ErrorIs(t, err, ErrProtocol)
	assert.True(t, s.Disconnected())
}

func TestResend(t *testing.T) {
	clock := &qtime.Manual{}
	s, sink, _ := newTestSocket(clock, 0)
	require.NoError(t, s.SendMessage([]byte{7}))
	first := sink.take()

	clock.Advance(500 * time.Millisecond)
	s.GetMessage()
	assert.Empty(t, sink.take())

	clock.Advance(time.Second)
	s.GetMessage()
	assert.Equal(t, first, sink.take())
	assert.Equal(t, 1, s.Stats().PacketsResent)
}

func TestTimeout(t *testing.T) {
	clock := &qtime.Manual{}
	s, _, in := newTestSocket(clock, 300*time.Second)

	clock.Advance(200 * time.Second)
	in <- packet(NETFLAG_UNRELIABLE, 0, 1)
	_, _, err := s.GetMessage()
	require.NoError(t, err)

	clock.Advance(299 * time.Second)
	_, _, err = s.GetMessage()
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, _, err = s.GetMessage()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.True(t, s.Disconnected())
}

func TestNoTimeoutWithoutLimit(t *testing.T) {
	clock := &qtime.Manual{}
	s, _, _ := newTestSocket(clock, 0)
	clock.Advance(time.Hour)
	_, _, err := s.GetMessage()
	assert.NoError(t, err)
	assert.False(t, s.Disconnected())
}

func TestCloseTwice(t *testing.T) {
	s, sink, _ := newTestSocket(&qtime.Manual{}, 0)
	calls := 0
	s.onClose = func(*Socket) { calls++ }
	s.Close()
	s.Close()
	assert.Equal(t, 1, calls)
	assert.True(t, sink.closed)
	assert.ErrorIs(t, s.SendMessage([]byte{1}), ErrDisconnected)
	assert.ErrorIs(t, s.SendUnreliableMessage([]byte{1}), ErrDisconnected)
	assert.False(t, s.CanSendMessage())
	_, _, err := s.GetMessage()
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestPeerClosed(t *testing.T) {
	s, _, in := newTestSocket(&qtime.Manual{}, 0)
	close(in)
	_, _, err := s.GetMessage()
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.True(t, s.Disconnected())
}

func TestViolation(t *testing.T) {
	cause := errors.Wrap(io.ErrUnexpectedEOF, "badread")
	err := Violation(cause)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "protocol violation: badread: unexpected EOF", err.Error())
	assert.NoError(t, Violation(nil))
}
