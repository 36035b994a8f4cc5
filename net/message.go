// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"encoding/binary"
	"math"

	"netquake/protocol/flags"

	"github.com/pkg/errors"
)

// Message is a fixed capacity little-endian write buffer. Writes are all
// or nothing: a write that does not fit returns ErrOverflow, marks the
// message as overflowed and leaves the content untouched.
type Message struct {
	buf        []byte
	maxLen     int
	overflowed bool
	rejected   int
}

// Mark is a write position of a Message, see Rollback.
type Mark struct {
	length   int
	rejected int
}

func NewMessage(maxLen int) *Message {
	return &Message{
		buf:    make([]byte, 0, maxLen),
		maxLen: maxLen,
	}
}

func (m *Message) Bytes() []byte {
	return m.buf
}

func (m *Message) Len() int {
	return len(m.buf)
}

func (m *Message) MaxLen() int {
	return m.maxLen
}

// Free returns the number of bytes that can still be written.
func (m *Message) Free() int {
	return m.maxLen - len(m.buf)
}

func (m *Message) HasMessage() bool {
	return len(m.buf) > 0
}

// Overflowed reports whether a write was rejected since the last Clear.
func (m *Message) Overflowed() bool {
	return m.overflowed
}

// Clear resets the write cursor. The storage is kept.
func (m *Message) Clear() {
	m.buf = m.buf[:0]
	m.overflowed = false
}

// Mark returns the current write position.
func (m *Message) Mark() Mark {
	return Mark{length: len(m.buf), rejected: m.rejected}
}

// RejectedSince reports whether a write failed after k was taken.
func (m *Message) RejectedSince(k Mark) bool {
	return m.rejected != k.rejected
}

// Rollback drops everything written after k. The overflow flag stays.
func (m *Message) Rollback(k Mark) {
	if k.length < len(m.buf) {
		m.buf = m.buf[:k.length]
	}
}

func (m *Message) space(n int) error {
	if len(m.buf)+n > m.maxLen {
		m.overflowed = true
		m.rejected++
		return errors.Wrapf(ErrOverflow, "%d + %d > %d", len(m.buf), n, m.maxLen)
	}
	return nil
}

// Write appends p. It implements io.Writer but never writes partially.
func (m *Message) Write(p []byte) (int, error) {
	if err := m.space(len(p)); err != nil {
		return 0, err
	}
	m.buf = append(m.buf, p...)
	return len(p), nil
}

func (m *Message) WriteByte(c byte) error {
	if err := m.space(1); err != nil {
		return err
	}
	m.buf = append(m.buf, c)
	return nil
}

func (m *Message) WriteChar(c int) error {
	return m.WriteByte(byte(int8(c)))
}

func (m *Message) WriteShort(c int) error {
	if err := m.space(2); err != nil {
		return err
	}
	m.buf = binary.LittleEndian.AppendUint16(m.buf, uint16(int16(c)))
	return nil
}

func (m *Message) WriteLong(c int) error {
	if err := m.space(4); err != nil {
		return err
	}
	m.buf = binary.LittleEndian.AppendUint32(m.buf, uint32(int32(c)))
	return nil
}

func (m *Message) WriteFloat(f float32) error {
	if err := m.space(4); err != nil {
		return err
	}
	m.buf = binary.LittleEndian.AppendUint32(m.buf, math.Float32bits(f))
	return nil
}

// WriteString writes s followed by a terminating zero byte.
func (m *Message) WriteString(s string) error {
	if err := m.space(len(s) + 1); err != nil {
		return err
	}
	m.buf = append(m.buf, s...)
	m.buf = append(m.buf, 0)
	return nil
}

func rint(x float32) int {
	if x > 0 {
		return int(x + 0.5)
	}
	return int(x - 0.5)
}

func (m *Message) WriteCoord(f float32, pflags uint32) error {
	switch {
	case pflags&flags.COORDFLOAT != 0:
		return m.WriteFloat(f)
	case pflags&flags.COORDINT32 != 0:
		return m.WriteLong(rint(f * 16))
	case pflags&flags.COORD24BIT != 0:
		if err := m.space(3); err != nil {
			return err
		}
		m.WriteShort(int(f))
		return m.WriteByte(byte(rint(f*255) % 255))
	default:
		return m.WriteShort(rint(f * 8))
	}
}

func (m *Message) WriteAngle(f float32, pflags uint32) error {
	switch {
	case pflags&flags.ANGLEFLOAT != 0:
		return m.WriteFloat(f)
	case pflags&flags.ANGLESHORT != 0:
		return m.WriteShort(rint(f*65536.0/360) & 65535)
	default:
		return m.WriteByte(byte(rint(f*256.0/360.0) & 255))
	}
}

func (m *Message) WriteAngle16(f float32, pflags uint32) error {
	if pflags&flags.ANGLEFLOAT != 0 {
		return m.WriteFloat(f)
	}
	return m.WriteShort(rint(f*65536.0/360.0) & 65535)
}
