// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"encoding/binary"
	"io"
	"math"

	"netquake/protocol/flags"
)

// QReader reads little-endian values sequentially from a received message.
type QReader struct {
	data []byte
	pos  int
}

func NewQReader(data []byte) *QReader {
	return &QReader{data: data}
}

func (q *QReader) next(n int) ([]byte, error) {
	if q.pos+n > len(q.data) {
		q.pos = len(q.data)
		return nil, io.ErrUnexpectedEOF
	}
	b := q.data[q.pos : q.pos+n]
	q.pos += n
	return b, nil
}

// Len returns the number of bytes of the unread portion of the message.
func (q *QReader) Len() int {
	return len(q.data) - q.pos
}

// Bytes returns the full message.
func (q *QReader) Bytes() []byte {
	return q.data
}

func (q *QReader) UnreadByte() {
	if q.pos > 0 {
		q.pos--
	}
}

func (q *QReader) ReadByte() (byte, error) {
	b, err := q.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (q *QReader) ReadInt8() (int8, error) {
	b, err := q.ReadByte()
	return int8(b), err
}

func (q *QReader) ReadInt16() (int16, error) {
	b, err := q.next(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

func (q *QReader) ReadUint16() (uint16, error) {
	b, err := q.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (q *QReader) ReadInt32() (int32, error) {
	b, err := q.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (q *QReader) ReadFloat32() (float32, error) {
	b, err := q.next(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// 13.3 fixed point coords, max range +-4096
func (q *QReader) ReadCoord16() (float32, error) {
	i, err := q.ReadInt16()
	return float32(i) * (1.0 / 8.0), err
}

// 16.8 fixed point coords, max range +-32768
func (q *QReader) ReadCoord24() (float32, error) {
	b, err := q.next(3)
	if err != nil {
		return 0, err
	}
	i16 := int16(binary.LittleEndian.Uint16(b))
	return float32(i16) + (float32(b[2]) * (1.0 / 255.0)), nil
}

func (q *QReader) ReadCoord(pflags uint32) (float32, error) {
	switch {
	case pflags&flags.COORDFLOAT != 0:
		return q.ReadFloat32()
	case pflags&flags.COORDINT32 != 0:
		i, err := q.ReadInt32()
		return float32(i) * (1.0 / 16.0), err
	case pflags&flags.COORD24BIT != 0:
		return q.ReadCoord24()
	}
	return q.ReadCoord16()
}

func (q *QReader) ReadAngle(pflags uint32) (float32, error) {
	switch {
	case pflags&flags.ANGLEFLOAT != 0:
		return q.ReadFloat32()
	case pflags&flags.ANGLESHORT != 0:
		i, err := q.ReadInt16()
		return float32(i) * (360.0 / 65536.0), err
	}
	i, err := q.ReadInt8()
	return float32(i) * (360.0 / 256.0), err
}

func (q *QReader) ReadAngle16(pflags uint32) (float32, error) {
	if pflags&flags.ANGLEFLOAT != 0 {
		return q.ReadFloat32()
	}
	i, err := q.ReadInt16()
	return float32(i) * (360.0 / 65536.0), err
}

// ReadString reads up to and excluding the next zero byte.
func (q *QReader) ReadString() (string, error) {
	for i := q.pos; i < len(q.data); i++ {
		if q.data[i] == 0 {
			s := string(q.data[q.pos:i])
			q.pos = i + 1
			return s, nil
		}
	}
	q.pos = len(q.data)
	return "", io.ErrUnexpectedEOF
}
