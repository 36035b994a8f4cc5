// SPDX-License-Identifier: GPL-2.0-or-later

// Package flags holds the RMQ protocol flags selecting coordinate and
// angle encodings.
package flags

const (
	ANGLESHORT  = 1 << 1
	ANGLEFLOAT  = 1 << 2
	COORD24BIT  = 1 << 3
	COORDFLOAT  = 1 << 4
	EDICTSCALE  = 1 << 5
	ALPHASANITY = 1 << 6
	COORDINT32  = 1 << 7
	MOREFLAGS   = 1 << 31 // not supported
)

// Default is what the server sends for RMQ unless configured otherwise.
const Default = ANGLESHORT | COORDFLOAT | EDICTSCALE
