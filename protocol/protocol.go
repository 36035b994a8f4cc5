// SPDX-License-Identifier: GPL-2.0-or-later

package protocol

const (
	NetQuake  = 15
	FitzQuake = 666
	RMQ       = 999
)

// Supported reports whether p is a protocol version the server can speak.
func Supported(p int) bool {
	switch p {
	case NetQuake, FitzQuake, RMQ:
		return true
	}
	return false
}

func Name(p int) string {
	switch p {
	case NetQuake:
		return "NetQuake"
	case FitzQuake:
		return "FitzQuake"
	case RMQ:
		return "RMQ"
	}
	return "Unknown"
}

// Wire limits. Indices into precache tables travel as single bytes, a
// larger table can not be addressed.
const (
	MaxModels      = 256
	MaxSounds      = 256
	MaxLightStyles = 64
	MaxEdicts      = 600
	MaxClients     = 16
	MaxStyleString = 64

	NumPingTimes  = 16
	NumSpawnParms = 16

	// MaxMsgLen is the size of a client reliable message buffer.
	MaxMsgLen = 8000
	// MaxDatagram is the size of an unreliable message payload and of a
	// reliable fragment.
	MaxDatagram = 1024

	// Signons is the number of signon stages until a client is spawned.
	Signons = 4

	DefaultViewHeight = 22
)
