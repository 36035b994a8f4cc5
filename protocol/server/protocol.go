// SPDX-License-Identifier: GPL-2.0-or-later

// Package server holds the server to client (svc) message codes.
package server

const (
	Bad        = 0
	Nop        = 1
	Disconnect = 2
	// [byte] [long]
	UpdateStat = 3
	// [long] server version
	Version = 4
	// [short] entity number
	SetView = 5
	// <see code>
	Sound = 6
	// [float] server time
	Time = 7
	// [string] null terminated string
	Print = 8
	// [string] stuffed into client's console buffer
	// the string should be \n terminated
	StuffText = 9
	// [angle3] set the view angle to this absolute value
	SetAngle = 10
	// [long] version
	// [string] signon string
	// [string]..[0]model cache
	// [string]...[0]sounds cache
	ServerInfo = 11
	// [byte] [string]
	LightStyle = 12
	// [byte] [string]
	UpdateName = 13
	// [byte] [short]
	UpdateFrags = 14
	// <shortbits + data>
	ClientData = 15
	// <see code>
	StopSound = 16
	// [byte] [byte]
	UpdateColors = 17
	// [vec3] <variable>
	Particle    = 18
	Damage      = 19
	SpawnStatic = 20
	// svc_spawnbinary		=21
	SpawnBaseline = 22
	TempEntity    = 23
	// [byte] on / off
	SetPause = 24
	// [byte]  used for the signon sequence
	SignonNum = 25
	// [string] to put in center of the screen
	Centerprint   = 26
	KilledMonster = 27
	FoundSecret   = 28
	// [coord3] [byte] samp [byte] vol [byte] aten
	SpawnStaticSound = 29
	// [string] music
	Intermission = 30
	// [string] music [string] text
	Finale = 31
	// [byte] track [byte] looptrack
	CDTrack    = 32
	SellScreen = 33
	Cutscene   = 34

	// FitzQuake additions

	// [string] name
	Skybox = 37
	BF     = 40
	// [byte] density [byte] red [byte] green [byte] blue [float] time
	Fog = 41
	// support for large modelindex, large framenum, alpha, using flags
	SpawnBaseline2 = 42
	// support for large modelindex, large framenum, alpha, using flags
	SpawnStatic2 = 43
	// [coord3] [short] samp [byte] vol [byte] aten
	SpawnStaticSound2 = 44
)

const (
	GameCoop       = 0
	GameDeathmatch = 1
)

// Entity update bits. A message byte with the high bit set is a fast
// entity update, the low bits being the first bits.
const (
	U_MOREBITS   = 1 << 0
	U_ORIGIN1    = 1 << 1
	U_ORIGIN2    = 1 << 2
	U_ORIGIN3    = 1 << 3
	U_ANGLE2     = 1 << 4
	U_STEP       = 1 << 5 // NOLERP in NetQuake
	U_FRAME      = 1 << 6
	U_SIGNAL     = 1 << 7 // marks a fast update
	U_ANGLE1     = 1 << 8
	U_ANGLE3     = 1 << 9
	U_MODEL      = 1 << 10
	U_COLORMAP   = 1 << 11
	U_SKIN       = 1 << 12
	U_EFFECTS    = 1 << 13
	U_LONGENTITY = 1 << 14
	// FitzQuake
	U_EXTEND1    = 1 << 15
	U_ALPHA      = 1 << 16
	U_FRAME2     = 1 << 17
	U_MODEL2     = 1 << 18
	U_LERPFINISH = 1 << 19
	U_SCALE      = 1 << 20
	U_EXTEND2    = 1 << 23
)

// Client data bits.
const (
	SU_VIEWHEIGHT  = 1 << 0
	SU_IDEALPITCH  = 1 << 1
	SU_PUNCH1      = 1 << 2
	SU_PUNCH2      = 1 << 3
	SU_PUNCH3      = 1 << 4
	SU_VELOCITY1   = 1 << 5
	SU_VELOCITY2   = 1 << 6
	SU_VELOCITY3   = 1 << 7
	SU_ITEMS       = 1 << 9
	SU_ONGROUND    = 1 << 10
	SU_INWATER     = 1 << 11
	SU_WEAPONFRAME = 1 << 12
	SU_ARMOR       = 1 << 13
	SU_WEAPON      = 1 << 14
	// FitzQuake
	SU_EXTEND1      = 1 << 15
	SU_WEAPON2      = 1 << 16
	SU_ARMOR2       = 1 << 17
	SU_AMMO2        = 1 << 18
	SU_SHELLS2      = 1 << 19
	SU_NAILS2       = 1 << 20
	SU_ROCKETS2     = 1 << 21
	SU_CELLS2       = 1 << 22
	SU_EXTEND2      = 1 << 23
	SU_WEAPONFRAME2 = 1 << 24
	SU_WEAPONALPHA  = 1 << 25
)

// Baseline bits of SpawnBaseline2.
const (
	B_LARGEMODEL = 1 << 0
	B_LARGEFRAME = 1 << 1
	B_ALPHA      = 1 << 2
)

// Sound field mask.
const (
	SoundVolume      = 1 << 0
	SoundAttenuation = 1 << 1
	SoundLargeEntity = 1 << 3
	SoundLargeSound  = 1 << 4
)

const (
	EffectBrightField = 1 << 0
	EffectMuzzleFlash = 1 << 1
	EffectBrightLight = 1 << 2
	EffectDimLight    = 1 << 3
)

var names = [...]string{
	"svc_bad", "svc_nop", "svc_disconnect", "svc_updatestat",
	"svc_version", "svc_setview", "svc_sound", "svc_time", "svc_print",
	"svc_stufftext", "svc_setangle", "svc_serverinfo", "svc_lightstyle",
	"svc_updatename", "svc_updatefrags", "svc_clientdata", "svc_stopsound",
	"svc_updatecolors", "svc_particle", "svc_damage", "svc_spawnstatic",
	"OBSOLETE svc_spawnbinary", "svc_spawnbaseline", "svc_temp_entity",
	"svc_setpause", "svc_signonnum", "svc_centerprint",
	"svc_killedmonster", "svc_foundsecret", "svc_spawnstaticsound",
	"svc_intermission", "svc_finale", "svc_cdtrack", "svc_sellscreen",
	"svc_cutscene", "", "", "svc_skybox", "", "", "svc_bf", "svc_fog",
	"svc_spawnbaseline2", "svc_spawnstatic2", "svc_spawnstaticsound2",
}

// Name returns the diagnostic name of a message code.
func Name(c byte) string {
	if c&U_SIGNAL != 0 {
		return "fast update"
	}
	if int(c) < len(names) && names[c] != "" {
		return names[c]
	}
	return "unknown"
}
