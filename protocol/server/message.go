// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"

	"github.com/pkg/errors"
)

// Cmd is a single server to client message.
type Cmd interface {
	write(m *net.Message, pcol int, flags uint32)
}

// Write appends cmds to m. A command is written completely or not at
// all, the first one that does not fit stops the write.
func Write(m *net.Message, pcol int, flags uint32, cmds ...Cmd) error {
	for _, c := range cmds {
		k := m.Mark()
		c.write(m, pcol, flags)
		if m.RejectedSince(k) {
			m.Rollback(k)
			return errors.Wrapf(net.ErrOverflow, "%T", c)
		}
	}
	return nil
}

type (
	NopCmd           struct{}
	DisconnectCmd    struct{}
	KilledMonsterCmd struct{}
	FoundSecretCmd   struct{}
	IntermissionCmd  struct{}
	SellScreenCmd    struct{}
	BackgroundFlash  struct{}
	TimeCmd          float32
	PrintCmd         string
	CenterPrintCmd   string
	StuffTextCmd     string
	FinaleCmd        string
	CutsceneCmd      string
	SkyboxCmd        string
	VersionCmd       int32
	SetViewCmd       int
	SignonNumCmd     int
	SetPauseCmd      bool
	StopSoundCmd     int
	SetAngleCmd      vec.Vec3
)

type UpdateStatCmd struct {
	Stat  int
	Value int32
}

type ServerInfoCmd struct {
	Protocol      int
	Flags         uint32
	MaxClients    int
	GameType      int
	LevelName     string
	ModelPrecache []string // without the empty entry 0
	SoundPrecache []string
}

type LightStyleCmd struct {
	Index int
	Style string
}

type UpdateNameCmd struct {
	Player int
	Name   string
}

type UpdateFragsCmd struct {
	Player int
	Frags  int
}

type UpdateColorsCmd struct {
	Player int
	Color  int
}

type ParticleCmd struct {
	Origin    vec.Vec3
	Direction vec.Vec3
	Count     int
	Color     int
}

type DamageCmd struct {
	Armor    int
	Blood    int
	Position vec.Vec3
}

type SoundCmd struct {
	Entity      int
	Channel     int
	SoundNum    int
	Volume      int     // 255 is the default and not sent
	Attenuation float32 // 1 is the default and not sent
	Origin      vec.Vec3
}

type CDTrackCmd struct {
	Track int
	Loop  int
}

type FogCmd struct {
	Density, Red, Green, Blue float32
	Time                      float32
}

// Baseline is the initial state of an entity or a static entity.
type Baseline struct {
	ModelIndex int
	Frame      int
	ColorMap   int
	Skin       int
	Origin     vec.Vec3
	Angles     vec.Vec3
	Alpha      int // 0 is default
}

type SpawnBaselineCmd struct {
	Index int
	Baseline
}

type SpawnStaticCmd struct {
	Baseline
}

type StaticSoundCmd struct {
	Origin      vec.Vec3
	Index       int
	Volume      int
	Attenuation int
}

// ClientData is the per frame state of the player entity.
type ClientDataCmd struct {
	ViewHeight   int
	IdealPitch   int
	PunchAngle   [3]int
	Velocity     [3]int // units of 16
	Items        uint32
	OnGround     bool
	InWater      bool
	WeaponFrame  int
	Armor        int
	Weapon       int // model index of the weapon
	Health       int
	Ammo         int
	Shells       int
	Nails        int
	Rockets      int
	Cells        int
	ActiveWeapon int
	WeaponAlpha  int
}

// EntityUpdate is a delta against the entity baseline. Bits holds the
// U_ bits of the fields present, the writer adds the extension bits.
type EntityUpdate struct {
	Entity     int
	Bits       uint32
	Model      int
	Frame      int
	ColorMap   int
	Skin       int
	Effects    int
	Origin     vec.Vec3
	Angles     vec.Vec3
	Alpha      int
	LerpFinish int
}

func b2b(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeVec(m *net.Message, v vec.Vec3, flags uint32) {
	for _, c := range v {
		m.WriteCoord(c, flags)
	}
}

func (NopCmd) write(m *net.Message, _ int, _ uint32)           { m.WriteByte(Nop) }
func (DisconnectCmd) write(m *net.Message, _ int, _ uint32)    { m.WriteByte(Disconnect) }
func (KilledMonsterCmd) write(m *net.Message, _ int, _ uint32) { m.WriteByte(KilledMonster) }
func (FoundSecretCmd) write(m *net.Message, _ int, _ uint32)   { m.WriteByte(FoundSecret) }
func (IntermissionCmd) write(m *net.Message, _ int, _ uint32)  { m.WriteByte(Intermission) }
func (SellScreenCmd) write(m *net.Message, _ int, _ uint32)    { m.WriteByte(SellScreen) }
func (BackgroundFlash) write(m *net.Message, _ int, _ uint32)  { m.WriteByte(BF) }

func (c TimeCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(Time)
	m.WriteFloat(float32(c))
}

func writeString(m *net.Message, cmd byte, s string) {
	m.WriteByte(cmd)
	m.WriteString(s)
}

func (c PrintCmd) write(m *net.Message, _ int, _ uint32)       { writeString(m, Print, string(c)) }
func (c CenterPrintCmd) write(m *net.Message, _ int, _ uint32) { writeString(m, Centerprint, string(c)) }
func (c StuffTextCmd) write(m *net.Message, _ int, _ uint32)   { writeString(m, StuffText, string(c)) }
func (c FinaleCmd) write(m *net.Message, _ int, _ uint32)      { writeString(m, Finale, string(c)) }
func (c CutsceneCmd) write(m *net.Message, _ int, _ uint32)    { writeString(m, Cutscene, string(c)) }
func (c SkyboxCmd) write(m *net.Message, _ int, _ uint32)      { writeString(m, Skybox, string(c)) }

func (c VersionCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(Version)
	m.WriteLong(int(c))
}

func (c SetViewCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(SetView)
	m.WriteShort(int(c))
}

func (c SignonNumCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(SignonNum)
	m.WriteByte(byte(c))
}

func (c SetPauseCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(SetPause)
	m.WriteByte(b2b(bool(c)))
}

func (c StopSoundCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(StopSound)
	m.WriteShort(int(c))
}

func (c SetAngleCmd) write(m *net.Message, _ int, flags uint32) {
	m.WriteByte(SetAngle)
	for _, a := range c {
		m.WriteAngle(a, flags)
	}
}

func (c UpdateStatCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(UpdateStat)
	m.WriteByte(byte(c.Stat))
	m.WriteLong(int(c.Value))
}

func (c ServerInfoCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(ServerInfo)
	m.WriteLong(c.Protocol)
	if c.Protocol == protocol.RMQ {
		m.WriteLong(int(c.Flags))
	}
	m.WriteByte(byte(c.MaxClients))
	m.WriteByte(byte(c.GameType))
	m.WriteString(c.LevelName)
	for _, n := range c.ModelPrecache {
		m.WriteString(n)
	}
	m.WriteByte(0)
	for _, n := range c.SoundPrecache {
		m.WriteString(n)
	}
	m.WriteByte(0)
}

func (c LightStyleCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(LightStyle)
	m.WriteByte(byte(c.Index))
	m.WriteString(c.Style)
}

func (c UpdateNameCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(UpdateName)
	m.WriteByte(byte(c.Player))
	m.WriteString(c.Name)
}

func (c UpdateFragsCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(UpdateFrags)
	m.WriteByte(byte(c.Player))
	m.WriteShort(c.Frags)
}

func (c UpdateColorsCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(UpdateColors)
	m.WriteByte(byte(c.Player))
	m.WriteByte(byte(c.Color))
}

func (c ParticleCmd) write(m *net.Message, _ int, flags uint32) {
	m.WriteByte(Particle)
	writeVec(m, c.Origin, flags)
	df := func(d float32) int {
		v := d * 16
		if v > 127 {
			return 127
		}
		if v < -128 {
			return -128
		}
		return int(v)
	}
	for _, d := range c.Direction {
		m.WriteChar(df(d))
	}
	m.WriteByte(byte(c.Count))
	m.WriteByte(byte(c.Color))
}

func (c DamageCmd) write(m *net.Message, _ int, flags uint32) {
	m.WriteByte(Damage)
	m.WriteByte(byte(c.Armor))
	m.WriteByte(byte(c.Blood))
	writeVec(m, c.Position, flags)
}

func (c SoundCmd) write(m *net.Message, pcol int, flags uint32) {
	fieldMask := byte(0)
	if c.Entity >= 8192 {
		if pcol == protocol.NetQuake {
			return // protocol does not support this info
		}
		fieldMask |= SoundLargeEntity
	}
	if c.SoundNum >= 256 || c.Channel >= 8 {
		if pcol == protocol.NetQuake {
			return
		}
		fieldMask |= SoundLargeSound
	}
	if c.Volume != 255 {
		fieldMask |= SoundVolume
	}
	if c.Attenuation != 1 {
		fieldMask |= SoundAttenuation
	}
	m.WriteByte(Sound)
	m.WriteByte(fieldMask)
	if fieldMask&SoundVolume != 0 {
		m.WriteByte(byte(c.Volume))
	}
	if fieldMask&SoundAttenuation != 0 {
		m.WriteByte(byte(c.Attenuation * 64))
	}
	if fieldMask&SoundLargeEntity != 0 {
		m.WriteShort(c.Entity)
		m.WriteByte(byte(c.Channel))
	} else {
		m.WriteShort(c.Entity<<3 | c.Channel)
	}
	if fieldMask&SoundLargeSound != 0 {
		m.WriteShort(c.SoundNum)
	} else {
		m.WriteByte(byte(c.SoundNum))
	}
	writeVec(m, c.Origin, flags)
}

func (c CDTrackCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(CDTrack)
	m.WriteByte(byte(c.Track))
	m.WriteByte(byte(c.Loop))
}

func (c FogCmd) write(m *net.Message, _ int, _ uint32) {
	m.WriteByte(Fog)
	m.WriteByte(byte(c.Density * 255))
	m.WriteByte(byte(c.Red * 255))
	m.WriteByte(byte(c.Green * 255))
	m.WriteByte(byte(c.Blue * 255))
	m.WriteByte(byte(c.Time * 100))
}

func (b Baseline) bits(pcol int) byte {
	if pcol == protocol.NetQuake {
		return 0
	}
	bits := byte(0)
	if b.ModelIndex&0xFF00 != 0 {
		bits |= B_LARGEMODEL
	}
	if b.Frame&0xFF00 != 0 {
		bits |= B_LARGEFRAME
	}
	if b.Alpha != 0 {
		bits |= B_ALPHA
	}
	return bits
}

func (b Baseline) writeFields(m *net.Message, bits byte, flags uint32) {
	if bits&B_LARGEMODEL != 0 {
		m.WriteShort(b.ModelIndex)
	} else {
		m.WriteByte(byte(b.ModelIndex))
	}
	if bits&B_LARGEFRAME != 0 {
		m.WriteShort(b.Frame)
	} else {
		m.WriteByte(byte(b.Frame))
	}
	m.WriteByte(byte(b.ColorMap))
	m.WriteByte(byte(b.Skin))
	for i := 0; i < 3; i++ {
		m.WriteCoord(b.Origin[i], flags)
		m.WriteAngle(b.Angles[i], flags)
	}
	if bits&B_ALPHA != 0 {
		m.WriteByte(byte(b.Alpha))
	}
}

func (c SpawnBaselineCmd) write(m *net.Message, pcol int, flags uint32) {
	bits := c.bits(pcol)
	if bits != 0 {
		m.WriteByte(SpawnBaseline2)
		m.WriteShort(c.Index)
		m.WriteByte(bits)
	} else {
		m.WriteByte(SpawnBaseline)
		m.WriteShort(c.Index)
	}
	c.Baseline.writeFields(m, bits, flags)
}

func (c SpawnStaticCmd) write(m *net.Message, pcol int, flags uint32) {
	bits := c.bits(pcol)
	if bits != 0 {
		m.WriteByte(SpawnStatic2)
		m.WriteByte(bits)
	} else {
		m.WriteByte(SpawnStatic)
	}
	c.Baseline.writeFields(m, bits, flags)
}

func (c StaticSoundCmd) write(m *net.Message, pcol int, flags uint32) {
	large := c.Index >= 256 && pcol != protocol.NetQuake
	if large {
		m.WriteByte(SpawnStaticSound2)
	} else {
		m.WriteByte(SpawnStaticSound)
	}
	writeVec(m, c.Origin, flags)
	if large {
		m.WriteShort(c.Index)
	} else {
		m.WriteByte(byte(c.Index))
	}
	m.WriteByte(byte(c.Volume))
	m.WriteByte(byte(c.Attenuation))
}

func (cd ClientDataCmd) write(m *net.Message, pcol int, _ uint32) {
	bits := SU_ITEMS | SU_WEAPON
	if cd.ViewHeight != protocol.DefaultViewHeight {
		bits |= SU_VIEWHEIGHT
	}
	if cd.IdealPitch != 0 {
		bits |= SU_IDEALPITCH
	}
	if cd.OnGround {
		bits |= SU_ONGROUND
	}
	if cd.InWater {
		bits |= SU_INWATER
	}
	for i, b := range [3]int{SU_PUNCH1, SU_PUNCH2, SU_PUNCH3} {
		if cd.PunchAngle[i] != 0 {
			bits |= b
		}
	}
	for i, b := range [3]int{SU_VELOCITY1, SU_VELOCITY2, SU_VELOCITY3} {
		if cd.Velocity[i] != 0 {
			bits |= b
		}
	}
	if cd.WeaponFrame != 0 {
		bits |= SU_WEAPONFRAME
	}
	if cd.Armor != 0 {
		bits |= SU_ARMOR
	}

	if pcol != protocol.NetQuake {
		if cd.Weapon&0xFF00 != 0 {
			bits |= SU_WEAPON2
		}
		if cd.Armor&0xFF00 != 0 {
			bits |= SU_ARMOR2
		}
		if cd.Ammo&0xFF00 != 0 {
			bits |= SU_AMMO2
		}
		if cd.Shells&0xFF00 != 0 {
			bits |= SU_SHELLS2
		}
		if cd.Nails&0xFF00 != 0 {
			bits |= SU_NAILS2
		}
		if cd.Rockets&0xFF00 != 0 {
			bits |= SU_ROCKETS2
		}
		if cd.Cells&0xFF00 != 0 {
			bits |= SU_CELLS2
		}
		if bits&SU_WEAPONFRAME != 0 && cd.WeaponFrame&0xFF00 != 0 {
			bits |= SU_WEAPONFRAME2
		}
		if cd.WeaponAlpha != 0 {
			bits |= SU_WEAPONALPHA
		}
		if bits >= 1<<16 {
			bits |= SU_EXTEND1
		}
		if bits >= 1<<24 {
			bits |= SU_EXTEND2
		}
	}
	m.WriteByte(ClientData)
	m.WriteShort(bits & 0xFFFF)
	if bits&SU_EXTEND1 != 0 {
		m.WriteByte(byte(bits >> 16))
	}
	if bits&SU_EXTEND2 != 0 {
		m.WriteByte(byte(bits >> 24))
	}
	if bits&SU_VIEWHEIGHT != 0 {
		m.WriteChar(cd.ViewHeight)
	}
	if bits&SU_IDEALPITCH != 0 {
		m.WriteChar(cd.IdealPitch)
	}
	for i, b := range [3]int{SU_PUNCH1, SU_PUNCH2, SU_PUNCH3} {
		if bits&b != 0 {
			m.WriteChar(cd.PunchAngle[i])
		}
		if bits&(SU_VELOCITY1<<i) != 0 {
			m.WriteChar(cd.Velocity[i])
		}
	}
	m.WriteLong(int(cd.Items))
	if bits&SU_WEAPONFRAME != 0 {
		m.WriteByte(byte(cd.WeaponFrame))
	}
	if bits&SU_ARMOR != 0 {
		m.WriteByte(byte(cd.Armor))
	}
	m.WriteByte(byte(cd.Weapon))
	m.WriteShort(cd.Health)
	m.WriteByte(byte(cd.Ammo))
	m.WriteByte(byte(cd.Shells))
	m.WriteByte(byte(cd.Nails))
	m.WriteByte(byte(cd.Rockets))
	m.WriteByte(byte(cd.Cells))
	m.WriteByte(byte(cd.ActiveWeapon))

	upper := []struct {
		bit int
		v   int
	}{
		{SU_WEAPON2, cd.Weapon},
		{SU_ARMOR2, cd.Armor},
		{SU_AMMO2, cd.Ammo},
		{SU_SHELLS2, cd.Shells},
		{SU_NAILS2, cd.Nails},
		{SU_ROCKETS2, cd.Rockets},
		{SU_CELLS2, cd.Cells},
		{SU_WEAPONFRAME2, cd.WeaponFrame},
	}
	for _, u := range upper {
		if bits&u.bit != 0 {
			m.WriteByte(byte(u.v >> 8))
		}
	}
	if bits&SU_WEAPONALPHA != 0 {
		m.WriteByte(byte(cd.WeaponAlpha))
	}
}

func (eu EntityUpdate) write(m *net.Message, pcol int, flags uint32) {
	bits := eu.Bits &^ (U_MOREBITS | U_SIGNAL | U_LONGENTITY | U_EXTEND1 | U_EXTEND2 |
		U_ALPHA | U_FRAME2 | U_MODEL2 | U_LERPFINISH | U_SCALE)
	if pcol != protocol.NetQuake {
		if eu.Bits&U_ALPHA != 0 {
			bits |= U_ALPHA
		}
		if bits&U_FRAME != 0 && eu.Frame&0xFF00 != 0 {
			bits |= U_FRAME2
		}
		if bits&U_MODEL != 0 && eu.Model&0xFF00 != 0 {
			bits |= U_MODEL2
		}
		if eu.Bits&U_LERPFINISH != 0 {
			bits |= U_LERPFINISH
		}
		if bits >= 1<<16 {
			bits |= U_EXTEND1
		}
		if bits >= 1<<24 {
			bits |= U_EXTEND2
		}
	}
	if eu.Entity >= 256 {
		bits |= U_LONGENTITY
	}
	if bits >= 256 {
		bits |= U_MOREBITS
	}

	m.WriteByte(byte(bits) | U_SIGNAL)
	if bits&U_MOREBITS != 0 {
		m.WriteByte(byte(bits >> 8))
	}
	if bits&U_EXTEND1 != 0 {
		m.WriteByte(byte(bits >> 16))
	}
	if bits&U_EXTEND2 != 0 {
		m.WriteByte(byte(bits >> 24))
	}
	if bits&U_LONGENTITY != 0 {
		m.WriteShort(eu.Entity)
	} else {
		m.WriteByte(byte(eu.Entity))
	}
	if bits&U_MODEL != 0 {
		m.WriteByte(byte(eu.Model))
	}
	if bits&U_FRAME != 0 {
		m.WriteByte(byte(eu.Frame))
	}
	if bits&U_COLORMAP != 0 {
		m.WriteByte(byte(eu.ColorMap))
	}
	if bits&U_SKIN != 0 {
		m.WriteByte(byte(eu.Skin))
	}
	if bits&U_EFFECTS != 0 {
		m.WriteByte(byte(eu.Effects))
	}
	if bits&U_ORIGIN1 != 0 {
		m.WriteCoord(eu.Origin[0], flags)
	}
	if bits&U_ANGLE1 != 0 {
		m.WriteAngle(eu.Angles[0], flags)
	}
	if bits&U_ORIGIN2 != 0 {
		m.WriteCoord(eu.Origin[1], flags)
	}
	if bits&U_ANGLE2 != 0 {
		m.WriteAngle(eu.Angles[1], flags)
	}
	if bits&U_ORIGIN3 != 0 {
		m.WriteCoord(eu.Origin[2], flags)
	}
	if bits&U_ANGLE3 != 0 {
		m.WriteAngle(eu.Angles[2], flags)
	}
	if bits&U_ALPHA != 0 {
		m.WriteByte(byte(eu.Alpha))
	}
	if bits&U_FRAME2 != 0 {
		m.WriteByte(byte(eu.Frame >> 8))
	}
	if bits&U_MODEL2 != 0 {
		m.WriteByte(byte(eu.Model >> 8))
	}
	if bits&U_LERPFINISH != 0 {
		m.WriteByte(byte(eu.LerpFinish))
	}
}
