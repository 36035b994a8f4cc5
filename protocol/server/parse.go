// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"

	"github.com/pkg/errors"
)

var (
	ErrIllegible       = errors.New("illegible server message")
	ErrBadProtocol     = errors.New("unsupported protocol version")
	errUnsupportedTemp = errors.New("temp entities are not supported")
)

func readVec(r *net.QReader, flags uint32) (vec.Vec3, error) {
	var v vec.Vec3
	var err error
	for i := range v {
		if v[i], err = r.ReadCoord(flags); err != nil {
			return v, err
		}
	}
	return v, nil
}

func readBytes(r *net.QReader, n int) ([]byte, error) {
	b := make([]byte, n)
	for i := range b {
		var err error
		if b[i], err = r.ReadByte(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func parseClientData(r *net.QReader) (ClientDataCmd, error) {
	cd := ClientDataCmd{ViewHeight: protocol.DefaultViewHeight}
	m, err := r.ReadUint16()
	if err != nil {
		return cd, err
	}
	bits := int(m)
	if bits&SU_EXTEND1 != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return cd, err
		}
		bits |= int(b) << 16
	}
	if bits&SU_EXTEND2 != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return cd, err
		}
		bits |= int(b) << 24
	}
	readChar := func(v *int) error {
		c, err := r.ReadInt8()
		*v = int(c)
		return err
	}
	readByte := func(v *int) error {
		b, err := r.ReadByte()
		*v = int(b)
		return err
	}
	if bits&SU_VIEWHEIGHT != 0 {
		if err := readChar(&cd.ViewHeight); err != nil {
			return cd, err
		}
	}
	if bits&SU_IDEALPITCH != 0 {
		if err := readChar(&cd.IdealPitch); err != nil {
			return cd, err
		}
	}
	for i := 0; i < 3; i++ {
		if bits&(SU_PUNCH1<<i) != 0 {
			if err := readChar(&cd.PunchAngle[i]); err != nil {
				return cd, err
			}
		}
		if bits&(SU_VELOCITY1<<i) != 0 {
			if err := readChar(&cd.Velocity[i]); err != nil {
				return cd, err
			}
		}
	}
	// items are always sent
	items, err := r.ReadInt32()
	if err != nil {
		return cd, err
	}
	cd.Items = uint32(items)
	cd.OnGround = bits&SU_ONGROUND != 0
	cd.InWater = bits&SU_INWATER != 0

	if bits&SU_WEAPONFRAME != 0 {
		if err := readByte(&cd.WeaponFrame); err != nil {
			return cd, err
		}
	}
	if bits&SU_ARMOR != 0 {
		if err := readByte(&cd.Armor); err != nil {
			return cd, err
		}
	}
	if bits&SU_WEAPON != 0 {
		if err := readByte(&cd.Weapon); err != nil {
			return cd, err
		}
	}
	health, err := r.ReadInt16()
	if err != nil {
		return cd, err
	}
	cd.Health = int(health)
	for _, v := range []*int{&cd.Ammo, &cd.Shells, &cd.Nails, &cd.Rockets, &cd.Cells, &cd.ActiveWeapon} {
		if err := readByte(v); err != nil {
			return cd, err
		}
	}
	upper := []struct {
		bit int
		v   *int
	}{
		{SU_WEAPON2, &cd.Weapon},
		{SU_ARMOR2, &cd.Armor},
		{SU_AMMO2, &cd.Ammo},
		{SU_SHELLS2, &cd.Shells},
		{SU_NAILS2, &cd.Nails},
		{SU_ROCKETS2, &cd.Rockets},
		{SU_CELLS2, &cd.Cells},
		{SU_WEAPONFRAME2, &cd.WeaponFrame},
	}
	for _, u := range upper {
		if bits&u.bit != 0 {
			b, err := r.ReadByte()
			if err != nil {
				return cd, err
			}
			*u.v |= int(b) << 8
		}
	}
	if bits&SU_WEAPONALPHA != 0 {
		if err := readByte(&cd.WeaponAlpha); err != nil {
			return cd, err
		}
	}
	return cd, nil
}

func parseSound(r *net.QReader, flags uint32) (SoundCmd, error) {
	s := SoundCmd{Volume: 255, Attenuation: 1}
	fieldMask, err := r.ReadByte()
	if err != nil {
		return s, err
	}
	if fieldMask&SoundVolume != 0 {
		v, err := r.ReadByte()
		if err != nil {
			return s, err
		}
		s.Volume = int(v)
	}
	if fieldMask&SoundAttenuation != 0 {
		a, err := r.ReadByte()
		if err != nil {
			return s, err
		}
		s.Attenuation = float32(a) / 64
	}
	if fieldMask&SoundLargeEntity != 0 {
		e, err := r.ReadUint16()
		if err != nil {
			return s, err
		}
		c, err := r.ReadByte()
		if err != nil {
			return s, err
		}
		s.Entity, s.Channel = int(e), int(c)
	} else {
		v, err := r.ReadUint16()
		if err != nil {
			return s, err
		}
		s.Entity, s.Channel = int(v>>3), int(v&7)
	}
	if fieldMask&SoundLargeSound != 0 {
		n, err := r.ReadUint16()
		if err != nil {
			return s, err
		}
		s.SoundNum = int(n)
	} else {
		n, err := r.ReadByte()
		if err != nil {
			return s, err
		}
		s.SoundNum = int(n)
	}
	s.Origin, err = readVec(r, flags)
	return s, err
}

func parseBaseline(r *net.QReader, flags uint32, bits byte) (Baseline, error) {
	var b Baseline
	readSized := func(large bool) (int, error) {
		if large {
			v, err := r.ReadUint16()
			return int(v), err
		}
		v, err := r.ReadByte()
		return int(v), err
	}
	var err error
	if b.ModelIndex, err = readSized(bits&B_LARGEMODEL != 0); err != nil {
		return b, err
	}
	if b.Frame, err = readSized(bits&B_LARGEFRAME != 0); err != nil {
		return b, err
	}
	cs, err := readBytes(r, 2)
	if err != nil {
		return b, err
	}
	b.ColorMap, b.Skin = int(cs[0]), int(cs[1])
	for i := 0; i < 3; i++ {
		if b.Origin[i], err = r.ReadCoord(flags); err != nil {
			return b, err
		}
		if b.Angles[i], err = r.ReadAngle(flags); err != nil {
			return b, err
		}
	}
	if bits&B_ALPHA != 0 {
		a, err := r.ReadByte()
		if err != nil {
			return b, err
		}
		b.Alpha = int(a)
	}
	return b, nil
}

func parseServerInfo(r *net.QReader) (ServerInfoCmd, error) {
	var si ServerInfoCmd
	v, err := r.ReadInt32()
	if err != nil {
		return si, err
	}
	si.Protocol = int(v)
	if !protocol.Supported(si.Protocol) {
		return si, errors.Wrapf(ErrBadProtocol, "server returned version %d, not %d or %d or %d",
			si.Protocol, protocol.NetQuake, protocol.FitzQuake, protocol.RMQ)
	}
	if si.Protocol == protocol.RMQ {
		f, err := r.ReadInt32()
		if err != nil {
			return si, err
		}
		si.Flags = uint32(f)
	}
	mg, err := readBytes(r, 2)
	if err != nil {
		return si, err
	}
	si.MaxClients, si.GameType = int(mg[0]), int(mg[1])
	if si.LevelName, err = r.ReadString(); err != nil {
		return si, err
	}
	readList := func() ([]string, error) {
		var l []string
		for {
			s, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			if s == "" {
				return l, nil
			}
			l = append(l, s)
		}
	}
	if si.ModelPrecache, err = readList(); err != nil {
		return si, err
	}
	if si.SoundPrecache, err = readList(); err != nil {
		return si, err
	}
	return si, nil
}

func parseEntityUpdate(r *net.QReader, pcol int, flags uint32, cmd byte) (EntityUpdate, error) {
	var eu EntityUpdate
	bits := uint32(cmd)
	if bits&U_MOREBITS != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return eu, err
		}
		bits |= uint32(b) << 8
	}
	if pcol != protocol.NetQuake {
		if bits&U_EXTEND1 != 0 {
			b, err := r.ReadByte()
			if err != nil {
				return eu, err
			}
			bits |= uint32(b) << 16
		}
		if bits&U_EXTEND2 != 0 {
			b, err := r.ReadByte()
			if err != nil {
				return eu, err
			}
			bits |= uint32(b) << 24
		}
	}
	eu.Bits = bits
	if bits&U_LONGENTITY != 0 {
		n, err := r.ReadUint16()
		if err != nil {
			return eu, err
		}
		eu.Entity = int(n)
	} else {
		n, err := r.ReadByte()
		if err != nil {
			return eu, err
		}
		eu.Entity = int(n)
	}
	byteFields := []struct {
		bit uint32
		v   *int
	}{
		{U_MODEL, &eu.Model},
		{U_FRAME, &eu.Frame},
		{U_COLORMAP, &eu.ColorMap},
		{U_SKIN, &eu.Skin},
		{U_EFFECTS, &eu.Effects},
	}
	for _, f := range byteFields {
		if bits&f.bit != 0 {
			b, err := r.ReadByte()
			if err != nil {
				return eu, err
			}
			*f.v = int(b)
		}
	}
	originBits := [3]uint32{U_ORIGIN1, U_ORIGIN2, U_ORIGIN3}
	angleBits := [3]uint32{U_ANGLE1, U_ANGLE2, U_ANGLE3}
	var err error
	for i := 0; i < 3; i++ {
		if bits&originBits[i] != 0 {
			if eu.Origin[i], err = r.ReadCoord(flags); err != nil {
				return eu, err
			}
		}
		if bits&angleBits[i] != 0 {
			if eu.Angles[i], err = r.ReadAngle(flags); err != nil {
				return eu, err
			}
		}
	}
	if pcol == protocol.NetQuake {
		return eu, nil
	}
	if bits&U_ALPHA != 0 {
		a, err := r.ReadByte()
		if err != nil {
			return eu, err
		}
		eu.Alpha = int(a)
	}
	if bits&U_SCALE != 0 {
		// RMQ, ignored
		if _, err := r.ReadByte(); err != nil {
			return eu, err
		}
	}
	if bits&U_FRAME2 != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return eu, err
		}
		eu.Frame |= int(b) << 8
	}
	if bits&U_MODEL2 != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return eu, err
		}
		eu.Model |= int(b) << 8
	}
	if bits&U_LERPFINISH != 0 {
		b, err := r.ReadByte()
		if err != nil {
			return eu, err
		}
		eu.LerpFinish = int(b)
	}
	return eu, nil
}

// Parse decodes a complete server message. A ServerInfoCmd switches the
// protocol used for the rest of the message.
func Parse(data []byte, pcol int, flags uint32) ([]Cmd, error) {
	r := net.NewQReader(data)
	var cmds []Cmd
	lastcmd := byte(0)
	for r.Len() != 0 {
		cmd, _ := r.ReadByte()
		c, err := parseCmd(r, cmd, pcol, flags)
		if err != nil {
			if errors.Is(err, ErrIllegible) {
				return cmds, errors.Wrapf(err, "%d, previous was %s", cmd, Name(lastcmd))
			}
			return cmds, errors.Wrapf(err, "parsing %s", Name(cmd))
		}
		if si, ok := c.(ServerInfoCmd); ok {
			pcol, flags = si.Protocol, si.Flags
		}
		cmds = append(cmds, c)
		lastcmd = cmd
	}
	return cmds, nil
}

func parseCmd(r *net.QReader, cmd byte, pcol int, flags uint32) (Cmd, error) {
	// if the high bit of the command byte is set, it is a fast update
	if cmd&U_SIGNAL != 0 {
		return parseEntityUpdate(r, pcol, flags, cmd&127)
	}
	switch cmd {
	case Nop:
		return NopCmd{}, nil
	case Disconnect:
		return DisconnectCmd{}, nil
	case KilledMonster:
		return KilledMonsterCmd{}, nil
	case FoundSecret:
		return FoundSecretCmd{}, nil
	case Intermission:
		return IntermissionCmd{}, nil
	case SellScreen:
		return SellScreenCmd{}, nil
	case BF:
		return BackgroundFlash{}, nil
	case Time:
		t, err := r.ReadFloat32()
		return TimeCmd(t), err
	case Print:
		s, err := r.ReadString()
		return PrintCmd(s), err
	case Centerprint:
		s, err := r.ReadString()
		return CenterPrintCmd(s), err
	case StuffText:
		s, err := r.ReadString()
		return StuffTextCmd(s), err
	case Finale:
		s, err := r.ReadString()
		return FinaleCmd(s), err
	case Cutscene:
		s, err := r.ReadString()
		return CutsceneCmd(s), err
	case Skybox:
		s, err := r.ReadString()
		return SkyboxCmd(s), err
	case Version:
		v, err := r.ReadInt32()
		return VersionCmd(v), err
	case SetView:
		v, err := r.ReadUint16()
		return SetViewCmd(v), err
	case SignonNum:
		v, err := r.ReadByte()
		return SignonNumCmd(v), err
	case SetPause:
		v, err := r.ReadByte()
		return SetPauseCmd(v != 0), err
	case StopSound:
		v, err := r.ReadUint16()
		return StopSoundCmd(v), err
	case SetAngle:
		var a SetAngleCmd
		for i := range a {
			var err error
			if a[i], err = r.ReadAngle(flags); err != nil {
				return nil, err
			}
		}
		return a, nil
	case UpdateStat:
		s, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadInt32()
		return UpdateStatCmd{Stat: int(s), Value: v}, err
	case ServerInfo:
		return parseServerInfo(r)
	case LightStyle:
		i, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		s, err := r.ReadString()
		return LightStyleCmd{Index: int(i), Style: s}, err
	case UpdateName:
		p, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		s, err := r.ReadString()
		return UpdateNameCmd{Player: int(p), Name: s}, err
	case UpdateFrags:
		p, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		f, err := r.ReadInt16()
		return UpdateFragsCmd{Player: int(p), Frags: int(f)}, err
	case UpdateColors:
		b, err := readBytes(r, 2)
		if err != nil {
			return nil, err
		}
		return UpdateColorsCmd{Player: int(b[0]), Color: int(b[1])}, nil
	case ClientData:
		return parseClientData(r)
	case Particle:
		org, err := readVec(r, flags)
		if err != nil {
			return nil, err
		}
		b, err := readBytes(r, 5)
		if err != nil {
			return nil, err
		}
		p := ParticleCmd{
			Origin: org,
			Direction: vec.Vec3{
				float32(int8(b[0])) / 16,
				float32(int8(b[1])) / 16,
				float32(int8(b[2])) / 16,
			},
			Count: int(b[3]),
			Color: int(b[4]),
		}
		if p.Count == 255 {
			p.Count = 1024
		}
		return p, nil
	case Damage:
		b, err := readBytes(r, 2)
		if err != nil {
			return nil, err
		}
		pos, err := readVec(r, flags)
		return DamageCmd{Armor: int(b[0]), Blood: int(b[1]), Position: pos}, err
	case Sound:
		return parseSound(r, flags)
	case SpawnBaseline, SpawnBaseline2:
		i, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		bits := byte(0)
		if cmd == SpawnBaseline2 {
			if bits, err = r.ReadByte(); err != nil {
				return nil, err
			}
		}
		b, err := parseBaseline(r, flags, bits)
		return SpawnBaselineCmd{Index: int(i), Baseline: b}, err
	case SpawnStatic, SpawnStatic2:
		bits := byte(0)
		if cmd == SpawnStatic2 {
			var err error
			if bits, err = r.ReadByte(); err != nil {
				return nil, err
			}
		}
		b, err := parseBaseline(r, flags, bits)
		return SpawnStaticCmd{Baseline: b}, err
	case SpawnStaticSound, SpawnStaticSound2:
		org, err := readVec(r, flags)
		if err != nil {
			return nil, err
		}
		ss := StaticSoundCmd{Origin: org}
		if cmd == SpawnStaticSound2 {
			n, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			ss.Index = int(n)
		} else {
			n, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ss.Index = int(n)
		}
		b, err := readBytes(r, 2)
		if err != nil {
			return nil, err
		}
		ss.Volume, ss.Attenuation = int(b[0]), int(b[1])
		return ss, nil
	case CDTrack:
		b, err := readBytes(r, 2)
		if err != nil {
			return nil, err
		}
		return CDTrackCmd{Track: int(b[0]), Loop: int(b[1])}, nil
	case Fog:
		b, err := readBytes(r, 5)
		if err != nil {
			return nil, err
		}
		return FogCmd{
			Density: float32(b[0]) / 255,
			Red:     float32(b[1]) / 255,
			Green:   float32(b[2]) / 255,
			Blue:    float32(b[3]) / 255,
			Time:    float32(b[4]) / 100,
		}, nil
	case TempEntity:
		return nil, errUnsupportedTemp
	}
	return nil, ErrIllegible
}
