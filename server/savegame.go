// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"netquake/edict"
	"netquake/math/vec"
	"netquake/protocol"
	"netquake/protocol/items"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const saveVersion = 5

var ErrBadSave = errors.New("bad save game")

// SaveGame is a frozen single player level.
type SaveGame struct {
	Comment     string
	MapName     string
	Time        time.Duration
	ServerFlags uint32
	SpawnParms  [protocol.NumSpawnParms]float32
	LightStyles [protocol.MaxLightStyles]string
	Edicts      []SavedEdict
}

type SavedEdict struct {
	Index int
	edict.Edict
}

// Save game field numbers.
const (
	fVersion protowire.Number = iota + 1
	fComment
	fMapName
	fTime
	fServerFlags
	fSpawnParms
	fLightStyle
	fEdict
)

// Edict field numbers.
const (
	eIndex protowire.Number = iota + 1
	eClassName
	eNetName
	eModel
	eModelIndex
	eOrigin
	eAngles
	eVelocity
	eAVelocity
	eMins
	eMaxs
	eFrame
	eSkin
	eEffects
	eColorMap
	eTeam
	eAlpha
	eItems
	eHealth
	eFrags
	eArmor
	eCurrentAmmo
	eShells
	eNails
	eRockets
	eCells
	eWeapon
	eWeaponModel
	eWeaponFrame
	eViewOfs
	eVAngle
	eFlags
	eWaterLevel
	eNextThink
)

func appendString(b []byte, n protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, n protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, n protowire.Number, v int) []byte {
	return appendVarint(b, n, protowire.EncodeZigZag(int64(v)))
}

func appendFloat(b []byte, n protowire.Number, f float32) []byte {
	if f == 0 {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(f))
}

func appendFloats(b []byte, n protowire.Number, fs []float32) []byte {
	var p []byte
	for _, f := range fs {
		p = protowire.AppendFixed32(p, math.Float32bits(f))
	}
	b = protowire.AppendTag(b, n, protowire.BytesType)
	return protowire.AppendBytes(b, p)
}

func appendVec(b []byte, n protowire.Number, v vec.Vec3) []byte {
	if v == (vec.Vec3{}) {
		return b
	}
	return appendFloats(b, n, v[:])
}

// Marshal encodes the save game in protobuf wire format.
func (sg *SaveGame) Marshal() []byte {
	var b []byte
	b = appendVarint(b, fVersion, saveVersion)
	b = appendString(b, fComment, sg.Comment)
	b = appendString(b, fMapName, sg.MapName)
	b = appendVarint(b, fTime, uint64(sg.Time))
	b = appendVarint(b, fServerFlags, uint64(sg.ServerFlags))
	b = appendFloats(b, fSpawnParms, sg.SpawnParms[:])
	for _, ls := range sg.LightStyles {
		// always written, the position is the style number
		b = protowire.AppendTag(b, fLightStyle, protowire.BytesType)
		b = protowire.AppendString(b, ls)
	}
	for i := range sg.Edicts {
		b = protowire.AppendTag(b, fEdict, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalEdict(&sg.Edicts[i]))
	}
	return b
}

func marshalEdict(se *SavedEdict) []byte {
	e := &se.Edict
	b := protowire.AppendTag(nil, eIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(se.Index))
	b = appendString(b, eClassName, e.ClassName)
	b = appendString(b, eNetName, e.NetName)
	b = appendString(b, eModel, e.Model)
	b = appendInt(b, eModelIndex, e.ModelIndex)
	b = appendVec(b, eOrigin, e.Origin)
	b = appendVec(b, eAngles, e.Angles)
	b = appendVec(b, eVelocity, e.Velocity)
	b = appendVec(b, eAVelocity, e.AVelocity)
	b = appendVec(b, eMins, e.Mins)
	b = appendVec(b, eMaxs, e.Maxs)
	b = appendInt(b, eFrame, e.Frame)
	b = appendInt(b, eSkin, e.Skin)
	b = appendInt(b, eEffects, e.Effects)
	b = appendInt(b, eColorMap, e.ColorMap)
	b = appendInt(b, eTeam, e.Team)
	b = appendVarint(b, eAlpha, uint64(e.Alpha))
	b = appendVarint(b, eItems, uint64(e.Items))
	b = appendFloat(b, eHealth, e.Health)
	b = appendFloat(b, eFrags, e.Frags)
	b = appendFloat(b, eArmor, e.ArmorValue)
	b = appendFloat(b, eCurrentAmmo, e.CurrentAmmo)
	b = appendFloat(b, eShells, e.AmmoShells)
	b = appendFloat(b, eNails, e.AmmoNails)
	b = appendFloat(b, eRockets, e.AmmoRockets)
	b = appendFloat(b, eCells, e.AmmoCells)
	b = appendInt(b, eWeapon, e.Weapon)
	b = appendString(b, eWeaponModel, e.WeaponModel)
	b = appendInt(b, eWeaponFrame, e.WeaponFrame)
	b = appendVec(b, eViewOfs, e.ViewOfs)
	b = appendVec(b, eVAngle, e.VAngle)
	b = appendInt(b, eFlags, e.Flags)
	b = appendInt(b, eWaterLevel, e.WaterLevel)
	b = appendInt(b, eNextThink, int(e.NextThink))
	return b
}

// fields walks the top level fields of b.
func fields(b []byte, f func(n protowire.Number, t protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		n, t, l := protowire.ConsumeTag(b)
		if l < 0 {
			return errors.Wrap(ErrBadSave, protowire.ParseError(l).Error())
		}
		b = b[l:]
		vl := protowire.ConsumeFieldValue(n, t, b)
		if vl < 0 {
			return errors.Wrapf(ErrBadSave, "field %d: %v", n, protowire.ParseError(vl))
		}
		if err := f(n, t, b[:vl]); err != nil {
			return err
		}
		b = b[vl:]
	}
	return nil
}

func varint(t protowire.Type, v []byte) (uint64, error) {
	if t != protowire.VarintType {
		return 0, errors.Wrapf(ErrBadSave, "wire type %d, want varint", t)
	}
	x, _ := protowire.ConsumeVarint(v)
	return x, nil
}

func bytesField(t protowire.Type, v []byte) ([]byte, error) {
	if t != protowire.BytesType {
		return nil, errors.Wrapf(ErrBadSave, "wire type %d, want bytes", t)
	}
	x, _ := protowire.ConsumeBytes(v)
	return x, nil
}

func floats(t protowire.Type, v []byte, dst []float32) error {
	p, err := bytesField(t, v)
	if err != nil {
		return err
	}
	for i := range dst {
		x, l := protowire.ConsumeFixed32(p)
		if l < 0 {
			return errors.Wrap(ErrBadSave, "short float list")
		}
		dst[i] = math.Float32frombits(x)
		p = p[l:]
	}
	return nil
}

func float(t protowire.Type, v []byte) (float32, error) {
	if t != protowire.Fixed32Type {
		return 0, errors.Wrapf(ErrBadSave, "wire type %d, want fixed32", t)
	}
	x, _ := protowire.ConsumeFixed32(v)
	return math.Float32frombits(x), nil
}

// Unmarshal decodes a save game written by Marshal. Unknown fields are
// skipped.
func (sg *SaveGame) Unmarshal(b []byte) error {
	*sg = SaveGame{}
	style := 0
	version := uint64(0)
	err := fields(b, func(n protowire.Number, t protowire.Type, v []byte) error {
		switch n {
		case fVersion:
			x, err := varint(t, v)
			version = x
			return err
		case fComment, fMapName:
			s, err := bytesField(t, v)
			if n == fComment {
				sg.Comment = string(s)
			} else {
				sg.MapName = string(s)
			}
			return err
		case fTime:
			x, err := varint(t, v)
			sg.Time = time.Duration(x)
			return err
		case fServerFlags:
			x, err := varint(t, v)
			sg.ServerFlags = uint32(x)
			return err
		case fSpawnParms:
			return floats(t, v, sg.SpawnParms[:])
		case fLightStyle:
			s, err := bytesField(t, v)
			if err != nil {
				return err
			}
			if style >= len(sg.LightStyles) {
				return errors.Wrap(ErrBadSave, "too many light styles")
			}
			sg.LightStyles[style] = string(s)
			style++
		case fEdict:
			p, err := bytesField(t, v)
			if err != nil {
				return err
			}
			se, err := unmarshalEdict(p)
			if err != nil {
				return err
			}
			sg.Edicts = append(sg.Edicts, se)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if version != saveVersion {
		return errors.Wrapf(ErrBadSave, "savegame is version %d, not %d", version, saveVersion)
	}
	return nil
}

func unmarshalEdict(b []byte) (SavedEdict, error) {
	var se SavedEdict
	e := &se.Edict
	ints := map[protowire.Number]*int{
		eModelIndex:  &e.ModelIndex,
		eFrame:       &e.Frame,
		eSkin:        &e.Skin,
		eEffects:     &e.Effects,
		eColorMap:    &e.ColorMap,
		eTeam:        &e.Team,
		eWeapon:      &e.Weapon,
		eWeaponFrame: &e.WeaponFrame,
		eFlags:       &e.Flags,
		eWaterLevel:  &e.WaterLevel,
	}
	strs := map[protowire.Number]*string{
		eClassName:   &e.ClassName,
		eNetName:     &e.NetName,
		eModel:       &e.Model,
		eWeaponModel: &e.WeaponModel,
	}
	fls := map[protowire.Number]*float32{
		eHealth:      &e.Health,
		eFrags:       &e.Frags,
		eArmor:       &e.ArmorValue,
		eCurrentAmmo: &e.CurrentAmmo,
		eShells:      &e.AmmoShells,
		eNails:       &e.AmmoNails,
		eRockets:     &e.AmmoRockets,
		eCells:       &e.AmmoCells,
	}
	vecs := map[protowire.Number]*vec.Vec3{
		eOrigin:    &e.Origin,
		eAngles:    &e.Angles,
		eVelocity:  &e.Velocity,
		eAVelocity: &e.AVelocity,
		eMins:      &e.Mins,
		eMaxs:      &e.Maxs,
		eViewOfs:   &e.ViewOfs,
		eVAngle:    &e.VAngle,
	}
	err := fields(b, func(n protowire.Number, t protowire.Type, v []byte) error {
		if p, ok := ints[n]; ok {
			x, err := varint(t, v)
			*p = int(protowire.DecodeZigZag(x))
			return err
		}
		if p, ok := strs[n]; ok {
			s, err := bytesField(t, v)
			*p = string(s)
			return err
		}
		if p, ok := fls[n]; ok {
			f, err := float(t, v)
			*p = f
			return err
		}
		if p, ok := vecs[n]; ok {
			return floats(t, v, p[:])
		}
		switch n {
		case eIndex:
			x, err := varint(t, v)
			se.Index = int(x)
			return err
		case eAlpha:
			x, err := varint(t, v)
			e.Alpha = byte(x)
			return err
		case eItems:
			x, err := varint(t, v)
			e.Items = items.Items(x)
			return err
		case eNextThink:
			x, err := varint(t, v)
			e.NextThink = time.Duration(protowire.DecodeZigZag(x))
			return err
		}
		return nil
	})
	return se, err
}

// savePath resolves a save name inside the save directory.
func (s *Server) savePath(name string) (string, error) {
	name = filepath.Clean(name)
	if strings.Contains(name, "..") || filepath.IsAbs(name) {
		return "", errors.New("Relative pathnames are not allowed.")
	}
	p := filepath.Join(s.saveDir, name)
	if filepath.Ext(p) != ".sav" {
		p += ".sav"
	}
	return p, nil
}

// Snapshot captures the running single player game.
func (s *Server) Snapshot() (*SaveGame, error) {
	switch {
	case !s.active:
		return nil, errors.New("Not playing a local game.")
	case s.static.maxClients != 1:
		return nil, errors.New("Can't save multiplayer games.")
	case s.ClientEdict(0).Health <= 0:
		return nil, errors.New("Can't savegame with a dead player")
	}
	sg := &SaveGame{
		Comment:     s.level.Message,
		MapName:     s.name,
		Time:        s.time,
		ServerFlags: s.static.serverFlags,
		SpawnParms:  s.sim.SaveParms(s, s.clients[0]),
		LightStyles: s.lightStyles,
	}
	for i := 1; i < s.edicts.Num(); i++ {
		e := s.edicts.At(i)
		if e.Free {
			continue
		}
		se := SavedEdict{Index: i, Edict: *e}
		se.Baseline = edict.State{}
		sg.Edicts = append(sg.Edicts, se)
	}
	return sg, nil
}

// SaveGame writes the game to name in the save directory.
func (s *Server) SaveGame(name string) (string, error) {
	p, err := s.savePath(name)
	if err != nil {
		return "", err
	}
	sg, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, sg.Marshal(), 0o660); err != nil {
		return "", errors.Wrap(err, "couldn't write file")
	}
	return p, nil
}

// LoadGame restarts the saved level and restores the saved edicts. The
// server stays paused until the client spawned.
func (s *Server) LoadGame(name string) error {
	p, err := s.savePath(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return errors.Wrap(err, "couldn't read file")
	}
	var sg SaveGame
	if err := sg.Unmarshal(data); err != nil {
		return err
	}
	return s.Restore(&sg)
}

// Restore replaces the running game with sg.
func (s *Server) Restore(sg *SaveGame) error {
	s.Shutdown(false)
	if err := s.SetMaxClients(1); err != nil {
		return err
	}
	lvl, err := s.levels.Level(sg.MapName)
	if err != nil {
		return err
	}
	if err := s.SpawnServer(lvl); err != nil {
		return err
	}
	// pause until all clients connect
	s.paused = true
	s.loadGame = true
	s.lightStyles = sg.LightStyles
	s.static.serverFlags = sg.ServerFlags

	// the signon holds the baselines of the fresh spawn
	baselines := make([]edict.State, s.edicts.Max())
	for i := 0; i < s.edicts.Num(); i++ {
		baselines[i] = s.edicts.At(i).Baseline
	}
	s.edicts.Reset(s.static.maxClients)
	for i := 0; i < s.edicts.Num(); i++ {
		s.edicts.At(i).Baseline = baselines[i]
	}
	world := s.edicts.At(0)
	world.Model = s.modelName
	world.ModelIndex = 1
	for _, se := range sg.Edicts {
		e, err := s.edicts.Restore(se.Index, se.Edict)
		if err != nil {
			return errors.Wrap(ErrBadSave, err.Error())
		}
		e.Baseline = baselines[se.Index]
	}
	s.time = sg.Time
	s.loadParms[0] = sg.SpawnParms
	s.clients[0].spawnParms = sg.SpawnParms
	if !s.dedicated {
		s.hostCommand("connect local\n")
	}
	return nil
}
