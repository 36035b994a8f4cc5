// SPDX-License-Identifier: GPL-2.0-or-later

// Package sim is a small deathmatch rule set driving the server: walking
// players, gravity and item pickups. It stands in for a game program.
package sim

import (
	"time"

	"netquake/conlog"
	"netquake/edict"
	"netquake/math/vec"
	"netquake/protocol"
	"netquake/protocol/items"
	"netquake/server"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	jumpSpeed   = 270
	stopSpeed   = 100
	respawnTime = 30 * time.Second

	soundJump    = "player/plyrjmp8.wav"
	soundRespawn = "items/itembk2.wav"
	modelWeapon  = "progs/v_shot.mdl"
)

// Spawn parm slots.
const (
	parmItems = iota
	parmHealth
	parmArmor
	parmShells
	parmNails
	parmRockets
	parmCells
	parmWeapon
)

var (
	playerMins = vec.Vec3{-16, -16, -24}
	playerMaxs = vec.Vec3{16, 16, 32}
	itemMins   = vec.Vec3{0, 0, 0}
	itemMaxs   = vec.Vec3{32, 32, 56}
)

// Entity is a level entity to spawn.
type Entity struct {
	ClassName string
	Origin    vec.Vec3
	Angles    vec.Vec3
	Model     string
	// Sound is the sample of ambient sounds.
	Sound string
	Style int
	Light string
}

// Level is the simulator view of a map.
type Level struct {
	Floor    float32
	Mins     vec.Vec3
	Maxs     vec.Vec3
	Entities []Entity
}

// Sim implements server.Simulator.
type Sim struct {
	levels map[string]Level
	level  Level
	area   *Area
	// placed maps item edicts to their kind.
	placed map[int]*pickup
	spots  []Entity
}

func New(levels map[string]Level) *Sim {
	return &Sim{levels: levels}
}

func defaultLevel() Level {
	return Level{
		Mins: vec.Vec3{-4096, -4096, -4096},
		Maxs: vec.Vec3{4096, 4096, 4096},
	}
}

// SpawnLevel precaches the player assets and spawns the level entities.
func (sm *Sim) SpawnLevel(s *server.Server, l server.Level) error {
	lvl, ok := sm.levels[l.Name]
	if !ok {
		lvl = defaultLevel()
	}
	if lvl.Mins == lvl.Maxs {
		d := defaultLevel()
		lvl.Mins, lvl.Maxs = d.Mins, d.Maxs
	}
	sm.level = lvl
	sm.area = NewArea(lvl.Mins, lvl.Maxs)
	sm.placed = make(map[int]*pickup)
	sm.spots = nil

	for _, m := range []string{server.PlayerModel, modelWeapon} {
		if _, err := s.PrecacheModel(m); err != nil {
			return err
		}
	}
	for _, snd := range []string{soundJump, soundRespawn} {
		if _, err := s.PrecacheSound(snd); err != nil {
			return err
		}
	}
	if err := s.SetLightStyle(0, "m"); err != nil {
		return err
	}
	for _, ent := range lvl.Entities {
		if err := sm.spawn(s, ent); err != nil {
			return errors.Wrap(err, ent.ClassName)
		}
	}
	return nil
}

func (sm *Sim) spawn(s *server.Server, ent Entity) error {
	switch ent.ClassName {
	case "info_player_start", "info_player_deathmatch":
		sm.spots = append(sm.spots, ent)
		return nil
	case "light":
		if ent.Style >= 32 && ent.Light != "" {
			return s.SetLightStyle(ent.Style, ent.Light)
		}
		return nil
	case "ambient_sound":
		if _, err := s.PrecacheSound(ent.Sound); err != nil {
			return err
		}
		return s.AmbientSound(ent.Origin, ent.Sound, 255, 3)
	}

	h, e, err := s.Edicts().Alloc(s.Time())
	if err != nil {
		return err
	}
	e.ClassName = ent.ClassName
	e.Origin = ent.Origin
	e.Angles = ent.Angles
	e.Model = ent.Model
	p, isItem := pickups[ent.ClassName]
	if isItem && e.Model == "" {
		e.Model = p.model
	}
	if e.Model != "" {
		if e.ModelIndex, err = s.PrecacheModel(e.Model); err != nil {
			return err
		}
	}
	switch {
	case isItem:
		if _, err := s.PrecacheSound(p.sound); err != nil {
			return err
		}
		e.Flags |= edict.FlagItem
		e.Mins, e.Maxs = itemMins, itemMaxs
		sm.placed[h.Index] = p
		sm.area.Link(h.Index, e, true)
	case ent.ClassName == "misc_static":
		return s.MakeStatic(h)
	}
	return nil
}

// NewParms are the parms of a fresh player.
func (sm *Sim) NewParms() [protocol.NumSpawnParms]float32 {
	var p [protocol.NumSpawnParms]float32
	p[parmItems] = float32(items.Shotgun | items.Axe)
	p[parmHealth] = 100
	p[parmShells] = 25
	p[parmWeapon] = float32(items.Shotgun)
	return p
}

func (sm *Sim) SaveParms(s *server.Server, c *server.Client) [protocol.NumSpawnParms]float32 {
	e := c.Edict()
	if e.Health <= 0 {
		return sm.NewParms()
	}
	var p [protocol.NumSpawnParms]float32
	// keys do not carry over
	p[parmItems] = float32(e.Items &^ (items.Key1 | items.Key2))
	p[parmHealth] = math32.Max(50, math32.Min(e.Health, 100))
	p[parmArmor] = e.ArmorValue
	p[parmShells] = math32.Max(25, e.AmmoShells)
	p[parmNails] = e.AmmoNails
	p[parmRockets] = e.AmmoRockets
	p[parmCells] = e.AmmoCells
	p[parmWeapon] = float32(e.Weapon)
	return p
}

func (sm *Sim) ClientConnect(s *server.Server, c *server.Client) {
	s.BroadcastPrintf("%s entered the game\n", c.Name())
}

// PutClientInServer places the player on a spawn spot.
func (sm *Sim) PutClientInServer(s *server.Server, c *server.Client) {
	e := c.Edict()
	p := c.SpawnParms()
	e.ClassName = "player"
	e.NetName = c.Name()
	e.Health = p[parmHealth]
	e.Items = items.Items(p[parmItems])
	e.ArmorValue = p[parmArmor]
	e.AmmoShells = p[parmShells]
	e.AmmoNails = p[parmNails]
	e.AmmoRockets = p[parmRockets]
	e.AmmoCells = p[parmCells]
	e.Weapon = int(p[parmWeapon])
	e.CurrentAmmo = e.AmmoShells
	e.WeaponModel = modelWeapon
	e.Model = server.PlayerModel
	e.ModelIndex, _ = s.ModelIndex(server.PlayerModel)
	e.Mins, e.Maxs = playerMins, playerMaxs
	e.ViewOfs = vec.Vec3{0, 0, protocol.DefaultViewHeight}
	e.Flags = edict.FlagClient
	e.Velocity = vec.Vec3{}

	spot := Entity{Origin: vec.Vec3{0, 0, sm.level.Floor - playerMins[2]}}
	if len(sm.spots) > 0 {
		spot = sm.spots[c.ID()%len(sm.spots)]
	}
	e.Origin = spot.Origin
	e.Angles = spot.Angles
	e.FixAngle = true
	sm.area.Link(c.ID()+1, e, false)
}

func (sm *Sim) ClientDisconnect(s *server.Server, c *server.Client) {
	e := c.Edict()
	s.BroadcastPrintf("%s left the game with %d frags\n", c.Name(), int(e.Frags))
	sm.area.Unlink(c.ID() + 1)
	e.Model = ""
	e.ModelIndex = 0
}

func (sm *Sim) ClientKill(s *server.Server, c *server.Client) {
	e := c.Edict()
	e.Frags--
	s.BroadcastPrintf("%s suicides\n", c.Name())
	c.SetSpawnParms(sm.NewParms())
	sm.PutClientInServer(s, c)
}

// ClientThink applies the move command of the client to its velocity.
// The move fields specify an intended velocity in units per second.
func (sm *Sim) ClientThink(s *server.Server, c *server.Client, frameTime time.Duration) {
	e := c.Edict()
	dt := float32(frameTime.Seconds())
	dropPunchAngle(e, dt)
	if e.Health <= 0 {
		return
	}
	cmd := c.Move()
	if !e.FixAngle {
		e.Angles[0] = -(e.VAngle[0] + e.PunchAngle[0]) / 3
		e.Angles[1] = e.VAngle[1] + e.PunchAngle[1]
	}

	forward, right, _ := vec.AngleVectors(e.Angles)
	wishvel := vec.Vec3{
		forward[0]*cmd.Forward + right[0]*cmd.Side,
		forward[1]*cmd.Forward + right[1]*cmd.Side,
		0,
	}
	wishspeed := wishvel.Length()
	wishdir := wishvel
	if wishspeed != 0 {
		wishdir = wishvel.Scale(1 / wishspeed)
	}
	if max := s.MaxSpeed(); wishspeed > max {
		wishvel = wishvel.Scale(max / wishspeed)
		wishspeed = max
	}

	onGround := e.Flags&edict.FlagOnGround != 0
	if onGround {
		userFriction(e, dt, s.Friction())
		accelerate(e, wishspeed, wishdir, dt*s.Accelerate())
		if cmd.Jump && e.Flags&edict.FlagJumpReleased != 0 {
			e.Velocity[2] += jumpSpeed
			e.Flags &^= edict.FlagOnGround | edict.FlagJumpReleased
			if err := s.StartSound(c.ID()+1, 4, soundJump, 255, 1); err != nil {
				log.Debug().Err(err).Msg("jump sound")
			}
		}
	} else {
		airAccelerate(e, wishspeed, wishvel, dt*s.Accelerate())
	}
	if !cmd.Jump {
		e.Flags |= edict.FlagJumpReleased
	}
}

func accelerate(e *edict.Edict, wishspeed float32, wishdir vec.Vec3, accel float32) {
	addspeed := wishspeed - vec.Dot(e.Velocity, wishdir)
	if addspeed <= 0 {
		return
	}
	accelspeed := math32.Min(accel*wishspeed, addspeed)
	e.Velocity = vec.FMA(e.Velocity, accelspeed, wishdir)
}

func airAccelerate(e *edict.Edict, wishspeed float32, wishveloc vec.Vec3, accel float32) {
	wishspd := wishveloc.Length()
	if wishspd <= 0 {
		return
	}
	wishveloc = wishveloc.Scale(1 / wishspd)
	wishspd = math32.Min(wishspd, 30)
	addspeed := wishspd - vec.Dot(e.Velocity, wishveloc)
	if addspeed <= 0 {
		return
	}
	accelspeed := math32.Min(accel*wishspeed, addspeed)
	e.Velocity = vec.FMA(e.Velocity, accelspeed, wishveloc)
}

func userFriction(e *edict.Edict, dt, friction float32) {
	speed := math32.Sqrt(e.Velocity[0]*e.Velocity[0] + e.Velocity[1]*e.Velocity[1])
	if speed == 0 {
		return
	}
	control := math32.Max(speed, stopSpeed)
	newspeed := speed - dt*control*friction
	if newspeed <= 0 {
		e.Velocity = vec.Vec3{}
		return
	}
	e.Velocity = e.Velocity.Scale(newspeed / speed)
}

func dropPunchAngle(e *edict.Edict, dt float32) {
	l := e.PunchAngle.Length()
	if l == 0 {
		return
	}
	e.PunchAngle = e.PunchAngle.Scale(math32.Max(0, 1-10*dt/l))
}

// Physics moves the players, lets them touch items and respawns taken
// items.
func (sm *Sim) Physics(s *server.Server, frameTime time.Duration) {
	dt := float32(frameTime.Seconds())
	now := s.Time() + frameTime
	for _, c := range s.Clients() {
		if !c.Active() || !c.Spawned() {
			continue
		}
		sm.move(s, c.ID()+1, c.Edict(), dt)
		sm.touchItems(s, c)
	}
	for i, p := range sm.placed {
		e := s.Edicts().At(i)
		if e.Model == "" && e.NextThink != 0 && now >= e.NextThink {
			sm.respawnItem(s, i, e, p)
		}
	}
}

func (sm *Sim) move(s *server.Server, i int, e *edict.Edict, dt float32) {
	if e.Flags&edict.FlagOnGround == 0 {
		e.Velocity[2] -= s.Gravity() * dt
	}
	max := s.MaxVelocity()
	for j := range e.Velocity {
		e.Velocity[j] = math32.Max(-max, math32.Min(e.Velocity[j], max))
	}
	e.Origin = vec.FMA(e.Origin, dt, e.Velocity)
	floor := sm.level.Floor - e.Mins[2]
	if e.Origin[2] <= floor {
		e.Origin[2] = floor
		e.Velocity[2] = 0
		e.Flags |= edict.FlagOnGround
	}
	for j := 0; j < 2; j++ {
		// keep players inside the world
		e.Origin[j] = math32.Max(sm.level.Mins[j]-e.Mins[j], math32.Min(e.Origin[j], sm.level.Maxs[j]-e.Maxs[j]))
	}
	sm.area.Link(i, e, false)
}

func (sm *Sim) touchItems(s *server.Server, c *server.Client) {
	for _, i := range sm.area.Touching(c.ID() + 1) {
		p, ok := sm.placed[i]
		if !ok {
			continue
		}
		item := s.Edicts().At(i)
		if item.Model == "" {
			continue
		}
		if !p.give(c.Edict()) {
			continue
		}
		c.Printf("%s\n", p.message)
		c.StuffText("bf\n")
		if err := s.StartSound(i, 3, p.sound, 255, 1); err != nil {
			log.Debug().Err(err).Str("item", item.ClassName).Msg("pickup sound")
		}
		conlog.DPrintf("%s picked up %s\n", c.Name(), item.ClassName)
		item.Model = ""
		item.ModelIndex = 0
		if s.Deathmatch() {
			item.NextThink = s.Time() + respawnTime
		}
	}
}

func (sm *Sim) respawnItem(s *server.Server, i int, e *edict.Edict, p *pickup) {
	e.Model = p.model
	e.ModelIndex, _ = s.ModelIndex(p.model)
	e.NextThink = 0
	if err := s.StartSound(i, 3, soundRespawn, 255, 1); err != nil {
		log.Debug().Err(err).Msg("respawn sound")
	}
}
