// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"math"
	"time"

	"netquake/edict"
	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"
	svc "netquake/protocol/server"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// keepAlive is the interval of nops to clients still in signon.
const keepAlive = 5 * time.Second

// Frame runs one server tick. Clients scheduled for dropping in the
// previous frame are removed first.
func (s *Server) Frame(frameTime time.Duration) {
	if !s.active {
		return
	}
	s.realtime += frameTime
	s.dropPending()
	s.checkNewConnections()
	s.datagram.Clear()
	s.RunClients(frameTime)
	if !s.paused {
		s.physics(frameTime)
	}
	s.SendClientMessages()
}

func (s *Server) dropPending() {
	for _, c := range s.clients {
		if c.active && c.dropASAP {
			c.Drop(false)
		}
	}
}

// broadcastReliable writes cmds into the reliable buffer of every active
// client.
func (s *Server) broadcastReliable(cmds ...svc.Cmd) {
	for _, c := range s.clients {
		if c.active {
			c.write(cmds...)
		}
	}
}

// UpdateToReliableMessages sends frag changes and the reliable datagram.
func (s *Server) UpdateToReliableMessages() {
	for _, c := range s.clients {
		if !c.active {
			continue
		}
		frags := c.Frags()
		if frags != c.oldFrags {
			s.broadcastReliable(svc.UpdateFragsCmd{Player: c.id, Frags: frags})
			c.oldFrags = frags
		}
	}
	if s.reliableDatagram.HasMessage() {
		for _, c := range s.clients {
			if c.active {
				if _, err := c.msg.Write(s.reliableDatagram.Bytes()); err != nil {
					log.Debug().Err(err).Int("client", c.id).Msg("reliable datagram")
				}
			}
		}
	}
	s.reliableDatagram.Clear()
}

// SendClientMessages sends the frame datagram to spawned clients and the
// pending reliable message to everybody who can take one.
func (s *Server) SendClientMessages() {
	s.UpdateToReliableMessages()

	for _, c := range s.clients {
		if !c.active || c.dropASAP {
			continue
		}
		if c.spawned {
			if !s.SendClientDatagram(c) {
				continue
			}
		} else if !c.sendSignon && s.realtime-c.lastMessage > keepAlive {
			// the player isn't totally in the game yet, keep the
			// connection alive
			s.sendNop(c)
		}
		if c.msg.Overflowed() {
			log.Warn().Int("client", c.id).Str("name", c.name).Msg("reliable message overflowed")
			c.Drop(true)
			continue
		}
		if !c.msg.HasMessage() || !c.sock.CanSendMessage() {
			continue
		}
		if err := c.sock.SendMessage(c.msg.Bytes()); err != nil {
			log.Debug().Err(err).Int("client", c.id).Msg("send reliable")
			c.Drop(true)
			continue
		}
		c.msg.Clear()
		c.lastMessage = s.realtime
		c.sendSignon = false
	}
}

func (s *Server) sendNop(c *Client) {
	c.lastMessage = s.realtime
	if err := c.sock.SendUnreliableMessage([]byte{svc.Nop}); err != nil {
		log.Debug().Err(err).Int("client", c.id).Msg("keepalive")
	}
}

// SendClientDatagram sends time, client data and the visible entities.
// It returns false if the client got dropped.
func (s *Server) SendClientDatagram(c *Client) bool {
	msg := c.datagram
	msg.Clear()
	svc.Write(msg, s.protocol, s.protocolFlags, svc.TimeCmd(s.time.Seconds()))
	s.writeClientData(c, msg)
	s.writeEntitiesToClient(c.Edict(), msg)

	// copy the server datagram if there is space
	if msg.Free() >= s.datagram.Len() {
		msg.Write(s.datagram.Bytes())
	}
	err := c.sock.SendUnreliableMessage(msg.Bytes())
	if err != nil && !errors.Is(err, net.ErrWouldBlock) {
		log.Debug().Err(err).Int("client", c.id).Msg("send datagram")
		c.Drop(true)
		return false
	}
	return true
}

func (s *Server) writeClientData(c *Client, msg *net.Message) {
	e := c.Edict()
	var cmds []svc.Cmd
	if e.FixAngle {
		cmds = append(cmds, svc.SetAngleCmd(e.Angles))
		e.FixAngle = false
	}
	weapon, err := s.ModelIndex(e.WeaponModel)
	if err != nil {
		log.Debug().Err(err).Int("client", c.id).Msg("weapon model")
	}
	cd := svc.ClientDataCmd{
		ViewHeight:   int(e.ViewOfs[2]),
		IdealPitch:   int(e.IdealPitch),
		Items:        uint32(e.Items.WithSigils(s.static.serverFlags)),
		OnGround:     e.Flags&edict.FlagOnGround != 0,
		InWater:      e.WaterLevel >= 2,
		WeaponFrame:  e.WeaponFrame,
		Armor:        int(e.ArmorValue),
		Weapon:       weapon,
		Health:       int(e.Health),
		Ammo:         int(e.CurrentAmmo),
		Shells:       int(e.AmmoShells),
		Nails:        int(e.AmmoNails),
		Rockets:      int(e.AmmoRockets),
		Cells:        int(e.AmmoCells),
		ActiveWeapon: e.Weapon,
	}
	for i := range cd.PunchAngle {
		cd.PunchAngle[i] = int(e.PunchAngle[i])
		cd.Velocity[i] = int(e.Velocity[i] / 16)
	}
	cmds = append(cmds, cd)
	if err := svc.Write(msg, s.protocol, s.protocolFlags, cmds...); err != nil {
		log.Debug().Err(err).Int("client", c.id).Msg("client data")
	}
}

// writeEntitiesToClient writes the delta of every entity with a model
// against its baseline.
func (s *Server) writeEntitiesToClient(clent *edict.Edict, msg *net.Message) {
	for i := 1; i < s.edicts.Num(); i++ {
		e := s.edicts.At(i)
		if e.Free {
			continue
		}
		if e != clent && (e.ModelIndex == 0 || e.Model == "") {
			continue
		}
		if msg.Free() < 16 {
			log.Debug().Int("entity", i).Msg("packet overflow")
			return
		}
		if err := svc.Write(msg, s.protocol, s.protocolFlags, s.entityUpdate(i, e)); err != nil {
			log.Debug().Err(err).Int("entity", i).Msg("entity update")
			return
		}
	}
}

func (s *Server) entityUpdate(i int, e *edict.Edict) svc.EntityUpdate {
	b := &e.Baseline
	bits := uint32(0)
	for j := 0; j < 3; j++ {
		miss := e.Origin[j] - b.Origin[j]
		if miss < -0.1 || miss > 0.1 {
			bits |= svc.U_ORIGIN1 << j
		}
	}
	if e.Angles[0] != b.Angles[0] {
		bits |= svc.U_ANGLE1
	}
	if e.Angles[1] != b.Angles[1] {
		bits |= svc.U_ANGLE2
	}
	if e.Angles[2] != b.Angles[2] {
		bits |= svc.U_ANGLE3
	}
	if e.Flags&edict.FlagMonster != 0 {
		bits |= svc.U_STEP // don't mess up the step animation
	}
	if b.ColorMap != e.ColorMap {
		bits |= svc.U_COLORMAP
	}
	if b.Skin != e.Skin {
		bits |= svc.U_SKIN
	}
	if b.Frame != e.Frame {
		bits |= svc.U_FRAME
	}
	if b.Effects != e.Effects {
		bits |= svc.U_EFFECTS
	}
	if b.ModelIndex != e.ModelIndex {
		bits |= svc.U_MODEL
	}
	lerpFinish := 0
	if s.protocol != protocol.NetQuake {
		if b.Alpha != e.Alpha {
			bits |= svc.U_ALPHA
		}
		if e.SendInterval {
			bits |= svc.U_LERPFINISH
			lerpFinish = int(math.Round((e.NextThink - s.time).Seconds() * 255))
		}
	}
	return svc.EntityUpdate{
		Entity:     i,
		Bits:       bits,
		Model:      e.ModelIndex,
		Frame:      e.Frame,
		ColorMap:   e.ColorMap,
		Skin:       e.Skin,
		Effects:    e.Effects,
		Origin:     e.Origin,
		Angles:     e.Angles,
		Alpha:      int(e.Alpha),
		LerpFinish: lerpFinish,
	}
}

// StartSound plays sample on channel of entity for everybody. Channel 0
// is an auto-allocated channel, the others override anything already
// running on that entity and channel.
func (s *Server) StartSound(entity, channel int, sample string, volume int, attenuation float32) error {
	if volume < 0 || volume > 255 {
		return errors.Errorf("StartSound: volume = %d", volume)
	}
	if attenuation < 0 || attenuation > 4 {
		return errors.Errorf("StartSound: attenuation = %v", attenuation)
	}
	if channel < 0 || channel > 7 {
		return errors.Errorf("StartSound: channel = %d", channel)
	}
	if s.datagram.Free() < 16 {
		return nil
	}
	idx, err := s.SoundIndex(sample)
	if err != nil || idx == 0 {
		log.Debug().Str("sample", sample).Msg("StartSound: not precached")
		return nil
	}
	e := s.edicts.At(entity)
	origin := vec.FMA(e.Origin, 0.5, vec.Add(e.Mins, e.Maxs))
	return svc.Write(s.datagram, s.protocol, s.protocolFlags, svc.SoundCmd{
		Entity:      entity,
		Channel:     channel,
		SoundNum:    idx,
		Volume:      volume,
		Attenuation: attenuation,
		Origin:      origin,
	})
}

// StartParticle makes a particle effect visible to everybody this frame.
func (s *Server) StartParticle(origin, dir vec.Vec3, color, count int) {
	if s.datagram.Free() < 16 {
		return
	}
	svc.Write(s.datagram, s.protocol, s.protocolFlags, svc.ParticleCmd{
		Origin:    origin,
		Direction: dir,
		Count:     count,
		Color:     color,
	})
}

// ReliableBroadcast queues cmds for all clients at the end of the frame.
func (s *Server) ReliableBroadcast(cmds ...svc.Cmd) error {
	return svc.Write(s.reliableDatagram, s.protocol, s.protocolFlags, cmds...)
}
