// SPDX-License-Identifier: GPL-2.0-or-later

package client

import (
	"netquake/conlog"
	"netquake/lerp"
	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"
	svc "netquake/protocol/server"
	"netquake/stat"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// parseServerMessage applies one complete server message. Commands
// decoded before a broken one are still applied.
func (c *Client) parseServerMessage(data []byte) error {
	cmds, perr := svc.Parse(data, c.protocol, c.protocolFlags)
	for _, cmd := range cmds {
		if err := c.handle(cmd); err != nil {
			return err
		}
		if c.state != Connected {
			return nil
		}
	}
	if perr != nil {
		return net.Violation(perr)
	}
	return nil
}

func (c *Client) handle(cmd svc.Cmd) error {
	switch m := cmd.(type) {
	case svc.NopCmd:
	case svc.TimeCmd:
		c.mtime[1] = c.mtime[0]
		c.mtime[0] = float64(m)
	case svc.ClientDataCmd:
		c.parseClientData(m)
	case svc.VersionCmd:
		if !protocol.Supported(int(m)) {
			return errors.Wrapf(svc.ErrBadProtocol, "server returned version %d", m)
		}
		c.protocol = int(m)
	case svc.DisconnectCmd:
		c.Disconnect()
		return ErrServerDisconnected
	case svc.PrintCmd:
		conlog.Printf("%s", string(m))
	case svc.CenterPrintCmd:
		c.centerPrint = string(m)
	case svc.StuffTextCmd:
		c.cbuf.AddText(string(m))
	case svc.DamageCmd:
		// view blends only
	case svc.ServerInfoCmd:
		return c.parseServerInfo(m)
	case svc.SetAngleCmd:
		c.viewAngles = vec.Vec3(m)
	case svc.SetViewCmd:
		c.viewEntity = int(m)
	case svc.LightStyleCmd:
		if m.Index >= protocol.MaxLightStyles {
			return errors.Wrapf(net.ErrProtocol, "svc_lightstyle > MAX_LIGHTSTYLES")
		}
		c.lightStyles[m.Index] = m.Style
	case svc.SoundCmd:
		return c.checkSound(m)
	case svc.StopSoundCmd:
	case svc.UpdateNameCmd:
		p, err := c.player(m.Player, "svc_updatename")
		if err != nil {
			return err
		}
		p.Name = m.Name
	case svc.UpdateFragsCmd:
		p, err := c.player(m.Player, "svc_updatefrags")
		if err != nil {
			return err
		}
		p.Frags = m.Frags
	case svc.UpdateColorsCmd:
		p, err := c.player(m.Player, "svc_updatecolors")
		if err != nil {
			return err
		}
		p.Colors = m.Color
	case svc.ParticleCmd:
	case svc.SpawnBaselineCmd:
		e, err := c.entity(m.Index)
		if err != nil {
			return err
		}
		e.Baseline = m.Baseline
	case svc.SpawnStaticCmd:
		c.statics = append(c.statics, m.Baseline)
	case svc.StaticSoundCmd:
		c.staticSounds = append(c.staticSounds, m)
	case svc.SetPauseCmd:
		c.paused = bool(m)
	case svc.SignonNumCmd:
		if int(m) <= c.signon {
			return errors.Wrapf(net.ErrProtocol, "Received signon %d when at %d", m, c.signon)
		}
		c.signon = int(m)
		c.signonReply()
	case svc.KilledMonsterCmd:
		c.stats[stat.Monsters]++
	case svc.FoundSecretCmd:
		c.stats[stat.Secrets]++
	case svc.UpdateStatCmd:
		if m.Stat < 0 || m.Stat >= stat.MaxCl {
			return errors.Wrapf(net.ErrProtocol, "svc_updatestat: %d is invalid", m.Stat)
		}
		c.stats[m.Stat] = m.Value
	case svc.CDTrackCmd:
		c.cdTrack = m.Track
	case svc.IntermissionCmd:
		c.intermission = 1
	case svc.FinaleCmd:
		c.intermission = 2
		c.centerPrint = string(m)
	case svc.CutsceneCmd:
		c.intermission = 3
		c.centerPrint = string(m)
	case svc.SellScreenCmd, svc.BackgroundFlash, svc.FogCmd, svc.SkyboxCmd:
	case svc.EntityUpdate:
		return c.parseEntityUpdate(m)
	default:
		return errors.Wrapf(net.ErrProtocol, "unexpected server command %T", cmd)
	}
	return nil
}

func (c *Client) parseServerInfo(si svc.ServerInfoCmd) error {
	conlog.DPrintf("Serverinfo packet received.\n")
	c.clearState()
	// a new level always starts a new signon
	c.signon = 0
	c.protocol = si.Protocol
	c.protocolFlags = si.Flags
	if si.MaxClients < 1 || si.MaxClients > protocol.MaxClients {
		return errors.Wrapf(net.ErrProtocol, "Bad maxclients (%d) from server", si.MaxClients)
	}
	if len(si.ModelPrecache) >= protocol.MaxModels {
		return errors.Wrap(net.ErrProtocol, "Server sent too many model precaches")
	}
	if len(si.SoundPrecache) >= protocol.MaxSounds {
		return errors.Wrap(net.ErrProtocol, "Server sent too many sound precaches")
	}
	c.maxClients = si.MaxClients
	c.gameType = si.GameType
	c.players = make([]Player, si.MaxClients)
	c.levelName = si.LevelName
	c.modelPrecache = si.ModelPrecache
	c.soundPrecache = si.SoundPrecache
	conlog.Printf("\n%s\n", c.levelName)
	log.Info().Str("level", c.levelName).Int("protocol", c.protocol).Int("maxclients", c.maxClients).Msg("server info")
	return nil
}

func (c *Client) parseClientData(cd svc.ClientDataCmd) {
	c.mvelocity[1] = c.mvelocity[0]
	for i, v := range cd.Velocity {
		c.mvelocity[0][i] = float32(v * 16)
	}
	c.data = cd
	c.stats[stat.Health] = int32(cd.Health)
	c.stats[stat.Armor] = int32(cd.Armor)
	c.stats[stat.Ammo] = int32(cd.Ammo)
	c.stats[stat.Weapon] = int32(cd.Weapon)
	c.stats[stat.ActiveWeapon] = int32(cd.ActiveWeapon)
	c.stats[stat.Shells] = int32(cd.Shells)
	c.stats[stat.Nails] = int32(cd.Nails)
	c.stats[stat.Rockets] = int32(cd.Rockets)
	c.stats[stat.Cells] = int32(cd.Cells)
	c.stats[stat.WeaponFrame] = int32(cd.WeaponFrame)
}

func (c *Client) checkSound(s svc.SoundCmd) error {
	if s.SoundNum < 1 || s.SoundNum > len(c.soundPrecache) {
		return errors.Wrapf(net.ErrProtocol, "CL_ParseStartSoundPacket: %d > MAX_SOUNDS", s.SoundNum)
	}
	if s.Entity >= protocol.MaxEdicts {
		return errors.Wrapf(net.ErrProtocol, "CL_ParseStartSoundPacket: ent = %d", s.Entity)
	}
	return nil
}

func (c *Client) player(i int, cmd string) (*Player, error) {
	if i < 0 || i >= len(c.players) {
		return nil, errors.Wrapf(net.ErrProtocol, "CL_ParseServerMessage: %s > MAX_SCOREBOARD", cmd)
	}
	return &c.players[i], nil
}

// entity returns entity i, allocating it and every entity before it.
func (c *Client) entity(i int) (*Entity, error) {
	if i < 0 || i >= protocol.MaxEdicts {
		return nil, errors.Wrapf(net.ErrProtocol, "CL_EntityNum: %d is an invalid number", i)
	}
	for len(c.entities) <= i {
		c.entities = append(c.entities, &Entity{Lerp: lerp.State{Flags: lerp.ResetAnim | lerp.ResetMove}})
	}
	return c.entities[i], nil
}

func (c *Client) parseEntityUpdate(eu svc.EntityUpdate) error {
	if c.signon == SignonStages-1 {
		// first update is the final signon stage
		c.signon = SignonStages
		c.signonReply()
	}
	e, err := c.entity(eu.Entity)
	if err != nil {
		return err
	}
	bits := eu.Bits
	forceLink := e.MsgTime != c.mtime[1]

	if e.MsgTime+0.2 < c.mtime[0] {
		// most entities think every 0.1s, if we missed one we would be
		// lerping from the wrong frame
		e.Lerp.Flags |= lerp.ResetAnim
	}
	if bits&svc.U_STEP != 0 {
		e.ForceLink = true
		e.Lerp.Flags |= lerp.MoveStep
	} else {
		e.Lerp.Flags &^= lerp.MoveStep
	}

	e.MsgTime = c.mtime[0]
	e.Frame = e.Baseline.Frame
	e.Skin = e.Baseline.Skin
	e.ColorMap = e.Baseline.ColorMap
	e.Effects = 0
	e.Alpha = e.Baseline.Alpha
	// shift known values for interpolation
	e.MsgOrigins[1] = e.MsgOrigins[0]
	e.MsgAngles[1] = e.MsgAngles[0]
	e.MsgOrigins[0] = e.Baseline.Origin
	e.MsgAngles[0] = e.Baseline.Angles

	modNum := e.Baseline.ModelIndex
	if bits&(svc.U_MODEL|svc.U_MODEL2) != 0 {
		modNum = eu.Model
	}
	if bits&(svc.U_FRAME|svc.U_FRAME2) != 0 {
		e.Frame = eu.Frame
	}
	if bits&svc.U_COLORMAP != 0 {
		e.ColorMap = eu.ColorMap
	}
	if bits&svc.U_SKIN != 0 {
		e.Skin = eu.Skin
	}
	if bits&svc.U_EFFECTS != 0 {
		e.Effects = eu.Effects
	}
	originBits := [3]uint32{svc.U_ORIGIN1, svc.U_ORIGIN2, svc.U_ORIGIN3}
	angleBits := [3]uint32{svc.U_ANGLE1, svc.U_ANGLE2, svc.U_ANGLE3}
	for i := 0; i < 3; i++ {
		if bits&originBits[i] != 0 {
			e.MsgOrigins[0][i] = eu.Origin[i]
		}
		if bits&angleBits[i] != 0 {
			e.MsgAngles[0][i] = eu.Angles[i]
		}
	}
	if c.protocol != protocol.NetQuake {
		e.Lerp.Flags &^= lerp.Finish
		if bits&svc.U_ALPHA != 0 {
			e.Alpha = eu.Alpha
		}
		if bits&svc.U_LERPFINISH != 0 {
			e.Lerp.LerpFinish = e.MsgTime + float64(eu.LerpFinish)/255
			e.Lerp.Flags |= lerp.Finish
		}
	}

	if modNum > len(c.modelPrecache) {
		conlog.DPrintf("len(modelPrecache): %v, modNum: %v\n", len(c.modelPrecache), modNum)
		modNum = 0
	}
	if modNum != e.ModelIndex {
		e.ModelIndex = modNum
		if modNum == 0 {
			forceLink = true
		}
		// do not lerp animation across model changes
		e.Lerp.Flags |= lerp.ResetAnim
	}

	if forceLink {
		e.MsgOrigins[1] = e.MsgOrigins[0]
		e.Origin = e.MsgOrigins[0]
		e.MsgAngles[1] = e.MsgAngles[0]
		e.Angles = e.MsgAngles[0]
		e.ForceLink = true
	}
	return nil
}
