// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"fmt"
	"time"

	"netquake/conlog"
	"netquake/edict"
	"netquake/math/vec"
	svc "netquake/protocol/server"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PlayerModel is the model clients get as baseline.
const PlayerModel = "progs/player.mdl"

// settleFrame is the frame time of the two frames run after spawning.
const settleFrame = 100 * time.Millisecond

// SpawnServer loads a new level. Connected clients are told to reconnect
// and get the new server info once the level is running. On error the
// server is shut down and stays in the Loading state.
func (s *Server) SpawnServer(l Level) error {
	if s.hostName.String() == "" {
		s.hostName.SetByString("UNNAMED")
	}
	log.Info().Str("map", l.Name).Msg("spawn server")
	conlog.DPrintf("SpawnServer: %s\n", l.Name)

	// tell all connected clients that we are going to a new level
	if s.active {
		s.sendReconnect()
	}

	s.Clear()
	s.active = true
	s.protocol = s.nextProtocol
	s.name = l.Name
	s.level = l
	s.modelName = fmt.Sprintf("maps/%s.bsp", l.Name)
	s.edicts.Reset(s.static.maxClients)
	s.net.SetMaxConnections(s.static.maxClients)

	if err := s.load(l); err != nil {
		log.Error().Err(err).Str("map", l.Name).Msg("level load failed")
		conlog.Printf("Couldn't spawn server %s: %v\n", l.Name, err)
		s.Shutdown(false)
		return err
	}

	s.state = Active
	// run two frames to allow everything to settle
	s.physics(settleFrame)
	s.physics(settleFrame)

	for _, c := range s.clients {
		if c.active {
			c.sendServerInfo()
		}
	}
	conlog.DPrintf("Server spawned.\n")
	return nil
}

func (s *Server) load(l Level) error {
	if _, err := s.PrecacheSound(""); err != nil {
		return err
	}
	if _, err := s.PrecacheModel(s.modelName); err != nil {
		return err
	}
	for i := 1; i <= l.SubModels; i++ {
		if _, err := s.PrecacheModel(fmt.Sprintf("*%d", i)); err != nil {
			return err
		}
	}
	world := s.edicts.At(0)
	world.Model = s.modelName
	world.ModelIndex = 1
	s.time = time.Second

	if err := s.sim.SpawnLevel(s, l); err != nil {
		return errors.Wrapf(err, "spawning %s", l.Name)
	}
	if err := s.createBaseline(); err != nil {
		return errors.Wrap(err, "signon")
	}
	return nil
}

// createBaseline writes the baselines of all entities existing after
// the spawn into the signon.
func (s *Server) createBaseline() error {
	player, err := s.ModelIndex(PlayerModel)
	if err != nil {
		player = 0
	}
	for i := 0; i < s.edicts.Num(); i++ {
		e := s.edicts.At(i)
		if e.Free {
			continue
		}
		isClient := i > 0 && i <= s.static.maxClients
		if !isClient && e.ModelIndex == 0 {
			continue
		}
		e.Baseline = edict.State{
			Origin: e.Origin,
			Angles: e.Angles,
			Frame:  e.Frame,
			Skin:   e.Skin,
			Alpha:  e.Alpha,
		}
		if isClient {
			e.Baseline.ColorMap = i
			e.Baseline.ModelIndex = player
		} else {
			e.Baseline.ModelIndex = e.ModelIndex
		}
		if err := svc.Write(s.signon, s.protocol, s.protocolFlags,
			svc.SpawnBaselineCmd{Index: i, Baseline: baseline(e.Baseline)}); err != nil {
			return err
		}
	}
	return nil
}

func baseline(st edict.State) svc.Baseline {
	return svc.Baseline{
		ModelIndex: st.ModelIndex,
		Frame:      st.Frame,
		ColorMap:   st.ColorMap,
		Skin:       st.Skin,
		Origin:     st.Origin,
		Angles:     st.Angles,
		Alpha:      int(st.Alpha),
	}
}

// MakeStatic writes e into the signon as static entity and frees it.
func (s *Server) MakeStatic(h edict.Handle) error {
	e, err := s.edicts.Get(h)
	if err != nil {
		return err
	}
	if s.state != Loading {
		return errors.Wrap(ErrPrecacheClosed, "static entities")
	}
	b := baseline(edict.State{
		ModelIndex: e.ModelIndex,
		Frame:      e.Frame,
		ColorMap:   e.ColorMap,
		Skin:       e.Skin,
		Origin:     e.Origin,
		Angles:     e.Angles,
		Alpha:      e.Alpha,
	})
	if err := svc.Write(s.signon, s.protocol, s.protocolFlags, svc.SpawnStaticCmd{Baseline: b}); err != nil {
		return errors.Wrap(err, "signon")
	}
	return s.edicts.Free(h, s.time)
}

// AmbientSound writes a looping static sound into the signon.
func (s *Server) AmbientSound(origin vec.Vec3, sample string, volume, attenuation int) error {
	idx, err := s.SoundIndex(sample)
	if err != nil {
		return err
	}
	return svc.Write(s.signon, s.protocol, s.protocolFlags, svc.StaticSoundCmd{
		Origin:      origin,
		Index:       idx,
		Volume:      volume,
		Attenuation: attenuation,
	})
}

// sendReconnect has every active client start over with the signon.
func (s *Server) sendReconnect() {
	for _, c := range s.clients {
		if !c.active || c.sock == nil {
			continue
		}
		m := c.msg
		m.Clear()
		c.write(svc.StuffTextCmd("reconnect\n"))
		if c.sock.CanSendMessage() {
			if err := c.sock.SendMessage(m.Bytes()); err != nil {
				log.Debug().Err(err).Int("client", c.id).Msg("send reconnect")
			}
			m.Clear()
		}
		c.spawned = false
		c.sendSignon = false
	}
}

func (s *Server) physics(d time.Duration) {
	s.sim.Physics(s, d)
	s.time += d
}

// SaveSpawnParms keeps the simulator parms of every client for the next
// level.
func (s *Server) SaveSpawnParms() {
	for _, c := range s.clients {
		if c.active {
			c.spawnParms = s.sim.SaveParms(s, c)
		}
	}
}
