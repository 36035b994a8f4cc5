// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"fmt"
	"strings"
	"time"

	"netquake/cbuf"
	"netquake/conlog"
	"netquake/net"
	"netquake/protocol"
	clc "netquake/protocol/client"
	svc "netquake/protocol/server"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type clientCommand func(s *Server, c *Client, a cbuf.Arguments)

// clientCommands are the string commands a client may issue.
var clientCommands map[string]clientCommand

func init() {
	clientCommands = map[string]clientCommand{
		"prespawn": (*Server).clientPreSpawn,
		"spawn":    (*Server).clientSpawn,
		"begin":    (*Server).clientBegin,
		"name":     (*Server).clientName,
		"color":    (*Server).clientColor,
		"say":      (*Server).clientSay,
		"say_team": (*Server).clientSay,
		"ping":     (*Server).clientPing,
		"status":   (*Server).clientStatus,
		"kill":     (*Server).clientKill,
		"pause":    (*Server).clientPause,
	}
}

// RunClients reads the messages of all clients and lets the simulator
// apply the moves of the spawned ones.
func (s *Server) RunClients(frameTime time.Duration) {
	for _, c := range s.clients {
		if !c.active || c.dropASAP {
			continue
		}
		if err := s.readClientMessages(c); err != nil {
			log.Debug().Err(err).Int("client", c.id).Msg("read client")
			c.Drop(errors.Is(err, net.ErrDisconnected))
			continue
		}
		if !c.active {
			continue
		}
		if !c.spawned {
			// clear client movement until a new packet is received
			c.cmd = clc.CmdMove{}
			continue
		}
		if !s.paused {
			s.sim.ClientThink(s, c, frameTime)
		}
	}
}

var errClientDisconnect = errors.New("client disconnected")

// readClientMessages processes every pending message of c. An error means
// the client needs to be dropped.
func (s *Server) readClientMessages(c *Client) error {
	for c.active {
		kind, r, err := c.sock.GetMessage()
		if err != nil {
			return err
		}
		if kind == net.MessageNone {
			return nil
		}
		cmds, err := clc.Decode(r.Bytes(), s.protocol, s.protocolFlags)
		if err != nil {
			return net.Violation(err)
		}
		for _, cmd := range cmds {
			switch m := cmd.(type) {
			case clc.CmdNop:
			case clc.CmdDisconnect:
				return errClientDisconnect
			case clc.CmdMove:
				s.readMove(c, m)
			case clc.CmdString:
				s.executeClientString(c, m.Text)
				if !c.active {
					return nil
				}
			}
		}
	}
	return nil
}

func (s *Server) readMove(c *Client, m clc.CmdMove) {
	c.pingTimes[c.numPings%protocol.NumPingTimes] = float32(s.time.Seconds()) - m.MessageTime
	c.numPings++
	c.cmd = m
	c.Edict().VAngle = m.Angles
}

func (s *Server) executeClientString(c *Client, text string) {
	a := cbuf.Parse(text)
	if len(a.Args()) == 0 {
		return
	}
	name := strings.ToLower(a.Argv(0).String())
	f, ok := clientCommands[name]
	if !ok {
		conlog.DPrintf("%s tried to %s\n", c.name, text)
		return
	}
	f(s, c, a)
}

// clientPreSpawn sends the signon buffer.
func (s *Server) clientPreSpawn(c *Client, _ cbuf.Arguments) {
	if c.spawned {
		conlog.Printf("prespawn not valid -- already spawned\n")
		return
	}
	if _, err := c.msg.Write(s.signon.Bytes()); err != nil {
		log.Debug().Err(err).Int("client", c.id).Msg("prespawn")
	}
	c.write(svc.SignonNumCmd(2))
	c.sendSignon = true
}

// clientSpawn puts the player into the level and sends the full state.
func (s *Server) clientSpawn(c *Client, _ cbuf.Arguments) {
	if c.spawned {
		conlog.Printf("Spawn not valid -- already spawned\n")
		return
	}
	if s.loadGame {
		// the edict was restored with the game
		s.paused = false
	} else {
		e := s.edicts.Clear(c.id + 1)
		e.ColorMap = c.id + 1
		e.Team = (c.colors & 15) + 1
		e.NetName = c.name
		s.sim.ClientConnect(s, c)
		s.sim.PutClientInServer(s, c)
	}

	// send all current names, colors and frag counts
	c.msg.Clear()
	cmds := []svc.Cmd{svc.TimeCmd(s.time.Seconds())}
	for _, o := range s.clients[:s.static.maxClients] {
		cmds = append(cmds,
			svc.UpdateNameCmd{Player: o.id, Name: o.name},
			svc.UpdateFragsCmd{Player: o.id, Frags: o.oldFrags},
			svc.UpdateColorsCmd{Player: o.id, Color: o.colors})
	}
	for i, st := range s.lightStyles {
		cmds = append(cmds, svc.LightStyleCmd{Index: i, Style: st})
	}
	e := c.Edict()
	cmds = append(cmds, svc.SetAngleCmd{e.Angles[0], e.Angles[1], 0})
	c.write(cmds...)
	s.writeClientData(c, c.msg)
	c.write(svc.SignonNumCmd(3))
	c.sendSignon = true
}

func (s *Server) clientBegin(c *Client, _ cbuf.Arguments) {
	c.spawned = true
	log.Info().Int("client", c.id).Str("name", c.name).Msg("client spawned")
}

func (s *Server) clientName(c *Client, a cbuf.Arguments) {
	if len(a.Args()) < 2 {
		c.Printf("\"name\" is \"%s\"\n", c.name)
		return
	}
	c.SetName(a.ArgumentString())
}

func (s *Server) clientColor(c *Client, a cbuf.Arguments) {
	args := a.Args()
	if len(args) < 2 {
		c.Printf("\"color\" is \"%d %d\"\n", c.colors>>4, c.colors&0x0f)
		c.Printf("color <0-13> [0-13]\n")
		return
	}
	top := args[1].Int()
	bottom := top
	if len(args) > 2 {
		bottom = args[2].Int()
	}
	top = min(max(top, 0), 13) & 15
	bottom = min(max(bottom, 0), 13) & 15
	c.SetColors(top*16 + bottom)
}

func (s *Server) clientSay(c *Client, a cbuf.Arguments) {
	p := a.ArgumentString()
	if p == "" {
		return
	}
	text := fmt.Sprintf("%c%s: %s", 1, c.name, p)
	if len(text) > 62 {
		text = text[:62]
	}
	text += "\n"
	for _, o := range s.clients {
		if o.active && o.spawned {
			o.Printf("%s", text)
		}
	}
	conlog.Printf("%s", text[1:])
}

func (s *Server) clientPing(c *Client, _ cbuf.Arguments) {
	c.Printf("Client ping times:\n")
	for _, o := range s.clients {
		if !o.active {
			continue
		}
		c.Printf("%4d %s\n", o.PingTime().Milliseconds(), o.name)
	}
}

func (s *Server) clientStatus(c *Client, _ cbuf.Arguments) {
	s.status(c.Printf)
}

func (s *Server) clientKill(c *Client, _ cbuf.Arguments) {
	if c.Edict().Health <= 0 {
		c.Printf("Can't suicide -- already dead!\n")
		return
	}
	s.sim.ClientKill(s, c)
}

func (s *Server) clientPause(c *Client, _ cbuf.Arguments) {
	s.togglePause(c.name)
}

func (s *Server) togglePause(who string) {
	s.paused = !s.paused
	if s.paused {
		s.BroadcastPrintf("%s paused the game\n", who)
	} else {
		s.BroadcastPrintf("%s unpaused the game\n", who)
	}
	if err := s.ReliableBroadcast(svc.SetPauseCmd(s.paused)); err != nil {
		log.Debug().Err(err).Msg("pause")
	}
}

// status prints the host and player overview.
func (s *Server) status(printf func(string, ...any)) {
	printf("host:    %s\n", s.hostName.String())
	printf("version: %s\n", protocol.Name(s.protocol))
	if s.net.Listening() {
		printf("udp:     %d\n", s.net.Port())
	}
	printf("map:     %s\n", s.name)
	active := 0
	for _, c := range s.clients {
		if c.active {
			active++
		}
	}
	printf("players: %d active (%d max)\n\n", active, s.static.maxClients)
	for _, c := range s.clients {
		if !c.active {
			continue
		}
		secs := int(c.ConnectedFor().Seconds())
		printf("#%-2d %-16.16s  %3d  %2d:%02d:%02d\n", c.id+1, c.name, c.Frags(),
			secs/3600, secs/60%60, secs%60)
		printf("   %s %s\n", c.sock.Address(), c.sock.ID())
	}
}
