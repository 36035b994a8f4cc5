// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"fmt"
	"time"

	"netquake/conlog"
	"netquake/edict"
	"netquake/net"
	"netquake/protocol"
	clc "netquake/protocol/client"
	svc "netquake/protocol/server"

	"github.com/rs/zerolog/log"
)

// Client is one player slot.
type Client struct {
	s  *Server
	id int

	active  bool // false = client is free
	spawned bool // false = don't send datagrams
	// dropASAP has the client removed at the start of the next frame.
	dropASAP bool
	// sendSignon is set after prespawn until the signon is written.
	sendSignon bool

	// lastMessage is the server realtime of the last reliable write, used
	// for the keepalive of clients still loading.
	lastMessage time.Duration
	connectTime time.Duration

	sock     *net.Socket
	msg      *net.Message
	// datagram is rebuilt every frame
	datagram *net.Message

	cmd clc.CmdMove
	// pingTimes is filled round robin by move commands.
	pingTimes  [protocol.NumPingTimes]float32
	numPings   int
	spawnParms [protocol.NumSpawnParms]float32

	name     string
	colors   int
	oldFrags int
}

func newClient(s *Server, id int) *Client {
	return &Client{
		s:        s,
		id:       id,
		msg:      net.NewMessage(protocol.MaxMsgLen),
		datagram: net.NewMessage(protocol.MaxDatagram),
	}
}

// Clear frees the slot.
func (c *Client) Clear() {
	c.active = false
	c.spawned = false
	c.dropASAP = false
	c.sendSignon = false
	c.lastMessage = 0
	c.connectTime = 0
	c.sock = nil
	c.msg.Clear()
	c.cmd = clc.CmdMove{}
	c.pingTimes = [protocol.NumPingTimes]float32{}
	c.numPings = 0
	c.spawnParms = [protocol.NumSpawnParms]float32{}
	c.name = ""
	c.colors = 0
	c.oldFrags = 0
}

func (c *Client) ID() int               { return c.id }
func (c *Client) Active() bool          { return c.active }
func (c *Client) Spawned() bool         { return c.spawned }
func (c *Client) DropPending() bool     { return c.dropASAP }
func (c *Client) Name() string          { return c.name }
func (c *Client) Colors() int           { return c.colors }
func (c *Client) Move() clc.CmdMove     { return c.cmd }
func (c *Client) Message() *net.Message { return c.msg }
func (c *Client) Socket() *net.Socket   { return c.sock }

func (c *Client) Edict() *edict.Edict {
	return c.s.ClientEdict(c.id)
}

func (c *Client) SpawnParms() [protocol.NumSpawnParms]float32 {
	return c.spawnParms
}

func (c *Client) SetSpawnParms(p [protocol.NumSpawnParms]float32) {
	c.spawnParms = p
}

// ScheduleDrop marks the client for removal at the next frame boundary.
func (c *Client) ScheduleDrop() {
	c.dropASAP = true
}

// connect binds sock to the slot and sends the server info.
func (c *Client) connect(sock *net.Socket) {
	c.Clear()
	c.active = true
	c.sock = sock
	c.name = "unconnected"
	c.lastMessage = c.s.realtime
	c.connectTime = c.s.realtime
	if c.s.loadGame {
		c.spawnParms = c.s.loadParms[c.id]
	} else {
		c.spawnParms = c.s.sim.NewParms()
	}
	c.sendServerInfo()
}

// sendServerInfo starts the signon of the client.
func (c *Client) sendServerInfo() {
	s := c.s
	gameType := svc.GameCoop
	if s.deathmatch.Bool() {
		gameType = svc.GameDeathmatch
	}
	c.write(
		svc.PrintCmd(fmt.Sprintf("%c\nNETQUAKE SERVER (%s)\n", 2, protocol.Name(s.protocol))),
		svc.ServerInfoCmd{
			Protocol:      s.protocol,
			Flags:         s.protocolFlags,
			MaxClients:    s.static.maxClients,
			GameType:      gameType,
			LevelName:     s.level.Message,
			ModelPrecache: s.modelPrecache[1:],
			SoundPrecache: tail(s.soundPrecache),
		},
		svc.CDTrackCmd{Track: s.level.CDTrack, Loop: s.level.CDTrack},
		svc.SetViewCmd(c.id+1),
		svc.SignonNumCmd(1),
	)
	c.sendSignon = true
	c.spawned = false
}

func tail(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s[1:]
}

// write appends cmds to the reliable buffer. An overflow marks the buffer,
// the client is dropped when it is sent.
func (c *Client) write(cmds ...svc.Cmd) {
	if err := svc.Write(c.msg, c.s.protocol, c.s.protocolFlags, cmds...); err != nil {
		log.Debug().Err(err).Int("client", c.id).Msg("reliable message overflow")
	}
}

// Printf sends text to the console of the client.
func (c *Client) Printf(format string, v ...any) {
	c.write(svc.PrintCmd(fmt.Sprintf(format, v...)))
}

func (c *Client) CenterPrintf(format string, v ...any) {
	c.write(svc.CenterPrintCmd(fmt.Sprintf(format, v...)))
}

// StuffText has the client execute text as console commands.
func (c *Client) StuffText(text string) {
	c.write(svc.StuffTextCmd(text))
}

// ConnectedFor is the server time since the client connected.
func (c *Client) ConnectedFor() time.Duration {
	return c.s.realtime - c.connectTime
}

// PingTime returns the average of the recorded pings.
func (c *Client) PingTime() time.Duration {
	n := min(c.numPings, protocol.NumPingTimes)
	if n == 0 {
		return 0
	}
	var sum float32
	for _, p := range c.pingTimes[:n] {
		sum += p
	}
	return time.Duration(float64(sum/float32(n)) * float64(time.Second))
}

// Frags of the player entity.
func (c *Client) Frags() int {
	return int(c.Edict().Frags)
}

// SetName changes the name and tells everybody.
func (c *Client) SetName(name string) {
	if len(name) > 15 {
		name = name[:15]
	}
	if c.name != name && c.name != "" && c.name != "unconnected" {
		conlog.Printf("%s renamed to %s\n", c.name, name)
	}
	c.name = name
	c.Edict().NetName = name
	c.s.broadcastReliable(svc.UpdateNameCmd{Player: c.id, Name: name})
}

// SetColors sets top and bottom color packed as top<<4|bottom.
func (c *Client) SetColors(colors int) {
	c.colors = colors & 0xff
	c.Edict().Team = (colors & 0xf) + 1
	c.s.broadcastReliable(svc.UpdateColorsCmd{Player: c.id, Color: c.colors})
}

// Drop disconnects the client. With crash set no final message is sent
// and the simulator is not notified.
func (c *Client) Drop(crash bool) {
	if !c.active {
		return
	}
	if !crash {
		if c.sock != nil && c.sock.CanSendMessage() {
			if err := c.sock.SendUnreliableMessage([]byte{svc.Disconnect}); err != nil {
				log.Debug().Err(err).Int("client", c.id).Msg("final disconnect")
			}
		}
		if c.spawned {
			c.s.sim.ClientDisconnect(c.s, c)
		}
		conlog.Printf("Client %s removed\n", c.name)
	}
	if c.sock != nil {
		log.Info().Str("addr", c.sock.Address()).Str("name", c.name).Bool("crash", crash).Msg("client dropped")
		c.sock.Close()
	}
	id := c.id
	c.Clear()

	// let everybody else know
	for _, o := range c.s.clients {
		if !o.active {
			continue
		}
		o.write(
			svc.UpdateNameCmd{Player: id},
			svc.UpdateFragsCmd{Player: id},
			svc.UpdateColorsCmd{Player: id},
		)
	}
}

func lightStyle(style int, value string) svc.Cmd {
	return svc.LightStyleCmd{Index: style, Style: value}
}
