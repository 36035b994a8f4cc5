// SPDX-License-Identifier: GPL-2.0-or-later

// Package client is the connection of a player to a server. It keeps the
// signon handshake going, applies server messages to its view of the
// world and sends the player input back.
package client

import (
	"context"
	"fmt"

	"netquake/cbuf"
	"netquake/conlog"
	"netquake/cvar"
	"netquake/lerp"
	"netquake/math/vec"
	"netquake/mdl"
	"netquake/net"
	"netquake/protocol"
	clc "netquake/protocol/client"
	svc "netquake/protocol/server"
	"netquake/stat"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// SignonStages is the number of signon messages before the client is
// fully in the game.
const SignonStages = protocol.Signons

var ErrServerDisconnected = errors.New("server disconnected")

// Player is a scoreboard entry.
type Player struct {
	Name   string
	Frags  int
	Colors int
}

type Client struct {
	net  *net.Net
	cbuf *cbuf.CommandBuffer

	name       *cvar.Cvar
	color      *cvar.Cvar
	noLerp     *cvar.Cvar
	lerpModels *cvar.Cvar
	lerpMove   *cvar.Cvar

	state       State
	signon      int
	sock        *net.Socket
	out         []clc.Cmd
	msg         *net.Message
	moveMsg     *net.Message
	localServer bool
	spawnParms  string

	protocol      int
	protocolFlags uint32
	maxClients    int
	gameType      int
	levelName     string
	modelPrecache []string
	soundPrecache []string
	models        map[string]*mdl.Model

	viewEntity   int
	paused       bool
	intermission int
	centerPrint  string
	cdTrack      int
	time         float64
	oldTime      float64
	mtime        [2]float64
	mvelocity    [2]vec.Vec3
	velocity     vec.Vec3
	viewAngles   vec.Vec3
	move         clc.CmdMove
	data         svc.ClientDataCmd
	stats        [stat.MaxCl]int32
	lightStyles  [protocol.MaxLightStyles]string
	players      []Player
	entities     []*Entity
	statics      []svc.Baseline
	staticSounds []svc.StaticSoundCmd
}

// New creates a disconnected client. Text the server stuffs is added to
// cb.
func New(n *net.Net, cb *cbuf.CommandBuffer, cvars *cvar.Registry) *Client {
	return &Client{
		net:        n,
		cbuf:       cb,
		msg:        net.NewMessage(protocol.MaxMsgLen),
		moveMsg:    net.NewMessage(protocol.MaxDatagram),
		models:     make(map[string]*mdl.Model),
		name:       cvars.MustCreate("_cl_name", cvar.String, "player", cvar.ARCHIVE),
		color:      cvars.MustCreate("_cl_color", cvar.Number, "0", cvar.ARCHIVE),
		noLerp:     cvars.MustCreate("cl_nolerp", cvar.Bool, "0", cvar.NONE),
		lerpModels: cvars.MustCreate("r_lerpmodels", cvar.Number, "1", cvar.NONE),
		lerpMove:   cvars.MustCreate("r_lerpmove", cvar.Bool, "1", cvar.NONE),
		protocol:   protocol.NetQuake,
	}
}

func (c *Client) State() State             { return c.state }
func (c *Client) Signon() int              { return c.signon }
func (c *Client) Protocol() int            { return c.protocol }
func (c *Client) ProtocolFlags() uint32    { return c.protocolFlags }
func (c *Client) MaxClients() int          { return c.maxClients }
func (c *Client) LevelName() string        { return c.levelName }
func (c *Client) ModelPrecache() []string  { return c.modelPrecache }
func (c *Client) SoundPrecache() []string  { return c.soundPrecache }
func (c *Client) ViewEntity() int          { return c.viewEntity }
func (c *Client) ViewAngles() vec.Vec3     { return c.viewAngles }
func (c *Client) Velocity() vec.Vec3       { return c.velocity }
func (c *Client) Paused() bool             { return c.paused }
func (c *Client) Intermission() int        { return c.intermission }
func (c *Client) CenterPrint() string      { return c.centerPrint }
func (c *Client) Data() svc.ClientDataCmd  { return c.data }
func (c *Client) Stat(i int) int32         { return c.stats[i] }
func (c *Client) LightStyle(i int) string  { return c.lightStyles[i] }
func (c *Client) Statics() []svc.Baseline  { return c.statics }
func (c *Client) Time() float64            { return c.time }
func (c *Client) SetLocalServer(b bool)    { c.localServer = b }
func (c *Client) SetSpawnParms(p string)   { c.spawnParms = p }
func (c *Client) SetViewAngles(a vec.Vec3) { c.viewAngles = a }

// SetMove sets the input sent with the next move command.
func (c *Client) SetMove(m clc.CmdMove) { c.move = m }

// SetModel makes the frames of a precached model known for pose
// interpolation.
func (c *Client) SetModel(name string, m *mdl.Model) {
	c.models[name] = m
}

// Player returns scoreboard slot i.
func (c *Client) Player(i int) (Player, bool) {
	if i < 0 || i >= len(c.players) {
		return Player{}, false
	}
	return c.players[i], true
}

// Entity returns entity i or nil if the server never mentioned it.
func (c *Client) Entity(i int) *Entity {
	if i < 0 || i >= len(c.entities) {
		return nil
	}
	return c.entities[i]
}

func (c *Client) lerpOptions() lerp.Options {
	return lerp.Options{
		LerpModels: c.lerpModels.Float32(),
		LerpMove:   c.lerpMove.Bool(),
	}
}

// clearState forgets everything about the previous level.
func (c *Client) clearState() {
	c.maxClients = 0
	c.levelName = ""
	c.modelPrecache = nil
	c.soundPrecache = nil
	c.viewEntity = 0
	c.paused = false
	c.intermission = 0
	c.centerPrint = ""
	c.mtime = [2]float64{}
	c.mvelocity = [2]vec.Vec3{}
	c.velocity = vec.Vec3{}
	c.data = svc.ClientDataCmd{}
	c.stats = [stat.MaxCl]int32{}
	c.lightStyles = [protocol.MaxLightStyles]string{}
	c.players = nil
	c.entities = nil
	c.statics = nil
	c.staticSounds = nil
}

// Connect establishes a connection to host, "local" for a server in the
// same process. A previous connection is dropped first.
func (c *Client) Connect(ctx context.Context, host string) error {
	c.Disconnect()
	sock, err := c.net.Connect(ctx, host)
	if err != nil {
		return errors.Wrap(err, "connect failed")
	}
	conlog.DPrintf("CL_EstablishConnection: connected to %s\n", host)
	c.sock = sock
	c.state = Connected
	// need all the signon messages before playing
	c.signon = 0
	c.out = append(c.out[:0], clc.CmdNop{})
	log.Info().Str("host", host).Str("session", sock.ID().String()).Msg("connected")
	return nil
}

// Disconnect tells the server the client is leaving and closes the
// connection.
func (c *Client) Disconnect() {
	if c.state == Connected {
		conlog.DPrintf("Sending clc_disconnect\n")
		c.msg.Clear()
		if err := clc.Encode(c.msg, []clc.Cmd{clc.CmdDisconnect{}}, c.protocol, c.protocolFlags); err == nil {
			if err := c.sock.SendUnreliableMessage(c.msg.Bytes()); err != nil {
				log.Debug().Err(err).Msg("send disconnect")
			}
		}
		c.sock.Close()
		c.sock = nil
		c.state = Disconnected
	}
	c.signon = 0
	c.out = c.out[:0]
	c.intermission = 0
}

// Reconnect waits for the signon messages again. The server sends it
// just before it changes levels.
func (c *Client) Reconnect() {
	if c.state != Connected {
		return
	}
	c.signon = 0
}

// Forward queues a string command for the server.
func (c *Client) Forward(text string) error {
	if c.state != Connected {
		return errors.New("Can't \"" + text + "\", not connected")
	}
	c.out = append(c.out, clc.CmdString{Text: text})
	return nil
}

// signonReply answers the svc_signonnum the server just sent.
func (c *Client) signonReply() {
	conlog.DPrintf("CL_SignonReply: %d\n", c.signon)

	switch c.signon {
	case 1:
		c.out = append(c.out, clc.CmdString{Text: "prespawn"})

	case 2:
		color := c.color.Int()
		c.out = append(c.out,
			clc.CmdString{Text: fmt.Sprintf("name \"%s\"", c.name.String())},
			clc.CmdString{Text: fmt.Sprintf("color %d %d", color>>4, color&15)},
			clc.CmdString{Text: fmt.Sprintf("spawn %s", c.spawnParms)},
		)

	case 3:
		c.out = append(c.out, clc.CmdString{Text: "begin"})

	case 4:
		log.Debug().Str("level", c.levelName).Msg("signon done")
	}
}

// SendCmd sends the movement of this frame unreliably and the queued
// string commands reliably once the previous reliable message arrived.
func (c *Client) SendCmd() error {
	if c.state != Connected {
		return nil
	}
	if c.signon == SignonStages {
		if err := c.sendMove(); err != nil {
			return err
		}
	}
	if len(c.out) == 0 {
		return nil
	}
	if !c.sock.CanSendMessage() {
		conlog.DPrintf("CL_SendCmd: can't send\n")
		return nil
	}
	c.msg.Clear()
	if err := clc.Encode(c.msg, c.out, c.protocol, c.protocolFlags); err != nil {
		c.Disconnect()
		return errors.Wrap(err, "CL_SendCmd")
	}
	if err := c.sock.SendMessage(c.msg.Bytes()); err != nil {
		c.Disconnect()
		return errors.Wrap(err, "CL_SendCmd: lost server connection")
	}
	c.out = c.out[:0]
	return nil
}

func (c *Client) sendMove() error {
	m := c.move
	m.MessageTime = float32(c.mtime[0])
	m.Angles = c.viewAngles
	buf := c.moveMsg
	buf.Clear()
	if err := clc.Encode(buf, []clc.Cmd{m}, c.protocol, c.protocolFlags); err != nil {
		return errors.Wrap(err, "move")
	}
	// impulses are sent once
	c.move.Impulse = 0
	err := c.sock.SendUnreliableMessage(buf.Bytes())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, net.ErrWouldBlock):
		log.Debug().Err(err).Msg("move dropped")
		return nil
	}
	c.Disconnect()
	return errors.Wrap(err, "CL_SendMove: lost server connection")
}

// ReadFromServer advances the client time by frameTime, applies every
// pending server message and relinks the entities. An error means the
// connection is gone.
func (c *Client) ReadFromServer(frameTime float64) error {
	if c.state != Connected {
		return nil
	}
	c.oldTime = c.time
	c.time += frameTime
	for c.state == Connected {
		kind, r, err := c.sock.GetMessage()
		if err != nil {
			c.Disconnect()
			return errors.Wrap(err, "CL_ReadFromServer: lost server connection")
		}
		if kind == net.MessageNone {
			break
		}
		data := r.Bytes()
		// discard nop keepalive message
		if len(data) == 1 && data[0] == svc.Nop {
			continue
		}
		if err := c.parseServerMessage(data); err != nil {
			c.Disconnect()
			return err
		}
	}
	if c.state != Connected {
		return nil
	}

	frac := c.LerpPoint()
	// interpolate player info
	c.velocity = vec.Lerp(c.mvelocity[1], c.mvelocity[0], frac)
	c.relinkEntities(frac)
	return nil
}
