// SPDX-License-Identifier: GPL-2.0-or-later

// Package server is the authoritative game state: edicts, precache
// tables, the per frame message buffers and the connected clients.
package server

import (
	"time"

	"netquake/cvar"
	"netquake/edict"
	"netquake/net"
	"netquake/protocol"
	pflags "netquake/protocol/flags"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrPrecacheOverflow = errors.New("precache table full")
	ErrPrecacheClosed   = errors.New("precache can only be done while loading a level")
	ErrNotPrecached     = errors.New("not precached")
	ErrNoFreeEdicts     = edict.ErrNoFreeEdicts
	ErrNotActive        = errors.New("server is not active")
	ErrBadProtocol      = errors.New("bad protocol version")
)

// State gates what is allowed during a level load.
type State int

const (
	// Loading permits precache registration, no datagrams go out.
	Loading State = iota
	// Active freezes the precache tables.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "loading"
}

// Static survives level changes.
type Static struct {
	maxClients      int
	maxClientsLimit int
	serverFlags     uint32
}

// Level is what SpawnServer loads.
type Level struct {
	Name string
	// SubModels is the number of brush models of the map, precached as
	// "*1".."*N".
	SubModels int
	// Message is the level title shown by clients.
	Message string
	CDTrack int
}

// Simulator runs the game rules on top of the server state.
type Simulator interface {
	// SpawnLevel populates a freshly cleared level. It may precache.
	SpawnLevel(s *Server, l Level) error
	NewParms() [protocol.NumSpawnParms]float32
	// SaveParms returns the parms carried to the next level.
	SaveParms(s *Server, c *Client) [protocol.NumSpawnParms]float32
	// ClientConnect and PutClientInServer run when a client spawns
	// into a freshly loaded level.
	ClientConnect(s *Server, c *Client)
	PutClientInServer(s *Server, c *Client)
	ClientDisconnect(s *Server, c *Client)
	ClientKill(s *Server, c *Client)
	// ClientThink applies the last move command of a spawned client.
	ClientThink(s *Server, c *Client, frameTime time.Duration)
	Physics(s *Server, frameTime time.Duration)
}

// LevelSource resolves map names for the map and changelevel commands.
type LevelSource interface {
	Level(name string) (Level, error)
}

type staticLevels struct{}

func (staticLevels) Level(name string) (Level, error) {
	return Level{Name: name}, nil
}

// Options are fixed at construction.
type Options struct {
	MaxClientsLimit int
	Dedicated       bool
	Protocol        int
	ProtocolFlags   uint32
	// Levels defaults to levels without brush models.
	Levels LevelSource
	// SaveDir is where save games are written.
	SaveDir string
}

type Server struct {
	net     *net.Net
	sim     Simulator
	cvars   *cvar.Registry
	hostCmd func(string)
	levels  LevelSource
	saveDir string

	dedicated bool

	static  Static
	clients []*Client

	active   bool
	paused   bool
	loadGame bool
	time     time.Duration
	// realtime counts wall clock frames, it is not stopped by pause.
	realtime time.Duration

	// loadParms are restored into reconnecting clients after a load.
	loadParms [protocol.MaxClients][protocol.NumSpawnParms]float32

	datagram         *net.Message
	reliableDatagram *net.Message
	signon           *net.Message

	protocol      int
	protocolFlags uint32
	nextProtocol  int

	state State

	edicts        *edict.Arena
	modelPrecache []string
	soundPrecache []string
	lightStyles   [protocol.MaxLightStyles]string

	name      string // map name
	modelName string // maps/<name>.bsp, for modelPrecache[1]
	level     Level

	hostName    *cvar.Cvar
	deathmatch  *cvar.Cvar
	coop        *cvar.Cvar
	fragLimit   *cvar.Cvar
	timeLimit   *cvar.Cvar
	maxVelocity *cvar.Cvar
	gravity     *cvar.Cvar
	friction    *cvar.Cvar
	maxSpeed    *cvar.Cvar
	accelerate  *cvar.Cvar
}

// New creates a server with all client slots free. The registry gets the
// server cvars.
func New(n *net.Net, sim Simulator, cvars *cvar.Registry, o Options) *Server {
	if o.MaxClientsLimit < 1 {
		o.MaxClientsLimit = 1
	}
	if o.MaxClientsLimit > protocol.MaxClients {
		o.MaxClientsLimit = protocol.MaxClients
	}
	if !protocol.Supported(o.Protocol) {
		o.Protocol = protocol.FitzQuake
	}
	if o.ProtocolFlags == 0 {
		o.ProtocolFlags = pflags.Default
	}
	if o.Levels == nil {
		o.Levels = staticLevels{}
	}
	s := &Server{
		net:       n,
		sim:       sim,
		cvars:     cvars,
		levels:    o.Levels,
		saveDir:   o.SaveDir,
		dedicated: o.Dedicated,
		static: Static{
			maxClients:      1,
			maxClientsLimit: o.MaxClientsLimit,
		},
		nextProtocol:     o.Protocol,
		protocolFlags:    o.ProtocolFlags,
		datagram:         net.NewMessage(protocol.MaxDatagram),
		reliableDatagram: net.NewMessage(protocol.MaxDatagram),
		// prespawn appends one more command to the signon
		signon: net.NewMessage(protocol.MaxMsgLen - 2),
		edicts: edict.NewArena(protocol.MaxEdicts),
	}
	if o.Dedicated {
		s.static.maxClients = min(8, o.MaxClientsLimit)
	}
	s.clients = make([]*Client, o.MaxClientsLimit)
	for i := range s.clients {
		s.clients[i] = newClient(s, i)
	}
	s.registerCvars()
	return s
}

func (s *Server) registerCvars() {
	r := s.cvars
	s.hostName = r.MustCreate("hostname", cvar.String, "UNNAMED", cvar.SERVERINFO)
	s.deathmatch = r.MustCreate("deathmatch", cvar.Number, "0", cvar.SERVERINFO)
	s.coop = r.MustCreate("coop", cvar.Bool, "0", cvar.SERVERINFO)
	s.fragLimit = r.MustCreate("fraglimit", cvar.Number, "0", cvar.NOTIFY|cvar.SERVERINFO)
	s.timeLimit = r.MustCreate("timelimit", cvar.Number, "0", cvar.NOTIFY|cvar.SERVERINFO)
	s.maxVelocity = r.MustCreate("sv_maxvelocity", cvar.Number, "2000", cvar.NONE)
	s.gravity = r.MustCreate("sv_gravity", cvar.Number, "800", cvar.NOTIFY|cvar.SERVERINFO)
	s.friction = r.MustCreate("sv_friction", cvar.Number, "4", cvar.NOTIFY|cvar.SERVERINFO)
	s.maxSpeed = r.MustCreate("sv_maxspeed", cvar.Number, "320", cvar.NOTIFY|cvar.SERVERINFO)
	s.accelerate = r.MustCreate("sv_accelerate", cvar.Number, "10", cvar.NONE)
}

// SetHostCommand sets where commands for the local host go. A listen
// server connects its own client this way after a map change.
func (s *Server) SetHostCommand(f func(string)) {
	s.hostCmd = f
}

func (s *Server) Active() bool            { return s.active }
func (s *Server) Paused() bool            { return s.paused }
func (s *Server) State() State            { return s.state }
func (s *Server) Time() time.Duration     { return s.time }
func (s *Server) Name() string            { return s.name }
func (s *Server) Protocol() int           { return s.protocol }
func (s *Server) ProtocolFlags() uint32   { return s.protocolFlags }
func (s *Server) Edicts() *edict.Arena    { return s.edicts }
func (s *Server) MaxClients() int         { return s.static.maxClients }
func (s *Server) ServerFlags() uint32     { return s.static.serverFlags }
func (s *Server) Datagram() *net.Message  { return s.datagram }
func (s *Server) Signon() *net.Message    { return s.signon }
func (s *Server) Cvars() *cvar.Registry   { return s.cvars }
func (s *Server) Gravity() float32        { return s.gravity.Float32() }
func (s *Server) Friction() float32       { return s.friction.Float32() }
func (s *Server) MaxSpeed() float32       { return s.maxSpeed.Float32() }
func (s *Server) Accelerate() float32     { return s.accelerate.Float32() }
func (s *Server) MaxVelocity() float32    { return s.maxVelocity.Float32() }
func (s *Server) Deathmatch() bool        { return s.deathmatch.Bool() }
func (s *Server) SetServerFlags(f uint32) { s.static.serverFlags = f }
func (s *Server) ReliableDatagram() *net.Message {
	return s.reliableDatagram
}

// Client returns slot i.
func (s *Server) Client(i int) *Client {
	return s.clients[i]
}

// Clients returns the slots up to the current maxplayers.
func (s *Server) Clients() []*Client {
	return s.clients[:s.static.maxClients]
}

// SetMaxClients changes maxplayers, it takes effect on the next map.
func (s *Server) SetMaxClients(n int) error {
	if s.active {
		return errors.New("maxplayers can not be changed while a server is running")
	}
	n = max(1, min(n, s.static.maxClientsLimit))
	s.static.maxClients = n
	if n == 1 {
		s.deathmatch.SetValue(0)
	} else {
		s.deathmatch.SetValue(1)
	}
	return nil
}

// SetProtocol selects the protocol used from the next level on.
func (s *Server) SetProtocol(p int) error {
	if !protocol.Supported(p) {
		return errors.Wrapf(ErrBadProtocol, "sv_protocol must be %v or %v or %v",
			protocol.NetQuake, protocol.FitzQuake, protocol.RMQ)
	}
	s.nextProtocol = p
	return nil
}

func (s *Server) NextProtocol() int {
	return s.nextProtocol
}

// Clear resets the per level state. The arena and buffers are reused.
func (s *Server) Clear() {
	s.active = false
	s.paused = false
	s.loadGame = false
	s.time = 0
	s.state = Loading
	s.datagram.Clear()
	s.reliableDatagram.Clear()
	s.signon.Clear()
	s.modelPrecache = s.modelPrecache[:0]
	s.soundPrecache = s.soundPrecache[:0]
	s.lightStyles = [protocol.MaxLightStyles]string{}
	s.name = ""
	s.modelName = ""
	s.level = Level{}
}

// PrecacheModel registers a model name and returns its index. Index 0 is
// the empty name.
func (s *Server) PrecacheModel(name string) (int, error) {
	return s.precache(&s.modelPrecache, protocol.MaxModels, "model", name)
}

func (s *Server) PrecacheSound(name string) (int, error) {
	return s.precache(&s.soundPrecache, protocol.MaxSounds, "sound", name)
}

func (s *Server) precache(table *[]string, limit int, kind, name string) (int, error) {
	if len(*table) == 0 {
		*table = append(*table, "")
	}
	for i, n := range *table {
		if n == name {
			return i, nil
		}
	}
	if s.state != Loading {
		return 0, errors.Wrapf(ErrPrecacheClosed, "%s %s", kind, name)
	}
	if len(*table) >= limit {
		return 0, errors.Wrapf(ErrPrecacheOverflow, "%s %s, max is %d", kind, name, limit)
	}
	*table = append(*table, name)
	return len(*table) - 1, nil
}

// ModelIndex returns the precache index of name, 0 for the empty name.
func (s *Server) ModelIndex(name string) (int, error) {
	return index(s.modelPrecache, "model", name)
}

func (s *Server) SoundIndex(name string) (int, error) {
	return index(s.soundPrecache, "sound", name)
}

func index(table []string, kind, name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	for i, n := range table {
		if n == name {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrNotPrecached, "%s %s", kind, name)
}

func (s *Server) ModelPrecache() []string {
	return s.modelPrecache
}

func (s *Server) SoundPrecache() []string {
	return s.soundPrecache
}

// SetLightStyle changes a light style, broadcasting it once the level runs.
func (s *Server) SetLightStyle(style int, value string) error {
	if style < 0 || style >= protocol.MaxLightStyles {
		return errors.Errorf("light style %d out of range", style)
	}
	if len(value) > protocol.MaxStyleString {
		value = value[:protocol.MaxStyleString]
	}
	s.lightStyles[style] = value
	if s.state != Active {
		return nil
	}
	for _, c := range s.clients {
		if c.active || c.spawned {
			c.write(lightStyle(style, value))
		}
	}
	return nil
}

func (s *Server) LightStyle(style int) string {
	return s.lightStyles[style]
}

// ClientEdict returns the edict of client slot i.
func (s *Server) ClientEdict(i int) *edict.Edict {
	return s.edicts.At(i + 1)
}

// BroadcastPrintf prints to every spawned client.
func (s *Server) BroadcastPrintf(format string, v ...any) {
	for _, c := range s.clients {
		if c.active && c.spawned {
			c.Printf(format, v...)
		}
	}
}

func (s *Server) hostCommand(text string) {
	if s.hostCmd != nil {
		s.hostCmd(text)
	}
}

func (s *Server) firstFreeClient() *Client {
	for _, c := range s.clients[:s.static.maxClients] {
		if !c.active {
			return c
		}
	}
	return nil
}

// checkNewConnections binds accepted sockets to free client slots.
func (s *Server) checkNewConnections() {
	for {
		sock := s.net.CheckNewConnections()
		if sock == nil {
			return
		}
		c := s.firstFreeClient()
		if c == nil {
			// the UDP driver does not accept more than maxplayers, only
			// loopback can get here
			log.Warn().Str("addr", sock.Address()).Msg("no free client slot")
			sock.Close()
			continue
		}
		c.connect(sock)
		log.Info().Str("addr", sock.Address()).Int("slot", c.id).Msg("client connected")
	}
}

// Shutdown drops every client and deactivates the server.
func (s *Server) Shutdown(crash bool) {
	if !s.active {
		return
	}
	s.active = false
	for _, c := range s.clients {
		if c.active {
			c.Drop(crash)
		}
	}
	s.Clear()
	log.Info().Msg("server shut down")
}
