// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"strconv"
	"strings"

	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"
	"netquake/protocol"

	"github.com/rs/zerolog/log"
)

// Register adds the server console commands.
func (s *Server) Register(c *cmd.Commands) error {
	for name, f := range map[string]cmd.QFunc{
		"status":      s.statusCmd,
		"kick":        s.kickCmd,
		"sv_protocol": s.protocolCmd,
		"maxplayers":  s.maxPlayersCmd,
		"map":         s.mapCmd,
		"changelevel": s.changeLevelCmd,
		"restart":     s.restartCmd,
		"save":        s.saveCmd,
		"load":        s.loadCmd,
		"pause":       s.pauseCmd,
	} {
		if err := c.Add(name, f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) statusCmd(_ cbuf.Arguments) error {
	if !s.active {
		conlog.Printf("Server is not active\n")
		return nil
	}
	s.status(conlog.Printf)
	return nil
}

// findClient resolves "#slot" or a player name.
func (s *Server) findClient(arg string) *Client {
	if strings.HasPrefix(arg, "#") {
		n, err := strconv.Atoi(arg[1:])
		if err != nil || n < 1 || n > s.static.maxClients {
			return nil
		}
		c := s.clients[n-1]
		if !c.active {
			return nil
		}
		return c
	}
	for _, c := range s.Clients() {
		if c.active && strings.EqualFold(c.name, arg) {
			return c
		}
	}
	return nil
}

func (s *Server) kickCmd(a cbuf.Arguments) error {
	args := a.Args()
	if !s.active {
		return nil
	}
	if len(args) < 2 {
		conlog.Printf("kick <name> [reason] or kick # <slot> [reason]\n")
		return nil
	}
	target := args[1].String()
	reason := ""
	if target == "#" && len(args) > 2 {
		target = "#" + args[2].String()
		if len(args) > 3 {
			reason = strings.Join(argStrings(args[3:]), " ")
		}
	} else if len(args) > 2 {
		reason = strings.Join(argStrings(args[2:]), " ")
	}
	c := s.findClient(target)
	if c == nil {
		conlog.Printf("No such player %s\n", target)
		return nil
	}
	if reason != "" {
		c.Printf("Kicked by Console: %s\n", reason)
	} else {
		c.Printf("Kicked by Console\n")
	}
	// the message has to go out before the client is gone
	if c.sock.CanSendMessage() {
		if err := c.sock.SendMessage(c.msg.Bytes()); err != nil {
			log.Debug().Err(err).Int("client", c.id).Msg("kick message")
		}
		c.msg.Clear()
	}
	c.Drop(false)
	return nil
}

func argStrings(args []cbuf.QArg) []string {
	r := make([]string, len(args))
	for i, a := range args {
		r[i] = a.String()
	}
	return r
}

func (s *Server) protocolCmd(a cbuf.Arguments) error {
	args := a.Args()
	switch len(args) {
	case 1:
		conlog.Printf("\"sv_protocol\" is \"%d\"\n", s.nextProtocol)
	case 2:
		p := args[1].Int()
		if err := s.SetProtocol(p); err != nil {
			conlog.Printf("sv_protocol must be %d or %d or %d\n", protocol.NetQuake, protocol.FitzQuake, protocol.RMQ)
			return nil
		}
		if s.active {
			conlog.Printf("changes will not take effect until the next level load.\n")
		}
	default:
		conlog.Printf("usage: sv_protocol <protocol>\n")
	}
	return nil
}

func (s *Server) maxPlayersCmd(a cbuf.Arguments) error {
	args := a.Args()
	if len(args) != 2 {
		conlog.Printf("\"maxplayers\" is \"%d\"\n", s.static.maxClients)
		return nil
	}
	if err := s.SetMaxClients(args[1].Int()); err != nil {
		conlog.Printf("maxplayers can not be changed while a server is running.\n")
		return nil
	}
	if args[1].Int() > s.static.maxClientsLimit {
		conlog.Printf("maxplayers set to %d\n", s.static.maxClients)
	}
	return nil
}

// startMap shuts down the running game and spawns name.
func (s *Server) startMap(name string) error {
	lvl, err := s.levels.Level(name)
	if err != nil {
		conlog.Printf("Can't load %s: %v\n", name, err)
		return nil
	}
	s.Shutdown(false)
	s.static.serverFlags = 0
	if err := s.SpawnServer(lvl); err != nil {
		return err
	}
	if !s.dedicated {
		s.hostCommand("connect local\n")
	}
	return nil
}

func (s *Server) mapCmd(a cbuf.Arguments) error {
	args := a.Args()
	if len(args) < 2 {
		if s.active {
			conlog.Printf("Current map: %s\n", s.name)
		}
		conlog.Printf("map <levelname>: start a new server\n")
		return nil
	}
	return s.startMap(strings.TrimSuffix(args[1].String(), ".bsp"))
}

// changeLevelCmd goes to a new map keeping the connected clients and
// their spawn parms.
func (s *Server) changeLevelCmd(a cbuf.Arguments) error {
	args := a.Args()
	if len(args) != 2 {
		conlog.Printf("changelevel <levelname> : continue game on a new level\n")
		return nil
	}
	if !s.active {
		conlog.Printf("Only the server may changelevel\n")
		return nil
	}
	lvl, err := s.levels.Level(args[1].String())
	if err != nil {
		conlog.Printf("Can't load %s: %v\n", args[1].String(), err)
		return nil
	}
	s.SaveSpawnParms()
	return s.SpawnServer(lvl)
}

func (s *Server) restartCmd(_ cbuf.Arguments) error {
	if !s.active {
		return nil
	}
	return s.SpawnServer(s.level)
}

func (s *Server) saveCmd(a cbuf.Arguments) error {
	args := a.Args()
	if len(args) != 2 {
		conlog.Printf("save <savename> : save a game\n")
		return nil
	}
	p, err := s.SaveGame(args[1].String())
	if err != nil {
		conlog.Printf("%v\n", err)
		return nil
	}
	conlog.Printf("Saved game to %s\n", p)
	return nil
}

func (s *Server) loadCmd(a cbuf.Arguments) error {
	args := a.Args()
	if len(args) != 2 {
		conlog.Printf("load <savename> : load a game\n")
		return nil
	}
	conlog.Printf("Loading game from %s...\n", args[1].String())
	if err := s.LoadGame(args[1].String()); err != nil {
		conlog.Printf("%v\n", err)
	}
	return nil
}

func (s *Server) pauseCmd(_ cbuf.Arguments) error {
	if !s.active {
		return nil
	}
	s.togglePause("Console")
	return nil
}
