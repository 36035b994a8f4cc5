// SPDX-License-Identifier: GPL-2.0-or-later

package server

import (
	"netquake/cvar"
	"netquake/net"
)

// ServerInfo answers the connectionless server info request.
func (s *Server) ServerInfo() net.ServerInfo {
	players := 0
	for _, c := range s.clients {
		if c.active {
			players++
		}
	}
	return net.ServerInfo{
		HostName:   s.hostName.String(),
		LevelName:  s.name,
		Players:    players,
		MaxPlayers: s.static.maxClients,
		Protocol:   s.protocol,
	}
}

func (s *Server) PlayerInfo(slot int) (net.PlayerInfo, bool) {
	if slot < 0 || slot >= s.static.maxClients {
		return net.PlayerInfo{}, false
	}
	c := s.clients[slot]
	if !c.active {
		return net.PlayerInfo{}, false
	}
	return net.PlayerInfo{
		Name:        c.name,
		Colors:      c.colors,
		Frags:       c.Frags(),
		ConnectTime: c.ConnectedFor(),
		Address:     c.sock.Address(),
	}, true
}

// NextRule walks the server info cvars in name order.
func (s *Server) NextRule(prev string) (string, string, bool) {
	var rules []*cvar.Cvar
	for _, cv := range s.cvars.All() {
		if cv.ServerInfo() {
			rules = append(rules, cv)
		}
	}
	next := 0
	if prev != "" {
		next = -1
		for i, cv := range rules {
			if cv.Name() == prev {
				next = i + 1
				break
			}
		}
	}
	if next < 0 || next >= len(rules) {
		return "", "", false
	}
	return rules[next].Name(), rules[next].String(), true
}
