// SPDX-License-Identifier: GPL-2.0-or-later

package host

import (
	"os"
	"path/filepath"

	"netquake/commandline"
	"netquake/config"
	"netquake/net"
	"netquake/protocol"
	"netquake/server"
	"netquake/sim"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const baseGame = "id1"

// Environment is everything a host is started with. Command line flags
// take precedence over the configuration file.
type Environment struct {
	BaseDir  string
	Game     string
	CacheDir string
	SaveDir  string

	Dedicated       bool
	MaxClients      int
	MaxClientsLimit int
	Protocol        int
	Map             string
	HostName        string
	Developer       bool
	// Cvars are set before the first frame.
	Cvars map[string]string

	Net       net.Config
	Levels    server.LevelSource
	SimLevels map[string]sim.Level
}

// NewEnvironment merges the configuration and the flags.
func NewEnvironment(c *config.Config, f *commandline.Flags) (Environment, error) {
	env := Environment{
		BaseDir:   c.Game.BaseDir,
		Game:      c.Game.Dir,
		CacheDir:  c.Game.CacheDir,
		SaveDir:   c.Server.SaveDir,
		Dedicated: f.IsDedicated(),
		Protocol:  c.Server.Protocol,
		Map:       c.Server.Map,
		HostName:  c.Server.HostName,
		Developer: f.Developer,
		Cvars:     c.Server.Cvars,
		Net:       net.DefaultConfig(),
		Levels:    c.Levels(),
		SimLevels: c.SimLevels(),
	}

	env.MaxClients, env.MaxClientsLimit = f.MaxClients()
	if f.Dedicated == 0 && f.Listen == 0 && c.Server.MaxPlayers > 0 {
		env.MaxClients = c.Server.MaxPlayers
		env.MaxClientsLimit = max(env.MaxClients, 4)
	}

	if f.BaseDir != "" {
		env.BaseDir = f.BaseDir
	}
	if env.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Environment{}, errors.Wrap(err, "could not get current working dir")
		}
		env.BaseDir = wd
	}
	env.BaseDir = filepath.Clean(env.BaseDir)
	if f.Game != "" {
		env.Game = f.Game
	}
	if f.CacheDir != "" {
		env.CacheDir = f.CacheDir
	}
	if env.SaveDir == "" {
		env.SaveDir = env.GameDir()
	}
	if f.Map != "" {
		env.Map = f.Map
	}
	if f.Protocol != 0 {
		env.Protocol = f.Protocol
	}
	if env.Protocol == 0 {
		env.Protocol = protocol.FitzQuake
	}
	if !protocol.Supported(env.Protocol) {
		return Environment{}, errors.Errorf("bad protocol version number %d", env.Protocol)
	}

	env.Net.BindAddress = c.Net.IP
	if f.IP != "" {
		env.Net.BindAddress = f.IP
	}
	if c.Net.Port != 0 {
		env.Net.Port = c.Net.Port
	}
	if f.Port != 0 {
		env.Net.Port = f.Port
	}
	if c.Net.MessageTimeout > 0 {
		env.Net.MessageTimeout = c.Net.MessageTimeout
	}
	if c.Net.ControlRate > 0 {
		env.Net.ControlRate = rate.Limit(c.Net.ControlRate)
	}
	if c.Net.ControlBurst > 0 {
		env.Net.ControlBurst = c.Net.ControlBurst
	}
	return env, nil
}

// GameDir is the directory files of the running game are written to.
func (e *Environment) GameDir() string {
	if e.Game == "" {
		return filepath.Join(e.BaseDir, baseGame)
	}
	return filepath.Join(e.BaseDir, e.Game)
}

// SearchPaths lists the game directories, the one searched first first.
func (e *Environment) SearchPaths() []string {
	paths := []string{}
	if e.Game != "" && e.Game != baseGame {
		paths = append(paths, filepath.Join(e.BaseDir, e.Game))
	}
	paths = append(paths, filepath.Join(e.BaseDir, baseGame))
	if e.CacheDir != "" {
		paths = append(paths, e.CacheDir)
	}
	return paths
}
