// SPDX-License-Identifier: GPL-2.0-or-later

// Package config reads the YAML configuration of a server. Files are
// applied in order on top of the embedded defaults.
package config

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strings"
	"time"

	"netquake/math/vec"
	"netquake/protocol"
	"netquake/server"
	"netquake/sim"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var Default []byte

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server Server `yaml:"server"`
	Net    Net    `yaml:"net"`
	Game   Game   `yaml:"game"`
}

type Server struct {
	HostName string `yaml:"hostname"`
	// MaxPlayers of 0 leaves the choice to the command line.
	MaxPlayers int    `yaml:"maxplayers"`
	Protocol   int    `yaml:"protocol"`
	Map        string `yaml:"map"`
	SaveDir    string `yaml:"savedir"`
	// Cvars are set once at startup.
	Cvars map[string]string `yaml:"cvars"`
}

type Net struct {
	IP             string        `yaml:"ip"`
	Port           int           `yaml:"port"`
	MessageTimeout time.Duration `yaml:"messageTimeout"`
	ControlRate    float64       `yaml:"controlRate"`
	ControlBurst   int           `yaml:"controlBurst"`
}

type Game struct {
	BaseDir  string           `yaml:"basedir"`
	Dir      string           `yaml:"game"`
	CacheDir string           `yaml:"cachedir"`
	Levels   map[string]Level `yaml:"levels"`
}

// Level describes a map the built in simulator can run.
type Level struct {
	SubModels int      `yaml:"submodels"`
	Message   string   `yaml:"message"`
	CDTrack   int      `yaml:"cdtrack"`
	Floor     float32  `yaml:"floor"`
	Mins      vec.Vec3 `yaml:"mins"`
	Maxs      vec.Vec3 `yaml:"maxs"`
	Entities  []Entity `yaml:"entities"`
}

type Entity struct {
	ClassName string   `yaml:"classname"`
	Origin    vec.Vec3 `yaml:"origin"`
	Angles    vec.Vec3 `yaml:"angles"`
	Model     string   `yaml:"model"`
	Sound     string   `yaml:"sound"`
	Style     int      `yaml:"style"`
	Light     string   `yaml:"light"`
}

func decode(c *Config, r io.Reader, name string) error {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && err != io.EOF {
		return errors.Wrapf(err, "could not process config file %s", name)
	}
	return nil
}

// Load reads the default configuration and then every file in paths.
// Later files override single values and add to the maps.
func Load(paths ...string) (*Config, error) {
	c := &Config{}
	if err := decode(c, bytes.NewReader(Default), "<default>"); err != nil {
		return nil, err
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "could not process config file %s", p)
		}
		err = decode(c, f, p)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Net.Port < 0 || c.Net.Port > 65535 {
		return errors.Wrapf(ErrInvalid, "net.port %d out of range", c.Net.Port)
	}
	if c.Net.MessageTimeout < 0 {
		return errors.Wrapf(ErrInvalid, "net.messageTimeout must not be negative")
	}
	if c.Server.MaxPlayers < 0 || c.Server.MaxPlayers > protocol.MaxClients {
		return errors.Wrapf(ErrInvalid, "server.maxplayers must be between 0 and %d", protocol.MaxClients)
	}
	if c.Server.Protocol != 0 && !protocol.Supported(c.Server.Protocol) {
		return errors.Wrapf(ErrInvalid, "server.protocol %d is not supported", c.Server.Protocol)
	}
	for name, l := range c.Game.Levels {
		if !validLevelName(name) {
			return errors.Wrapf(ErrInvalid, "bad level name %q", name)
		}
		for i, e := range l.Entities {
			if e.ClassName == "" {
				return errors.Wrapf(ErrInvalid, "level %s: entity %d has no classname", name, i)
			}
		}
	}
	return nil
}

func validLevelName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\ `) && !strings.Contains(name, "..")
}

// SimLevels returns the levels in the form the simulator spawns them.
func (c *Config) SimLevels() map[string]sim.Level {
	ret := make(map[string]sim.Level, len(c.Game.Levels))
	for name, l := range c.Game.Levels {
		sl := sim.Level{
			Floor: l.Floor,
			Mins:  l.Mins,
			Maxs:  l.Maxs,
		}
		for _, e := range l.Entities {
			sl.Entities = append(sl.Entities, sim.Entity{
				ClassName: e.ClassName,
				Origin:    e.Origin,
				Angles:    e.Angles,
				Model:     e.Model,
				Sound:     e.Sound,
				Style:     e.Style,
				Light:     e.Light,
			})
		}
		ret[name] = sl
	}
	return ret
}

type levelSource map[string]Level

// Level resolves configured levels by name. Other names get an empty
// level of the simulator.
func (ls levelSource) Level(name string) (server.Level, error) {
	if !validLevelName(name) {
		return server.Level{}, errors.Errorf("bad level name %q", name)
	}
	l := ls[name]
	return server.Level{
		Name:      name,
		SubModels: l.SubModels,
		Message:   l.Message,
		CDTrack:   l.CDTrack,
	}, nil
}

// Levels returns the level source used by the map commands.
func (c *Config) Levels() server.LevelSource {
	return levelSource(c.Game.Levels)
}
